package collect

import (
	"time"

	"github.com/heitormarin83/consultancy-news-agent/internal/domain/entity"
)

// Status summarizes how a run ended.
type Status string

const (
	// StatusAllSourcesFailed means no source returned anything: there is
	// nothing to report, which is different from "nothing new".
	StatusAllSourcesFailed Status = "all_sources_failed"
	StatusNothingNew       Status = "nothing_new"
	StatusDelivered        Status = "delivered"
)

// Stats counts what happened to candidates at each stage.
type Stats struct {
	SourcesAttempted int `json:"sources_attempted"`
	SourcesFailed    int `json:"sources_failed"`

	Fetched        int `json:"fetched"`
	Invalid        int `json:"invalid"`
	OffTopic       int `json:"off_topic"`
	Stale          int `json:"stale"`
	BelowThreshold int `json:"below_threshold"`
	Duplicates     int `json:"duplicates"`
	AlreadySent    int `json:"already_sent"`
	Capped         int `json:"capped"`
	Emitted        int `json:"emitted"`
	StoreErrors    int `json:"store_errors"`

	Duration time.Duration `json:"duration"`
}

// Result is the outcome of one pipeline run.
type Result struct {
	RunID         string           `json:"run_id"`
	StartedAt     time.Time        `json:"started_at"`
	Articles      []entity.Article `json:"articles"`
	Stats         Stats            `json:"stats"`
	DryRun        bool             `json:"dry_run"`
	TimedOut      bool             `json:"timed_out"`
	FailedSources []string         `json:"failed_sources,omitempty"`
}

func (r *Result) Status() Status {
	switch {
	case r.Stats.SourcesAttempted > 0 && r.Stats.SourcesFailed == r.Stats.SourcesAttempted:
		return StatusAllSourcesFailed
	case len(r.Articles) == 0:
		return StatusNothingNew
	default:
		return StatusDelivered
	}
}
