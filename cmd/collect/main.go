// Command collect runs the collector once from the command line, lists the
// catalog, and reports what the dedup store holds.
//
//	collect run --dry-run --format table
//	collect sources --min-priority high
//	collect stats --days 30
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/heitormarin83/consultancy-news-agent/internal/app"
	"github.com/heitormarin83/consultancy-news-agent/internal/catalog"
	"github.com/heitormarin83/consultancy-news-agent/internal/domain/entity"
	"github.com/heitormarin83/consultancy-news-agent/internal/infra/fetcher"
	"github.com/heitormarin83/consultancy-news-agent/internal/observability/logging"
	"github.com/heitormarin83/consultancy-news-agent/internal/repository"
	"github.com/heitormarin83/consultancy-news-agent/internal/usecase/collect"
	"github.com/heitormarin83/consultancy-news-agent/pkg/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "collect",
		Usage: "Collect consulting news from the source catalog",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run the pipeline once and print the shortlist",
				Action: runCommand,
				Flags: append(append(catalogFlags(), storeFlags()...),
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Do not record emitted items in the dedup store",
					},
					&cli.StringFlag{
						Name:  "format",
						Usage: "Output format (json, table)",
						Value: "json",
					},
					&cli.IntFlag{
						Name:    "workers",
						Usage:   "Concurrent source retrievals",
						Value:   collect.DefaultConfig().Workers,
						EnvVars: []string{"WORKER_POOL_SIZE"},
					},
					&cli.DurationFlag{
						Name:    "run-timeout",
						Usage:   "Deadline for the retrieval phase",
						Value:   collect.DefaultConfig().RunTimeout,
						EnvVars: []string{"RUN_TIMEOUT"},
					},
					&cli.DurationFlag{
						Name:    "source-timeout",
						Usage:   "Deadline for one source",
						Value:   collect.DefaultConfig().SourceTimeout,
						EnvVars: []string{"SOURCE_TIMEOUT"},
					},
					&cli.DurationFlag{
						Name:    "freshness",
						Usage:   "Drop items published longer ago than this",
						Value:   collect.DefaultConfig().FreshnessWindow,
						EnvVars: []string{"FRESHNESS_WINDOW"},
					},
					&cli.IntFlag{
						Name:  "max-total",
						Usage: "Maximum items in the shortlist",
						Value: collect.DefaultConfig().Limits.MaxTotal,
					},
					&cli.BoolFlag{
						Name:    "content-fetch",
						Usage:   "Replace short summaries with the article text",
						EnvVars: []string{"CONTENT_FETCH_ENABLED"},
					},
					&cli.BoolFlag{
						Name:   "allow-private",
						Usage:  "Allow fetching loopback and private addresses",
						Hidden: true,
					},
				),
			},
			{
				Name:   "sources",
				Usage:  "List the validated source catalog",
				Action: sourcesCommand,
				Flags:  catalogFlags(),
			},
			{
				Name:   "stats",
				Usage:  "Summarize the dedup store over the last days",
				Action: statsCommand,
				Flags: append(storeFlags(),
					&cli.IntFlag{
						Name:  "days",
						Usage: "Window size in days",
						Value: 7,
					},
					&cli.StringFlag{
						Name:  "format",
						Usage: "Output format (json, table)",
						Value: "table",
					},
				),
			},
		},
	}
}

func catalogFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "catalog",
			Aliases: []string{"c"},
			Usage:   "Path to a YAML or TOML catalog (default: built-in)",
			EnvVars: []string{"CATALOG_PATH"},
		},
		&cli.StringSliceFlag{
			Name:  "group",
			Usage: "Only use sources of this catalog group (repeatable)",
		},
		&cli.StringFlag{
			Name:  "min-priority",
			Usage: "Drop sources below this priority (high, medium, low)",
		},
		&cli.IntFlag{
			Name:  "max-per-group",
			Usage: "Use at most N sources of each group",
		},
	}
}

func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "store-driver",
			Usage:   "Dedup store (sqlite, postgres, badger)",
			Value:   "sqlite",
			EnvVars: []string{"STORE_DRIVER"},
		},
		&cli.StringFlag{
			Name:    "store-path",
			Usage:   "sqlite file or badger directory",
			Value:   "consulting_news_history.db",
			EnvVars: []string{"STORE_PATH"},
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "Postgres DSN when --store-driver=postgres",
			EnvVars: []string{"DATABASE_URL"},
		},
	}
}

func setupLogger(c *cli.Context) error {
	logger := logging.New(c.App.ErrWriter, "text", logging.ParseLevel(c.String("log-level")))
	slog.SetDefault(logger)
	return nil
}

func loadCatalog(c *cli.Context) (*catalog.Catalog, catalog.Filter, error) {
	filter := catalog.Filter{
		Groups:      c.StringSlice("group"),
		MaxPerGroup: c.Int("max-per-group"),
	}
	if p := c.String("min-priority"); p != "" {
		filter.MinPriority = entity.Priority(strings.ToLower(p))
		if !filter.MinPriority.Valid() {
			return nil, filter, fmt.Errorf("invalid --min-priority %q", p)
		}
	}
	cat, err := catalog.Load(c.String("catalog"))
	return cat, filter, err
}

func openStore(c *cli.Context) (*storeHandle, error) {
	store, err := app.OpenStore(c.Context, app.StoreOptions{
		Driver:      c.String("store-driver"),
		Path:        c.String("store-path"),
		DatabaseURL: c.String("database-url"),
	}, slog.Default())
	if err != nil {
		return nil, err
	}
	return &storeHandle{store}, nil
}

type storeHandle struct {
	repository.SentRepository
}

func (h *storeHandle) close() {
	if err := h.Close(); err != nil {
		slog.Error("failed to close dedup store", slog.Any("error", err))
	}
}

func runCommand(c *cli.Context) error {
	format := c.String("format")
	if format != "json" && format != "table" {
		return fmt.Errorf("invalid --format %q", format)
	}

	cat, filter, err := loadCatalog(c)
	if err != nil {
		return err
	}
	h, err := openStore(c)
	if err != nil {
		return err
	}
	defer h.close()

	opts := app.DefaultPipelineOptions()
	opts.Filter = filter
	opts.Collect.Workers = c.Int("workers")
	opts.Collect.RunTimeout = c.Duration("run-timeout")
	opts.Collect.SourceTimeout = c.Duration("source-timeout")
	opts.Collect.FreshnessWindow = c.Duration("freshness")
	opts.Collect.Limits.MaxTotal = c.Int("max-total")
	opts.Collect.DryRun = c.Bool("dry-run")
	opts.Scoring.FeedMinScore = config.GetEnvInt("FEED_MIN_SCORE", opts.Scoring.FeedMinScore)
	opts.Scoring.DocumentMinScore = config.GetEnvInt("DOCUMENT_MIN_SCORE", opts.Scoring.DocumentMinScore)
	opts.Scraper.AllowPrivate = c.Bool("allow-private")
	if c.Bool("content-fetch") {
		cf, err := fetcher.LoadConfigFromEnv()
		if err != nil {
			return err
		}
		cf.Enabled = true
		cf.DenyPrivateIPs = !c.Bool("allow-private")
		opts.ContentFetch = cf
	}

	svc, err := app.Build(cat, h.SentRepository, opts, slog.Default())
	if err != nil {
		return err
	}
	res, err := svc.Run(c.Context)
	if err != nil {
		return err
	}

	w := c.App.Writer
	if format == "table" {
		return printShortlist(w, res)
	}
	enc := json.NewEncoder(w)
	for _, a := range res.Articles {
		if err := enc.Encode(a); err != nil {
			return err
		}
	}
	return nil
}

func printShortlist(w io.Writer, res *collect.Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "#\tSCORE\tSOURCE\tCOUNTRY\tTITLE\n")
	for i, a := range res.Articles {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\n", i+1, a.Score, a.SourceName, a.Country, a.Title)
	}
	fmt.Fprintf(tw, "\nstatus: %s  fetched: %d  emitted: %d  sources failed: %d/%d  duration: %s\n",
		res.Status(), res.Stats.Fetched, res.Stats.Emitted,
		res.Stats.SourcesFailed, res.Stats.SourcesAttempted, res.Stats.Duration.Round(time.Millisecond))
	return tw.Flush()
}

func sourcesCommand(c *cli.Context) error {
	cat, filter, err := loadCatalog(c)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tNAME\tCOUNTRY\tLANG\tPRIORITY\tMODE\tGROUP\n")
	for _, s := range cat.Sources(filter) {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.Name, s.Country, s.Language, s.Priority, s.Mode, s.Group)
	}
	return tw.Flush()
}

func statsCommand(c *cli.Context) error {
	days := c.Int("days")
	if days <= 0 {
		return fmt.Errorf("--days must be positive, got %d", days)
	}
	h, err := openStore(c)
	if err != nil {
		return err
	}
	defer h.close()

	stats, err := h.Stats(c.Context, time.Now().AddDate(0, 0, -days))
	if err != nil {
		return err
	}

	if c.String("format") == "json" {
		return json.NewEncoder(c.App.Writer).Encode(stats)
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Articles sent in the last %d days: %d\n", days, stats.Total)
	for _, section := range []struct {
		title  string
		counts map[string]int
	}{
		{"By country", stats.ByCountry},
		{"By source", stats.BySource},
		{"By category", stats.ByCategory},
		{"By score band", stats.ByBand},
	} {
		if len(section.counts) == 0 {
			continue
		}
		fmt.Fprintf(tw, "\n%s\n", section.title)
		for _, k := range sortedKeys(section.counts) {
			fmt.Fprintf(tw, "  %s\t%d\n", k, section.counts[k])
		}
	}
	return tw.Flush()
}

// sortedKeys orders by count, descending, then by key.
func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}
