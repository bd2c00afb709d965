package collect

import "errors"

var (
	ErrNoSources          = errors.New("collect: no sources configured")
	ErrMissingDependency  = errors.New("collect: missing dependency")
	ErrInvalidConcurrency = errors.New("collect: worker pool size must be positive")
)
