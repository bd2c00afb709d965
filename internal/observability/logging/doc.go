// Package logging builds the slog loggers of the worker and the CLI and
// carries a logger and the pipeline run ID through context.
//
//	logger := logging.NewLogger()
//	ctx = logging.WithRunID(logging.WithLogger(ctx, logger), runID)
//	logging.FromContext(ctx).Info("run started")
package logging
