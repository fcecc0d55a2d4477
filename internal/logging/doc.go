// Package logging provides structured logging for turnq.
//
// It wraps log/slog with a JSON handler. Child loggers carry queue and
// request identity so every line about one queue can be filtered
// together:
//
//	logger, err := logging.NewLogger("", "info") // stderr
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	qlog := logger.WithQueue("C123", "1700000000.000100")
//	qlog.Info("turn started", "participant", "U_ALICE")
//
// The level is held in a [slog.LevelVar] shared by the logger and all of
// its children, so [Logger.SetLevel] takes effect everywhere at once. This
// is how a config reload changes verbosity on a running server.
package logging
