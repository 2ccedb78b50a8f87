package worker

import (
	"context"
	"errors"
	"fmt"

	"costmanager/internal/amqp"
	"costmanager/internal/core"
	"costmanager/internal/log"
	"costmanager/internal/store"
)

// LogWorker persists request-log messages consumed from the broker.
type LogWorker struct {
	logs   store.LogWriter
	logger *log.Logger
}

func NewLogWorker(logs store.LogWriter, logger *log.Logger) *LogWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &LogWorker{logs: logs, logger: logger.WithComponent(log.ComponentWorker)}
}

// HandleRequestLog stores one message. An entry already stored under the
// same id is acknowledged without a second write.
func (w *LogWorker) HandleRequestLog(ctx context.Context, msg *amqp.RequestLogMessage) error {
	err := w.logs.AppendLog(ctx, msg.Entry())
	switch {
	case err == nil:
		w.logger.DebugContext(ctx, "Request log stored", "id", msg.ID)
		return nil
	case errors.Is(err, core.ErrConflict):
		w.logger.DebugContext(ctx, "Request log already stored", "id", msg.ID)
		return nil
	default:
		return fmt.Errorf("append request log: %w", err)
	}
}
