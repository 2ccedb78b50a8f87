package services

import (
	"context"
	"errors"
	"fmt"

	"costmanager/internal/core"
	"costmanager/internal/store"
)

// LogStore is the storage a LogService needs.
type LogStore interface {
	store.LogWriter
	store.LogReader
}

type LogService struct {
	store LogStore
}

func NewLogService(s LogStore) *LogService {
	return &LogService{store: s}
}

func (s *LogService) ListLogs(ctx context.Context) ([]core.LogEntry, error) {
	logs, err := s.store.ListLogs(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list logs: %w", core.ErrInternal, err)
	}
	if logs == nil {
		logs = []core.LogEntry{}
	}
	return logs, nil
}

// Record appends a request-log entry. It satisfies log.RequestRecorder.
// A redelivered entry that is already stored counts as recorded.
func (s *LogService) Record(ctx context.Context, e core.LogEntry) error {
	if err := s.store.AppendLog(ctx, e); err != nil && !errors.Is(err, core.ErrConflict) {
		return err
	}
	return nil
}
