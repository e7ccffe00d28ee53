package service

import (
	"context"
	"errors"
	"sync"

	"github.com/avvvet/checkin-services/internal/checkinsvc/models"
	"github.com/avvvet/checkin-services/internal/checkinsvc/store"
)

var errBoom = errors.New("boom")

// failingTable wraps a MemoryTable and fails the operations it is told to.
type failingTable struct {
	*store.MemoryTable
	failAppend bool
	failRead   bool
}

func (f *failingTable) AppendRow(ctx context.Context, row []string) error {
	if f.failAppend {
		return errBoom
	}
	return f.MemoryTable.AppendRow(ctx, row)
}

func (f *failingTable) GetAllValues(ctx context.Context) ([][]string, error) {
	if f.failRead {
		return nil, errBoom
	}
	return f.MemoryTable.GetAllValues(ctx)
}

// sequencedTable hands out serials from its own counter.
type sequencedTable struct {
	*store.MemoryTable
	next int
}

func (s *sequencedTable) NextSerial(ctx context.Context) (int, error) {
	s.next++
	return s.next, nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	records []models.Record
	err     error
}

func (n *recordingNotifier) CheckinCreated(ctx context.Context, r models.Record) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.records = append(n.records, r)
	return n.err
}
