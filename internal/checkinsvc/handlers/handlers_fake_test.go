package handlers

import (
	"context"
	"errors"

	"github.com/avvvet/checkin-services/internal/checkinsvc/store"
)

var errSheetDown = errors.New("sheet api unavailable")

// downTable reads fine but rejects every append.
type downTable struct {
	*store.MemoryTable
}

func (d downTable) AppendRow(ctx context.Context, row []string) error {
	return errSheetDown
}
