package store

import (
	"context"
	"errors"
)

var ErrWorksheetNotFound = errors.New("worksheet not found")

// Table is a single worksheet of the shared check-in spreadsheet, or
// whatever stands in for it. Row 1 is the header.
type Table interface {
	// EnsureWorksheet creates the worksheet seeded with header when it does
	// not exist yet. An existing worksheet is left untouched.
	EnsureWorksheet(ctx context.Context, header []string) error
	// SetHeader overwrites row 1 with header, or writes it when the
	// worksheet is empty.
	SetHeader(ctx context.Context, header []string) error
	AppendRow(ctx context.Context, row []string) error
	GetAllValues(ctx context.Context) ([][]string, error)
}

// Sequencer is implemented by backends that can hand out a monotonic serial
// number themselves instead of the caller counting rows.
type Sequencer interface {
	NextSerial(ctx context.Context) (int, error)
}

func copyRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}
