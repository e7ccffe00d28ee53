package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/xuri/excelize/v2"
)

// XLSXTable keeps the worksheet in a local .xlsx workbook. Every call opens
// and saves the file, so the workbook can be inspected with a spreadsheet
// program between requests.
type XLSXTable struct {
	mu        sync.Mutex
	path      string
	worksheet string
}

func NewXLSXTable(path, worksheet string) (*XLSXTable, error) {
	if path == "" || worksheet == "" {
		return nil, errors.New("xlsx table: path and worksheet are required")
	}
	return &XLSXTable{path: path, worksheet: worksheet}, nil
}

func (x *XLSXTable) open() (*excelize.File, bool, error) {
	f, err := excelize.OpenFile(x.path)
	if err == nil {
		return f, false, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return excelize.NewFile(), true, nil
	}
	return nil, false, fmt.Errorf("xlsx table: open %s: %w", x.path, err)
}

func (x *XLSXTable) hasSheet(f *excelize.File) bool {
	idx, err := f.GetSheetIndex(x.worksheet)
	return err == nil && idx >= 0
}

// withFile runs fn on the opened workbook and saves it when fn reports a
// change.
func (x *XLSXTable) withFile(fn func(f *excelize.File, created bool) (bool, error)) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	f, created, err := x.open()
	if err != nil {
		return err
	}
	defer f.Close()

	changed, err := fn(f, created)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	if err := f.SaveAs(x.path); err != nil {
		return fmt.Errorf("xlsx table: save %s: %w", x.path, err)
	}
	return nil
}

func (x *XLSXTable) createSheet(f *excelize.File, created bool) error {
	idx, err := f.NewSheet(x.worksheet)
	if err != nil {
		return fmt.Errorf("xlsx table: create worksheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if created && x.worksheet != "Sheet1" {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return fmt.Errorf("xlsx table: drop default sheet: %w", err)
		}
	}
	return nil
}

func (x *XLSXTable) EnsureWorksheet(ctx context.Context, header []string) error {
	return x.withFile(func(f *excelize.File, created bool) (bool, error) {
		if x.hasSheet(f) && !created {
			return false, nil
		}
		if !x.hasSheet(f) {
			if err := x.createSheet(f, created); err != nil {
				return false, err
			}
		}
		return true, x.writeRow(f, 1, header)
	})
}

func (x *XLSXTable) SetHeader(ctx context.Context, header []string) error {
	return x.withFile(func(f *excelize.File, created bool) (bool, error) {
		if !x.hasSheet(f) {
			if err := x.createSheet(f, created); err != nil {
				return false, err
			}
		}
		rows, err := f.GetRows(x.worksheet)
		if err != nil {
			return false, fmt.Errorf("xlsx table: read rows: %w", err)
		}
		if len(rows) > 0 {
			if err := f.RemoveRow(x.worksheet, 1); err != nil {
				return false, fmt.Errorf("xlsx table: remove header: %w", err)
			}
			if err := f.InsertRows(x.worksheet, 1, 1); err != nil {
				return false, fmt.Errorf("xlsx table: insert header: %w", err)
			}
		}
		return true, x.writeRow(f, 1, header)
	})
}

func (x *XLSXTable) AppendRow(ctx context.Context, row []string) error {
	return x.withFile(func(f *excelize.File, created bool) (bool, error) {
		if !x.hasSheet(f) {
			if err := x.createSheet(f, created); err != nil {
				return false, err
			}
		}
		rows, err := f.GetRows(x.worksheet)
		if err != nil {
			return false, fmt.Errorf("xlsx table: read rows: %w", err)
		}
		return true, x.writeRow(f, len(rows)+1, row)
	})
}

func (x *XLSXTable) GetAllValues(ctx context.Context) ([][]string, error) {
	var out [][]string
	err := x.withFile(func(f *excelize.File, created bool) (bool, error) {
		if !x.hasSheet(f) {
			return false, fmt.Errorf("%w: %s", ErrWorksheetNotFound, x.worksheet)
		}
		rows, err := f.GetRows(x.worksheet)
		if err != nil {
			return false, fmt.Errorf("xlsx table: read rows: %w", err)
		}
		out = rows
		return false, nil
	})
	return out, err
}

func (x *XLSXTable) writeRow(f *excelize.File, n int, row []string) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return fmt.Errorf("xlsx table: row %d: %w", n, err)
	}
	cells := toCells(row)
	if err := f.SetSheetRow(x.worksheet, cell, &cells); err != nil {
		return fmt.Errorf("xlsx table: write row %d: %w", n, err)
	}
	return nil
}
