package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/avvvet/checkin-services/internal/checkinsvc/models"
)

// WriteCSV writes records in the given order as UTF-8 CSV with a byte order
// mark, so spreadsheet programs open Hangul text without mojibake.
func WriteCSV(w io.Writer, schema models.Schema, records []models.Record, loc *time.Location) error {
	return WriteTable(w, Columns(schema), func(emit func([]string) error) error {
		for _, r := range records {
			if err := emit(Row(schema, r, loc)); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteTable streams a header and the rows produced by fill through a BOM
// encoder.
func WriteTable(w io.Writer, header []string, fill func(emit func([]string) error) error) error {
	tw := transform.NewWriter(w, unicode.UTF8BOM.NewEncoder())
	cw := csv.NewWriter(tw)

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := fill(cw.Write); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return tw.Close()
}
