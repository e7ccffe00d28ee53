package export

import (
	"fmt"
	"strconv"
	"time"

	"github.com/avvvet/checkin-services/internal/checkinsvc/models"
)

// legacy exports add the split date and clock columns the dashboard shows
var legacyColumns = []string{"연번", "이름", "근무장소", "근무시간", "날짜", "시간"}

// Columns is the header of an export for schema, matching the dashboard
// table.
func Columns(schema models.Schema) []string {
	if schema.HasSerial() {
		return legacyColumns
	}
	return schema.Header
}

// Row renders one record under Columns(schema).
func Row(schema models.Schema, r models.Record, loc *time.Location) []string {
	if !schema.HasSerial() {
		return schema.Row(r)
	}
	serial := ""
	if r.Serial != nil {
		serial = strconv.Itoa(*r.Serial)
	}
	return []string{serial, r.Name, r.Location, r.Timestamp, r.Date(loc), r.Clock(loc)}
}

// FileName names a download. Legacy exports carry the date window like the
// original dashboard did.
func FileName(schema models.Schema, f models.Filter, loc *time.Location, ext string) string {
	if !schema.HasSerial() {
		return "checkins_filtered." + ext
	}
	return fmt.Sprintf("kids_guard_checkins_%s_to_%s.%s", bound(f.Start, loc), bound(f.End, loc), ext)
}

func bound(t *time.Time, loc *time.Location) string {
	if t == nil {
		return "all"
	}
	return t.In(loc).Format(models.DateLayout)
}
