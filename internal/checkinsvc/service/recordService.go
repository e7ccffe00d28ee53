package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/avvvet/checkin-services/internal/checkinsvc/models"
	"github.com/avvvet/checkin-services/internal/checkinsvc/store"
)

// legacyWindowDays is how far back the legacy dashboard looks by default.
const legacyWindowDays = 14

type Result struct {
	Total   int             `json:"total"`
	Records []models.Record `json:"records"`
}

// RecordService reads the whole table and filters it in memory.
type RecordService struct {
	table  store.Table
	schema models.Schema
	loc    *time.Location
	now    func() time.Time
}

func NewRecordService(table store.Table, schema models.Schema, loc *time.Location, now func() time.Time) *RecordService {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &RecordService{table: table, schema: schema, loc: loc, now: now}
}

func (s *RecordService) Location() *time.Location { return s.loc }

func (s *RecordService) Schema() models.Schema { return s.schema }

// Load materializes every data row. An empty table has no records.
func (s *RecordService) Load(ctx context.Context) ([]models.Record, error) {
	values, err := s.table.GetAllValues(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if len(values) == 0 {
		return []models.Record{}, nil
	}

	cols := models.IndexHeader(values[0])
	records := make([]models.Record, 0, len(values)-1)
	for _, row := range values[1:] {
		if blankRow(row) {
			continue
		}
		r := s.schema.Record(cols, row)
		r.Time = ParseTimestamp(r.Timestamp, s.loc)
		records = append(records, r)
	}
	return records, nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Query loads, filters and orders newest first.
func (s *RecordService) Query(ctx context.Context, f models.Filter) (Result, error) {
	all, err := s.Load(ctx)
	if err != nil {
		return Result{}, err
	}
	return s.Select(all, f), nil
}

// Select filters already loaded records and orders them newest first.
func (s *RecordService) Select(all []models.Record, f models.Filter) Result {
	out := Apply(all, f, s.loc)
	SortNewestFirst(out)
	return Result{Total: len(all), Records: out}
}

// DefaultFilter is the dashboard's initial filter. The legacy sheet looks at
// the last two weeks. The typed sheet spans the earliest to the latest
// parseable timestamp in records, which leaves out rows with no usable time;
// with no parseable time at all nothing is bounded.
func (s *RecordService) DefaultFilter(records []models.Record) models.Filter {
	if s.schema.HasSerial() {
		today := s.now().In(s.loc)
		end := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, s.loc)
		start := end.AddDate(0, 0, -legacyWindowDays)
		return models.Filter{Start: &start, End: &end}
	}

	var first, last *time.Time
	for _, r := range records {
		if r.Time == nil {
			continue
		}
		if first == nil || r.Time.Before(*first) {
			first = r.Time
		}
		if last == nil || r.Time.After(*last) {
			last = r.Time
		}
	}
	if first == nil {
		return models.Filter{}
	}
	start, end := first.In(s.loc), last.In(s.loc)
	return models.Filter{Start: &start, End: &end}
}

// Apply keeps the records that satisfy every constraint of f. Date bounds
// are inclusive and compare civil dates in loc; records without a parseable
// time never satisfy a date bound.
func Apply(records []models.Record, f models.Filter, loc *time.Location) []models.Record {
	var start, end string
	if f.Start != nil {
		start = f.Start.In(loc).Format(models.DateLayout)
	}
	if f.End != nil {
		end = f.End.In(loc).Format(models.DateLayout)
	}
	name := strings.TrimSpace(f.Name)
	location := strings.TrimSpace(f.Location)

	var types map[string]bool
	if len(f.Types) > 0 {
		types = make(map[string]bool, len(f.Types))
		for _, t := range f.Types {
			types[strings.TrimSpace(t)] = true
		}
	}

	out := make([]models.Record, 0, len(records))
	for _, r := range records {
		if f.HasDateBound() {
			d := r.Date(loc)
			if d == "" || (start != "" && d < start) || (end != "" && d > end) {
				continue
			}
		}
		if name != "" && !strings.Contains(r.Name, name) {
			continue
		}
		if location != "" && !strings.Contains(r.Location, location) {
			continue
		}
		if types != nil && !types[r.Type] {
			continue
		}
		out = append(out, r)
	}
	return out
}

// SortNewestFirst orders by time descending. Records with no time go last
// and equal times keep their table order.
func SortNewestFirst(records []models.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i].Time, records[j].Time
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return a.After(*b)
	})
}

// Summarize computes the dashboard metrics for a record set.
func Summarize(records []models.Record, loc *time.Location) models.Summary {
	sum := models.Summary{Count: len(records)}

	names := map[string]struct{}{}
	places := map[string]struct{}{}
	daily := map[string]int{}
	byType := map[string]int{}
	byLocation := map[string]int{}

	for _, r := range records {
		if r.Name != "" {
			names[r.Name] = struct{}{}
		}
		if r.Location != "" {
			places[r.Location] = struct{}{}
			byLocation[r.Location]++
		}
		if r.Type != "" {
			byType[r.Type]++
		}
		if d := r.Date(loc); d != "" {
			daily[d]++
		} else {
			sum.MissingTimes++
		}
	}
	sum.UniqueNames = len(names)
	sum.UniquePlaces = len(places)

	for d, n := range daily {
		sum.Daily = append(sum.Daily, models.DailyCount{Date: d, Count: n})
	}
	sort.Slice(sum.Daily, func(i, j int) bool { return sum.Daily[i].Date < sum.Daily[j].Date })

	sum.ByType = labelCounts(byType)
	sort.Slice(sum.ByType, func(i, j int) bool { return sum.ByType[i].Label < sum.ByType[j].Label })

	sum.TopLocations = labelCounts(byLocation)
	sort.Slice(sum.TopLocations, func(i, j int) bool {
		a, b := sum.TopLocations[i], sum.TopLocations[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Label < b.Label
	})
	if len(sum.TopLocations) > 5 {
		sum.TopLocations = sum.TopLocations[:5]
	}
	return sum
}

func labelCounts(m map[string]int) []models.LabelCount {
	out := make([]models.LabelCount, 0, len(m))
	for k, v := range m {
		out = append(out, models.LabelCount{Label: k, Count: v})
	}
	return out
}
