package models

import (
	"strconv"
	"strings"
)

const (
	DateLayout      = "2006-01-02"
	TimestampLayout = "2006-01-02 15:04:05"
)

// Schema describes one sheet layout: its header row and how a row maps onto
// a Record.
type Schema struct {
	Name   string
	Header []string

	// column names in Header for each Record field; "" = not stored
	SerialCol   string
	TimeCol     string
	TypeCol     string
	NameCol     string
	LocationCol string
	PlaceCol    string
}

// LegacySchema is the four-column sheet the first check-in form wrote to.
var LegacySchema = Schema{
	Name:        "legacy",
	Header:      []string{"연번", "이름", "근무장소", "근무시간"},
	SerialCol:   "연번",
	TimeCol:     "근무시간",
	NameCol:     "이름",
	LocationCol: "근무장소",
}

// TypedSchema carries the volunteer type and a free-text place.
var TypedSchema = Schema{
	Name:        "typed",
	Header:      []string{"timestamp_kst", "type", "name", "station", "place"},
	TimeCol:     "timestamp_kst",
	TypeCol:     "type",
	NameCol:     "name",
	LocationCol: "station",
	PlaceCol:    "place",
}

func SchemaByName(name string) (Schema, bool) {
	switch strings.ToLower(name) {
	case LegacySchema.Name:
		return LegacySchema, true
	case TypedSchema.Name:
		return TypedSchema, true
	}
	return Schema{}, false
}

func (s Schema) HasSerial() bool { return s.SerialCol != "" }

// Row lays out a record in header order.
func (s Schema) Row(r Record) []string {
	row := make([]string, len(s.Header))
	for i, col := range s.Header {
		switch col {
		case s.SerialCol:
			if r.Serial != nil {
				row[i] = strconv.Itoa(*r.Serial)
			}
		case s.TimeCol:
			row[i] = r.Timestamp
		case s.TypeCol:
			row[i] = r.Type
		case s.NameCol:
			row[i] = r.Name
		case s.LocationCol:
			row[i] = r.Location
		case s.PlaceCol:
			row[i] = r.Place
		}
	}
	return row
}

// Columns indexes a header row read from the table. Header cells are trimmed
// and the first occurrence of a name wins.
type Columns map[string]int

func IndexHeader(header []string) Columns {
	cols := make(Columns, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if _, ok := cols[h]; !ok {
			cols[h] = i
		}
	}
	return cols
}

func (c Columns) cell(row []string, name string) string {
	if name == "" {
		return ""
	}
	i, ok := c[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// Record reads one data row. Columns absent from the header read as "" and
// an unparseable serial is left nil; the timestamp is parsed by the caller.
func (s Schema) Record(cols Columns, row []string) Record {
	r := Record{
		Timestamp: cols.cell(row, s.TimeCol),
		Type:      cols.cell(row, s.TypeCol),
		Name:      cols.cell(row, s.NameCol),
		Location:  cols.cell(row, s.LocationCol),
		Place:     cols.cell(row, s.PlaceCol),
	}
	if s.HasSerial() {
		if n, err := strconv.Atoi(cols.cell(row, s.SerialCol)); err == nil {
			r.Serial = &n
		}
	}
	return r
}

// SameHeader compares a stored header row with the schema header, ignoring
// surrounding whitespace and trailing empty cells.
func (s Schema) SameHeader(actual []string) bool {
	for len(actual) > 0 && strings.TrimSpace(actual[len(actual)-1]) == "" {
		actual = actual[:len(actual)-1]
	}
	if len(actual) != len(s.Header) {
		return false
	}
	for i := range actual {
		if strings.TrimSpace(actual[i]) != s.Header[i] {
			return false
		}
	}
	return true
}
