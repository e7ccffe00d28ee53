package models

import (
	"time"
)

// Record is one check-in row read back from the table, in a shape shared by
// both sheet layouts.
type Record struct {
	Serial    *int       `json:"serial,omitempty"`
	Timestamp string     `json:"timestamp"`
	Time      *time.Time `json:"time,omitempty"`
	Type      string     `json:"type,omitempty"`
	Name      string     `json:"name"`
	Location  string     `json:"location"`
	Place     string     `json:"place,omitempty"`
}

// Date is the civil date of the record in loc, or "" when the timestamp
// could not be parsed.
func (r Record) Date(loc *time.Location) string {
	if r.Time == nil {
		return ""
	}
	return r.Time.In(loc).Format(DateLayout)
}

// Clock is the HH:MM:SS part of the record in loc.
func (r Record) Clock(loc *time.Location) string {
	if r.Time == nil {
		return ""
	}
	return r.Time.In(loc).Format("15:04:05")
}

// Submission is what the check-in form posts.
type Submission struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Place    string `json:"place"`
}

// Filter narrows a loaded record set. Zero values mean "no constraint".
type Filter struct {
	Start    *time.Time `json:"start,omitempty"`
	End      *time.Time `json:"end,omitempty"`
	Name     string     `json:"name,omitempty"`
	Location string     `json:"location,omitempty"`
	Types    []string   `json:"types,omitempty"`
}

func (f Filter) HasDateBound() bool {
	return f.Start != nil || f.End != nil
}

// Summary backs the dashboard metrics.
type Summary struct {
	Count        int          `json:"count"`
	UniqueNames  int          `json:"unique_names"`
	UniquePlaces int          `json:"unique_locations"`
	Daily        []DailyCount `json:"daily"`
	ByType       []LabelCount `json:"by_type"`
	TopLocations []LabelCount `json:"top_locations"`
	MissingTimes int          `json:"missing_times"`
}

type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}
