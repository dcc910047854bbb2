package checkin

import (
	"strconv"
	"strings"
	"time"

	"checkinbot/internal/roster"
	"checkinbot/pkg/tgui"
)

const (
	DefaultBufferDays = 3
	DefaultType       = "Contact"
)

// dateLayouts are tried in order. Values are read as calendar dates; any
// time or offset component is dropped.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"1/2/2006",
	"1/2/06",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// ParseDate parses a roster date cell into a civil date (UTC midnight).
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civilDate(t, nil), true
		}
	}
	return time.Time{}, false
}

// SkipReason explains why a roster row was left out of classification.
type SkipReason string

const (
	SkipMissingName      SkipReason = "missing name"
	SkipMissingDate      SkipReason = "missing last contact date"
	SkipMissingFrequency SkipReason = "missing frequency"
	SkipBadDate          SkipReason = "unparseable last contact date"
	SkipBadFrequency     SkipReason = "frequency is not a positive integer"
)

// Contact is a parsed roster row.
type Contact struct {
	Handle        roster.Handle
	Name          string
	Type          string
	LastContact   time.Time // civil date, UTC midnight
	FrequencyDays int
}

// ParseContact validates a raw row. On failure it returns a non-empty reason.
func ParseContact(r roster.Row) (Contact, SkipReason) {
	name := strings.TrimSpace(r.Name)
	dateRaw := strings.TrimSpace(r.LastContactRaw)
	freqRaw := strings.TrimSpace(r.FrequencyRaw)
	switch {
	case name == "":
		return Contact{}, SkipMissingName
	case dateRaw == "":
		return Contact{}, SkipMissingDate
	case freqRaw == "":
		return Contact{}, SkipMissingFrequency
	}

	last, ok := ParseDate(dateRaw)
	if !ok {
		return Contact{}, SkipBadDate
	}
	freq, err := strconv.Atoi(freqRaw)
	if err != nil || freq <= 0 {
		return Contact{}, SkipBadFrequency
	}

	typ := strings.TrimSpace(r.Type)
	if typ == "" {
		typ = DefaultType
	}
	return Contact{
		Handle:        r.Handle,
		Name:          name,
		Type:          typ,
		LastContact:   last,
		FrequencyDays: freq,
	}, ""
}

// Assessment is the due-date view of one contact on a given day.
type Assessment struct {
	Contact
	DaysSinceContact int
	OverdueDays      int
}

// Assess computes days since contact and overdue days as of today.
func Assess(c Contact, today time.Time) Assessment {
	days := int(civilDate(today, nil).Sub(c.LastContact).Hours() / 24)
	return Assessment{
		Contact:          c,
		DaysSinceContact: days,
		OverdueDays:      max(0, days-c.FrequencyDays),
	}
}

// IsDue reports whether the contact surfaces with the given buffer.
// The comparison is inclusive.
func (a Assessment) IsDue(bufferDays int) bool {
	return a.DaysSinceContact >= a.FrequencyDays-bufferDays
}

// Status renders the short due label shown next to a contact.
func (a Assessment) Status() string {
	if a.OverdueDays > 0 {
		return tgui.Count(a.OverdueDays, "day", "days") + " overdue"
	}
	left := a.FrequencyDays - a.DaysSinceContact
	if left <= 0 {
		return "due today"
	}
	return "due in " + tgui.Count(left, "day", "days")
}

// Classify parses r and reports whether it is due on today. Malformed rows
// and rows that are not yet due both report false.
func Classify(r roster.Row, today time.Time, bufferDays int) (Assessment, bool) {
	c, skip := ParseContact(r)
	if skip != "" {
		return Assessment{}, false
	}
	a := Assess(c, today)
	return a, a.IsDue(bufferDays)
}

// Skipped is a row that failed to parse.
type Skipped struct {
	Row    roster.Row
	Reason SkipReason
}

// Classification is the result of classifying a whole roster.
type Classification struct {
	Due     []Assessment
	OnTrack []Assessment
	Skipped []Skipped
}

// ClassifyAll classifies rows in order. Due and OnTrack keep roster order.
func ClassifyAll(rows []roster.Row, today time.Time, bufferDays int) Classification {
	var out Classification
	for _, r := range rows {
		c, skip := ParseContact(r)
		if skip != "" {
			// Fully blank rows are padding, not noise worth reporting.
			if strings.TrimSpace(r.Name+r.Type+r.LastContactRaw+r.FrequencyRaw) != "" {
				out.Skipped = append(out.Skipped, Skipped{Row: r, Reason: skip})
			}
			continue
		}
		a := Assess(c, today)
		if a.IsDue(bufferDays) {
			out.Due = append(out.Due, a)
		} else {
			out.OnTrack = append(out.OnTrack, a)
		}
	}
	return out
}
