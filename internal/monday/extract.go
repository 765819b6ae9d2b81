package monday

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// ParseState tags the outcome of extracting one cell. Malformed values are
// treated as absent by the reconcilers but keep the raw input so callers
// can log them.
type ParseState int

const (
	StateAbsent ParseState = iota
	StateParsed
	StateMalformed
)

// NumberResult is the outcome of a numeric extraction.
type NumberResult struct {
	State ParseState
	Value float64
	Raw   string
}

// Found reports whether a value was successfully parsed.
func (r NumberResult) Found() bool { return r.State == StateParsed }

// DateResult is the outcome of a date extraction.
type DateResult struct {
	State ParseState
	Value time.Time
	Raw   string
}

// Found reports whether a value was successfully parsed.
func (r DateResult) Found() bool { return r.State == StateParsed }

// TimelineResult is the outcome of extracting a timeline column.
type TimelineResult struct {
	State ParseState
	From  time.Time
	To    time.Time
	Raw   string
}

// Found reports whether a value was successfully parsed.
func (r TimelineResult) Found() bool { return r.State == StateParsed }

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"02/01/2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// parseDateText parses a display-text date in any of the accepted layouts.
func parseDateText(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ExtractDate pulls a date from a column value: the structured payload's
// "date" key first, then the display text. A cell with content that parses
// under neither is Malformed.
func ExtractDate(cv *ColumnValue) DateResult {
	if cv == nil {
		return DateResult{State: StateAbsent}
	}
	if len(cv.Value) > 0 && string(cv.Value) != "null" {
		var payload struct {
			Date string `json:"date"`
		}
		if err := json.Unmarshal(cv.Value, &payload); err == nil && payload.Date != "" {
			if t, ok := parseDateText(payload.Date); ok {
				return DateResult{State: StateParsed, Value: t}
			}
		}
	}
	if t, ok := parseDateText(cv.Text); ok {
		return DateResult{State: StateParsed, Value: t}
	}
	if strings.TrimSpace(cv.Text) == "" && (len(cv.Value) == 0 || string(cv.Value) == "null") {
		return DateResult{State: StateAbsent}
	}
	return DateResult{State: StateMalformed, Raw: cv.Text}
}

// currencyStripper removes currency symbols, thousands separators, and
// whitespace before the numeric parse.
var currencyStripper = strings.NewReplacer(
	"£", "", "$", "", "€", "",
	",", "", " ", "", " ", "",
)

// parseNumberText parses a plain or currency-formatted number.
func parseNumberText(text string) (float64, bool) {
	text = strings.TrimSpace(currencyStripper.Replace(text))
	if text == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ExtractNumber pulls a numeric value from a column: the structured payload
// (a bare number, a JSON-encoded numeric string, or a {"value": ...}
// object) first, then the display text stripped of currency formatting.
func ExtractNumber(cv *ColumnValue) NumberResult {
	if cv == nil {
		return NumberResult{State: StateAbsent}
	}
	if len(cv.Value) > 0 && string(cv.Value) != "null" {
		if f, ok := numberFromPayload(cv.Value); ok {
			return NumberResult{State: StateParsed, Value: f}
		}
	}
	if f, ok := parseNumberText(cv.Text); ok {
		return NumberResult{State: StateParsed, Value: f}
	}
	if strings.TrimSpace(cv.Text) == "" && (len(cv.Value) == 0 || string(cv.Value) == "null") {
		return NumberResult{State: StateAbsent}
	}
	return NumberResult{State: StateMalformed, Raw: cv.Text}
}

// numberFromPayload tries the structured representations Monday uses for
// numeric columns.
func numberFromPayload(raw json.RawMessage) (float64, bool) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return parseNumberText(s)
	}
	var obj struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && len(obj.Value) > 0 {
		if err := json.Unmarshal(obj.Value, &f); err == nil {
			return f, true
		}
		if err := json.Unmarshal(obj.Value, &s); err == nil {
			return parseNumberText(s)
		}
	}
	return 0, false
}

// ExtractTimeline pulls a from/to range from a timeline column payload.
func ExtractTimeline(cv *ColumnValue) TimelineResult {
	if cv == nil || len(cv.Value) == 0 || string(cv.Value) == "null" {
		return TimelineResult{State: StateAbsent}
	}
	var payload struct {
		From string `json:"from"`
		To   string `json:"to"`
	}
	if err := json.Unmarshal(cv.Value, &payload); err != nil {
		return TimelineResult{State: StateMalformed, Raw: string(cv.Value)}
	}
	from, okFrom := parseDateText(payload.From)
	to, okTo := parseDateText(payload.To)
	if !okFrom && !okTo {
		if payload.From == "" && payload.To == "" {
			return TimelineResult{State: StateAbsent}
		}
		return TimelineResult{State: StateMalformed, Raw: string(cv.Value)}
	}
	return TimelineResult{State: StateParsed, From: from, To: to}
}

// ExtractPeople scans every people-typed column on an item and returns the
// deduplicated remote user IDs, in first-seen order.
func ExtractPeople(it *Item) []string {
	var ids []string
	seen := make(map[string]bool)
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	for i := range it.ColumnValues {
		cv := &it.ColumnValues[i]
		if cv.Type != "people" && cv.Type != "multiple-person" {
			continue
		}
		if len(cv.Value) == 0 || string(cv.Value) == "null" {
			continue
		}
		var payload struct {
			PersonIDs       []json.Number `json:"personIds"`
			PersonsAndTeams []struct {
				PersonID json.Number `json:"personId"`
				ID       json.Number `json:"id"`
			} `json:"personsAndTeams"`
		}
		if err := json.Unmarshal(cv.Value, &payload); err != nil {
			continue
		}
		for _, id := range payload.PersonIDs {
			add(id.String())
		}
		for _, p := range payload.PersonsAndTeams {
			if p.PersonID != "" {
				add(p.PersonID.String())
			} else {
				add(p.ID.String())
			}
		}
	}
	return ids
}
