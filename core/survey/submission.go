// Package survey holds the raw survey platform records and the adapters that turn them into the
// typed records the evaluation pipeline works on.
package survey

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Field names shared across forms.
const (
	FieldSubmissionTime = "_submission_time"
	FieldSubmissionID   = "_id"
)

// Submission is one raw form response as returned by the survey platform: field name -> value.
// Field presence depends on the form.
type Submission map[string]interface{}

// Data is the body of `GET assets/{formId}/data.json`.
type Data struct {
	Count   int          `json:"count"`
	Next    *string      `json:"next"`
	Results []Submission `json:"results"`
}

// String returns the trimmed string value of field key ("" if absent or null).
func (s Submission) String(key string) string {
	v, ok := s[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// FirstString returns the first non-empty trimmed value among keys.
func (s Submission) FirstString(keys ...string) string {
	for _, k := range keys {
		if v := s.String(k); v != "" {
			return v
		}
	}
	return ""
}

// SubmittedAt parses the submission timestamp. Missing or unparsable values give the zero time.
func (s Submission) SubmittedAt() time.Time {
	return ParseTime(s.String(FieldSubmissionTime))
}

// ID returns the platform's submission id, if any.
func (s Submission) ID() string {
	return s.String(FieldSubmissionID)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime parses the timestamp formats the survey platform emits. Times without zone are UTC.
func ParseTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
