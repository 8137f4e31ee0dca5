package database

import (
	"encoding/json"
	"fmt"
	"time"
)

// FeedState is the per-feed scheduling record: when the feed was last
// checked and the status that check produced.
type FeedState struct {
	LastChecked time.Time `json:"last_checked"`
	StatusCode  *int      `json:"status_code"`
}

func NewFeedState(lastChecked time.Time, status int) FeedState {
	return FeedState{LastChecked: lastChecked, StatusCode: &status}
}

// UnmarshalJSON accepts both the object form and the legacy form where the
// state was a bare ISO-8601 timestamp.
func (s *FeedState) UnmarshalJSON(data []byte) error {
	var legacy string
	if err := json.Unmarshal(data, &legacy); err == nil {
		t, err := parseTimestamp(legacy)
		if err != nil {
			return err
		}
		*s = FeedState{LastChecked: t}
		return nil
	}

	type plain FeedState
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = FeedState(p)
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02T15:04:05",
}

// parseTimestamp reads ISO-8601 timestamps with or without a zone; zoneless
// values are taken as UTC.
func parseTimestamp(value string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", value)
}
