package feed

import (
	"time"
)

// Configuration types

// MinUpdateInterval is the smallest polling interval a feed may be configured
// with, in seconds. It matches the default scheduler tick.
const MinUpdateInterval = 60

// DefaultUpdateInterval is applied when a feed is created without an interval.
const DefaultUpdateInterval = 300

type Config struct {
	ID             string `json:"id"`
	Name           string `json:"name,omitempty"`
	URL            string `json:"url"`
	WebhookURL     string `json:"webhook_url"`
	UpdateInterval int    `json:"update_interval"` // seconds
}

// configFile is the on-disk layout of the feed list.
type configFile struct {
	Feeds []Config `json:"FEEDS"`
}

// Feed processing types

type Entry struct {
	ID          string // GUID, falling back to link
	Title       string
	Link        string
	PublishedAt *time.Time
	UpdatedAt   *time.Time
}

type FetchResult struct {
	Entries    []Entry // feed's native order, typically newest first
	FeedTitle  string
	HTTPStatus int
	Malformed  bool
}
