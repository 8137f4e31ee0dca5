package tasks

import (
	"context"

	"github.com/lysyi3m/rss-hook/app/dedup"
	"github.com/lysyi3m/rss-hook/app/feed"
	"github.com/lysyi3m/rss-hook/app/webhook"
)

type FeedFetcher interface {
	Run(ctx context.Context, url string) (*feed.FetchResult, error)
}

type Deliverer interface {
	Post(ctx context.Context, webhookURL string, message string) (webhook.Result, error)
}

// SentRecorder is the at-most-once barrier consulted before every delivery.
type SentRecorder interface {
	TryRecord(id string) (bool, error)
	MarkSent(ids ...string) (int, error)
}

type FeedLister interface {
	List() ([]feed.Config, error)
}

var (
	_ FeedFetcher  = (*feed.Fetcher)(nil)
	_ Deliverer    = (*webhook.Client)(nil)
	_ SentRecorder = (*dedup.Store)(nil)
	_ FeedLister   = (*feed.ListStore)(nil)
)

// TaskSchedulerInterface is what the API and main need from the scheduler.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	Trigger()
	IsRunning() bool
}
