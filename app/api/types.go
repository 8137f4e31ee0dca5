package api

import (
	"time"

	"github.com/lysyi3m/rss-hook/app/database"
	"github.com/lysyi3m/rss-hook/app/dedup"
	"github.com/lysyi3m/rss-hook/app/feed"
	"github.com/lysyi3m/rss-hook/app/tasks"
)

type FeedStore interface {
	List() ([]feed.Config, error)
	Get(id string) (*feed.Config, error)
	Create(feedConfig feed.Config) (*feed.Config, error)
	Update(id string, changes feed.Config) (*feed.Config, error)
	Delete(id string) (*feed.Config, error)
	Export() ([]byte, error)
	Import(data []byte) (int, error)
}

type SentCounter interface {
	Size() int
}

// HealthChecker is implemented by storage backends with a remote dependency.
type HealthChecker interface {
	Health() error
}

var (
	_ FeedStore     = (*feed.ListStore)(nil)
	_ SentCounter   = (*dedup.Store)(nil)
	_ HealthChecker = (*database.RedisRepository)(nil)
)

type Handler struct {
	feedStore   FeedStore
	stateRepo   database.FeedStateRepository
	sentCounter SentCounter
	scheduler   tasks.TaskSchedulerInterface
	backend     HealthChecker
}

type feedRequest struct {
	Name           string `json:"name"`
	URL            string `json:"url" binding:"required"`
	WebhookURL     string `json:"webhook_url" binding:"required"`
	UpdateInterval int    `json:"update_interval"`
}

func (r feedRequest) toConfig() feed.Config {
	return feed.Config{
		Name:           r.Name,
		URL:            r.URL,
		WebhookURL:     r.WebhookURL,
		UpdateInterval: r.UpdateInterval,
	}
}

type feedResponse struct {
	feed.Config
	LastChecked *time.Time `json:"last_checked"`
	StatusCode  *int       `json:"status_code"`
}
