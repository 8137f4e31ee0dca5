package tasks

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lysyi3m/rss-hook/app/feed"
	"github.com/lysyi3m/rss-hook/app/metrics"
	"github.com/lysyi3m/rss-hook/app/webhook"
)

var _ TaskInterface = (*CheckFeedTask)(nil)

// ErrSeedIncomplete is returned by an initial check whose recent entries
// could not all be recorded as sent. The feed must stay initial so the next
// check seeds it again instead of delivering the backlog.
var ErrSeedIncomplete = errors.New("initial check could not record recent entries")

// CheckFeedTask fetches one feed and announces its new entries. Status holds
// the fetch's HTTP status once Execute returns, or 500 when the fetch failed.
type CheckFeedTask struct {
	Task
	FeedConfig feed.Config
	Initial    bool
	Now        time.Time

	Status    int
	Delivered int
	Seeded    int

	fetcher       FeedFetcher
	deliverer     Deliverer
	recorder      SentRecorder
	recencyWindow time.Duration
}

func NewCheckFeedTask(feedConfig feed.Config, initial bool, now time.Time, fetcher FeedFetcher,
	deliverer Deliverer, recorder SentRecorder, recencyWindow time.Duration) *CheckFeedTask {
	return &CheckFeedTask{
		Task:          NewTask(TaskTypeCheckFeed, feedConfig.DisplayName()),
		FeedConfig:    feedConfig,
		Initial:       initial,
		Now:           now,
		fetcher:       fetcher,
		deliverer:     deliverer,
		recorder:      recorder,
		recencyWindow: recencyWindow,
	}
}

func (t *CheckFeedTask) Execute(ctx context.Context) error {
	result, err := t.fetcher.Run(ctx, t.FeedConfig.URL)
	if err != nil {
		t.Status = http.StatusInternalServerError
		return fmt.Errorf("failed to fetch feed: %w", err)
	}

	t.Status = result.HTTPStatus

	if result.Malformed {
		slog.Warn("Feed is malformed, processing parseable entries", "feed", t.FeedName, "url", t.FeedConfig.URL)
	}

	recent := feed.RecentEntries(result.Entries, t.Now, t.recencyWindow)
	feedTitle := cmp.Or(result.FeedTitle, t.FeedConfig.DisplayName())

	slog.Debug("Feed fetched", "feed", t.FeedName, "status", t.Status, "entries", len(result.Entries), "recent", len(recent), "initial", t.Initial)

	if t.Initial {
		return t.announceNewest(ctx, recent, feedTitle)
	}

	for _, entry := range feed.Chronological(recent) {
		t.deliver(ctx, entry, feedTitle)
	}

	return nil
}

// announceNewest marks every recent entry but the newest as sent, then
// delivers the newest, so a newly added feed does not backfill. The older
// ids are recorded first: if that fails nothing is delivered.
func (t *CheckFeedTask) announceNewest(ctx context.Context, recent []feed.Entry, feedTitle string) error {
	newest := feed.Newest(recent)
	if newest < 0 {
		return nil
	}

	others := make([]string, 0, len(recent)-1)
	for i, entry := range recent {
		if i != newest {
			others = append(others, entry.ID)
		}
	}

	seeded, err := t.recorder.MarkSent(others...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSeedIncomplete, err)
	}

	t.Seeded = seeded
	metrics.SeededTotal.Add(float64(seeded))

	if err := t.deliver(ctx, recent[newest], feedTitle); err != nil {
		return fmt.Errorf("%w: %w", ErrSeedIncomplete, err)
	}

	return nil
}

// deliver records the entry before posting it. A failed post is not retried:
// the id is already recorded, so the entry is dropped rather than risk a
// duplicate announcement. Only a failure to record is returned.
func (t *CheckFeedTask) deliver(ctx context.Context, entry feed.Entry, feedTitle string) error {
	recorded, err := t.recorder.TryRecord(entry.ID)
	if err != nil {
		slog.Error("Failed to record article, skipping delivery", "feed", t.FeedName, "article", entry.ID, "error", err)
		return err
	}
	if !recorded {
		return nil
	}

	message := webhook.FormatMessage(feedTitle, entry.Title, cmp.Or(entry.Link, entry.ID))

	result, err := t.deliverer.Post(ctx, t.FeedConfig.WebhookURL, message)
	metrics.RecordDelivery(err == nil && result.Success)
	if err != nil {
		slog.Error("Webhook delivery failed, article dropped", "feed", t.FeedName, "article", entry.ID, "status", result.HTTPStatus, "error", err)
		return nil
	}

	t.Delivered++
	slog.Info("Article delivered", "feed", t.FeedName, "article", entry.ID, "title", entry.Title)
	return nil
}
