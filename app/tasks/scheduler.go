package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lysyi3m/rss-hook/app/database"
	"github.com/lysyi3m/rss-hook/app/feed"
	"github.com/lysyi3m/rss-hook/app/metrics"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type Options struct {
	Interval      time.Duration // pause between cycles
	RecencyWindow time.Duration
	WorkerCount   int // concurrent checks per cycle, 0 for no limit
}

type Scheduler struct {
	feedLister    FeedLister
	stateRepo     database.FeedStateRepository
	fetcher       FeedFetcher
	deliverer     Deliverer
	recorder      SentRecorder
	interval      time.Duration
	recencyWindow time.Duration
	workerCount   int

	cycleMu sync.Mutex
	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	trigger chan struct{}
	running atomic.Bool
}

func NewScheduler(feedLister FeedLister, stateRepo database.FeedStateRepository, fetcher FeedFetcher,
	deliverer Deliverer, recorder SentRecorder, opts Options) *Scheduler {
	return &Scheduler{
		feedLister:    feedLister,
		stateRepo:     stateRepo,
		fetcher:       fetcher,
		deliverer:     deliverer,
		recorder:      recorder,
		interval:      opts.Interval,
		recencyWindow: opts.RecencyWindow,
		workerCount:   opts.WorkerCount,
		trigger:       make(chan struct{}, 1),
	}
}

// Start runs a cycle immediately and then one per interval until Stop.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running.Store(true)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runScheduledCycle()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runScheduledCycle()
			case <-s.trigger:
				slog.Info("Scheduling cycle triggered")
				s.runScheduledCycle()
			}
		}
	}()

	slog.Info("Scheduler started", "interval", s.interval.String(), "workers", s.workerCount)
}

// Stop halts new cycles and waits for a running one to finish persisting
// its state. Checks already dispatched are not cancelled.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return
	}

	s.cancel()
	s.wg.Wait()
	s.running.Store(false)

	slog.Info("Scheduler stopped")
}

// Trigger requests an immediate cycle. Requests made while one is already
// pending are coalesced.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

func (s *Scheduler) runScheduledCycle() {
	if _, err := s.RunCycle(time.Now().UTC()); err != nil {
		slog.Error("Scheduling cycle failed", "error", err)
	}
}

// RunCycle checks every feed that is due at now, concurrently, and persists
// their state once all checks have returned. It reports the status recorded
// for each dispatched feed. A feed whose initial check could not record its
// entries gets no state and is checked as new again next cycle.
func (s *Scheduler) RunCycle(now time.Time) (map[string]int, error) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	start := time.Now()

	feeds, err := s.feedLister.List()
	if err != nil {
		return nil, fmt.Errorf("failed to load feed list: %w", err)
	}

	states, err := s.stateRepo.LoadFeedStates()
	if err != nil {
		slog.Warn("Feed state unreadable, treating every feed as new", "error", err)
		states = map[string]database.FeedState{}
	}

	due := dueFeeds(feeds, states, now)
	statuses := make(map[string]int, len(due))
	checked := make(map[string]int, len(due))

	if len(due) == 0 {
		slog.Debug("No feeds due", "feeds", len(feeds))
		metrics.RecordCycle(0, time.Since(start).Seconds())
		return statuses, nil
	}

	slog.Debug("Dispatching feed checks", "due", len(due), "feeds", len(feeds))

	var mu sync.Mutex
	g := new(errgroup.Group)
	if s.workerCount > 0 {
		g.SetLimit(s.workerCount)
	}

	for _, feedConfig := range due {
		_, seen := states[feedConfig.ID]

		g.Go(func() error {
			status, persist := s.check(feedConfig, !seen, now)

			mu.Lock()
			statuses[feedConfig.ID] = status
			if persist {
				checked[feedConfig.ID] = status
			}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	for id, status := range checked {
		states[id] = database.NewFeedState(now, status)
	}

	metrics.RecordCycle(len(due), time.Since(start).Seconds())

	if err := s.stateRepo.SaveFeedStates(states); err != nil {
		return statuses, fmt.Errorf("failed to save feed state: %w", err)
	}

	return statuses, nil
}

// check runs one feed check and reports its status and whether its state
// should be written. A panic inside the check is reported as status 500 like
// any other failure; an initial check that panics is not persisted since its
// entries may be only partly recorded.
func (s *Scheduler) check(feedConfig feed.Config, initial bool, now time.Time) (status int, persist bool) {
	checkTask := NewCheckFeedTask(feedConfig, initial, now, s.fetcher, s.deliverer, s.recorder, s.recencyWindow)

	var task TaskInterface = checkTask
	task.Start()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Feed check panicked", "feed", task.GetFeedName(), "id", task.GetID(), "panic", r)
			status, persist = http.StatusInternalServerError, !initial
		}
		metrics.RecordCheck(status)
	}()

	// Checks outlive Stop; the fetcher and webhook client timeouts bound them.
	err := task.Execute(context.Background())
	switch {
	case errors.Is(err, ErrSeedIncomplete):
		slog.Error("Initial check incomplete, feed stays new", "feed", task.GetFeedName(), "id", task.GetID(), "error", err)
	case err != nil:
		slog.Error("Feed check failed", "feed", task.GetFeedName(), "id", task.GetID(), "error", err)
	}

	slog.Info("Task completed", "type", string(task.GetType()), "feed", task.GetFeedName(), "status", checkTask.Status,
		"initial", checkTask.Initial, "delivered", checkTask.Delivered, "seeded", checkTask.Seeded, "duration", task.GetDuration().String())

	return checkTask.Status, !errors.Is(err, ErrSeedIncomplete)
}

// dueFeeds returns the valid feeds that were never checked or whose update
// interval has elapsed at now.
func dueFeeds(feeds []feed.Config, states map[string]database.FeedState, now time.Time) []feed.Config {
	var due []feed.Config

	for _, feedConfig := range feeds {
		if err := feedConfig.Validate(); err != nil {
			slog.Warn("Skipping invalid feed", "feed", feedConfig.DisplayName(), "error", err)
			continue
		}

		state, ok := states[feedConfig.ID]
		if !ok {
			due = append(due, feedConfig)
			continue
		}

		interval := time.Duration(feedConfig.UpdateInterval) * time.Second
		if now.Sub(state.LastChecked) >= interval {
			due = append(due, feedConfig)
		}
	}

	return due
}
