package dedup

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/lysyi3m/rss-hook/app/database"
	"github.com/lysyi3m/rss-hook/app/metrics"
)

const DefaultLimit = 10000

// Store is the at-most-once record of delivered entry ids. Every mutation
// is a full load, modify, save cycle under one lock, so concurrent feed
// checks can never both claim the same id.
type Store struct {
	repo  database.SentArticleRepository
	limit int
	mu    sync.Mutex
}

func NewStore(repo database.SentArticleRepository, limit int) *Store {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Store{
		repo:  repo,
		limit: limit,
	}
}

// TryRecord records id and reports true when it was not already present.
// A false result with a nil error means the id was sent before; a non-nil
// error means the record could not be persisted and the caller must not
// deliver.
func (s *Store) TryRecord(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.load()
	if slices.Contains(ids, id) {
		return false, nil
	}

	ids = s.evict(append(ids, id))
	if err := s.repo.SaveSentArticles(ids); err != nil {
		return false, fmt.Errorf("failed to record article %s: %w", id, err)
	}

	metrics.SentRecordSize.Set(float64(len(ids)))
	return true, nil
}

// MarkSent records every id not already present in a single save, keeping
// the given order.
func (s *Store) MarkSent(newIDs ...string) (int, error) {
	if len(newIDs) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.load()
	seen := make(map[string]struct{}, len(ids)+len(newIDs))
	for _, id := range ids {
		seen[id] = struct{}{}
	}

	added := 0
	for _, id := range newIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
		added++
	}

	if added == 0 {
		return 0, nil
	}

	ids = s.evict(ids)
	if err := s.repo.SaveSentArticles(ids); err != nil {
		return 0, fmt.Errorf("failed to record %d articles: %w", added, err)
	}

	metrics.SentRecordSize.Set(float64(len(ids)))
	return added, nil
}

func (s *Store) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Contains(s.load(), id)
}

func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.load())
}

// load reads the persisted record. An unreadable record is treated as
// empty: re-delivering old entries is preferred over never delivering again.
func (s *Store) load() []string {
	ids, err := s.repo.LoadSentArticles()
	if err != nil {
		slog.Warn("Sent article record unreadable, starting empty", "error", err)
		return []string{}
	}
	return ids
}

// evict drops the oldest ids beyond the limit.
func (s *Store) evict(ids []string) []string {
	if len(ids) <= s.limit {
		return ids
	}
	return slices.Clone(ids[len(ids)-s.limit:])
}
