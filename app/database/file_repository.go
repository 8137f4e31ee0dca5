package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/rss-hook/app/fileutil"
)

var _ Repository = (*FileRepository)(nil)

// FileRepository keeps the sent record as a YAML list and feed state as a
// JSON object, each rewritten atomically on save.
type FileRepository struct {
	sentPath  string
	statePath string
}

func NewFileRepository(sentPath, statePath string) *FileRepository {
	return &FileRepository{
		sentPath:  sentPath,
		statePath: statePath,
	}
}

func (r *FileRepository) LoadSentArticles() ([]string, error) {
	data, err := os.ReadFile(r.sentPath)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sent articles: %w", err)
	}

	var ids []string
	if err := yaml.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("failed to parse sent articles: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}

	return ids, nil
}

func (r *FileRepository) SaveSentArticles(ids []string) error {
	if ids == nil {
		ids = []string{}
	}

	data, err := yaml.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to encode sent articles: %w", err)
	}

	if err := fileutil.WriteAtomic(r.sentPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write sent articles: %w", err)
	}

	return nil
}

func (r *FileRepository) LoadFeedStates() (map[string]FeedState, error) {
	data, err := os.ReadFile(r.statePath)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]FeedState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read feed state: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse feed state: %w", err)
	}

	// A bad entry only costs its own feed a fresh initial check.
	states := make(map[string]FeedState, len(raw))
	for id, entry := range raw {
		var state FeedState
		if err := json.Unmarshal(entry, &state); err != nil {
			slog.Warn("Skipping invalid feed state", "feed_id", id, "error", err)
			continue
		}
		states[id] = state
	}

	return states, nil
}

func (r *FileRepository) SaveFeedStates(states map[string]FeedState) error {
	if states == nil {
		states = map[string]FeedState{}
	}

	data, err := json.MarshalIndent(states, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode feed state: %w", err)
	}

	if err := fileutil.WriteAtomic(r.statePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write feed state: %w", err)
	}

	return nil
}

func (r *FileRepository) Close() error {
	return nil
}
