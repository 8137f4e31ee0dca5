package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/lysyi3m/rss-hook/app/fileutil"
)

var (
	ErrFeedNotFound = errors.New("feed not found")
	ErrInvalidFeed  = errors.New("invalid feed")
)

// ListStore keeps the feed list in a JSON file. The file is re-read on every
// access so edits made by other writers are picked up by the next cycle.
type ListStore struct {
	path string
	mu   sync.RWMutex
}

func NewListStore(path string) *ListStore {
	return &ListStore{path: path}
}

// Init creates an empty feed list if the file does not exist yet. An
// existing list whose intervals are below the minimum is rewritten once with
// the raised values.
func (ls *ListStore) Init() error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if _, err := os.Stat(ls.path); os.IsNotExist(err) {
		slog.Info("Creating empty feed list", "path", ls.path)
		return ls.write(nil)
	} else if err != nil {
		return fmt.Errorf("failed to stat feed list: %w", err)
	}

	feeds, raised, err := ls.readRaw()
	if err != nil {
		return err
	}
	if len(raised) == 0 {
		return nil
	}

	for _, name := range raised {
		slog.Warn("Raised update interval to minimum", "feed", name, "interval", MinUpdateInterval)
	}
	return ls.write(feeds)
}

func (ls *ListStore) List() ([]Config, error) {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	return ls.read()
}

func (ls *ListStore) Get(id string) (*Config, error) {
	feeds, err := ls.List()
	if err != nil {
		return nil, err
	}

	for _, feedConfig := range feeds {
		if feedConfig.ID == id {
			return &feedConfig, nil
		}
	}
	return nil, fmt.Errorf("feed with id '%s': %w", id, ErrFeedNotFound)
}

// Create assigns a new id to feedConfig and appends it to the list.
func (ls *ListStore) Create(feedConfig Config) (*Config, error) {
	feedConfig.ID = uuid.NewString()
	setDefaults(&feedConfig)

	if err := feedConfig.Validate(); err != nil {
		return nil, err
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()

	feeds, err := ls.read()
	if err != nil {
		return nil, err
	}

	feeds = append(feeds, feedConfig)
	if err := ls.write(feeds); err != nil {
		return nil, err
	}

	return &feedConfig, nil
}

// Update replaces the mutable fields of the feed with the given id.
func (ls *ListStore) Update(id string, changes Config) (*Config, error) {
	changes.ID = id
	setDefaults(&changes)

	if err := changes.Validate(); err != nil {
		return nil, err
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()

	feeds, err := ls.read()
	if err != nil {
		return nil, err
	}

	for i := range feeds {
		if feeds[i].ID == id {
			feeds[i] = changes
			if err := ls.write(feeds); err != nil {
				return nil, err
			}
			return &changes, nil
		}
	}

	return nil, fmt.Errorf("feed with id '%s': %w", id, ErrFeedNotFound)
}

// Delete removes a feed from the list. Its sent article ids and state are kept.
func (ls *ListStore) Delete(id string) (*Config, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	feeds, err := ls.read()
	if err != nil {
		return nil, err
	}

	for i := range feeds {
		if feeds[i].ID == id {
			deleted := feeds[i]
			feeds = append(feeds[:i], feeds[i+1:]...)
			if err := ls.write(feeds); err != nil {
				return nil, err
			}
			return &deleted, nil
		}
	}

	return nil, fmt.Errorf("feed with id '%s': %w", id, ErrFeedNotFound)
}

// Export returns the feed list file contents for backup.
func (ls *ListStore) Export() ([]byte, error) {
	feeds, err := ls.List()
	if err != nil {
		return nil, err
	}

	return marshalFeeds(feeds)
}

// Import validates a backup and overwrites the feed list with it. Feeds
// without an id get a new one.
func (ls *ListStore) Import(data []byte) (int, error) {
	var file configFile
	if err := json.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("%w: failed to parse backup: %v", ErrInvalidFeed, err)
	}

	seen := make(map[string]bool, len(file.Feeds))
	for i := range file.Feeds {
		if file.Feeds[i].ID == "" {
			file.Feeds[i].ID = uuid.NewString()
		}
		setDefaults(&file.Feeds[i])

		if err := file.Feeds[i].Validate(); err != nil {
			return 0, fmt.Errorf("feed at index %d: %w", i, err)
		}
		if seen[file.Feeds[i].ID] {
			return 0, fmt.Errorf("%w: duplicate feed id at index %d: %s", ErrInvalidFeed, i, file.Feeds[i].ID)
		}
		seen[file.Feeds[i].ID] = true
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()

	if err := ls.write(file.Feeds); err != nil {
		return 0, err
	}

	return len(file.Feeds), nil
}

func (ls *ListStore) read() ([]Config, error) {
	feeds, _, err := ls.readRaw()
	return feeds, err
}

// readRaw loads the list with intervals normalized and returns the display
// names of feeds whose interval was below the minimum.
func (ls *ListStore) readRaw() ([]Config, []string, error) {
	data, err := os.ReadFile(ls.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to read feed list: %w", err)
	}

	if len(data) == 0 {
		return nil, nil, nil
	}

	var file configFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, nil, fmt.Errorf("failed to parse feed list: %w", err)
	}

	var raised []string
	for i := range file.Feeds {
		if normalizeInterval(&file.Feeds[i]) {
			raised = append(raised, file.Feeds[i].DisplayName())
		}
	}

	return file.Feeds, raised, nil
}

func (ls *ListStore) write(feeds []Config) error {
	data, err := marshalFeeds(feeds)
	if err != nil {
		return err
	}

	if err := fileutil.WriteAtomic(ls.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write feed list: %w", err)
	}
	return nil
}

func marshalFeeds(feeds []Config) ([]byte, error) {
	if feeds == nil {
		feeds = []Config{}
	}

	data, err := json.MarshalIndent(configFile{Feeds: feeds}, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode feed list: %w", err)
	}
	return data, nil
}

func setDefaults(feedConfig *Config) {
	if feedConfig.UpdateInterval == 0 {
		feedConfig.UpdateInterval = DefaultUpdateInterval
	}
}

// normalizeInterval applies the default interval and raises positive
// intervals below the minimum, as older lists allowed them. It reports
// whether an interval was raised.
func normalizeInterval(feedConfig *Config) bool {
	setDefaults(feedConfig)
	if feedConfig.UpdateInterval < MinUpdateInterval {
		feedConfig.UpdateInterval = MinUpdateInterval
		return true
	}
	return false
}

// Validate checks the fields the scheduler depends on.
func (c *Config) Validate() error {
	requiredFields := map[string]string{
		"feed id":     c.ID,
		"feed URL":    c.URL,
		"webhook URL": c.WebhookURL,
	}

	for fieldName, fieldValue := range requiredFields {
		if fieldValue == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidFeed, fieldName)
		}
	}

	urlFields := map[string]string{
		"feed URL":    c.URL,
		"webhook URL": c.WebhookURL,
	}

	for fieldName, fieldValue := range urlFields {
		parsed, err := url.Parse(fieldValue)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return fmt.Errorf("%w: %s must be an absolute http(s) URL", ErrInvalidFeed, fieldName)
		}
	}

	if c.UpdateInterval < MinUpdateInterval {
		return fmt.Errorf("%w: update interval must be at least %d seconds", ErrInvalidFeed, MinUpdateInterval)
	}

	return nil
}

// DisplayName returns the configured name, falling back to the feed URL.
func (c *Config) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.URL
}
