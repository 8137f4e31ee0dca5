package feed

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestListStore(t *testing.T) *ListStore {
	t.Helper()

	store := NewListStore(filepath.Join(t.TempDir(), "config.json"))
	if err := store.Init(); err != nil {
		t.Fatal(err)
	}
	return store
}

func validConfig() Config {
	return Config{
		Name:           "My Server - #announcements",
		URL:            "https://example.com/feed.xml",
		WebhookURL:     "https://discord.com/api/webhooks/1/abc",
		UpdateInterval: 300,
	}
}

func TestListStoreInitCreatesEmptyList(t *testing.T) {
	store := newTestListStore(t)

	data, err := os.ReadFile(store.path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"FEEDS": []`) {
		t.Errorf("Expected empty FEEDS list, got: %s", string(data))
	}

	feeds, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(feeds) != 0 {
		t.Errorf("Expected 0 feeds, got %d", len(feeds))
	}
}

func TestListStoreInitKeepsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"FEEDS": [{"id": "abc", "url": "https://example.com/rss", "webhook_url": "https://hooks.example.com/1", "update_interval": 600}]}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	store := NewListStore(path)
	if err := store.Init(); err != nil {
		t.Fatal(err)
	}

	feedConfig, err := store.Get("abc")
	if err != nil {
		t.Fatal(err)
	}
	if feedConfig.UpdateInterval != 600 {
		t.Errorf("Expected update interval 600, got %d", feedConfig.UpdateInterval)
	}
}

func TestListStoreRaisesShortIntervals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"FEEDS": [
		{"id": "fast", "name": "Fast", "url": "https://example.com/rss", "webhook_url": "https://hooks.example.com/1", "update_interval": 30},
		{"id": "unset", "url": "https://example.com/atom", "webhook_url": "https://hooks.example.com/2"}
	]}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	store := NewListStore(path)

	fast, err := store.Get("fast")
	if err != nil {
		t.Fatal(err)
	}
	if fast.UpdateInterval != MinUpdateInterval {
		t.Errorf("Expected interval raised to %d, got %d", MinUpdateInterval, fast.UpdateInterval)
	}
	if err := fast.Validate(); err != nil {
		t.Errorf("Expected raised feed to validate, got: %v", err)
	}

	unset, err := store.Get("unset")
	if err != nil {
		t.Fatal(err)
	}
	if unset.UpdateInterval != DefaultUpdateInterval {
		t.Errorf("Expected default interval %d, got %d", DefaultUpdateInterval, unset.UpdateInterval)
	}

	if err := store.Init(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), `"update_interval": 30`) {
		t.Errorf("Expected file rewritten with raised interval, got: %s", string(data))
	}
	if !strings.Contains(string(data), `"update_interval": 60`) {
		t.Errorf("Expected raised interval persisted, got: %s", string(data))
	}
}

func TestListStoreCRUD(t *testing.T) {
	store := newTestListStore(t)

	created, err := store.Create(validConfig())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if created.ID == "" {
		t.Fatal("Expected created feed to get an id")
	}

	changes := validConfig()
	changes.Name = ""
	changes.UpdateInterval = 900
	updated, err := store.Update(created.ID, changes)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if updated.ID != created.ID {
		t.Errorf("Expected id to be immutable, got '%s'", updated.ID)
	}

	fetched, err := store.Get(created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if fetched.UpdateInterval != 900 {
		t.Errorf("Expected update interval 900, got %d", fetched.UpdateInterval)
	}
	if fetched.DisplayName() != fetched.URL {
		t.Errorf("Expected display name to fall back to URL, got '%s'", fetched.DisplayName())
	}

	deleted, err := store.Delete(created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if deleted.ID != created.ID {
		t.Errorf("Expected deleted feed id '%s', got '%s'", created.ID, deleted.ID)
	}

	if _, err := store.Get(created.ID); !errors.Is(err, ErrFeedNotFound) {
		t.Errorf("Expected ErrFeedNotFound, got: %v", err)
	}
	if _, err := store.Update(created.ID, validConfig()); !errors.Is(err, ErrFeedNotFound) {
		t.Errorf("Expected ErrFeedNotFound on update, got: %v", err)
	}
	if _, err := store.Delete(created.ID); !errors.Is(err, ErrFeedNotFound) {
		t.Errorf("Expected ErrFeedNotFound on delete, got: %v", err)
	}
}

func TestListStoreCreateAppliesDefaultInterval(t *testing.T) {
	store := newTestListStore(t)

	feedConfig := validConfig()
	feedConfig.UpdateInterval = 0

	created, err := store.Create(feedConfig)
	if err != nil {
		t.Fatal(err)
	}
	if created.UpdateInterval != DefaultUpdateInterval {
		t.Errorf("Expected default interval %d, got %d", DefaultUpdateInterval, created.UpdateInterval)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"missing url", func(c *Config) { c.URL = "" }},
		{"missing webhook", func(c *Config) { c.WebhookURL = "" }},
		{"relative url", func(c *Config) { c.URL = "/feed.xml" }},
		{"ftp webhook", func(c *Config) { c.WebhookURL = "ftp://example.com/hook" }},
		{"interval too small", func(c *Config) { c.UpdateInterval = 30 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feedConfig := validConfig()
			feedConfig.ID = "id"
			tt.modify(&feedConfig)

			if err := feedConfig.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}

	feedConfig := validConfig()
	feedConfig.ID = "id"
	if err := feedConfig.Validate(); err != nil {
		t.Errorf("Expected valid config, got: %v", err)
	}
}

func TestListStoreExportImport(t *testing.T) {
	source := newTestListStore(t)
	if _, err := source.Create(validConfig()); err != nil {
		t.Fatal(err)
	}

	backup, err := source.Export()
	if err != nil {
		t.Fatal(err)
	}

	target := newTestListStore(t)
	count, err := target.Import(backup)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 imported feed, got %d", count)
	}

	sourceFeeds, _ := source.List()
	targetFeeds, _ := target.List()
	if len(targetFeeds) != 1 || targetFeeds[0] != sourceFeeds[0] {
		t.Errorf("Expected restored feeds to match backup, got %+v", targetFeeds)
	}
}

func TestListStoreImportRejectsInvalidBackup(t *testing.T) {
	store := newTestListStore(t)
	if _, err := store.Create(validConfig()); err != nil {
		t.Fatal(err)
	}

	invalid := []string{
		`not json`,
		`{"FEEDS": [{"url": "nope", "webhook_url": "https://hooks.example.com/1"}]}`,
		`{"FEEDS": [
			{"id": "same", "url": "https://a.example.com/rss", "webhook_url": "https://hooks.example.com/1"},
			{"id": "same", "url": "https://b.example.com/rss", "webhook_url": "https://hooks.example.com/2"}
		]}`,
	}

	for _, backup := range invalid {
		if _, err := store.Import([]byte(backup)); err == nil {
			t.Errorf("Expected error importing %q", backup)
		}
	}

	feeds, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(feeds) != 1 {
		t.Errorf("Expected failed imports to leave the list untouched, got %d feeds", len(feeds))
	}
}

func TestListStoreImportAssignsMissingIDs(t *testing.T) {
	store := newTestListStore(t)

	backup := `{"FEEDS": [{"url": "https://example.com/rss", "webhook_url": "https://hooks.example.com/1"}]}`
	if _, err := store.Import([]byte(backup)); err != nil {
		t.Fatal(err)
	}

	feeds, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(feeds) != 1 || feeds[0].ID == "" {
		t.Fatalf("Expected one feed with generated id, got %+v", feeds)
	}
	if feeds[0].UpdateInterval != DefaultUpdateInterval {
		t.Errorf("Expected default interval, got %d", feeds[0].UpdateInterval)
	}
}

func TestListStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{broken"), 0644); err != nil {
		t.Fatal(err)
	}

	store := NewListStore(path)
	if _, err := store.List(); err == nil {
		t.Error("Expected error for corrupt feed list")
	}
}

func TestValidationErrorsAreInvalidFeed(t *testing.T) {
	store := newTestListStore(t)

	feedConfig := validConfig()
	feedConfig.URL = "ftp://example.com/feed"

	if _, err := store.Create(feedConfig); !errors.Is(err, ErrInvalidFeed) {
		t.Errorf("Expected ErrInvalidFeed, got: %v", err)
	}
	if _, err := store.Import([]byte("not json")); !errors.Is(err, ErrInvalidFeed) {
		t.Errorf("Expected ErrInvalidFeed for unparseable backup, got: %v", err)
	}
}
