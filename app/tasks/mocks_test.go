package tasks

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/lysyi3m/rss-hook/app/database"
	"github.com/lysyi3m/rss-hook/app/dedup"
	"github.com/lysyi3m/rss-hook/app/feed"
	"github.com/lysyi3m/rss-hook/app/webhook"
)

type MockFetcher struct {
	mu      sync.Mutex
	results map[string]*feed.FetchResult
	errs    map[string]error
	calls   int
}

func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		results: map[string]*feed.FetchResult{},
		errs:    map[string]error{},
	}
}

func (m *MockFetcher) Run(ctx context.Context, url string) (*feed.FetchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if err, ok := m.errs[url]; ok {
		return nil, err
	}
	if result, ok := m.results[url]; ok {
		return result, nil
	}
	return nil, fmt.Errorf("no such feed: %s", url)
}

func (m *MockFetcher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// PanickingFetcher panics for one URL and defers to MockFetcher otherwise.
type PanickingFetcher struct {
	*MockFetcher
	panicURL string
}

func (p *PanickingFetcher) Run(ctx context.Context, url string) (*feed.FetchResult, error) {
	if url == p.panicURL {
		panic("parser blew up on " + url)
	}
	return p.MockFetcher.Run(ctx, url)
}

type post struct {
	webhookURL string
	message    string
}

type MockDeliverer struct {
	mu    sync.Mutex
	posts []post
	fail  bool
}

func (m *MockDeliverer) Post(ctx context.Context, webhookURL string, message string) (webhook.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.posts = append(m.posts, post{webhookURL: webhookURL, message: message})
	if m.fail {
		return webhook.Result{HTTPStatus: 500}, errors.New("webhook responded with 500")
	}
	return webhook.Result{Success: true, HTTPStatus: 204}, nil
}

func (m *MockDeliverer) Messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	messages := make([]string, len(m.posts))
	for i, p := range m.posts {
		messages[i] = p.message
	}
	return messages
}

type MockSentArticleRepository struct {
	mu      sync.Mutex
	ids     []string
	saveErr error
}

func (m *MockSentArticleRepository) LoadSentArticles() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.ids), nil
}

func (m *MockSentArticleRepository) SaveSentArticles(ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.saveErr != nil {
		return m.saveErr
	}
	m.ids = slices.Clone(ids)
	return nil
}

func (m *MockSentArticleRepository) FailSaves(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}

type MockFeedStateRepository struct {
	mu      sync.Mutex
	states  map[string]database.FeedState
	loadErr error
	saves   int
}

func NewMockFeedStateRepository() *MockFeedStateRepository {
	return &MockFeedStateRepository{states: map[string]database.FeedState{}}
}

func (m *MockFeedStateRepository) LoadFeedStates() (map[string]database.FeedState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return maps.Clone(m.states), nil
}

func (m *MockFeedStateRepository) SaveFeedStates(states map[string]database.FeedState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.saves++
	m.states = maps.Clone(states)
	return nil
}

func (m *MockFeedStateRepository) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

type MockFeedLister struct {
	feeds []feed.Config
	err   error
}

func (m *MockFeedLister) List() ([]feed.Config, error) {
	if m.err != nil {
		return nil, m.err
	}
	return slices.Clone(m.feeds), nil
}

func newRecorder() (*dedup.Store, *MockSentArticleRepository) {
	repo := &MockSentArticleRepository{}
	return dedup.NewStore(repo, 100), repo
}

func testFeed(id string) feed.Config {
	return feed.Config{
		ID:             id,
		Name:           "Feed " + id,
		URL:            "https://example.com/" + id + ".xml",
		WebhookURL:     "https://hooks.example.com/" + id,
		UpdateInterval: 300,
	}
}

func entryAt(id string, ts time.Time) feed.Entry {
	return feed.Entry{
		ID:          "https://example.com/" + id,
		Title:       id,
		Link:        "https://example.com/" + id,
		PublishedAt: &ts,
	}
}
