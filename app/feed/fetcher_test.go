package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const testRSS = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <link>https://example.com</link>
    <description>Test Description</description>
    <item>
      <title>Test Item 2</title>
      <link>https://example.com/item2</link>
      <guid>item-2</guid>
      <pubDate>Mon, 03 Jul 2023 11:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Test Item 1</title>
      <link>https://example.com/item1</link>
      <pubDate>Mon, 03 Jul 2023 10:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

func newTestFetcher() *Fetcher {
	return NewFetcher(&http.Client{Timeout: 5 * time.Second}, "rss-hook-test")
}

func TestFetcherRun(t *testing.T) {
	var gotUserAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(testRSS))
	}))
	defer server.Close()

	result, err := newTestFetcher().Run(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if gotUserAgent != "rss-hook-test" {
		t.Errorf("Expected user agent 'rss-hook-test', got '%s'", gotUserAgent)
	}
	if result.HTTPStatus != http.StatusOK {
		t.Errorf("Expected status 200, got %d", result.HTTPStatus)
	}
	if result.FeedTitle != "Test Feed" {
		t.Errorf("Expected feed title 'Test Feed', got '%s'", result.FeedTitle)
	}
	if result.Malformed {
		t.Error("Expected well-formed feed")
	}
	if len(result.Entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(result.Entries))
	}

	if result.Entries[0].ID != "item-2" {
		t.Errorf("Expected first entry id 'item-2', got '%s'", result.Entries[0].ID)
	}
	if result.Entries[1].ID != "https://example.com/item1" {
		t.Errorf("Expected entry without guid to use its link, got '%s'", result.Entries[1].ID)
	}

	expected := time.Date(2023, 7, 3, 11, 0, 0, 0, time.UTC)
	if result.Entries[0].PublishedAt == nil || !result.Entries[0].PublishedAt.Equal(expected) {
		t.Errorf("Expected published time %v, got %v", expected, result.Entries[0].PublishedAt)
	}
}

func TestFetcherRunNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	result, err := newTestFetcher().Run(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected no error for non-2xx status, got: %v", err)
	}
	if result.HTTPStatus != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", result.HTTPStatus)
	}
	if len(result.Entries) != 0 {
		t.Errorf("Expected no entries, got %d", len(result.Entries))
	}
}

func TestFetcherRunNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	if _, err := newTestFetcher().Run(context.Background(), url); err == nil {
		t.Error("Expected error for unreachable server")
	}
}

func TestFetcherRunTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	fetcher := NewFetcher(&http.Client{Timeout: 50 * time.Millisecond}, "rss-hook-test")
	if _, err := fetcher.Run(context.Background(), server.URL); err == nil {
		t.Error("Expected timeout error")
	}
}

func TestFetcherParseInvalidData(t *testing.T) {
	if _, err := newTestFetcher().Parse([]byte("this is not a feed")); err == nil {
		t.Error("Expected error for invalid feed data")
	}
}

func TestFetcherParseMalformedEntries(t *testing.T) {
	data := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Broken Feed</title>
    <item>
      <title>No identity</title>
    </item>
    <item>
      <title>Bad date</title>
      <guid>bad-date</guid>
      <pubDate>sometime last week</pubDate>
    </item>
  </channel>
</rss>`

	result, err := newTestFetcher().Parse([]byte(data))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !result.Malformed {
		t.Error("Expected feed to be flagged as malformed")
	}
	if len(result.Entries) != 1 {
		t.Fatalf("Expected entry without id or link to be dropped, got %d entries", len(result.Entries))
	}
	if result.Entries[0].Timestamp() != nil {
		t.Error("Expected unparseable date to leave the entry without timestamp")
	}
}

func TestFetcherParseAtomUpdatedFallback(t *testing.T) {
	data := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Feed</title>
  <entry>
    <title>Atom Entry</title>
    <id>urn:uuid:1225c695</id>
    <link href="https://example.com/atom1"/>
    <updated>2023-07-03T12:00:00Z</updated>
  </entry>
</feed>`

	result, err := newTestFetcher().Parse([]byte(data))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(result.Entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(result.Entries))
	}

	entry := result.Entries[0]
	if entry.ID != "urn:uuid:1225c695" {
		t.Errorf("Expected atom id, got '%s'", entry.ID)
	}

	expected := time.Date(2023, 7, 3, 12, 0, 0, 0, time.UTC)
	if entry.Timestamp() == nil || !entry.Timestamp().Equal(expected) {
		t.Errorf("Expected timestamp to fall back to updated %v, got %v", expected, entry.Timestamp())
	}
}
