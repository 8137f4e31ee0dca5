package feed

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mmcdole/gofeed"
)

const maxFeedSize = 10 << 20

type Fetcher struct {
	httpClient   *http.Client
	gofeedParser *gofeed.Parser
	userAgent    string
}

// NewFetcher returns a fetcher using httpClient. The client's timeout bounds
// every fetch, so it must be set.
func NewFetcher(httpClient *http.Client, userAgent string) *Fetcher {
	return &Fetcher{
		httpClient:   httpClient,
		gofeedParser: gofeed.NewParser(),
		userAgent:    userAgent,
	}
}

// Run retrieves and parses the feed at url. A non-2xx response is not an
// error: the result carries the status and no entries. Network failures and
// unparseable bodies are returned as errors.
func (f *Fetcher) Run(ctx context.Context, url string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Debug("Feed responded with non-success status", "url", url, "status", resp.StatusCode)
		return &FetchResult{HTTPStatus: resp.StatusCode}, nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	result, err := f.Parse(data)
	if err != nil {
		return nil, err
	}
	result.HTTPStatus = resp.StatusCode

	return result, nil
}

// Parse normalizes raw feed data into a FetchResult without an HTTP status.
func (f *Fetcher) Parse(data []byte) (*FetchResult, error) {
	parsed, err := f.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	result := &FetchResult{
		FeedTitle: strings.TrimSpace(parsed.Title),
		Entries:   make([]Entry, 0, len(parsed.Items)),
	}

	for _, item := range parsed.Items {
		if item == nil {
			continue
		}

		entry, ok := normalizeItem(item)
		if !ok {
			result.Malformed = true
			continue
		}
		if hasUnparsedDate(item) {
			result.Malformed = true
		}

		result.Entries = append(result.Entries, entry)
	}

	return result, nil
}

func normalizeItem(item *gofeed.Item) (Entry, bool) {
	entry := Entry{
		ID:          strings.TrimSpace(cmp.Or(item.GUID, item.Link)),
		Title:       strings.TrimSpace(item.Title),
		Link:        strings.TrimSpace(item.Link),
		PublishedAt: item.PublishedParsed,
		UpdatedAt:   item.UpdatedParsed,
	}

	return entry, entry.ID != ""
}

func hasUnparsedDate(item *gofeed.Item) bool {
	return (item.Published != "" && item.PublishedParsed == nil) ||
		(item.Updated != "" && item.UpdatedParsed == nil)
}
