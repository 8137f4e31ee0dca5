package database

// SentArticleRepository persists the ordered list of delivered entry ids,
// oldest first. Save replaces the whole list.
type SentArticleRepository interface {
	LoadSentArticles() ([]string, error)
	SaveSentArticles(ids []string) error
}

// FeedStateRepository persists the feed id to FeedState map. Save replaces
// the whole map.
type FeedStateRepository interface {
	LoadFeedStates() (map[string]FeedState, error)
	SaveFeedStates(states map[string]FeedState) error
}

// Repository is a backend that stores both records.
type Repository interface {
	SentArticleRepository
	FeedStateRepository
	Close() error
}
