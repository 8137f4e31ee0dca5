package database

import (
	"fmt"
	"log/slog"
	"time"
)

var _ Repository = (*SQLiteRepository)(nil)

type SQLiteRepository struct {
	db *DB
}

func NewSQLiteRepository(db *DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) LoadSentArticles() ([]string, error) {
	rows, err := r.db.Query(`SELECT article_id FROM sent_articles ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sent articles: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan sent article: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sent articles: %w", err)
	}

	return ids, nil
}

// SaveSentArticles replaces the stored list in one transaction; insertion
// order becomes the seq order LoadSentArticles returns.
func (r *SQLiteRepository) SaveSentArticles(ids []string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM sent_articles`); err != nil {
		return fmt.Errorf("failed to clear sent articles: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO sent_articles (article_id) VALUES (?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.Exec(id); err != nil {
			return fmt.Errorf("failed to insert sent article %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sent articles: %w", err)
	}

	return nil
}

func (r *SQLiteRepository) LoadFeedStates() (map[string]FeedState, error) {
	rows, err := r.db.Query(`SELECT feed_id, last_checked, status_code FROM feed_state`)
	if err != nil {
		return nil, fmt.Errorf("failed to query feed state: %w", err)
	}
	defer rows.Close()

	states := map[string]FeedState{}
	for rows.Next() {
		var feedID, lastChecked string
		var statusCode *int
		if err := rows.Scan(&feedID, &lastChecked, &statusCode); err != nil {
			return nil, fmt.Errorf("failed to scan feed state: %w", err)
		}

		t, err := parseTimestamp(lastChecked)
		if err != nil {
			slog.Warn("Skipping feed state with invalid timestamp", "feed_id", feedID, "error", err)
			continue
		}

		states[feedID] = FeedState{LastChecked: t, StatusCode: statusCode}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read feed state: %w", err)
	}

	return states, nil
}

func (r *SQLiteRepository) SaveFeedStates(states map[string]FeedState) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM feed_state`); err != nil {
		return fmt.Errorf("failed to clear feed state: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO feed_state (feed_id, last_checked, status_code) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for feedID, state := range states {
		lastChecked := state.LastChecked.UTC().Format(time.RFC3339Nano)
		if _, err := stmt.Exec(feedID, lastChecked, state.StatusCode); err != nil {
			return fmt.Errorf("failed to insert feed state %s: %w", feedID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit feed state: %w", err)
	}

	return nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
