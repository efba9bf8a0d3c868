// Package store persists fetched posts and user state for reacddit.
//
// # Thread Safety
//
// Store is safe for concurrent use. The underlying sql.DB handles connection
// pooling and serialization. Individual operations are atomic, but sequences
// of operations (read-modify-write) require external synchronization.
//
// # Transactions
//
// SaveItems uses a transaction to ensure atomicity. Other operations are
// single statements and implicitly atomic.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jeffrigby/reacddit-sub000/internal/listing"
	"github.com/jeffrigby/reacddit-sub000/internal/logging"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// Store is the post archive. The listing manager writes here best-effort
// after every fetch; vote/save patches land here so they survive restarts.
type Store struct {
	db *sql.DB
}

// Open creates a new SQLite store at the given path.
//
// The database is created if it doesn't exist, and migrations are applied
// automatically.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS posts (
		id TEXT PRIMARY KEY,
		subreddit TEXT,
		title TEXT NOT NULL,
		author TEXT,
		url TEXT,
		created_at DATETIME NOT NULL,
		fetched_at DATETIME NOT NULL,
		stickied INTEGER DEFAULT 0,
		score INTEGER DEFAULT 0,
		likes INTEGER,
		saved INTEGER DEFAULT 0,
		read INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_posts_created ON posts(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_posts_subreddit ON posts(subreddit);
	CREATE INDEX IF NOT EXISTS idx_posts_saved ON posts(saved);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// SaveItems saves or updates posts in a single transaction.
//
// Returns the number of rows saved and any error. Individual post failures
// are logged but do not stop the transaction - other posts will still be
// saved. If the transaction itself fails (begin/commit), an error is
// returned.
func (s *Store) SaveItems(items []listing.Item) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback is safe to call even after commit - it's a no-op
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO posts (id, subreddit, title, author, url, created_at, fetched_at, stickied, score, likes, saved)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			score = excluded.score,
			fetched_at = excluded.fetched_at
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	var saved int
	var failedIDs []string

	for _, item := range items {
		result, err := stmt.Exec(
			item.ID,
			item.Subreddit,
			item.Title,
			item.Author,
			item.URL,
			item.Created,
			now,
			boolInt(item.Stickied),
			item.Score,
			likesInt(item.Likes),
			boolInt(item.Saved),
		)
		if err != nil {
			logging.Debug("Failed to save post", "id", item.ID, "error", err)
			failedIDs = append(failedIDs, item.ID)
			continue
		}
		rows, err := result.RowsAffected()
		if err == nil && rows > 0 {
			saved++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if len(failedIDs) > 0 {
		logging.Warn("Some posts failed to save",
			"failed_count", len(failedIDs),
			"saved_count", saved)
	}

	return saved, nil
}

// SetVote records vote state for a post. likes follows the listing.Item
// convention: true=up, false=down, nil=cleared.
func (s *Store) SetVote(id string, likes *bool) error {
	result, err := s.db.Exec("UPDATE posts SET likes = ? WHERE id = ?", likesInt(likes), id)
	if err != nil {
		return fmt.Errorf("failed to set vote: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("post not found: %s", id)
	}
	return nil
}

// SetSaved toggles saved state for a post.
func (s *Store) SetSaved(id string, saved bool) error {
	result, err := s.db.Exec("UPDATE posts SET saved = ? WHERE id = ?", boolInt(saved), id)
	if err != nil {
		return fmt.Errorf("failed to set saved: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("post not found: %s", id)
	}
	return nil
}

// MarkRead marks a post as read.
func (s *Store) MarkRead(id string) error {
	result, err := s.db.Exec("UPDATE posts SET read = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to mark post read: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("post not found: %s", id)
	}
	return nil
}

// GetSaved retrieves saved posts, newest first.
func (s *Store) GetSaved(limit int) ([]listing.Item, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(`
		SELECT id, subreddit, title, author, url, created_at, stickied, score, likes, saved
		FROM posts
		WHERE saved = 1
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// PostCount returns total archived post count.
func (s *Store) PostCount() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM posts").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return count, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// scanItems scans rows into items, handling the common scanning logic.
func scanItems(rows *sql.Rows) ([]listing.Item, error) {
	var items []listing.Item
	for rows.Next() {
		var item listing.Item
		var stickied, saved int
		var likes sql.NullInt64
		err := rows.Scan(
			&item.ID,
			&item.Subreddit,
			&item.Title,
			&item.Author,
			&item.URL,
			&item.Created,
			&stickied,
			&item.Score,
			&likes,
			&saved,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		item.Stickied = stickied != 0
		item.Saved = saved != 0
		if likes.Valid {
			v := likes.Int64 > 0
			item.Likes = &v
		}
		items = append(items, item)
	}

	// Critical: check for errors from row iteration
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return items, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// likesInt maps tri-state vote to SQL: 1=up, 0=down, NULL=none.
func likesInt(likes *bool) interface{} {
	if likes == nil {
		return nil
	}
	if *likes {
		return 1
	}
	return 0
}
