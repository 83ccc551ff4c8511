package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/thinkscotty/civicwire/internal/models"
)

var ErrDuplicateStory = errors.New("story with this url already exists")

// StoryExists reports whether a story with the given URL is stored.
func (db *DB) StoryExists(url string) (bool, error) {
	var n int
	err := db.conn.QueryRow(`SELECT COUNT(*) FROM stories WHERE url = ?`, url).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup story: %w", err)
	}
	return n > 0, nil
}

// CreateStory inserts a new story and fills in its ID and CreatedAt.
func (db *DB) CreateStory(s *models.Story) error {
	comparisons, err := json.Marshal(nonNil(s.Analysis.HistoricalComparisons))
	if err != nil {
		return fmt.Errorf("encode historical comparisons: %w", err)
	}
	points, err := json.Marshal(nonNil(s.Analysis.FactualPoints))
	if err != nil {
		return fmt.Errorf("encode factual points: %w", err)
	}

	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now()

	_, err = db.conn.Exec(`
		INSERT INTO stories (id, url, title, image_url, source, published_at, topic,
		                     summary, just_facts, left_perspective, right_perspective,
		                     history_analysis, historical_comparisons, factual_points,
		                     confidence, bias_label, raw_description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.URL, s.Title, s.ImageURL, s.Source, formatTime(s.PublishedAt), s.Topic,
		s.Analysis.Summary, s.Analysis.JustFacts, s.Analysis.LeftPerspective, s.Analysis.RightPerspective,
		s.Analysis.HistoryAnalysis, string(comparisons), string(points),
		s.Analysis.Confidence, string(s.Bias), s.RawDescription, formatTime(now))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create story %s: %w", s.URL, ErrDuplicateStory)
		}
		return fmt.Errorf("create story: %w", err)
	}
	s.CreatedAt = now.UTC()
	return nil
}

// ListStories returns the newest stories by publish time.
func (db *DB) ListStories(limit int) ([]models.Story, error) {
	rows, err := db.conn.Query(`
		SELECT id, url, title, image_url, source, published_at, topic,
		       summary, just_facts, left_perspective, right_perspective,
		       history_analysis, historical_comparisons, factual_points,
		       confidence, bias_label, raw_description, created_at
		FROM stories ORDER BY published_at DESC, created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStories(rows)
}

// DeleteStoriesPublishedBefore removes every story published strictly before
// cutoff and returns how many were deleted.
func (db *DB) DeleteStoriesPublishedBefore(cutoff time.Time) (int64, error) {
	result, err := db.conn.Exec(`DELETE FROM stories WHERE published_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune stories: %w", err)
	}
	return result.RowsAffected()
}

func scanStories(rows *sql.Rows) ([]models.Story, error) {
	var stories []models.Story
	for rows.Next() {
		var s models.Story
		var bias, publishedAt, createdAt, comparisons, points string

		if err := rows.Scan(
			&s.ID, &s.URL, &s.Title, &s.ImageURL, &s.Source, &publishedAt, &s.Topic,
			&s.Analysis.Summary, &s.Analysis.JustFacts,
			&s.Analysis.LeftPerspective, &s.Analysis.RightPerspective,
			&s.Analysis.HistoryAnalysis, &comparisons, &points,
			&s.Analysis.Confidence, &bias, &s.RawDescription, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan story: %w", err)
		}

		s.Bias = models.BiasLabel(bias)
		s.PublishedAt, _ = parseTime(publishedAt)
		s.CreatedAt, _ = parseTime(createdAt)
		s.Analysis.HistoricalComparisons = decodeStringList(comparisons)
		s.Analysis.FactualPoints = decodeStringList(points)
		stories = append(stories, s)
	}
	return stories, rows.Err()
}

// decodeStringList returns an empty list for anything that is not a JSON
// array of strings.
func decodeStringList(raw string) []string {
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil || list == nil {
		return []string{}
	}
	return list
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
