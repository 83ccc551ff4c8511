package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thinkscotty/civicwire/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testStory(url string, published time.Time) *models.Story {
	return &models.Story{
		URL:         url,
		Title:       "Senate passes budget",
		Source:      "Reuters Politics",
		PublishedAt: published,
		Topic:       "Congress",
		Bias:        models.BiasCenter,
		Analysis: models.StoryAnalysis{
			Summary:               "summary",
			JustFacts:             "facts",
			LeftPerspective:       "left",
			RightPerspective:      "right",
			HistoryAnalysis:       "history",
			HistoricalComparisons: []string{"1995 shutdown"},
			FactualPoints:         []string{"vote was 51-49"},
			Confidence:            80,
		},
	}
}

func TestCreateStoryAndExists(t *testing.T) {
	db := newTestDB(t)

	exists, err := db.StoryExists("https://example.com/a")
	require.NoError(t, err)
	assert.False(t, exists)

	s := testStory("https://example.com/a", time.Now())
	require.NoError(t, db.CreateStory(s))
	assert.NotEmpty(t, s.ID)

	exists, err = db.StoryExists("https://example.com/a")
	require.NoError(t, err)
	assert.True(t, exists)

	err = db.CreateStory(testStory("https://example.com/a", time.Now()))
	assert.ErrorIs(t, err, ErrDuplicateStory)
}

func TestListStoriesOrderAndArrays(t *testing.T) {
	db := newTestDB(t)
	now := time.Now()

	older := testStory("https://example.com/old", now.Add(-2*time.Hour))
	newer := testStory("https://example.com/new", now.Add(-time.Hour))
	newer.Analysis.HistoricalComparisons = nil
	require.NoError(t, db.CreateStory(older))
	require.NoError(t, db.CreateStory(newer))

	stories, err := db.ListStories(10)
	require.NoError(t, err)
	require.Len(t, stories, 2)
	assert.Equal(t, "https://example.com/new", stories[0].URL)
	assert.Equal(t, []string{}, stories[0].Analysis.HistoricalComparisons)
	assert.Equal(t, []string{"1995 shutdown"}, stories[1].Analysis.HistoricalComparisons)
	assert.Equal(t, models.BiasCenter, stories[1].Bias)

	stories, err = db.ListStories(1)
	require.NoError(t, err)
	assert.Len(t, stories, 1)
}

func TestDeleteStoriesSubSecondCutoff(t *testing.T) {
	db := newTestDB(t)
	cutoff := time.Date(2026, 10, 5, 12, 0, 0, 500_000_000, time.UTC)

	require.NoError(t, db.CreateStory(testStory("https://example.com/just-before", cutoff.Add(-time.Millisecond))))
	require.NoError(t, db.CreateStory(testStory("https://example.com/at-cutoff", cutoff)))

	n, err := db.DeleteStoriesPublishedBefore(cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	exists, _ := db.StoryExists("https://example.com/just-before")
	assert.False(t, exists)
	exists, _ = db.StoryExists("https://example.com/at-cutoff")
	assert.True(t, exists)
}

func TestTimeRoundTrip(t *testing.T) {
	ts := time.Date(2026, 10, 19, 8, 30, 15, 123456789, time.UTC)
	got, err := parseTime(formatTime(ts))
	require.NoError(t, err)
	assert.True(t, ts.Equal(got))

	got, err = parseTime("2026-10-19 08:30:15")
	require.NoError(t, err)
	assert.True(t, ts.Truncate(time.Second).Equal(got))
}

func TestDecodeStringListNonArray(t *testing.T) {
	assert.Equal(t, []string{}, decodeStringList(`{"a":1}`))
	assert.Equal(t, []string{}, decodeStringList(`null`))
	assert.Equal(t, []string{}, decodeStringList(``))
	assert.Equal(t, []string{"x"}, decodeStringList(`["x"]`))
}

func TestDeleteStoriesPublishedBefore(t *testing.T) {
	db := newTestDB(t)
	now := time.Now()

	require.NoError(t, db.CreateStory(testStory("https://example.com/stale", now.Add(-20*24*time.Hour))))
	require.NoError(t, db.CreateStory(testStory("https://example.com/fresh", now.Add(-time.Hour))))

	n, err := db.DeleteStoriesPublishedBefore(now.Add(-14 * 24 * time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	exists, _ := db.StoryExists("https://example.com/stale")
	assert.False(t, exists)
	exists, _ = db.StoryExists("https://example.com/fresh")
	assert.True(t, exists)
}

func TestRunLifecycle(t *testing.T) {
	db := newTestDB(t)

	actor := "user-1"
	run := &models.IngestRun{Provider: "gemini", TriggeredBy: models.TriggerManual, ActorID: &actor}
	require.NoError(t, db.CreateRun(run))
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, models.RunRunning, run.Status)

	// A second concurrent run is refused by the ledger.
	err := db.CreateRun(&models.IngestRun{Provider: "gemini", TriggeredBy: models.TriggerCron})
	assert.ErrorIs(t, err, ErrRunActive)

	run.Status = models.RunSuccess
	run.Processed, run.Created, run.Skipped = 3, 2, 1
	require.NoError(t, db.FinishRun(run))
	require.NotNil(t, run.FinishedAt)

	// Only one terminal update is allowed.
	run.Status = models.RunFailed
	assert.ErrorIs(t, db.FinishRun(run), ErrRunNotRunning)

	got, err := db.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunSuccess, got.Status)
	assert.Equal(t, 3, got.Processed)
	assert.Equal(t, 2, got.Created)
	assert.Equal(t, 1, got.Skipped)
	require.NotNil(t, got.ActorID)
	assert.Equal(t, "user-1", *got.ActorID)
	assert.NotNil(t, got.FinishedAt)

	// The slot is free again once the run is closed.
	next := &models.IngestRun{Provider: "deepseek", TriggeredBy: models.TriggerCron}
	require.NoError(t, db.CreateRun(next))

	runs, err := db.ListRuns(10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	_, err = db.GetRun("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFailStaleRuns(t *testing.T) {
	db := newTestDB(t)

	run := &models.IngestRun{Provider: "gemini", TriggeredBy: models.TriggerCron}
	require.NoError(t, db.CreateRun(run))

	t.Run("fresh running row survives", func(t *testing.T) {
		n, err := db.FailStaleRuns(run.StartedAt.Add(-time.Hour), "interrupted before completion")
		require.NoError(t, err)
		assert.EqualValues(t, 0, n)

		got, err := db.GetRun(run.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RunRunning, got.Status)

		err = db.CreateRun(&models.IngestRun{Provider: "gemini", TriggeredBy: models.TriggerCron})
		assert.ErrorIs(t, err, ErrRunActive, "the slot stays held by the live run")
	})

	t.Run("old running row is closed", func(t *testing.T) {
		n, err := db.FailStaleRuns(run.StartedAt.Add(time.Second), "interrupted before completion")
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		got, err := db.GetRun(run.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RunFailed, got.Status)
		assert.Equal(t, "interrupted before completion", got.ErrorMessage)
	})
}

func TestCreateFirstUser(t *testing.T) {
	db := newTestDB(t)

	first := &models.User{Username: "admin", PasswordHash: "hash", IsAdmin: true}
	require.NoError(t, db.CreateFirstUser(first))
	assert.NotEmpty(t, first.ID)

	err := db.CreateFirstUser(&models.User{Username: "second", PasswordHash: "hash", IsAdmin: true})
	assert.ErrorIs(t, err, ErrSetupDone)

	count, err := db.UserCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSessions(t *testing.T) {
	db := newTestDB(t)

	u := &models.User{Username: "admin", PasswordHash: "hash", IsAdmin: true}
	require.NoError(t, db.CreateUser(u))
	assert.ErrorIs(t, db.CreateUser(&models.User{Username: "admin", PasswordHash: "x"}), ErrDuplicateUser)

	require.NoError(t, db.CreateSession(&models.Session{Token: "live", UserID: u.ID, ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, db.CreateSession(&models.Session{Token: "dead", UserID: u.ID, ExpiresAt: time.Now().Add(-time.Hour)}))

	got, err := db.SessionUser("live")
	require.NoError(t, err)
	assert.Equal(t, "admin", got.Username)
	assert.True(t, got.IsAdmin)

	_, err = db.SessionUser("dead")
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := db.DeleteExpiredSessions()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
