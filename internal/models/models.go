package models

import "time"

// BiasLabel is the editorial-lean classification of a feed source.
type BiasLabel string

const (
	BiasCenter    BiasLabel = "Center"
	BiasLeanLeft  BiasLabel = "Lean Left"
	BiasLeanRight BiasLabel = "Lean Right"
)

type FeedSource struct {
	ID      string    `json:"id" yaml:"id"`
	Name    string    `json:"name" yaml:"name"`
	FeedURL string    `json:"feedUrl" yaml:"feed_url"`
	Topic   string    `json:"topic" yaml:"topic"`
	Bias    BiasLabel `json:"biasLabel" yaml:"bias"`
}

// FeedItem is a normalized feed entry. It only lives for the duration of a run.
type FeedItem struct {
	Source      string
	Bias        BiasLabel
	Topic       string
	Title       string
	URL         string
	ImageURL    string
	PublishedAt time.Time
	Description string
}

type StoryAnalysis struct {
	Summary               string   `json:"summary"`
	JustFacts             string   `json:"justFacts"`
	LeftPerspective       string   `json:"leftPerspective"`
	RightPerspective      string   `json:"rightPerspective"`
	HistoryAnalysis       string   `json:"historyAnalysis"`
	HistoricalComparisons []string `json:"historicalComparisons"`
	FactualPoints         []string `json:"factualPoints"`
	Confidence            int      `json:"confidence"`
}

type Story struct {
	ID             string
	URL            string
	Title          string
	ImageURL       string
	Source         string
	PublishedAt    time.Time
	Topic          string
	Analysis       StoryAnalysis
	Bias           BiasLabel
	RawDescription string
	CreatedAt      time.Time
}

type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
)

type TriggerOrigin string

const (
	TriggerCron   TriggerOrigin = "cron"
	TriggerManual TriggerOrigin = "manual"
)

type IngestRun struct {
	ID           string        `json:"id"`
	Status       RunStatus     `json:"status"`
	Provider     string        `json:"provider"`
	TriggeredBy  TriggerOrigin `json:"triggeredBy"`
	ActorID      *string       `json:"actorId"`
	StartedAt    time.Time     `json:"startedAt"`
	FinishedAt   *time.Time    `json:"finishedAt"`
	Processed    int           `json:"processed"`
	Created      int           `json:"created"`
	Skipped      int           `json:"skipped"`
	ErrorMessage string        `json:"errorMessage,omitempty"`
}

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

type Session struct {
	Token     string    `json:"-"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
