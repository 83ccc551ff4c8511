package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/thinkscotty/civicwire/internal/models"
)

const (
	maxHistoricalComparisons = 4
	maxFactualPoints         = 5
	minConfidence            = 55
	maxConfidence            = 99
	defaultConfidence        = 72
)

const (
	fallbackSummary          = "No summary generated."
	fallbackJustFacts        = "No fact-only summary generated."
	fallbackLeftPerspective  = "Left-leaning framing was not detected clearly."
	fallbackRightPerspective = "Right-leaning framing was not detected clearly."
	fallbackHistoryAnalysis  = "Historical comparison is currently unavailable for this story."
)

var errNoJSON = errors.New("no JSON object found in LLM response")

// AnalysisError reports a failed analysis: the model call did not succeed or
// its output had no usable JSON object.
type AnalysisError struct {
	Provider string
	URL      string
	Err      error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("%s analysis of %s failed: %v", e.Provider, e.URL, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// Analyzer turns articles into normalized StoryAnalysis values using a single
// provider. It performs no retries and no caching.
type Analyzer struct {
	provider Provider
}

func NewAnalyzer(p Provider) *Analyzer {
	return &Analyzer{provider: p}
}

// Provider returns the name of the backing provider.
func (a *Analyzer) Provider() string { return a.provider.Name() }

func (a *Analyzer) Analyze(ctx context.Context, art Article) (models.StoryAnalysis, error) {
	start := time.Now()
	raw, err := a.provider.Generate(ctx, art)
	if err != nil {
		return models.StoryAnalysis{}, &AnalysisError{Provider: a.provider.Name(), URL: art.URL, Err: err}
	}

	jsonText, err := ExtractJSON(raw)
	if err != nil {
		return models.StoryAnalysis{}, &AnalysisError{Provider: a.provider.Name(), URL: art.URL, Err: err}
	}

	partial, err := decodePartial(jsonText)
	if err != nil {
		return models.StoryAnalysis{}, &AnalysisError{Provider: a.provider.Name(), URL: art.URL, Err: err}
	}

	slog.Info("Story analyzed", "provider", a.provider.Name(), "model", a.provider.Model(),
		"url", art.URL, "elapsed", time.Since(start))
	return NormalizeAnalysis(partial), nil
}

// ExtractJSON returns the text from the first '{' to the last '}' inclusive.
// Models often wrap the object in prose or code fences.
func ExtractJSON(raw string) (string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end <= start {
		return "", errNoJSON
	}
	return raw[start : end+1], nil
}

// PartialAnalysis is model output before normalization. Empty strings and a
// nil Confidence mean the model omitted the field.
type PartialAnalysis struct {
	Summary               string
	JustFacts             string
	LeftPerspective       string
	RightPerspective      string
	HistoryAnalysis       string
	HistoricalComparisons []string
	FactualPoints         []string
	Confidence            *float64
}

// decodePartial reads a JSON object leniently: fields of the wrong type are
// treated as missing rather than failing the whole analysis.
func decodePartial(jsonText string) (PartialAnalysis, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(jsonText), &fields); err != nil {
		return PartialAnalysis{}, fmt.Errorf("parse analysis JSON: %w", err)
	}

	p := PartialAnalysis{
		Summary:               stringField(fields, "summary"),
		JustFacts:             stringField(fields, "justFacts"),
		LeftPerspective:       stringField(fields, "leftPerspective"),
		RightPerspective:      stringField(fields, "rightPerspective"),
		HistoryAnalysis:       stringField(fields, "historyAnalysis"),
		HistoricalComparisons: stringListField(fields, "historicalComparisons"),
		FactualPoints:         stringListField(fields, "factualPoints"),
	}
	p.Confidence = numberField(fields, "confidence")
	return p, nil
}

// numberField accepts a JSON number or a string holding one, since models
// sometimes quote numeric values.
func numberField(fields map[string]any, key string) *float64 {
	switch v := fields[key].(type) {
	case float64:
		return &v
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return nil
		}
		return &n
	}
	return nil
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}

func stringListField(fields map[string]any, key string) []string {
	list, ok := fields[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// NormalizeAnalysis fills every missing field with fallback text, caps the
// list lengths and clamps confidence to [55, 99].
func NormalizeAnalysis(p PartialAnalysis) models.StoryAnalysis {
	confidence := float64(defaultConfidence)
	if p.Confidence != nil && !math.IsNaN(*p.Confidence) {
		confidence = *p.Confidence
	}

	return models.StoryAnalysis{
		Summary:               orDefault(p.Summary, fallbackSummary),
		JustFacts:             orDefault(p.JustFacts, fallbackJustFacts),
		LeftPerspective:       orDefault(p.LeftPerspective, fallbackLeftPerspective),
		RightPerspective:      orDefault(p.RightPerspective, fallbackRightPerspective),
		HistoryAnalysis:       orDefault(p.HistoryAnalysis, fallbackHistoryAnalysis),
		HistoricalComparisons: compact(p.HistoricalComparisons, maxHistoricalComparisons),
		FactualPoints:         compact(p.FactualPoints, maxFactualPoints),
		Confidence:            clampConfidence(confidence),
	}
}

func orDefault(s, fallback string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return fallback
}

// compact drops blank entries and keeps at most limit of the rest.
func compact(list []string, limit int) []string {
	out := make([]string, 0, limit)
	for _, s := range list {
		if len(out) == limit {
			break
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func clampConfidence(c float64) int {
	r := math.Round(c)
	if r > maxConfidence {
		return maxConfidence
	}
	if r < minConfidence {
		return minConfidence
	}
	return int(r)
}
