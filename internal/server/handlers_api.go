package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/thinkscotty/civicwire/internal/feeds"
	"github.com/thinkscotty/civicwire/internal/models"
)

const (
	defaultNewsLimit = 20
	maxNewsLimit     = 50
	defaultRunsLimit = 20
	maxRunsLimit     = 100
	maxBodyBytes     = 1 << 16
)

type storyResponse struct {
	ID                    string   `json:"id"`
	Title                 string   `json:"title"`
	URL                   string   `json:"url"`
	ImageURL              *string  `json:"imageUrl"`
	Source                string   `json:"source"`
	Topic                 string   `json:"topic"`
	PublishedAt           string   `json:"publishedAt"`
	Summary               string   `json:"summary"`
	JustFacts             string   `json:"justFacts"`
	LeftPerspective       string   `json:"leftPerspective"`
	RightPerspective      string   `json:"rightPerspective"`
	HistoryAnalysis       string   `json:"historyAnalysis"`
	HistoricalComparisons []string `json:"historicalComparisons"`
	FactualPoints         []string `json:"factualPoints"`
	Confidence            int      `json:"confidence"`
	BiasLabel             string   `json:"biasLabel"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, map[string]any{"ok": true, "version": s.version})
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"), defaultNewsLimit, maxNewsLimit)

	stories, err := s.db.ListStories(limit)
	if err != nil {
		slog.Error("API: failed to list stories", "error", err)
		jsonError(w, "Failed to list stories", http.StatusInternalServerError)
		return
	}

	result := make([]storyResponse, 0, len(stories))
	for _, st := range stories {
		var image *string
		if st.ImageURL != "" {
			u := st.ImageURL
			image = &u
		}
		result = append(result, storyResponse{
			ID:                    st.ID,
			Title:                 st.Title,
			URL:                   st.URL,
			ImageURL:              image,
			Source:                st.Source,
			Topic:                 st.Topic,
			PublishedAt:           st.PublishedAt.UTC().Format(time.RFC3339),
			Summary:               st.Analysis.Summary,
			JustFacts:             st.Analysis.JustFacts,
			LeftPerspective:       st.Analysis.LeftPerspective,
			RightPerspective:      st.Analysis.RightPerspective,
			HistoryAnalysis:       st.Analysis.HistoryAnalysis,
			HistoricalComparisons: nonNil(st.Analysis.HistoricalComparisons),
			FactualPoints:         nonNil(st.Analysis.FactualPoints),
			Confidence:            st.Analysis.Confidence,
			BiasLabel:             string(st.Bias),
		})
	}

	jsonResponse(w, result)
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, map[string]any{"sources": s.sources})
}

// handleCheckSources checks every source, or only the one named by ?source=.
func (s *Server) handleCheckSources(w http.ResponseWriter, r *http.Request) {
	sources := s.sources
	if id := r.URL.Query().Get("source"); id != "" {
		src, ok := feeds.FindSource(s.sources, id)
		if !ok {
			jsonError(w, "Source not found", http.StatusNotFound)
			return
		}
		sources = []models.FeedSource{src}
	}

	reports := s.checker.Check(r.Context(), sources)
	jsonResponse(w, map[string]any{"sources": reports})
}

// parseLimit reads a positive limit clamped to [1, upper]. Missing or
// non-numeric values select def.
func parseLimit(raw string, def, upper int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if n < 1 {
		return 1
	}
	if n > upper {
		return upper
	}
	return n
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}

// decodeJSON reads a single JSON object from the request body, rejecting
// unknown fields and trailing data.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return errors.New("invalid JSON body: unexpected trailing data")
	}
	return nil
}

func jsonResponse(w http.ResponseWriter, data any) {
	jsonStatus(w, http.StatusOK, data)
}

func jsonStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, message string, status int) {
	jsonStatus(w, status, map[string]string{"error": message})
}
