package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	text string
	err  error
	got  []Article
}

func (s *stubProvider) Name() string  { return "stub" }
func (s *stubProvider) Model() string { return "stub-1" }
func (s *stubProvider) Generate(ctx context.Context, a Article) (string, error) {
	s.got = append(s.got, a)
	return s.text, s.err
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, false},
		{"wrapped in prose", `Sure! {"summary":"x"} Thanks.`, `{"summary":"x"}`, false},
		{"code fence", "```json\n{\"a\":{\"b\":2}}\n```", `{"a":{"b":2}}`, false},
		{"first brace to last brace", `x {"a":1} y {"b":2} z`, `{"a":1} y {"b":2}`, false},
		{"no braces", `no json here`, "", true},
		{"only opening", `{ oops`, "", true},
		{"reversed", `} nope {`, "", true},
		{"empty", ``, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeAnalysisFallbacks(t *testing.T) {
	got := NormalizeAnalysis(PartialAnalysis{LeftPerspective: "   "})

	assert.Equal(t, fallbackSummary, got.Summary)
	assert.Equal(t, fallbackJustFacts, got.JustFacts)
	assert.Equal(t, fallbackLeftPerspective, got.LeftPerspective)
	assert.Equal(t, fallbackRightPerspective, got.RightPerspective)
	assert.Equal(t, fallbackHistoryAnalysis, got.HistoryAnalysis)
	assert.Equal(t, []string{}, got.HistoricalComparisons)
	assert.Equal(t, []string{}, got.FactualPoints)
	assert.Equal(t, 72, got.Confidence)
}

func TestNormalizeAnalysisCapsAndTrims(t *testing.T) {
	got := NormalizeAnalysis(PartialAnalysis{
		Summary:               "  A summary.  ",
		HistoricalComparisons: []string{"a", "", "b", "c", "d", "e"},
		FactualPoints:         []string{"1", "2", " ", "3", "4", "5", "6"},
	})

	assert.Equal(t, "A summary.", got.Summary)
	assert.Equal(t, []string{"a", "b", "c", "d"}, got.HistoricalComparisons)
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, got.FactualPoints)
}

func TestNormalizeAnalysisConfidence(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	tests := []struct {
		name string
		in   *float64
		want int
	}{
		{"missing", nil, 72},
		{"in range", f(80), 80},
		{"rounds", f(80.5), 81},
		{"below floor", f(10), 55},
		{"zero", f(0), 55},
		{"above ceiling", f(100), 99},
		{"huge", f(1e300), 99},
		{"negative", f(-5), 55},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeAnalysis(PartialAnalysis{Confidence: tt.in})
			assert.Equal(t, tt.want, got.Confidence)
		})
	}
}

func TestAnalyzeParsesWrappedPartialJSON(t *testing.T) {
	p := &stubProvider{text: `Here you go: {"summary":"Balanced.","justFacts":42,"factualPoints":["one",7,"two"],"confidence":"high"} Done.`}
	a := NewAnalyzer(p)

	art := Article{Title: "T", Source: "S", Description: "D", URL: "https://example.com/t"}
	got, err := a.Analyze(context.Background(), art)
	require.NoError(t, err)

	assert.Equal(t, "Balanced.", got.Summary)
	assert.Equal(t, fallbackJustFacts, got.JustFacts)
	assert.Equal(t, []string{"one", "two"}, got.FactualPoints)
	assert.Equal(t, 72, got.Confidence)
	assert.Equal(t, []Article{art}, p.got)
	assert.Equal(t, "stub", a.Provider())
}

func TestDecodePartialConfidence(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"number", `85`, 85},
		{"numeric string", `"85"`, 85},
		{"padded decimal string", `" 90.6 "`, 91},
		{"string out of range", `"120"`, 99},
		{"word", `"high"`, 72},
		{"NaN string", `"NaN"`, 72},
		{"null", `null`, 72},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := decodePartial(`{"confidence":` + tt.raw + `}`)
			require.NoError(t, err)
			assert.Equal(t, tt.want, NormalizeAnalysis(p).Confidence)
		})
	}
}

func TestAnalyzeErrors(t *testing.T) {
	tests := []struct {
		name string
		p    *stubProvider
	}{
		{"provider failure", &stubProvider{err: errors.New("status 500")}},
		{"no json bounds", &stubProvider{text: "I cannot help with that."}},
		{"invalid json", &stubProvider{text: `{"summary": }`}},
		{"json array is not an object", &stubProvider{text: `{"a"} [1] {`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAnalyzer(tt.p).Analyze(context.Background(), Article{URL: "https://example.com/x"})
			require.Error(t, err)

			var ae *AnalysisError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, "stub", ae.Provider)
			assert.Equal(t, "https://example.com/x", ae.URL)
		})
	}
}

func TestPromptsCarryRules(t *testing.T) {
	art := Article{Title: "Budget deal", Source: "AP", Description: "Lawmakers agree", URL: "https://example.com/b"}

	gemini := BuildAnalysisPrompt(art, fixedNow)
	for _, want := range []string{"Budget deal", "AP", "Lawmakers agree", "https://example.com/b",
		`"historicalComparisons"`, "Do NOT assert who currently holds an office", "date-qualified", "2026-10-19"} {
		assert.Contains(t, gemini, want)
	}

	user := BuildChatUserPrompt(art)
	assert.True(t, strings.HasPrefix(user, "Analyze this article."))
	assert.Contains(t, user, "Return JSON only.")
	assert.Contains(t, chatSystemPrompt, "officeholders")
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider("", Options{})
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, p.Name())
	assert.Equal(t, defaultGeminiModel, p.Model())

	p, err = NewProvider("DeepSeek", Options{DeepSeekModel: "deepseek-reasoner"})
	require.NoError(t, err)
	assert.Equal(t, ProviderDeepSeek, p.Name())
	assert.Equal(t, "deepseek-reasoner", p.Model())

	_, err = NewProvider("ollama", Options{})
	assert.Error(t, err)
}
