package ai

import (
	"fmt"
	"strings"
	"time"
)

// analysisSchema is the JSON schema the model output must follow.
const analysisSchema = `{"type":"object","properties":{` +
	`"summary":{"type":"string"},` +
	`"justFacts":{"type":"string"},` +
	`"leftPerspective":{"type":"string"},` +
	`"rightPerspective":{"type":"string"},` +
	`"historyAnalysis":{"type":"string"},` +
	`"historicalComparisons":{"type":"array","items":{"type":"string"}},` +
	`"factualPoints":{"type":"array","items":{"type":"string"}},` +
	`"confidence":{"type":"number"}},` +
	`"required":["summary","justFacts","leftPerspective","rightPerspective","historyAnalysis","historicalComparisons","factualPoints","confidence"]}`

const editorRole = "You are a nonpartisan civic editor."

// BuildAnalysisPrompt returns the single-turn prompt used by Gemini. It embeds
// the schema, today's date and the article.
func BuildAnalysisPrompt(a Article, now time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s Return strict JSON with this schema: %s.\n\n", editorRole, analysisSchema)
	fmt.Fprintf(&sb, "Today: %s\n", now.UTC().Format(time.RFC3339))
	writeArticle(&sb, a)

	sb.WriteString(`
Requirements:
- summary: balanced paragraph
- justFacts: factual only, no opinion language
- leftPerspective: explain left-leaning arguments fairly
- rightPerspective: explain right-leaning arguments fairly
- historyAnalysis: "What our history tells us" comparison between the current event and similar past events
- historicalComparisons: 2-4 concise historical parallels or precedents
- factualPoints: 3-5 bullet-like statements of verifiable current status
- confidence: 0-100 confidence score for factual clarity

Critical rules:
- Do NOT assert who currently holds an office unless this article explicitly states it.
- Prefer date-qualified language (e.g., "as of this report", "according to this article").`)
	return sb.String()
}

// chatSystemPrompt is the system message for chat-style providers.
const chatSystemPrompt = editorRole + " Always return strict JSON with fields summary, justFacts, " +
	"leftPerspective, rightPerspective, historyAnalysis, historicalComparisons, factualPoints, confidence. " +
	"Keep summary balanced and justFacts free of opinion language. " +
	"Avoid stating current officeholders unless explicitly provided in the article. " +
	"Prefer date-qualified language such as \"as of this report\"."

// BuildChatUserPrompt returns the user message paired with chatSystemPrompt.
func BuildChatUserPrompt(a Article) string {
	var sb strings.Builder
	sb.WriteString("Analyze this article.\n")
	writeArticle(&sb, a)
	sb.WriteString("\nReturn JSON only.")
	return sb.String()
}

func writeArticle(sb *strings.Builder, a Article) {
	fmt.Fprintf(sb, "Article title: %s\n", a.Title)
	fmt.Fprintf(sb, "Source: %s\n", a.Source)
	fmt.Fprintf(sb, "Description: %s\n", a.Description)
	fmt.Fprintf(sb, "URL: %s\n", a.URL)
}
