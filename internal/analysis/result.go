package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

// ErrInvalidResponse marks an agent reply that could not be turned into a
// valid result. The dispatcher treats it as structural: the item stays
// unanalyzed and the cycle moves on.
var ErrInvalidResponse = errors.New("invalid agent response")

var (
	fencedJSONRe  = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")
	braceBlockRe  = regexp.MustCompile(`\{[\s\S]*\}`)
	thinkingTagRe = regexp.MustCompile(`<thinking>[\s\S]*?</thinking>`)
	controlRe     = regexp.MustCompile("[\x00-\x08\x0b\x0c\x0e-\x1f]")
)

// ExtractJSON pulls the first parseable JSON object out of an agent reply.
// Agents wrap output in markdown fences or prose often enough that plain
// unmarshal is only the first attempt.
func ExtractJSON(text string) (json.RawMessage, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}

	if json.Valid([]byte(text)) && strings.HasPrefix(text, "{") {
		return json.RawMessage(text), true
	}

	for _, match := range fencedJSONRe.FindAllStringSubmatch(text, -1) {
		candidate := strings.TrimSpace(match[1])
		if json.Valid([]byte(candidate)) {
			return json.RawMessage(candidate), true
		}
	}

	if match := braceBlockRe.FindString(text); match != "" && json.Valid([]byte(match)) {
		return json.RawMessage(match), true
	}

	return nil, false
}

// cleanOutput strips thinking tags, code fences, smart quotes, and control
// characters that commonly break agent JSON, then trims to the outermost
// brace pair.
func cleanOutput(text string) string {
	text = thinkingTagRe.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")

	replacer := strings.NewReplacer(
		"「", "'", "」", "'",
		"“", "'", "”", "'",
		"‘", "'", "’", "'",
	)
	text = replacer.Replace(text)

	if i := strings.Index(text, "{"); i > 0 {
		text = text[i:]
	}
	if i := strings.LastIndex(text, "}"); i > 0 {
		text = text[:i+1]
	}

	return controlRe.ReplaceAllString(strings.TrimSpace(text), "")
}

// ParseResult decodes and validates a per-item analysis reply. Any failure
// is wrapped in ErrInvalidResponse so callers can classify it.
func ParseResult(raw string) (*models.AnalysisResult, error) {
	payload, ok := ExtractJSON(raw)
	if !ok {
		payload, ok = ExtractJSON(cleanOutput(raw))
	}
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object found", ErrInvalidResponse)
	}

	var result models.AnalysisResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	if err := validateResult(&result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	return &result, nil
}

func validateResult(r *models.AnalysisResult) error {
	if strings.TrimSpace(r.Summary) == "" {
		return fmt.Errorf("summary is empty")
	}

	if r.Importance < 1 || r.Importance > 10 {
		return fmt.Errorf("importance %d outside [1,10]", r.Importance)
	}

	switch r.Sentiment {
	case models.SentimentPositive, models.SentimentNegative, models.SentimentNeutral:
	case "":
		r.Sentiment = models.SentimentNeutral
	default:
		return fmt.Errorf("unknown sentiment %q", r.Sentiment)
	}

	return nil
}

// ParseTrend decodes a batch synthesis reply. Trend output is advisory, so
// validation only requires the overall summary.
func ParseTrend(raw string) (*models.TrendSummary, error) {
	payload, ok := ExtractJSON(raw)
	if !ok {
		payload, ok = ExtractJSON(cleanOutput(raw))
	}
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object found", ErrInvalidResponse)
	}

	var trend models.TrendSummary
	if err := json.Unmarshal(payload, &trend); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	if strings.TrimSpace(trend.OverallSummary) == "" {
		return nil, fmt.Errorf("%w: overall_summary is empty", ErrInvalidResponse)
	}

	return &trend, nil
}
