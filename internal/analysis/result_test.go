package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validReply = `{
	"summary": "A concise summary.",
	"key_points": ["first", "second"],
	"sentiment": "positive",
	"topics": ["ai"],
	"importance": 7,
	"recommendation": "worth following"
}`

func TestParseResult_PlainJSON(t *testing.T) {
	result, err := ParseResult(validReply)
	require.NoError(t, err)

	assert.Equal(t, "A concise summary.", result.Summary)
	assert.Equal(t, []string{"first", "second"}, result.KeyPoints)
	assert.Equal(t, "positive", result.Sentiment)
	assert.Equal(t, 7, result.Importance)
}

func TestParseResult_FencedJSON(t *testing.T) {
	reply := "Here is the analysis:\n```json\n" + validReply + "\n```\nLet me know if you need more."

	result, err := ParseResult(reply)
	require.NoError(t, err)
	assert.Equal(t, 7, result.Importance)
}

func TestParseResult_ThinkingTagsStripped(t *testing.T) {
	reply := "<thinking>deliberation that is not JSON</thinking>\n" + validReply

	result, err := ParseResult(reply)
	require.NoError(t, err)
	assert.Equal(t, "A concise summary.", result.Summary)
}

func TestParseResult_DefaultsEmptySentimentToNeutral(t *testing.T) {
	result, err := ParseResult(`{"summary": "s", "importance": 5}`)
	require.NoError(t, err)
	assert.Equal(t, "neutral", result.Sentiment)
}

func TestParseResult_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"no JSON at all", "I could not process this request."},
		{"empty reply", ""},
		{"missing summary", `{"importance": 5, "sentiment": "neutral"}`},
		{"importance too high", `{"summary": "s", "importance": 11}`},
		{"importance missing", `{"summary": "s", "sentiment": "neutral"}`},
		{"unknown sentiment", `{"summary": "s", "importance": 5, "sentiment": "ecstatic"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseResult(tt.reply)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidResponse)
		})
	}
}

func TestParseTrend(t *testing.T) {
	reply := "```json\n" + `{
		"overall_summary": "Quiet window overall.",
		"hot_topics": [{"topic": "inference", "heat": "high", "description": "cost talk"}],
		"key_insights": ["insight"],
		"emerging_trends": "edge deployment",
		"recommendation": "watch quantization"
	}` + "\n```"

	trend, err := ParseTrend(reply)
	require.NoError(t, err)
	assert.Equal(t, "Quiet window overall.", trend.OverallSummary)
	require.Len(t, trend.HotTopics, 1)
	assert.Equal(t, "inference", trend.HotTopics[0].Topic)

	_, err = ParseTrend(`{"hot_topics": []}`)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestExtractJSON_BraceFallback(t *testing.T) {
	raw, ok := ExtractJSON(`The result is {"a": 1} as requested`)
	require.True(t, ok)
	assert.JSONEq(t, `{"a": 1}`, string(raw))

	_, ok = ExtractJSON("no braces here")
	assert.False(t, ok)
}
