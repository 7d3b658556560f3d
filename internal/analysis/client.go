package analysis

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/pulsewatch/pulsewatch/internal/config"
	"github.com/pulsewatch/pulsewatch/internal/models"
)

// Agent is a conversational AI endpoint: one prompt in, one text reply out.
// The concrete client streams; fakes in tests return canned replies.
type Agent interface {
	Chat(ctx context.Context, prompt string) (string, error)
}

// AgentClient calls an agent over the AG-UI streaming protocol. The server
// replies with server-sent events; the client concatenates the text deltas
// into one response string.
type AgentClient struct {
	agentID string
	model   string
	client  *resty.Client
}

var _ Agent = (*AgentClient)(nil)

// NewAgentClient creates an agent client. Returns nil when the agent is not
// configured; callers treat a nil client as analysis disabled.
func NewAgentClient(cfg *config.Config, agentID string) *AgentClient {
	if cfg.AgentBaseURL == "" || agentID == "" || cfg.AgentToken == "" {
		return nil
	}

	return &AgentClient{
		agentID: agentID,
		model:   cfg.AgentModel,
		client: resty.New().
			SetBaseURL(strings.TrimRight(cfg.AgentBaseURL, "/")).
			SetTimeout(cfg.AnalysisTimeout).
			SetHeader("X-API-Token", cfg.AgentToken).
			SetHeader("Content-Type", "application/json"),
	}
}

type chatRequest struct {
	Input chatInput `json:"input"`
}

type chatInput struct {
	Message     string  `json:"message"`
	Model       string  `json:"model,omitempty"`
	Stream      bool    `json:"stream"`
	Temperature float64 `json:"temperature"`
}

type streamEvent struct {
	Type     string `json:"type"`
	RawEvent struct {
		Content   string `json:"content"`
		TipOption struct {
			Content string `json:"content"`
		} `json:"tip_option"`
	} `json:"rawEvent"`
}

// Chat sends one prompt and returns the assembled text reply.
func (a *AgentClient) Chat(ctx context.Context, prompt string) (string, error) {
	body := chatRequest{
		Input: chatInput{
			Message:     prompt,
			Model:       a.model,
			Stream:      true,
			Temperature: 0.3,
		},
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(body).
		SetDoNotParseResponse(true).
		Post(fmt.Sprintf("/apigw/api/v1/agents/agui/%s", a.agentID))
	if err != nil {
		return "", fmt.Errorf("agent request failed: %w", err)
	}
	defer resp.RawBody().Close()

	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("agent returned status %d", resp.StatusCode())
	}

	var parts []string
	scanner := bufio.NewScanner(resp.RawBody())
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "data:"))
		if line == "" {
			continue
		}
		if line == "[DONE]" {
			break
		}

		var event streamEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue
		}

		switch event.Type {
		case "TEXT_MESSAGE_CONTENT":
			parts = append(parts, event.RawEvent.Content)
		case "RUN_ERROR":
			msg := event.RawEvent.TipOption.Content
			if msg == "" {
				msg = "unknown agent error"
			}
			return "", fmt.Errorf("agent run error: %s", msg)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("agent stream read failed: %w", err)
	}

	return strings.Join(parts, ""), nil
}

const defaultContentPrompt = `Analyze the following social media content and extract key information:

%s

Respond with a JSON report containing these fields:
- summary: one-sentence summary
- key_points: list of core points (at most 5)
- sentiment: positive/negative/neutral
- topics: list of topic tags
- importance: importance score (1-10)
- recommendation: whether and why this deserves attention

Output the JSON directly with no extra commentary.`

const defaultTrendPrompt = `Analyze the following %d social media items together and produce a trend report:

%s

Respond with a JSON report containing:
- overall_summary: overall trend summary (2-3 sentences)
- hot_topics: list of hot topics (each with topic, heat, description)
- key_insights: list of key insights (at most 5)
- emerging_trends: emerging trends
- recommendation: directions worth following

Output the JSON directly.`

// maximum transcript bytes included in a content prompt
const transcriptPromptLimit = 3000

// BuildContentPrompt renders the per-item analysis prompt. A configured
// template receives the item as a JSON block via %s; otherwise the built-in
// prompt is used.
func BuildContentPrompt(prompts config.Prompts, c *models.Content) string {
	payload := map[string]interface{}{
		"source":  c.Source,
		"content": c.Body,
	}
	if c.Title != "" {
		payload["title"] = c.Title
	}
	if c.Author != "" {
		payload["author"] = c.Author
	}
	if c.Metrics != (models.Metrics{}) {
		payload["metrics"] = c.Metrics
	}
	if c.Transcript != "" {
		transcript := c.Transcript
		if len(transcript) > transcriptPromptLimit {
			transcript = transcript[:transcriptPromptLimit]
		}
		payload["transcript"] = transcript
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		logrus.Warnf("Failed to marshal content prompt payload: %v", err)
		data = []byte(c.Body)
	}
	block := "```json\n" + string(data) + "\n```"

	if prompts.Content != "" {
		return fmt.Sprintf(prompts.Content, block)
	}
	return fmt.Sprintf(defaultContentPrompt, block)
}

// BuildTrendPrompt renders the batch synthesis prompt over a window of
// analyzed items. Bodies are truncated so a large window still fits.
func BuildTrendPrompt(prompts config.Prompts, items []*models.Content) string {
	type trendItem struct {
		Title   string `json:"title,omitempty"`
		Source  string `json:"source,omitempty"`
		Content string `json:"content"`
	}

	limit := len(items)
	if limit > 30 {
		limit = 30
	}

	simplified := make([]trendItem, 0, limit)
	for _, c := range items[:limit] {
		body := c.Body
		if c.Analysis != nil && c.Analysis.Summary != "" {
			body = c.Analysis.Summary
		}
		if len(body) > 200 {
			body = body[:200]
		}
		simplified = append(simplified, trendItem{
			Title:   c.Title,
			Source:  c.Source,
			Content: body,
		})
	}

	data, _ := json.MarshalIndent(simplified, "", "  ")
	block := "```json\n" + string(data) + "\n```"

	if prompts.Trend != "" {
		return fmt.Sprintf(prompts.Trend, len(simplified), block)
	}
	return fmt.Sprintf(defaultTrendPrompt, len(simplified), block)
}
