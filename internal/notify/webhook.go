package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
)

// longest markdown body the card webhook accepts
const webhookMaxLength = 30000

// WebhookTransport delivers digests as interactive markdown cards to a
// group-bot webhook. When a signing secret is configured every request
// carries a timestamp and an HMAC-SHA256 signature.
type WebhookTransport struct {
	url    string
	secret string
	client *resty.Client
	now    func() time.Time
}

var _ Transport = (*WebhookTransport)(nil)

// NewWebhookTransport creates a webhook transport.
func NewWebhookTransport(url, secret string) *WebhookTransport {
	return &WebhookTransport{
		url:    url,
		secret: secret,
		client: resty.New().SetTimeout(15 * time.Second),
		now:    time.Now,
	}
}

func (w *WebhookTransport) Name() string {
	return "webhook"
}

type cardPayload struct {
	Timestamp string `json:"timestamp,omitempty"`
	Sign      string `json:"sign,omitempty"`
	MsgType   string `json:"msg_type"`
	Card      card   `json:"card"`
}

type card struct {
	Config   cardConfig    `json:"config"`
	Header   cardHeader    `json:"header"`
	Elements []cardElement `json:"elements"`
}

type cardConfig struct {
	WideScreenMode bool `json:"wide_screen_mode"`
}

type cardHeader struct {
	Title    cardText `json:"title"`
	Template string   `json:"template"`
}

type cardText struct {
	Tag     string `json:"tag"`
	Content string `json:"content"`
}

type cardElement struct {
	Tag     string `json:"tag"`
	Content string `json:"content"`
}

type webhookResponse struct {
	Code       int    `json:"code"`
	StatusCode int    `json:"StatusCode"`
	Msg        string `json:"msg"`
}

// Send posts one markdown card.
func (w *WebhookTransport) Send(ctx context.Context, title, markdown string) error {
	if w.url == "" {
		return fmt.Errorf("webhook URL not configured")
	}

	if len(markdown) > webhookMaxLength {
		// Back up to a rune boundary so the cut never splits a character.
		cut := webhookMaxLength - 3
		for cut > 0 && !utf8.RuneStart(markdown[cut]) {
			cut--
		}
		markdown = markdown[:cut] + "..."
	}

	payload := cardPayload{
		MsgType: "interactive",
		Card: card{
			Config: cardConfig{WideScreenMode: true},
			Header: cardHeader{
				Title:    cardText{Tag: "plain_text", Content: title},
				Template: "blue",
			},
			Elements: []cardElement{{Tag: "markdown", Content: markdown}},
		},
	}

	if w.secret != "" {
		ts := strconv.FormatInt(w.now().Unix(), 10)
		payload.Timestamp = ts
		payload.Sign = sign(ts, w.secret)
	}

	var result webhookResponse
	resp, err := w.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		SetResult(&result).
		ForceContentType("application/json").
		Post(w.url)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}

	if resp.StatusCode() != 200 {
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode(), resp.String())
	}

	if result.Code != 0 || result.StatusCode != 0 {
		return fmt.Errorf("webhook rejected message: code=%d msg=%s", result.Code, result.Msg)
	}

	return nil
}

// sign computes the group-bot signature: the HMAC key is
// "timestamp\nsecret" and the signed message is empty.
func sign(timestamp, secret string) string {
	mac := hmac.New(sha256.New, []byte(timestamp+"\n"+secret))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
