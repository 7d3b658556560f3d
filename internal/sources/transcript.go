package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// TranscriptClient fetches video transcripts from a scraping API so the
// analysis step can work from spoken content instead of the description.
type TranscriptClient struct {
	apiKey string
	client *resty.Client
}

type transcriptResponse struct {
	Transcript []struct {
		Text string `json:"text"`
	} `json:"transcript"`
}

// NewTranscriptClient creates a transcript client.
func NewTranscriptClient(apiKey string) *TranscriptClient {
	return &TranscriptClient{
		apiKey: apiKey,
		client: resty.New().
			SetBaseURL("https://api.scrapecreators.com").
			SetTimeout(30 * time.Second),
	}
}

// Enabled reports whether the client has credentials.
func (t *TranscriptClient) Enabled() bool {
	return t.apiKey != ""
}

// Get returns the plain-text transcript of a video, or an empty string
// when none is available.
func (t *TranscriptClient) Get(ctx context.Context, videoID string) (string, error) {
	if !t.Enabled() {
		return "", nil
	}

	resp, err := t.client.R().
		SetContext(ctx).
		SetHeader("X-API-Key", t.apiKey).
		SetQueryParam("url", fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID)).
		Get("/v1/youtube/video/transcript")
	if err != nil {
		return "", fmt.Errorf("fetch transcript: %w", err)
	}
	if resp.StatusCode() == 404 {
		return "", nil
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("transcript API returned status %d", resp.StatusCode())
	}

	var parsed transcriptResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return "", fmt.Errorf("parse transcript response: %w", err)
	}

	parts := make([]string, 0, len(parsed.Transcript))
	for _, segment := range parsed.Transcript {
		if segment.Text != "" {
			parts = append(parts, segment.Text)
		}
	}

	return strings.Join(parts, " "), nil
}
