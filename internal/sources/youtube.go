package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

// YouTubeSource fetches videos through the YouTube Data API v3.
type YouTubeSource struct {
	apiKey string
	client *resty.Client
}

var _ Source = (*YouTubeSource)(nil)

type youtubeSearchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet youtubeSnippet `json:"snippet"`
	} `json:"items"`
}

type youtubeSnippet struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	ChannelID    string `json:"channelId"`
	ChannelTitle string `json:"channelTitle"`
	PublishedAt  string `json:"publishedAt"`
	Thumbnails   map[string]struct {
		URL string `json:"url"`
	} `json:"thumbnails"`
}

type youtubeVideosResponse struct {
	Items []struct {
		ID         string `json:"id"`
		Statistics struct {
			ViewCount    string `json:"viewCount"`
			LikeCount    string `json:"likeCount"`
			CommentCount string `json:"commentCount"`
		} `json:"statistics"`
	} `json:"items"`
}

// NewYouTubeSource creates a new YouTube source
func NewYouTubeSource(apiKey string) *YouTubeSource {
	return &YouTubeSource{
		apiKey: apiKey,
		client: resty.New().
			SetBaseURL("https://www.googleapis.com/youtube/v3").
			SetTimeout(30 * time.Second),
	}
}

func (y *YouTubeSource) Name() string {
	return "youtube"
}

func (y *YouTubeSource) Enabled() bool {
	return y.apiKey != ""
}

func (y *YouTubeSource) Fetch(ctx context.Context, target Target) ([]models.RawItem, error) {
	if !y.Enabled() {
		logrus.Debug("YouTube source disabled - missing API key")
		return nil, nil
	}

	limit := target.Limit
	if limit <= 0 {
		limit = 20
	}

	params := map[string]string{
		"part":       "snippet",
		"type":       "video",
		"maxResults": strconv.Itoa(limit),
		"key":        y.apiKey,
	}
	if !target.Since.IsZero() {
		params["publishedAfter"] = target.Since.UTC().Format(time.RFC3339)
	}

	switch target.Type {
	case TargetKeyword:
		params["q"] = target.Value
		params["order"] = "relevance"
	case TargetAuthor:
		params["channelId"] = target.Value
		params["order"] = "date"
	default:
		return nil, fmt.Errorf("youtube: unsupported target type %q", target.Type)
	}

	resp, err := y.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get("/search")
	if err != nil {
		return nil, fmt.Errorf("youtube search: %w", err)
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("youtube API returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	var searchResp youtubeSearchResponse
	if err := json.Unmarshal(resp.Body(), &searchResp); err != nil {
		return nil, fmt.Errorf("failed to parse YouTube response: %w", err)
	}

	items := make([]models.RawItem, 0, len(searchResp.Items))
	var videoIDs []string
	for _, result := range searchResp.Items {
		if result.ID.VideoID == "" {
			continue
		}
		items = append(items, snippetToRawItem(result.ID.VideoID, result.Snippet))
		videoIDs = append(videoIDs, result.ID.VideoID)
	}

	// Search results carry no statistics; a second call fills them in.
	// A failure here degrades to zero metrics rather than failing the fetch.
	if len(videoIDs) > 0 {
		if err := y.enrichStatistics(ctx, items, videoIDs); err != nil {
			logrus.Warnf("YouTube statistics enrichment failed: %v", err)
		}
	}

	return items, nil
}

func (y *YouTubeSource) enrichStatistics(ctx context.Context, items []models.RawItem, videoIDs []string) error {
	resp, err := y.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"part": "statistics",
			"id":   strings.Join(videoIDs, ","),
			"key":  y.apiKey,
		}).
		Get("/videos")
	if err != nil {
		return fmt.Errorf("youtube videos: %w", err)
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("youtube API returned status %d", resp.StatusCode())
	}

	var videosResp youtubeVideosResponse
	if err := json.Unmarshal(resp.Body(), &videosResp); err != nil {
		return fmt.Errorf("failed to parse YouTube videos response: %w", err)
	}

	stats := make(map[string]models.Metrics, len(videosResp.Items))
	for _, video := range videosResp.Items {
		stats[video.ID] = models.Metrics{
			Views:    parseCount(video.Statistics.ViewCount),
			Likes:    parseCount(video.Statistics.LikeCount),
			Comments: parseCount(video.Statistics.CommentCount),
		}
	}

	for i := range items {
		if m, ok := stats[items[i].SourceItemID]; ok {
			items[i].Metrics = m
		}
	}

	return nil
}

func snippetToRawItem(videoID string, snippet youtubeSnippet) models.RawItem {
	publishedAt, err := time.Parse(time.RFC3339, snippet.PublishedAt)
	if err != nil {
		logrus.Debugf("Failed to parse YouTube timestamp %q: %v", snippet.PublishedAt, err)
		publishedAt = time.Now().UTC()
	}

	return models.RawItem{
		Source:       "youtube",
		SourceItemID: videoID,
		Title:        snippet.Title,
		Body:         snippet.Description,
		Author:       snippet.ChannelTitle,
		AuthorID:     snippet.ChannelID,
		URL:          fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID),
		HasMedia:     len(snippet.Thumbnails) > 0,
		PublishedAt:  publishedAt,
	}
}

func parseCount(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
