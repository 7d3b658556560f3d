package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

// Credit cost of one Twitter search call, charged against the daily
// harvesting budget.
const TwitterSearchCredits = 75

// TwitterSource fetches tweets through the twitterapi.io search API.
type TwitterSource struct {
	apiKey string
	client *resty.Client
}

var _ Source = (*TwitterSource)(nil)

type twitterSearchResponse struct {
	Tweets []twitterTweet `json:"tweets"`
}

type twitterTweet struct {
	ID           string `json:"id"`
	Text         string `json:"text"`
	URL          string `json:"url"`
	CreatedAt    string `json:"createdAt"`
	LikeCount    int64  `json:"likeCount"`
	RetweetCount int64  `json:"retweetCount"`
	ReplyCount   int64  `json:"replyCount"`
	ViewCount    int64  `json:"viewCount"`
	Author       struct {
		ID       string `json:"id"`
		UserName string `json:"userName"`
		Name     string `json:"name"`
	} `json:"author"`
	ExtendedEntities struct {
		Media []json.RawMessage `json:"media"`
	} `json:"extendedEntities"`
}

// NewTwitterSource creates a new Twitter source
func NewTwitterSource(apiKey string) *TwitterSource {
	return &TwitterSource{
		apiKey: apiKey,
		client: resty.New().
			SetBaseURL("https://api.twitterapi.io").
			SetTimeout(30*time.Second).
			SetHeader("User-Agent", "PulseWatch/1.0"),
	}
}

func (t *TwitterSource) Name() string {
	return "twitter"
}

func (t *TwitterSource) Enabled() bool {
	return t.apiKey != ""
}

func (t *TwitterSource) Fetch(ctx context.Context, target Target) ([]models.RawItem, error) {
	if !t.Enabled() {
		logrus.Debug("Twitter source disabled - missing API key")
		return nil, nil
	}

	limit := target.Limit
	if limit <= 0 {
		limit = 20
	}

	switch target.Type {
	case TargetKeyword:
		return t.search(ctx, target.Value, limit)
	case TargetAuthor:
		return t.authorTimeline(ctx, target.Value, limit)
	default:
		return nil, fmt.Errorf("twitter: unsupported target type %q", target.Type)
	}
}

func (t *TwitterSource) search(ctx context.Context, query string, limit int) ([]models.RawItem, error) {
	resp, err := t.client.R().
		SetContext(ctx).
		SetHeader("X-API-Key", t.apiKey).
		SetQueryParams(map[string]string{
			"query":     query,
			"queryType": "Top",
		}).
		Get("/twitter/tweet/advanced_search")
	if err != nil {
		return nil, fmt.Errorf("twitter search: %w", err)
	}

	return t.parseResponse(resp, limit)
}

func (t *TwitterSource) authorTimeline(ctx context.Context, username string, limit int) ([]models.RawItem, error) {
	resp, err := t.client.R().
		SetContext(ctx).
		SetHeader("X-API-Key", t.apiKey).
		SetQueryParam("userName", username).
		Get("/twitter/user/last_tweets")
	if err != nil {
		return nil, fmt.Errorf("twitter author timeline: %w", err)
	}

	return t.parseResponse(resp, limit)
}

func (t *TwitterSource) parseResponse(resp *resty.Response, limit int) ([]models.RawItem, error) {
	if resp.StatusCode() == 429 {
		// Fail fast on rate limits so other sources keep the cycle alive.
		logrus.Warn("Twitter API rate limit hit - skipping")
		return nil, fmt.Errorf("twitter API returned status 429")
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("twitter API returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	var searchResp twitterSearchResponse
	if err := json.Unmarshal(resp.Body(), &searchResp); err != nil {
		return nil, fmt.Errorf("failed to parse Twitter response: %w", err)
	}

	items := make([]models.RawItem, 0, len(searchResp.Tweets))
	for _, tweet := range searchResp.Tweets {
		if len(items) >= limit {
			break
		}
		items = append(items, tweetToRawItem(tweet))
	}

	return items, nil
}

func tweetToRawItem(tweet twitterTweet) models.RawItem {
	createdAt, err := time.Parse(time.RubyDate, tweet.CreatedAt)
	if err != nil {
		logrus.Debugf("Failed to parse Twitter timestamp %q: %v", tweet.CreatedAt, err)
		createdAt = time.Now().UTC()
	}

	url := tweet.URL
	if url == "" {
		url = fmt.Sprintf("https://twitter.com/i/status/%s", tweet.ID)
	}

	return models.RawItem{
		Source:       "twitter",
		SourceItemID: tweet.ID,
		Body:         tweet.Text,
		Author:       tweet.Author.UserName,
		AuthorID:     tweet.Author.ID,
		URL:          url,
		Metrics: models.Metrics{
			Views:   tweet.ViewCount,
			Likes:   tweet.LikeCount,
			Shares:  tweet.RetweetCount,
			Replies: tweet.ReplyCount,
		},
		HasMedia:    len(tweet.ExtendedEntities.Media) > 0,
		PublishedAt: createdAt,
	}
}
