package sources

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

// RSSSource fetches blog and news feeds (RSS 2.0 and Atom).
type RSSSource struct {
	client *resty.Client
}

var _ Source = (*RSSSource)(nil)

type rssFeed struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Title string    `xml:"title"`
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	Content     string `xml:"encoded"`
	Author      string `xml:"creator"`
	GUID        string `xml:"guid"`
	PubDate     string `xml:"pubDate"`
}

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Title   string      `xml:"title"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID      string `xml:"id"`
	Title   string `xml:"title"`
	Content string `xml:"content"`
	Summary string `xml:"summary"`
	Updated string `xml:"updated"`
	Author  struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Links []struct {
		Rel  string `xml:"rel,attr"`
		Href string `xml:"href,attr"`
	} `xml:"link"`
}

// NewRSSSource creates a new RSS source
func NewRSSSource(userAgent string) *RSSSource {
	if userAgent == "" {
		userAgent = "PulseWatch/1.0"
	}
	return &RSSSource{
		client: resty.New().
			SetTimeout(30 * time.Second).
			SetHeader("User-Agent", userAgent),
	}
}

func (r *RSSSource) Name() string {
	return "rss"
}

func (r *RSSSource) Enabled() bool {
	return true
}

func (r *RSSSource) Fetch(ctx context.Context, target Target) ([]models.RawItem, error) {
	if target.Type != TargetFeed {
		return nil, fmt.Errorf("rss: unsupported target type %q", target.Type)
	}

	limit := target.Limit
	if limit <= 0 {
		limit = 20
	}

	resp, err := r.client.R().
		SetContext(ctx).
		Get(target.Value)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode())
	}

	items, err := parseFeed(resp.Body())
	if err != nil {
		return nil, err
	}

	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// parseFeed tries RSS 2.0 first and falls back to Atom.
func parseFeed(body []byte) ([]models.RawItem, error) {
	var rss rssFeed
	if err := xml.Unmarshal(body, &rss); err == nil && len(rss.Channel.Items) > 0 {
		items := make([]models.RawItem, 0, len(rss.Channel.Items))
		for _, entry := range rss.Channel.Items {
			items = append(items, rssToRawItem(entry, rss.Channel.Title))
		}
		return items, nil
	}

	var atom atomFeed
	if err := xml.Unmarshal(body, &atom); err == nil && len(atom.Entries) > 0 {
		items := make([]models.RawItem, 0, len(atom.Entries))
		for _, entry := range atom.Entries {
			items = append(items, atomToRawItem(entry, atom.Title))
		}
		return items, nil
	}

	return nil, fmt.Errorf("unrecognized feed format")
}

func rssToRawItem(entry rssItem, feedTitle string) models.RawItem {
	body := entry.Content
	if body == "" {
		body = entry.Description
	}

	author := entry.Author
	if author == "" {
		author = feedTitle
	}

	id := entry.GUID
	if id == "" {
		id = feedItemID(entry.Link, entry.Title)
	}

	return models.RawItem{
		Source:       "rss",
		SourceItemID: id,
		Title:        stripHTML(entry.Title),
		Body:         stripHTML(body),
		Author:       author,
		URL:          entry.Link,
		PublishedAt:  parseFeedTime(entry.PubDate),
	}
}

func atomToRawItem(entry atomEntry, feedTitle string) models.RawItem {
	body := entry.Content
	if body == "" {
		body = entry.Summary
	}

	author := entry.Author.Name
	if author == "" {
		author = feedTitle
	}

	var link string
	for _, l := range entry.Links {
		if l.Rel == "" || l.Rel == "alternate" {
			link = l.Href
			break
		}
	}

	id := entry.ID
	if id == "" {
		id = feedItemID(link, entry.Title)
	}

	return models.RawItem{
		Source:       "rss",
		SourceItemID: id,
		Title:        stripHTML(entry.Title),
		Body:         stripHTML(body),
		Author:       author,
		URL:          link,
		PublishedAt:  parseFeedTime(entry.Updated),
	}
}

// stripHTML reduces feed entry markup to plain text.
func stripHTML(s string) string {
	if !strings.Contains(s, "<") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		logrus.Debugf("Failed to parse feed HTML: %v", err)
		return strings.TrimSpace(s)
	}
	text := doc.Text()
	return strings.TrimSpace(strings.Join(strings.Fields(text), " "))
}

var feedTimeFormats = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"Mon, 2 Jan 2006 15:04:05 -0700",
}

func parseFeedTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, format := range feedTimeFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}

func feedItemID(link, title string) string {
	h := sha1.Sum([]byte(link + "|" + title))
	return hex.EncodeToString(h[:])
}
