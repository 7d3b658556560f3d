package sources

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rssFixture = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Example Blog</title>
    <item>
      <title>First &lt;b&gt;Post&lt;/b&gt;</title>
      <link>https://example.com/first</link>
      <description>&lt;p&gt;Some &lt;em&gt;rich&lt;/em&gt; text.&lt;/p&gt;</description>
      <guid>https://example.com/first</guid>
      <pubDate>Mon, 02 Mar 2026 10:00:00 +0000</pubDate>
    </item>
    <item>
      <title>Second Post</title>
      <link>https://example.com/second</link>
      <description>Plain text body.</description>
    </item>
  </channel>
</rss>`

const atomFixture = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Example Atom</title>
  <entry>
    <id>urn:entry:1</id>
    <title>Atom Entry</title>
    <summary>Entry summary.</summary>
    <updated>2026-03-02T10:00:00Z</updated>
    <author><name>writer</name></author>
    <link rel="alternate" href="https://example.com/atom-entry"/>
  </entry>
</feed>`

func TestParseFeed_RSS(t *testing.T) {
	items, err := parseFeed([]byte(rssFixture))
	require.NoError(t, err)
	require.Len(t, items, 2)

	first := items[0]
	assert.Equal(t, "rss", first.Source)
	assert.Equal(t, "https://example.com/first", first.SourceItemID)
	assert.Equal(t, "First Post", first.Title)
	assert.Equal(t, "Some rich text.", first.Body)
	assert.Equal(t, "Example Blog", first.Author) // feed title fallback
	assert.Equal(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), first.PublishedAt.UTC())

	// Missing GUID falls back to a stable hash of link and title.
	second := items[1]
	assert.NotEmpty(t, second.SourceItemID)
	assert.Equal(t, feedItemID("https://example.com/second", "Second Post"), second.SourceItemID)
}

func TestParseFeed_Atom(t *testing.T) {
	items, err := parseFeed([]byte(atomFixture))
	require.NoError(t, err)
	require.Len(t, items, 1)

	entry := items[0]
	assert.Equal(t, "urn:entry:1", entry.SourceItemID)
	assert.Equal(t, "Atom Entry", entry.Title)
	assert.Equal(t, "Entry summary.", entry.Body)
	assert.Equal(t, "writer", entry.Author)
	assert.Equal(t, "https://example.com/atom-entry", entry.URL)
}

func TestParseFeed_Unrecognized(t *testing.T) {
	_, err := parseFeed([]byte("<html><body>not a feed</body></html>"))
	assert.Error(t, err)
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "plain text", stripHTML("  plain text "))
	assert.Equal(t, "Hello world", stripHTML("<p>Hello <b>world</b></p>"))
	assert.Equal(t, "a b", stripHTML("<div>a</div>\n\n<div>b</div>"))
}

func TestParseFeedTime(t *testing.T) {
	parsed := parseFeedTime("Mon, 02 Mar 2026 10:00:00 +0000")
	assert.Equal(t, 2026, parsed.Year())

	parsed = parseFeedTime("2026-03-02T10:00:00Z")
	assert.Equal(t, time.March, parsed.Month())

	// Unparseable timestamps degrade to now rather than zero.
	parsed = parseFeedTime("not a date")
	assert.WithinDuration(t, time.Now(), parsed, time.Minute)
}

func TestTweetToRawItem(t *testing.T) {
	tweet := twitterTweet{
		ID:           "123",
		Text:         "hello world",
		CreatedAt:    "Mon Mar 02 10:00:00 +0000 2026",
		LikeCount:    10,
		RetweetCount: 2,
		ReplyCount:   1,
		ViewCount:    5000,
	}
	tweet.Author.UserName = "tester"
	tweet.Author.ID = "u1"

	item := tweetToRawItem(tweet)
	assert.Equal(t, "twitter", item.Source)
	assert.Equal(t, "123", item.SourceItemID)
	assert.Equal(t, "tester", item.Author)
	assert.Equal(t, int64(10), item.Metrics.Likes)
	assert.Equal(t, int64(2), item.Metrics.Shares)
	assert.Equal(t, "https://twitter.com/i/status/123", item.URL)
	assert.Equal(t, 2026, item.PublishedAt.Year())
}

func TestParseCount(t *testing.T) {
	assert.Equal(t, int64(12345), parseCount("12345"))
	assert.Equal(t, int64(0), parseCount(""))
	assert.Equal(t, int64(0), parseCount("n/a"))
}
