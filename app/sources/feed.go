package sources

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

var _ Adapter = (*FeedAdapter)(nil)

// FeedAdapter fetches RSS/Atom feeds over HTTP and normalizes entries.
type FeedAdapter struct {
	httpClient   *http.Client
	gofeedParser *gofeed.Parser
	userAgent    string
}

func NewFeedAdapter(httpClient *http.Client, userAgent string) *FeedAdapter {
	return &FeedAdapter{
		httpClient:   httpClient,
		gofeedParser: gofeed.NewParser(),
		userAgent:    userAgent,
	}
}

func (a *FeedAdapter) Fetch(ctx context.Context, source Source, limit int) ([]RawItem, error) {
	data, err := a.download(ctx, source.Address)
	if err != nil {
		return nil, NewTransientError(source.ID, err)
	}

	parsed, err := a.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, NewParseError(source.ID, fmt.Errorf("failed to parse feed: %w", err))
	}

	entries := parsed.Items
	if limit > 0 && len(entries) > limit {
		// Feeds list newest entries first; the tail is deep history.
		entries = entries[:limit]
	}

	feedTitle := strings.TrimSpace(parsed.Title)

	items := make([]RawItem, 0, len(entries))
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		item := a.normalizeEntry(source, entry)
		if feedTitle != "" {
			// The feed's own title rides along so unnamed sources can be
			// backfilled with a display name.
			item.Meta["source_name"] = feedTitle
		}
		items = append(items, item)
	}

	return items, nil
}

func (a *FeedAdapter) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

func (a *FeedAdapter) normalizeEntry(source Source, entry *gofeed.Item) RawItem {
	item := RawItem{
		SourceID:   source.ID,
		ExternalID: cmp.Or(entry.GUID, entry.Link),
		Title:      strings.TrimSpace(entry.Title),
		Body:       StripHTML(cmp.Or(entry.Content, entry.Description)),
		Meta:       map[string]string{"link": entry.Link},
	}

	if entry.PublishedParsed != nil {
		item.PublishedAt = entry.PublishedParsed.UTC()
	} else if entry.UpdatedParsed != nil {
		item.PublishedAt = entry.UpdatedParsed.UTC()
	}

	if len(entry.Authors) > 0 && entry.Authors[0] != nil {
		item.Meta["author"] = entry.Authors[0].Name
	}
	if len(entry.Categories) > 0 {
		item.Meta["categories"] = strings.Join(entry.Categories, ", ")
	}

	return item
}

// StripHTML reduces markup to plain text with collapsed whitespace.
// Payloads that fail to parse are returned trimmed as-is.
func StripHTML(s string) string {
	if !strings.Contains(s, "<") {
		return strings.TrimSpace(s)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}

	return strings.Join(strings.Fields(doc.Text()), " ")
}
