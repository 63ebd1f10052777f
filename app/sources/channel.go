package sources

import (
	"context"
	"strconv"
	"strings"
)

var _ Adapter = (*ChannelAdapter)(nil)

// ChannelAdapter pulls posts from messaging channels through the shared
// session manager. The channel-native message id is the stable external
// identifier.
type ChannelAdapter struct {
	session *SessionManager
}

func NewChannelAdapter(session *SessionManager) *ChannelAdapter {
	return &ChannelAdapter{session: session}
}

func (a *ChannelAdapter) Fetch(ctx context.Context, source Source, limit int) ([]RawItem, error) {
	client, err := a.session.Client(ctx)
	if err != nil {
		return nil, err
	}

	messages, err := client.ChannelMessages(ctx, source.Address, limit)
	if err != nil {
		return nil, NewTransientError(source.ID, err)
	}

	items := make([]RawItem, 0, len(messages))
	for _, msg := range messages {
		if msg.ID == 0 {
			continue
		}
		items = append(items, a.normalizeMessage(source, msg))
	}

	return items, nil
}

func (a *ChannelAdapter) normalizeMessage(source Source, msg ChannelMessage) RawItem {
	body := StripHTML(msg.Text)

	return RawItem{
		SourceID:    source.ID,
		ExternalID:  strconv.FormatInt(msg.ID, 10),
		Title:       messageTitle(body),
		Body:        body,
		PublishedAt: unixTime(msg.Date),
		Meta:        map[string]string{"channel": source.Address},
	}
}

// messageTitle derives a short title from the first line of a post.
func messageTitle(body string) string {
	line := body
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimSpace(line)

	const maxTitle = 120
	if len(line) > maxTitle {
		cut := strings.LastIndexByte(line[:maxTitle], ' ')
		if cut <= 0 {
			cut = maxTitle
		}
		line = line[:cut] + "…"
	}

	return line
}
