package wbapi

import (
	"context"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-support/internal/domain"
)

// ChatEventsFeed pages through the buyer-chat events feed, oldest first. The
// cursor is a millisecond Unix timestamp advanced by the server; the feed ends
// on the first empty page. Events without a message body and refund events are
// dropped before they reach the caller.
type ChatEventsFeed struct {
	client *Client
	cred   domain.Credential
	next   int64

	buf  []ChatEvent
	idx  int
	done bool
	err  error
}

// ChatEvents starts a feed for one credential. A cursor of zero fetches from
// the beginning of the retention window.
func (c *Client) ChatEvents(cred domain.Credential, next int64) *ChatEventsFeed {
	return &ChatEventsFeed{client: c, cred: cred, next: next}
}

// Next yields the next chat event, fetching further pages as needed. It
// returns false when the feed is exhausted or a page fetch failed; Err
// distinguishes the two.
func (f *ChatEventsFeed) Next(ctx context.Context) (ChatEvent, bool) {
	for {
		if f.idx < len(f.buf) {
			event := f.buf[f.idx]
			f.idx++
			return event, true
		}
		if f.done {
			return ChatEvent{}, false
		}
		if !f.fetchPage(ctx) {
			return ChatEvent{}, false
		}
	}
}

// Err reports the upstream failure that ended the feed, if any. A partial
// sequence already yielded stands.
func (f *ChatEventsFeed) Err() error {
	return f.err
}

func (f *ChatEventsFeed) fetchPage(ctx context.Context) bool {
	query := url.Values{}
	if f.next > 0 {
		query.Set("next", strconv.FormatInt(f.next, 10))
	}

	var page chatEventsResponse
	if err := f.client.getJSON(ctx, f.cred, f.client.chatBaseURL, "/api/v1/seller/events", query, &page); err != nil {
		f.client.logger.Error("fetching chat events failed",
			zap.String("credential", f.cred.ID),
			zap.Int64("next", f.next),
			zap.Error(err))
		f.err = err
		f.done = true
		return false
	}

	if len(page.Result.Events) == 0 {
		f.done = true
		return false
	}

	f.buf = f.buf[:0]
	for _, event := range page.Result.Events {
		if event.Message == nil || event.EventType == "refund" {
			continue
		}
		f.buf = append(f.buf, event)
	}
	f.idx = 0
	f.next = page.Result.Next
	return true
}
