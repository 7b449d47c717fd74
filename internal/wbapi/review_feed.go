package wbapi

import (
	"context"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-support/internal/domain"
)

// ReviewPageSize is the fixed page size of the unanswered-reviews feed.
const ReviewPageSize = 5000

// ReviewsFeed pages through unanswered reviews with skip/take pagination. The
// feed ends on the first empty page.
type ReviewsFeed struct {
	client *Client
	cred   domain.Credential
	from   int64
	skip   int

	buf  []Review
	idx  int
	done bool
	err  error
}

// Reviews starts a feed for one credential. from is a Unix timestamp lower
// bound; zero fetches the full history.
func (c *Client) Reviews(cred domain.Credential, from int64) *ReviewsFeed {
	return &ReviewsFeed{client: c, cred: cred, from: from}
}

// Next yields the next unanswered review, fetching further pages as needed.
func (f *ReviewsFeed) Next(ctx context.Context) (Review, bool) {
	for {
		if f.idx < len(f.buf) {
			review := f.buf[f.idx]
			f.idx++
			return review, true
		}
		if f.done {
			return Review{}, false
		}
		if !f.fetchPage(ctx) {
			return Review{}, false
		}
	}
}

// Err reports the upstream failure that ended the feed, if any.
func (f *ReviewsFeed) Err() error {
	return f.err
}

func (f *ReviewsFeed) fetchPage(ctx context.Context) bool {
	query := url.Values{}
	query.Set("isAnswered", "false")
	query.Set("take", strconv.Itoa(ReviewPageSize))
	query.Set("skip", strconv.Itoa(f.skip))
	if f.from > 0 {
		query.Set("dateFrom", strconv.FormatInt(f.from, 10))
	}

	var page reviewsResponse
	if err := f.client.getJSON(ctx, f.cred, f.client.feedbacksBaseURL, "/api/v1/feedbacks", query, &page); err != nil {
		f.client.logger.Error("fetching reviews failed",
			zap.String("credential", f.cred.ID),
			zap.Int("skip", f.skip),
			zap.Error(err))
		f.err = err
		f.done = true
		return false
	}

	if len(page.Data.Feedbacks) == 0 {
		f.done = true
		return false
	}

	f.buf = page.Data.Feedbacks
	f.idx = 0
	f.skip += ReviewPageSize
	return true
}
