package wbapi

import (
	"context"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-support/internal/domain"
)

// QuestionPageSize is the fixed page size of the unanswered-questions feed.
const QuestionPageSize = 10000

// QuestionsFeed pages through unanswered questions with skip/take pagination.
// The feed ends when a page comes back shorter than the page size.
type QuestionsFeed struct {
	client *Client
	cred   domain.Credential
	from   int64
	skip   int

	buf  []Question
	idx  int
	done bool
	err  error
}

// Questions starts a feed for one credential. from is a Unix timestamp lower
// bound; zero fetches the full history.
func (c *Client) Questions(cred domain.Credential, from int64) *QuestionsFeed {
	return &QuestionsFeed{client: c, cred: cred, from: from}
}

// Next yields the next unanswered question, fetching further pages as needed.
func (f *QuestionsFeed) Next(ctx context.Context) (Question, bool) {
	for {
		if f.idx < len(f.buf) {
			question := f.buf[f.idx]
			f.idx++
			return question, true
		}
		if f.done {
			return Question{}, false
		}
		if !f.fetchPage(ctx) {
			return Question{}, false
		}
	}
}

// Err reports the upstream failure that ended the feed, if any.
func (f *QuestionsFeed) Err() error {
	return f.err
}

func (f *QuestionsFeed) fetchPage(ctx context.Context) bool {
	query := url.Values{}
	query.Set("isAnswered", "false")
	query.Set("take", strconv.Itoa(QuestionPageSize))
	query.Set("skip", strconv.Itoa(f.skip))
	if f.from > 0 {
		query.Set("dateFrom", strconv.FormatInt(f.from, 10))
	}

	var page questionsResponse
	if err := f.client.getJSON(ctx, f.cred, f.client.feedbacksBaseURL, "/api/v1/questions", query, &page); err != nil {
		f.client.logger.Error("fetching questions failed",
			zap.String("credential", f.cred.ID),
			zap.Int("skip", f.skip),
			zap.Error(err))
		f.err = err
		f.done = true
		return false
	}

	questions := page.Data.Questions
	if len(questions) < QuestionPageSize {
		f.done = true
	}
	if len(questions) == 0 {
		return false
	}

	f.buf = questions
	f.idx = 0
	f.skip += QuestionPageSize
	return true
}
