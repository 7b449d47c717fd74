package wbapi

import (
	"context"
	"net/http"

	"github.com/spec-kit/marketplace-support/internal/domain"
)

// QuestionState is the moderation state sent with a question answer.
type QuestionState string

const (
	// QuestionStateAnswered publishes the answer on the customer portal.
	QuestionStateAnswered QuestionState = "wbRu"
	// QuestionStateRejected declines the question without a visible answer.
	QuestionStateRejected QuestionState = "none"
)

// ReplyToChat posts a seller message into a buyer chat identified by its
// reply signature. Message is plain text, 1 to 1000 characters.
func (c *Client) ReplyToChat(ctx context.Context, cred domain.Credential, replySign, message string) error {
	payload := map[string]string{
		"replySign": replySign,
		"message":   message,
	}
	return c.sendJSON(ctx, cred, http.MethodPost, c.chatBaseURL, "/api/v1/seller/message", payload, http.StatusOK)
}

// ReplyToQuestion answers or rejects a question.
func (c *Client) ReplyToQuestion(ctx context.Context, cred domain.Credential, questionID, text string, state QuestionState) error {
	payload := map[string]any{
		"id": questionID,
		"answer": map[string]string{
			"text": text,
		},
		"state": string(state),
	}
	return c.sendJSON(ctx, cred, http.MethodPatch, c.feedbacksBaseURL, "/api/v1/questions", payload, http.StatusOK)
}

// ReplyToReview posts an answer to a review. The platform responds 204 on
// success.
func (c *Client) ReplyToReview(ctx context.Context, cred domain.Credential, reviewID, text string) error {
	payload := map[string]string{
		"id":   reviewID,
		"text": text,
	}
	return c.sendJSON(ctx, cred, http.MethodPost, c.feedbacksBaseURL, "/api/v1/feedbacks/answer", payload, http.StatusNoContent)
}

// MarkQuestionViewed flags a question as seen by the seller.
func (c *Client) MarkQuestionViewed(ctx context.Context, cred domain.Credential, questionID string) error {
	payload := map[string]any{
		"id":        questionID,
		"wasViewed": true,
	}
	return c.sendJSON(ctx, cred, http.MethodPatch, c.feedbacksBaseURL, "/api/v1/feedbacks/questions", payload, http.StatusOK)
}
