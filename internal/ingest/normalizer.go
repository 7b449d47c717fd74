package ingest

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-support/internal/domain"
	"github.com/spec-kit/marketplace-support/internal/wbapi"
)

const (
	sellerAuthorName   = "admin (seller)"
	anonymousUserName  = "Пользователь предпочёл скрыть свои данные"
	reviewConsoleURL   = "https://seller.wildberries.ru/feedbacks-questions/feedbacks"
	maxTitleHintLength = 255
)

// Normalizer converts raw feed entries into ticket updates. Attachment
// resolution is delegated so normalization stays testable without network
// access.
type Normalizer struct {
	attachments AttachmentResolver
	logger      *zap.Logger
}

// NewNormalizer constructs a normalizer.
func NewNormalizer(attachments AttachmentResolver, logger *zap.Logger) *Normalizer {
	return &Normalizer{attachments: attachments, logger: logger}
}

// FromChatEvent normalizes one buyer-chat event. The caller has already
// filtered refunds and message-less events.
func (n *Normalizer) FromChatEvent(ctx context.Context, e wbapi.ChatEvent) domain.TicketUpdate {
	authorType := domain.AuthorUnknown
	authorName := e.ClientID
	switch e.Sender {
	case "seller":
		authorType = domain.AuthorSeller
		authorName = sellerAuthorName
	case "client":
		authorType = domain.AuthorCustomer
		authorName = e.ClientName
	}

	return domain.TicketUpdate{
		ExternalEventID:  e.ExternalEventID(),
		ExternalTicketID: e.ChatID,
		Kind:             domain.FeedKindChat,
		AuthorType:       authorType,
		AuthorName:       authorName,
		BodyHTML:         n.chatBody(ctx, e.Message),
		CreatedAt:        e.AddTime,
		OpensTicket:      e.IsNewChat,
		TitleHint:        titleHint(e.Message.Text),
		HasText:          strings.TrimSpace(e.Message.Text) != "",
	}
}

// FromQuestion normalizes one unanswered question.
func (n *Normalizer) FromQuestion(q wbapi.Question) domain.TicketUpdate {
	hint := q.Text
	if q.ProductDetails.ProductName != "" {
		hint = fmt.Sprintf("Question about %s", q.ProductDetails.ProductName)
	}
	return domain.TicketUpdate{
		ExternalEventID:  q.ID,
		ExternalTicketID: q.ID,
		Kind:             domain.FeedKindQuestion,
		AuthorType:       domain.AuthorCustomer,
		AuthorName:       "Customer",
		BodyHTML:         "<p>" + html.EscapeString(q.Text) + "</p>",
		CreatedAt:        q.CreatedDate,
		OpensTicket:      true,
		TitleHint:        titleHint(hint),
		HasText:          strings.TrimSpace(q.Text) != "",
	}
}

// FromReview normalizes one unanswered review.
func (n *Normalizer) FromReview(ctx context.Context, r wbapi.Review) domain.TicketUpdate {
	hint := fmt.Sprintf("Review: %d stars", r.ProductValuation)
	if r.ProductDetails.ProductName != "" {
		hint = fmt.Sprintf("Review for %s", r.ProductDetails.ProductName)
	}
	hasText := strings.TrimSpace(r.Text) != "" ||
		strings.TrimSpace(r.Pros) != "" ||
		strings.TrimSpace(r.Cons) != ""

	return domain.TicketUpdate{
		ExternalEventID:  r.ID,
		ExternalTicketID: r.ID,
		Kind:             domain.FeedKindReview,
		AuthorType:       domain.AuthorCustomer,
		AuthorName:       r.UserName,
		BodyHTML:         n.reviewBody(ctx, r),
		CreatedAt:        r.CreatedDate,
		OpensTicket:      true,
		TitleHint:        titleHint(hint),
		Rating:           r.ProductValuation,
		HasText:          hasText,
	}
}

func (n *Normalizer) chatBody(ctx context.Context, msg *wbapi.ChatMessage) string {
	var b strings.Builder
	if text := strings.TrimSpace(msg.Text); text != "" {
		fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(text))
	}
	if msg.Attachments == nil {
		return b.String()
	}
	for _, f := range msg.Attachments.Files {
		fmt.Fprintf(&b, `<p><a href="%s" target="_blank">%s</a></p>`,
			html.EscapeString(f.URL), html.EscapeString(f.Name))
	}
	for _, img := range msg.Attachments.Images {
		n.appendImage(ctx, &b, img.URL, img.URL)
	}
	return b.String()
}

func (n *Normalizer) reviewBody(ctx context.Context, r wbapi.Review) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<p><a href="%s" target="_blank">Open in seller console</a></p>`, consoleSearchURL(r.ProductDetails.NmID))
	fmt.Fprintf(&b, "<p>Rating: %d/5</p>", r.ProductValuation)
	if text := strings.TrimSpace(r.Text); text != "" {
		fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(text))
	}
	if pros := strings.TrimSpace(r.Pros); pros != "" {
		fmt.Fprintf(&b, "<p>Pros: %s</p>", html.EscapeString(pros))
	}
	if cons := strings.TrimSpace(r.Cons); cons != "" {
		fmt.Fprintf(&b, "<p>Cons: %s</p>", html.EscapeString(cons))
	}
	for _, photo := range r.PhotoLinks {
		n.appendImage(ctx, &b, photo.FullSize, photo.FullSize)
	}
	if r.Video != nil && r.Video.PreviewImage != "" {
		n.appendImage(ctx, &b, r.Video.PreviewImage, consoleSearchURL(r.ProductDetails.NmID))
	}
	return b.String()
}

// appendImage embeds the image inline when the resolver succeeds and drops it
// otherwise.
func (n *Normalizer) appendImage(ctx context.Context, b *strings.Builder, src, href string) {
	uri, err := n.attachments.DataURI(ctx, src)
	if err != nil {
		if n.logger != nil {
			n.logger.Warn("attachment skipped", zap.String("src", src), zap.Error(err))
		}
		return
	}
	fmt.Fprintf(b, `<p><a href="%s" target="_blank"><img src="%s" alt=""/></a></p>`,
		html.EscapeString(href), uri)
}

func consoleSearchURL(nmID int64) string {
	return reviewConsoleURL + "?" + url.Values{"search": {fmt.Sprint(nmID)}}.Encode()
}

func titleHint(text string) string {
	text = strings.TrimSpace(text)
	if runes := []rune(text); len(runes) > maxTitleHintLength {
		text = string(runes[:maxTitleHintLength])
	}
	return text
}
