package wbapi

import "time"

// ChatEvent is one raw entry of the buyer-chat events feed.
type ChatEvent struct {
	EventID    string       `json:"eventID"`
	EventType  string       `json:"eventType"`
	ChatID     string       `json:"chatID"`
	ReplySign  string       `json:"replySign"`
	IsNewChat  bool         `json:"isNewChat"`
	Sender     string       `json:"sender"`
	ClientID   string       `json:"clientID"`
	ClientName string       `json:"clientName"`
	AddTime    time.Time    `json:"addTime"`
	Message    *ChatMessage `json:"message"`
}

// ExternalEventID prefers the reply signature over the event id; the reply
// signature is the stable anchor later used to answer the chat.
func (e ChatEvent) ExternalEventID() string {
	if e.ReplySign != "" {
		return e.ReplySign
	}
	return e.EventID
}

// ChatMessage is the message payload of a chat event.
type ChatMessage struct {
	Text        string           `json:"text"`
	Attachments *ChatAttachments `json:"attachments"`
}

// ChatAttachments groups optional attachments of a chat message.
type ChatAttachments struct {
	Files    []FileAttachment  `json:"files"`
	Images   []ImageAttachment `json:"images"`
	GoodCard *GoodCard         `json:"goodCard"`
}

// FileAttachment is a downloadable file reference.
type FileAttachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ImageAttachment is an image reference.
type ImageAttachment struct {
	URL string `json:"url"`
}

// GoodCard links a chat message to a product card.
type GoodCard struct {
	NmID int64 `json:"nmID"`
}

type chatEventsResponse struct {
	Result struct {
		Events []ChatEvent `json:"events"`
		Next   int64       `json:"next"`
	} `json:"result"`
}

// Question is one raw entry of the unanswered-questions feed.
type Question struct {
	ID             string         `json:"id"`
	Text           string         `json:"text"`
	CreatedDate    time.Time      `json:"createdDate"`
	ProductDetails ProductDetails `json:"productDetails"`
}

type questionsResponse struct {
	Data struct {
		Questions []Question `json:"questions"`
	} `json:"data"`
}

// Review is one raw entry of the unanswered-reviews feed.
type Review struct {
	ID               string         `json:"id"`
	Text             string         `json:"text"`
	Pros             string         `json:"pros"`
	Cons             string         `json:"cons"`
	UserName         string         `json:"userName"`
	ProductValuation int            `json:"productValuation"`
	CreatedDate      time.Time        `json:"createdDate"`
	ProductDetails   ProductDetails   `json:"productDetails"`
	PhotoLinks       []PhotoLink      `json:"photoLinks"`
	Video            *VideoAttachment `json:"video"`
}

type reviewsResponse struct {
	Data struct {
		Feedbacks []Review `json:"feedbacks"`
	} `json:"data"`
}

// ProductDetails identifies the product a question or review refers to.
type ProductDetails struct {
	NmID        int64  `json:"nmId"`
	ProductName string `json:"productName"`
}

// PhotoLink references a review photo.
type PhotoLink struct {
	FullSize string `json:"fullSize"`
}

// VideoAttachment references a review video preview.
type VideoAttachment struct {
	PreviewImage string `json:"previewImage"`
}
