package wbapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-support/internal/config"
	"github.com/spec-kit/marketplace-support/internal/domain"
)

func testClient(t *testing.T, srv *httptest.Server, allowMutations bool) *Client {
	t.Helper()
	return NewClient(config.WildberriesConfig{
		ChatBaseURL:       srv.URL,
		FeedbacksBaseURL:  srv.URL,
		RequestTimeoutSec: 5,
	}, allowMutations, zap.NewNop())
}

func testCred() domain.Credential {
	return domain.Credential{ID: "cred-1", ProfileID: "p1", Token: "token-abc", Active: true}
}

func TestChatEventsFeedPagesAndFilters(t *testing.T) {
	var requests []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/seller/events" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "token-abc" {
			t.Errorf("authorization = %q", got)
		}
		next := r.URL.Query().Get("next")
		requests = append(requests, next)

		w.Header().Set("Content-Type", "application/json")
		if next == "" {
			fmt.Fprint(w, `{"result":{"events":[
				{"eventID":"e1","eventType":"message","chatID":"chat-1","replySign":"sign-1","sender":"client","clientName":"Anna","message":{"text":"hello"}},
				{"eventID":"e2","eventType":"refund","chatID":"chat-1","message":{"text":"refund requested"}},
				{"eventID":"e3","eventType":"message","chatID":"chat-1"},
				{"eventID":"e4","eventType":"message","chatID":"chat-2","sender":"seller","message":{"text":"shipped"}}
			],"next":111}}`)
			return
		}
		fmt.Fprint(w, `{"result":{"events":[],"next":222}}`)
	}))
	defer srv.Close()

	client := testClient(t, srv, false)
	feed := client.ChatEvents(testCred(), 0)

	var ids []string
	for {
		event, ok := feed.Next(context.Background())
		if !ok {
			break
		}
		ids = append(ids, event.EventID)
	}
	if err := feed.Err(); err != nil {
		t.Fatalf("feed error: %v", err)
	}

	if len(ids) != 2 || ids[0] != "e1" || ids[1] != "e4" {
		t.Errorf("yielded events = %v, want [e1 e4]", ids)
	}
	if len(requests) != 2 || requests[0] != "" || requests[1] != "111" {
		t.Errorf("cursor progression = %v, want [ 111]", requests)
	}
}

func TestChatEventExternalEventIDPrefersReplySign(t *testing.T) {
	event := ChatEvent{EventID: "e1", ReplySign: "sign-1"}
	if got := event.ExternalEventID(); got != "sign-1" {
		t.Errorf("got %q, want sign-1", got)
	}
	event.ReplySign = ""
	if got := event.ExternalEventID(); got != "e1" {
		t.Errorf("got %q, want e1", got)
	}
}

func TestChatEventsFeedSurfacesUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	feed := testClient(t, srv, false).ChatEvents(testCred(), 0)
	if _, ok := feed.Next(context.Background()); ok {
		t.Fatal("expected no events")
	}
	var statusErr *StatusError
	if !errors.As(feed.Err(), &statusErr) || statusErr.Code != http.StatusUnauthorized {
		t.Errorf("err = %v, want StatusError 401", feed.Err())
	}
}

func TestQuestionsFeedStopsOnShortPage(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		q := r.URL.Query()
		if q.Get("isAnswered") != "false" {
			t.Errorf("isAnswered = %q", q.Get("isAnswered"))
		}
		if q.Get("take") != "10000" || q.Get("skip") != "0" {
			t.Errorf("take/skip = %s/%s", q.Get("take"), q.Get("skip"))
		}
		if q.Get("dateFrom") != "1700000000" {
			t.Errorf("dateFrom = %q", q.Get("dateFrom"))
		}
		fmt.Fprint(w, `{"data":{"questions":[
			{"id":"q1","text":"Does it shrink?"},
			{"id":"q2","text":"What size?"}
		]}}`)
	}))
	defer srv.Close()

	feed := testClient(t, srv, false).Questions(testCred(), 1700000000)
	var ids []string
	for {
		question, ok := feed.Next(context.Background())
		if !ok {
			break
		}
		ids = append(ids, question.ID)
	}
	if err := feed.Err(); err != nil {
		t.Fatalf("feed error: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("got %d questions, want 2", len(ids))
	}
	if calls != 1 {
		t.Errorf("made %d requests, want 1 for a short page", calls)
	}
}

func TestReviewsFeedStopsOnEmptyPageAndAdvancesSkip(t *testing.T) {
	var skips []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		skip := r.URL.Query().Get("skip")
		skips = append(skips, skip)
		if skip == "0" {
			fmt.Fprint(w, `{"data":{"feedbacks":[
				{"id":"r1","text":"great","productValuation":5},
				{"id":"r2","text":"","productValuation":2}
			]}}`)
			return
		}
		fmt.Fprint(w, `{"data":{"feedbacks":[]}}`)
	}))
	defer srv.Close()

	feed := testClient(t, srv, false).Reviews(testCred(), 0)
	var count int
	for {
		if _, ok := feed.Next(context.Background()); !ok {
			break
		}
		count++
	}
	if err := feed.Err(); err != nil {
		t.Fatalf("feed error: %v", err)
	}
	if count != 2 {
		t.Errorf("got %d reviews, want 2", count)
	}
	if len(skips) != 2 || skips[1] != "5000" {
		t.Errorf("skip progression = %v, want [0 5000]", skips)
	}
}

func TestPageCacheCollapsesRepeatFetches(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"result":{"events":[],"next":0}}`)
	}))
	defer srv.Close()

	client := testClient(t, srv, false)
	for i := 0; i < 3; i++ {
		feed := client.ChatEvents(testCred(), 0)
		if _, ok := feed.Next(context.Background()); ok {
			t.Fatal("expected empty feed")
		}
	}
	if calls != 1 {
		t.Errorf("upstream saw %d requests, want 1 within the cache window", calls)
	}
}

func TestMutationsDisabledOutsideProduction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected with mutations disabled")
	}))
	defer srv.Close()

	client := testClient(t, srv, false)
	if err := client.ReplyToChat(context.Background(), testCred(), "sign-1", "hi"); !errors.Is(err, ErrMutationsDisabled) {
		t.Errorf("ReplyToChat err = %v, want ErrMutationsDisabled", err)
	}
	if err := client.ReplyToReview(context.Background(), testCred(), "r1", "thanks"); !errors.Is(err, ErrMutationsDisabled) {
		t.Errorf("ReplyToReview err = %v, want ErrMutationsDisabled", err)
	}
}

func TestReplyEndpointsSendExpectedPayloads(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		switch r.URL.Path {
		case "/api/v1/seller/message":
			if r.Method != http.MethodPost || body["replySign"] != "sign-1" {
				t.Errorf("chat reply: method=%s body=%v", r.Method, body)
			}
		case "/api/v1/questions":
			if r.Method != http.MethodPatch || body["state"] != "wbRu" {
				t.Errorf("question reply: method=%s body=%v", r.Method, body)
			}
		case "/api/v1/feedbacks/answer":
			if r.Method != http.MethodPost || body["id"] != "r1" {
				t.Errorf("review reply: method=%s body=%v", r.Method, body)
			}
			w.WriteHeader(http.StatusNoContent)
			return
		case "/api/v1/feedbacks/questions":
			if r.Method != http.MethodPatch || body["wasViewed"] != true {
				t.Errorf("mark viewed: method=%s body=%v", r.Method, body)
			}
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := testClient(t, srv, true)
	ctx := context.Background()
	cred := testCred()

	if err := client.ReplyToChat(ctx, cred, "sign-1", "hello"); err != nil {
		t.Errorf("ReplyToChat: %v", err)
	}
	if err := client.ReplyToQuestion(ctx, cred, "q1", "answer", QuestionStateAnswered); err != nil {
		t.Errorf("ReplyToQuestion: %v", err)
	}
	if err := client.ReplyToReview(ctx, cred, "r1", "thanks"); err != nil {
		t.Errorf("ReplyToReview: %v", err)
	}
	if err := client.MarkQuestionViewed(ctx, cred, "q1"); err != nil {
		t.Errorf("MarkQuestionViewed: %v", err)
	}
}
