package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/castletter/internal/middleware"
	"github.com/hitoshi/castletter/internal/model"
)

type stubSubscriptionService struct {
	subscribeResult *model.Subscription
	subscribeErr    error
	listResult      []*model.Subscription
	unsubscribeErr  error
	unsubscribedID  string
}

func (s *stubSubscriptionService) Subscribe(ctx context.Context, userID, feedURL string) (*model.Subscription, error) {
	if s.subscribeErr != nil {
		return nil, s.subscribeErr
	}
	return s.subscribeResult, nil
}

func (s *stubSubscriptionService) Unsubscribe(ctx context.Context, userID, subscriptionID string) error {
	if s.unsubscribeErr != nil {
		return s.unsubscribeErr
	}
	s.unsubscribedID = subscriptionID
	return nil
}

func (s *stubSubscriptionService) List(ctx context.Context, userID string) ([]*model.Subscription, error) {
	return s.listResult, nil
}

func authedRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	return req.WithContext(middleware.WithUserID(req.Context(), "user-1"))
}

func TestSubscribe_CreatesSubscription(t *testing.T) {
	service := &stubSubscriptionService{subscribeResult: &model.Subscription{
		ID:        "sub-1",
		FeedURL:   "https://example.com/feed.xml",
		Title:     "Testcast",
		CreatedAt: time.Now().UTC(),
	}}
	h := NewSubscriptionHandler(service)

	rec := httptest.NewRecorder()
	h.Subscribe(rec, authedRequest(http.MethodPost, "/api/subscriptions", `{"feed_url": "https://example.com/feed.xml"}`))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp subscriptionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("body decode failed: %v", err)
	}
	if resp.ID != "sub-1" || resp.Title != "Testcast" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestSubscribe_DuplicateReturns409(t *testing.T) {
	service := &stubSubscriptionService{subscribeErr: model.NewDuplicateSubscriptionError()}
	h := NewSubscriptionHandler(service)

	rec := httptest.NewRecorder()
	h.Subscribe(rec, authedRequest(http.MethodPost, "/api/subscriptions", `{"feed_url": "https://example.com/feed.xml"}`))

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestSubscribe_LimitReturns403(t *testing.T) {
	service := &stubSubscriptionService{subscribeErr: model.NewSubscriptionLimitError()}
	h := NewSubscriptionHandler(service)

	rec := httptest.NewRecorder()
	h.Subscribe(rec, authedRequest(http.MethodPost, "/api/subscriptions", `{"feed_url": "https://example.com/feed.xml"}`))

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestSubscribe_InvalidURLReturns400(t *testing.T) {
	h := NewSubscriptionHandler(&stubSubscriptionService{})

	rec := httptest.NewRecorder()
	h.Subscribe(rec, authedRequest(http.MethodPost, "/api/subscriptions", `{"feed_url": "not a url"}`))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestList_ReturnsSubscriptions(t *testing.T) {
	service := &stubSubscriptionService{listResult: []*model.Subscription{
		{ID: "sub-1", Title: "Cast A", FeedURL: "https://a.example.com/feed.xml"},
		{ID: "sub-2", Title: "Cast B", FeedURL: "https://b.example.com/feed.xml"},
	}}
	h := NewSubscriptionHandler(service)

	rec := httptest.NewRecorder()
	h.List(rec, authedRequest(http.MethodGet, "/api/subscriptions", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp []subscriptionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("body decode failed: %v", err)
	}
	if len(resp) != 2 {
		t.Errorf("got %d subscriptions, want 2", len(resp))
	}
}

func TestList_EmptyReturnsEmptyArray(t *testing.T) {
	h := NewSubscriptionHandler(&stubSubscriptionService{})

	rec := httptest.NewRecorder()
	h.List(rec, authedRequest(http.MethodGet, "/api/subscriptions", ""))

	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("body = %q, want []", body)
	}
}

func TestUnsubscribe_Returns204(t *testing.T) {
	service := &stubSubscriptionService{}
	r := chi.NewRouter()
	r.Delete("/api/subscriptions/{id}", NewSubscriptionHandler(service).Unsubscribe)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authedRequest(http.MethodDelete, "/api/subscriptions/sub-1", ""))

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if service.unsubscribedID != "sub-1" {
		t.Errorf("unsubscribedID = %q", service.unsubscribedID)
	}
}

func TestUnsubscribe_NotFoundReturns404(t *testing.T) {
	service := &stubSubscriptionService{unsubscribeErr: model.NewSubscriptionNotFoundError("sub-x")}
	r := chi.NewRouter()
	r.Delete("/api/subscriptions/{id}", NewSubscriptionHandler(service).Unsubscribe)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authedRequest(http.MethodDelete, "/api/subscriptions/sub-x", ""))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSubscribe_WithoutUserReturns401(t *testing.T) {
	h := NewSubscriptionHandler(&stubSubscriptionService{})

	req := httptest.NewRequest(http.MethodPost, "/api/subscriptions", strings.NewReader(`{"feed_url": "https://example.com/feed.xml"}`))
	rec := httptest.NewRecorder()
	h.Subscribe(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
