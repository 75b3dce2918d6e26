package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/castletter/internal/middleware"
	"github.com/hitoshi/castletter/internal/model"
)

// SubscriptionServiceInterface は購読ハンドラーが必要とするサービスインターフェース。
type SubscriptionServiceInterface interface {
	// Subscribe はフィードを検証したうえでユーザーの購読を作成する。
	Subscribe(ctx context.Context, userID, feedURL string) (*model.Subscription, error)
	// Unsubscribe はユーザーの購読を削除する。
	Unsubscribe(ctx context.Context, userID, subscriptionID string) error
	// List はユーザーの購読一覧を返す。
	List(ctx context.Context, userID string) ([]*model.Subscription, error)
}

// SubscriptionHandler は購読管理のHTTPハンドラー。
type SubscriptionHandler struct {
	service SubscriptionServiceInterface
}

// NewSubscriptionHandler はSubscriptionHandlerを生成する。
func NewSubscriptionHandler(service SubscriptionServiceInterface) *SubscriptionHandler {
	return &SubscriptionHandler{service: service}
}

// subscribeRequest は購読作成リクエストのボディ。
type subscribeRequest struct {
	FeedURL string `json:"feed_url"`
}

// subscriptionResponse は購読情報のAPIレスポンス。
type subscriptionResponse struct {
	ID            string    `json:"id"`
	FeedURL       string    `json:"feed_url"`
	Title         string    `json:"title"`
	Description   *string   `json:"description,omitempty"`
	CoverImageURL *string   `json:"cover_image_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func toSubscriptionResponse(sub *model.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:            sub.ID,
		FeedURL:       sub.FeedURL,
		Title:         sub.Title,
		Description:   sub.Description,
		CoverImageURL: sub.CoverImageURL,
		CreatedAt:     sub.CreatedAt,
	}
}

// Subscribe はフィードを購読する。
// POST /api/subscriptions
func (h *SubscriptionHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	feedURL := strings.TrimSpace(req.FeedURL)
	if reason, ok := validateFeedURL(feedURL); !ok {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError(reason))
		return
	}

	sub, err := h.service.Subscribe(r.Context(), userID, feedURL)
	if err != nil {
		handleServiceError(w, err, true)
		return
	}

	writeJSON(w, http.StatusCreated, toSubscriptionResponse(sub))
}

// List はユーザーの購読一覧を取得する。
// GET /api/subscriptions
func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	subs, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err, false)
		return
	}

	out := make([]subscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		out = append(out, toSubscriptionResponse(sub))
	}
	writeJSON(w, http.StatusOK, out)
}

// Unsubscribe は購読を解除する。
// 関連するエピソードとニュースレターもあわせて削除される。
// DELETE /api/subscriptions/{id}
func (h *SubscriptionHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	subscriptionID := chi.URLParam(r, "id")
	if err := h.service.Unsubscribe(r.Context(), userID, subscriptionID); err != nil {
		handleServiceError(w, err, false)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
