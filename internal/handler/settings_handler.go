package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/castletter/internal/middleware"
	"github.com/hitoshi/castletter/internal/model"
)

// SettingsStore は設定ハンドラーが必要とする永続化インターフェース。
type SettingsStore interface {
	FindByUserID(ctx context.Context, userID string) (*model.UserSettings, error)
	Upsert(ctx context.Context, settings *model.UserSettings) error
}

// SettingsHandler はニュースレター配信設定のHTTPハンドラー。
type SettingsHandler struct {
	store SettingsStore
}

// NewSettingsHandler はSettingsHandlerを生成する。
func NewSettingsHandler(store SettingsStore) *SettingsHandler {
	return &SettingsHandler{store: store}
}

// settingsRequest は設定更新リクエストのボディ。
type settingsRequest struct {
	NewsletterEmail        string `json:"newsletter_email"`
	NewsletterDeliveryHour int    `json:"newsletter_delivery_hour"`
}

// settingsResponse は設定のAPIレスポンス。
type settingsResponse struct {
	NewsletterEmail        string `json:"newsletter_email"`
	NewsletterDeliveryHour int    `json:"newsletter_delivery_hour"`
}

// Get はユーザーの配信設定を取得する。未設定の場合は404を返す。
// GET /api/settings
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	settings, err := h.store.FindByUserID(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err, false)
		return
	}
	if settings == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, &model.APIError{
			Code:     "SETTINGS_NOT_FOUND",
			Message:  "配信設定がまだ登録されていません。",
			Category: "validation",
			Action:   "配信設定を保存してください。",
		})
		return
	}

	writeJSON(w, http.StatusOK, settingsResponse{
		NewsletterEmail:        settings.NewsletterEmail,
		NewsletterDeliveryHour: settings.NewsletterDeliveryHour,
	})
}

// Update はユーザーの配信設定を冪等に保存する。
// PUT /api/settings
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	email := strings.TrimSpace(req.NewsletterEmail)
	if !isValidEmail(email) {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidEmailError())
		return
	}
	if req.NewsletterDeliveryHour < 0 || req.NewsletterDeliveryHour > 23 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidDeliveryHourError(req.NewsletterDeliveryHour))
		return
	}

	now := time.Now().UTC()
	settings := &model.UserSettings{
		ID:                     uuid.New().String(),
		UserID:                 userID,
		NewsletterEmail:        email,
		NewsletterDeliveryHour: req.NewsletterDeliveryHour,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := h.store.Upsert(r.Context(), settings); err != nil {
		handleServiceError(w, err, false)
		return
	}

	writeJSON(w, http.StatusOK, settingsResponse{
		NewsletterEmail:        settings.NewsletterEmail,
		NewsletterDeliveryHour: settings.NewsletterDeliveryHour,
	})
}

// isValidEmail はメールアドレスの形式を検証する。
func isValidEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	// 表示名付きの形式（"Name <a@b>"）は許可しない
	return addr.Address == email
}
