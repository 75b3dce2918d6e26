package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/castletter/internal/middleware"
	"github.com/hitoshi/castletter/internal/model"
)

// FeedPreviewer はフィード検証ハンドラーが必要とするサービスインターフェース。
type FeedPreviewer interface {
	// Preview はフィードURLを検証し、プレビュー用メタデータを返す。
	Preview(ctx context.Context, feedURL string) (*model.FeedPreview, error)
}

// PodcastHandler はフィード検証のHTTPハンドラー。
type PodcastHandler struct {
	previewer FeedPreviewer
}

// NewPodcastHandler はPodcastHandlerを生成する。
func NewPodcastHandler(previewer FeedPreviewer) *PodcastHandler {
	return &PodcastHandler{previewer: previewer}
}

// validateRequest はフィード検証リクエストのボディ。
type validateRequest struct {
	URL string `json:"url"`
}

// previewResponse はフィード検証のAPIレスポンス。
type previewResponse struct {
	Title         string  `json:"title"`
	Description   *string `json:"description,omitempty"`
	CoverImageURL *string `json:"cover_image_url,omitempty"`
	FeedURL       string  `json:"feed_url"`
}

// Validate はフィードURLを検証し、プレビューを返す。
// データベースには一切書き込まない。
// POST /api/podcasts/validate
func (h *PodcastHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	feedURL := strings.TrimSpace(req.URL)
	if reason, ok := validateFeedURL(feedURL); !ok {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError(reason))
		return
	}

	preview, err := h.previewer.Preview(r.Context(), feedURL)
	if err != nil {
		handleServiceError(w, err, true)
		return
	}

	writeJSON(w, http.StatusOK, previewResponse{
		Title:         preview.Title,
		Description:   preview.Description,
		CoverImageURL: preview.CoverImageURL,
		FeedURL:       preview.FeedURL,
	})
}

// validateFeedURL はフィードURLの形式を検証する。
// 不正な場合は理由を返す。
func validateFeedURL(feedURL string) (string, bool) {
	if feedURL == "" {
		return "URLが空です", false
	}
	parsed, err := url.Parse(feedURL)
	if err != nil {
		return "URLとして解析できません", false
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "http/https以外のスキームです", false
	}
	if parsed.Host == "" {
		return "ホストがありません", false
	}
	return "", true
}
