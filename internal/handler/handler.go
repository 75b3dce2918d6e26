// Package handler はHTTP APIのハンドラーとルーティングを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hitoshi/castletter/internal/middleware"
	"github.com/hitoshi/castletter/internal/model"
)

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// writeInvalidRequestBody はリクエストボディのパース失敗レスポンスを書き込む。
func writeInvalidRequestBody(w http.ResponseWriter) {
	middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	})
}

// writeUnauthorized は認証エラーレスポンスを書き込む。
func writeUnauthorized(w http.ResponseWriter) {
	middleware.WriteErrorResponse(w, http.StatusUnauthorized, &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	})
}

// handleServiceError はサービス層のエラーをHTTPレスポンスに変換する。
// APIErrorはコードに応じたステータスで返し、フィード取得系の失敗は
// 422として返す。それ以外は詳細を漏らさず500を返す。
func handleServiceError(w http.ResponseWriter, err error, feedFetch bool) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, middleware.StatusForAPIError(apiErr), apiErr)
		return
	}
	if feedFetch {
		middleware.WriteErrorResponse(w, http.StatusUnprocessableEntity,
			model.NewFetchFailedError("フィードを取得または解析できませんでした"))
		return
	}
	middleware.WriteInternalServerError(w)
}
