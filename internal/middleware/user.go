// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

type contextKey string

// userIDContextKey はコンテキストに格納するユーザーIDのキー。
const userIDContextKey contextKey = "user_id"

// userIDHeader は認証プロキシが設定するユーザーIDヘッダー。
// 認証自体は外側のレイヤーが担い、このアプリは検証済みのIDを信頼する。
const userIDHeader = "X-User-ID"

// ErrNoUserID はコンテキストにユーザーIDがない場合のエラー。
var ErrNoUserID = errors.New("no user id in context")

// NewUserIDMiddleware はX-User-IDヘッダーからユーザーIDを取り出して
// コンテキストに格納するミドルウェアを返す。ヘッダーがない場合は401を返す。
func NewUserIDMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(userIDHeader))
			if userID == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// WithUserID はユーザーIDを格納したコンテキストを返す。
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// UserIDFromContext はコンテキストからユーザーIDを取り出す。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", ErrNoUserID
	}
	return userID, nil
}
