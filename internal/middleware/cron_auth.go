package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

// NewCronAuthMiddleware はcronエンドポイント用のBearerトークン認証
// ミドルウェアを返す。トークンが一致しない場合は副作用なしで401を返す。
// レスポンスボディは攻撃者に情報を与えないよう固定文字列とする。
func NewCronAuthMiddleware(secret string, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				logger.Warn("cron認証に失敗しました",
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
				)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
