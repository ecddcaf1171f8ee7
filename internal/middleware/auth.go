// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/deskbot/internal/model"
)

// SessionCookieName はIdPが発行するセッショントークンを保持するCookie名。
const SessionCookieName = "__session"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// callerIDContextKey はリクエストコンテキストに呼び出し元の外部認証IDを格納するためのキー。
var callerIDContextKey = contextKey("caller_id")

// TokenVerifier はセッショントークンを検証し、呼び出し元の外部認証IDを返す。
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// NewAuthMiddleware はAuthorizationヘッダー（Bearer）または__session Cookieから
// トークンを読み取り、検証するミドルウェアを返す。
// 呼び出し元の外部認証IDをリクエストコンテキストに注入する。
// 未認証リクエストには後続のハンドラーを呼ばずに401を返す。
func NewAuthMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r)
			if token == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			callerID, err := verifier.Verify(token)
			if err != nil {
				slog.Debug("token verification failed",
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithCallerID(r.Context(), callerID)))
		})
	}
}

// tokenFromRequest はBearerトークンを優先し、無ければセッションCookieを返す。
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(SessionCookieName); err == nil {
		return c.Value
	}
	return ""
}

// CallerIDFromContext はリクエストコンテキストから呼び出し元の外部認証IDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func CallerIDFromContext(ctx context.Context) (string, error) {
	callerID, ok := ctx.Value(callerIDContextKey).(string)
	if !ok || callerID == "" {
		return "", fmt.Errorf("caller ID not found in context")
	}
	return callerID, nil
}

// ContextWithCallerID はコンテキストに呼び出し元の外部認証IDを注入する。
// ロギングミドルウェアが用意した記録先があれば、そこにも書き込む。
func ContextWithCallerID(ctx context.Context, callerID string) context.Context {
	if slot, ok := ctx.Value(callerSlotContextKey).(*callerSlot); ok {
		slot.id = callerID
	}
	return context.WithValue(ctx, callerIDContextKey, callerID)
}
