package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/holdwatch/internal/model"
)

// NewRecoveryMiddleware は状況APIのハンドラーで起きたpanicを500に変換する。
// ポーリングループとは別のgoroutineのため、ここでのpanicはサイクルに影響しない。
// ログはスケジューラのpanicと同じUNEXPECTED分類で出力する。
func NewRecoveryMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("HTTPハンドラーでpanicが発生しました",
					slog.String("kind", string(model.KindUnexpected)),
					slog.Any("panic", rec),
					slog.String("path", r.URL.Path),
					slog.String("request_id", chimiddleware.GetReqID(r.Context())),
					slog.String("stack", string(debug.Stack())),
				)
				WriteInternalServerError(w, r)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
