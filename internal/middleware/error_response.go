package middleware

import (
	"encoding/json"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// 状況APIが返すエラーコード
const (
	CodeNotFound            = "NOT_FOUND"
	CodeMethodNotAllowed    = "METHOD_NOT_ALLOWED"
	CodeInvalidLimit        = "INVALID_LIMIT"
	CodeRateLimitExceeded   = "RATE_LIMIT_EXCEEDED"
	CodeAttemptsUnavailable = "ATTEMPTS_UNAVAILABLE"
	CodeInternal            = "INTERNAL_ERROR"
)

// ErrorResponseBody は状況APIのエラーレスポンス。
// request_idはアクセスログの同じフィールドと突き合わせるために返す。
type ErrorResponseBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteErrorResponse はエラーレスポンスをJSONで書き込む。
func WriteErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	body := ErrorResponseBody{Code: code, Message: message}
	if r != nil {
		body.RequestID = chimiddleware.GetReqID(r.Context())
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteInternalServerError は500を書き込む。詳細はログのみに残す。
func WriteInternalServerError(w http.ResponseWriter, r *http.Request) {
	WriteErrorResponse(w, r, http.StatusInternalServerError, CodeInternal, "internal server error")
}

// WriteAttemptsUnavailable は試行履歴ストアに到達できない場合の503を書き込む。
// 監視ループ自体は動き続けているため、/healthとは区別する。
func WriteAttemptsUnavailable(w http.ResponseWriter, r *http.Request) {
	WriteErrorResponse(w, r, http.StatusServiceUnavailable, CodeAttemptsUnavailable, "attempt history is unavailable")
}
