package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/deskbot/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// Issuesはバリデーションエラー時のみ出力する。
type ErrorResponseBody struct {
	Error  string             `json:"error"`
	Code   string             `json:"code"`
	Issues []model.FieldIssue `json:"issues,omitempty"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Error:  apiErr.Message,
		Code:   apiErr.Code,
		Issues: apiErr.Issues,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}
