package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/hitoshi/deskbot/internal/model"
	"github.com/hitoshi/deskbot/internal/validation"
)

// MaxBodyBytes はリクエストボディの上限サイズ。
const MaxBodyBytes = 1 << 20

// NewBodyValidator はリクエストボディをスキーマで検証するミドルウェアを返す。
// 解析できないボディは400 INVALID_REQUEST、制約違反は400 VALIDATION_FAILEDで拒否し、
// 後続のハンドラーを呼ばない。検証に通ったボディは後続が再度読めるように差し戻す。
func NewBodyValidator(schema validation.Schema) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
			if err != nil {
				var maxErr *http.MaxBytesError
				if errors.As(err, &maxErr) {
					WriteErrorResponse(w, http.StatusRequestEntityTooLarge, model.NewInvalidRequestError("body too large"))
					return
				}
				WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("failed to read body"))
				return
			}

			issues, err := schema.Validate(body)
			if err != nil {
				WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("must be a JSON object"))
				return
			}
			if len(issues) > 0 {
				WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError(issues))
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			r.ContentLength = int64(len(body))
			next.ServeHTTP(w, r)
		})
	}
}
