package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/deskbot/internal/model"
)

// TestWriteErrorResponse_WritesUnifiedFormat は統一エラーフォーマットでレスポンスが書き込まれることを検証する。
func TestWriteErrorResponse_WritesUnifiedFormat(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError())

	resp := w.Result()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var raw map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if raw["error"] != "Not found" {
		t.Errorf("error = %q, want %q", raw["error"], "Not found")
	}
	if raw["code"] != "USER_NOT_FOUND" {
		t.Errorf("code = %q, want %q", raw["code"], "USER_NOT_FOUND")
	}
	if _, ok := raw["issues"]; ok {
		t.Error("issues should be omitted when empty")
	}
}

// TestWriteErrorResponse_IncludesIssues はバリデーションエラーでフィールド単位の詳細が出力されることを検証する。
func TestWriteErrorResponse_IncludesIssues(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError([]model.FieldIssue{
		{Field: "fullName", Message: "is required"},
	}))

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if body.Code != "VALIDATION_FAILED" {
		t.Errorf("code = %q, want VALIDATION_FAILED", body.Code)
	}
	if len(body.Issues) != 1 || body.Issues[0].Field != "fullName" {
		t.Errorf("issues = %+v, want fullName issue", body.Issues)
	}
}

// TestWriteInternalServerError_HidesDetails は内部エラーで詳細を返さないことを検証する。
func TestWriteInternalServerError_HidesDetails(t *testing.T) {
	w := httptest.NewRecorder()

	WriteInternalServerError(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"error":"Internal server error"`) {
		t.Errorf("body = %s, want generic message", body)
	}
	if !strings.Contains(body, `"code":"INTERNAL_ERROR"`) {
		t.Errorf("body = %s, want INTERNAL_ERROR code", body)
	}
}
