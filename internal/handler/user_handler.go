package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/deskbot/internal/invalidation"
	"github.com/hitoshi/deskbot/internal/metrics"
	"github.com/hitoshi/deskbot/internal/middleware"
	"github.com/hitoshi/deskbot/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
// callerは認証ミドルウェアが解決した外部認証ID。空の場合はUnauthorizedを返す。
type UserServiceInterface interface {
	List(ctx context.Context, caller string) ([]*model.User, error)
	Get(ctx context.Context, caller, id string) (*model.User, error)
	Create(ctx context.Context, caller string, input model.UserInput) (*model.User, error)
	Update(ctx context.Context, caller, id string, input model.UserInput) (*model.User, error)
	Delete(ctx context.Context, caller, id string) (string, error)
	BulkDelete(ctx context.Context, caller string, ids []string) ([]string, error)
}

// UserHandler はユーザー管理のHTTPハンドラー。
// 変更操作の成功時はX-Invalidate-Keysヘッダーを付与し、無効化通知を配信する。
type UserHandler struct {
	service   UserServiceInterface
	publisher invalidation.Publisher
	metrics   metrics.MetricsCollector
}

// NewUserHandler はUserHandlerを生成する。
// publisher、collectorがnilの場合は何もしない実装を使う。
func NewUserHandler(service UserServiceInterface, publisher invalidation.Publisher, collector metrics.MetricsCollector) *UserHandler {
	if publisher == nil {
		publisher = invalidation.Noop{}
	}
	if collector == nil {
		collector = nopCollector{}
	}
	return &UserHandler{
		service:   service,
		publisher: publisher,
		metrics:   collector,
	}
}

// bulkDeleteRequest は一括削除リクエストのボディ。
type bulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

// List は呼び出し元のユーザー一覧を返す。
// GET /users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	users, err := h.service.List(r.Context(), caller)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, users)
}

// Get は指定IDのユーザーを返す。
// GET /users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	u, err := h.service.Get(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, u)
}

// Create はユーザーを作成する。
// POST /users
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var input model.UserInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("must be a JSON object"))
		return
	}

	u, err := h.service.Create(r.Context(), caller, input)
	h.metrics.RecordMutation("create", err)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.invalidate(w, r, caller, invalidation.UserKeys(u.ID))
	writeData(w, http.StatusOK, u)
}

// Update は指定IDのユーザーを更新する。
// PATCH /users/{id}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var input model.UserInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("must be a JSON object"))
		return
	}

	u, err := h.service.Update(r.Context(), caller, chi.URLParam(r, "id"), input)
	h.metrics.RecordMutation("update", err)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.invalidate(w, r, caller, invalidation.UserKeys(u.ID))
	writeData(w, http.StatusOK, u)
}

// Delete は指定IDのユーザーを削除する。
// DELETE /users/{id}
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	id, err := h.service.Delete(r.Context(), caller, chi.URLParam(r, "id"))
	h.metrics.RecordMutation("delete", err)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	h.metrics.RecordUsersDeleted(1)

	h.invalidate(w, r, caller, invalidation.UserKeys(id))
	writeData(w, http.StatusOK, idResponse{ID: id})
}

// BulkDelete は指定IDのうち呼び出し元が所有するユーザーを一括削除する。
// 所有していないIDは黙って無視し、実際に削除したIDのみを返す。
// POST /users/bulk-delete
func (h *UserHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req bulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("must be a JSON object"))
		return
	}

	deleted, err := h.service.BulkDelete(r.Context(), caller, req.IDs)
	h.metrics.RecordMutation("bulk_delete", err)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	h.metrics.RecordUsersDeleted(len(deleted))

	if len(deleted) > 0 {
		h.invalidate(w, r, caller, invalidation.UserKeys(deleted...))
	}

	results := make([]idResponse, len(deleted))
	for i, id := range deleted {
		results[i] = idResponse{ID: id}
	}
	writeData(w, http.StatusOK, results)
}

// invalidate はレスポンスヘッダーに無効化キーを設定し、通知を配信する。
// 配信の失敗はログに記録するのみで、リクエストは成功として扱う。
func (h *UserHandler) invalidate(w http.ResponseWriter, r *http.Request, caller string, keys []string) {
	w.Header().Set(invalidation.HeaderName, invalidation.HeaderValue(keys))

	err := h.publisher.Publish(r.Context(), caller, keys)
	h.metrics.RecordInvalidation(err)
	if err != nil {
		slog.Warn("failed to publish invalidation",
			slog.String("caller_id", caller),
			slog.String("error", err.Error()),
		)
	}
}

// requireCaller はリクエストコンテキストから呼び出し元IDを取り出す。
// 未認証の場合は401を書き込みfalseを返す。ボディの解析より先に呼ぶ。
func requireCaller(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := middleware.CallerIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return "", false
	}
	return id, true
}

type nopCollector struct{}

func (nopCollector) RecordMutation(string, error) {}
func (nopCollector) RecordUsersDeleted(int)       {}
func (nopCollector) RecordInvalidation(error)     {}
