// Package user はユーザー管理のドメインロジックを提供する。
//
// すべての操作は認証ミドルウェアが解決した呼び出し元の外部認証ID（caller）を明示的に受け取り、
// callerが所有する行のみを対象にする。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hitoshi/deskbot/internal/model"
	"github.com/hitoshi/deskbot/internal/repository"
)

// Sanitizer はプロフィール項目をプレーンテキストに正規化する。
type Sanitizer interface {
	Sanitize(raw string) string
}

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo  repository.UserRepository
	sanitizer Sanitizer
	newID     func() string
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository, sanitizer Sanitizer) *Service {
	return &Service{
		userRepo:  userRepo,
		sanitizer: sanitizer,
		newID:     func() string { return uuid.New().String() },
	}
}

// List は呼び出し元のユーザー一覧を返す。該当なしの場合は空スライスを返す。
func (s *Service) List(ctx context.Context, caller string) ([]*model.User, error) {
	if caller == "" {
		return nil, model.NewUnauthorizedError()
	}

	users, err := s.userRepo.ListByExternalAuthID(ctx, caller)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	if users == nil {
		users = []*model.User{}
	}
	return users, nil
}

// Get は呼び出し元が所有する指定IDのユーザーを返す。
func (s *Service) Get(ctx context.Context, caller, id string) (*model.User, error) {
	if caller == "" {
		return nil, model.NewUnauthorizedError()
	}
	if id == "" {
		return nil, model.NewMissingIDError()
	}

	u, err := s.userRepo.FindByIDAndExternalAuthID(ctx, id, caller)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError()
	}
	return u, nil
}

// Create は呼び出し元の外部認証IDに紐づくユーザーを作成する。
// ExternalAuthIDは常にcallerで、クライアントの指定値は使わない。
func (s *Service) Create(ctx context.Context, caller string, input model.UserInput) (*model.User, error) {
	if caller == "" {
		return nil, model.NewUnauthorizedError()
	}

	clean, err := s.sanitize(input)
	if err != nil {
		return nil, err
	}

	u := &model.User{
		ID:             s.newID(),
		FullName:       clean.FullName,
		ExternalAuthID: caller,
		AccountType:    clean.AccountType,
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewUserAlreadyExistsError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user created",
		slog.String("caller_id", caller),
		slog.String("user_id", u.ID),
	)
	return u, nil
}

// Update は呼び出し元が所有する指定IDのユーザーを更新する。
func (s *Service) Update(ctx context.Context, caller, id string, input model.UserInput) (*model.User, error) {
	if caller == "" {
		return nil, model.NewUnauthorizedError()
	}
	if id == "" {
		return nil, model.NewMissingIDError()
	}

	clean, err := s.sanitize(input)
	if err != nil {
		return nil, err
	}

	u, err := s.userRepo.UpdateByIDAndExternalAuthID(ctx, id, caller, clean)
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError()
	}
	return u, nil
}

// Delete は呼び出し元が所有する指定IDのユーザーを削除し、削除したIDを返す。
// 所有するドメイン・キャンペーン等はCASCADE削除される。
func (s *Service) Delete(ctx context.Context, caller, id string) (string, error) {
	if caller == "" {
		return "", model.NewUnauthorizedError()
	}
	if id == "" {
		return "", model.NewMissingIDError()
	}

	deleted, err := s.userRepo.DeleteByIDAndExternalAuthID(ctx, id, caller)
	if err != nil {
		return "", fmt.Errorf("failed to delete user: %w", err)
	}
	if !deleted {
		return "", model.NewUserNotFoundError()
	}

	slog.Info("user deleted",
		slog.String("caller_id", caller),
		slog.String("user_id", id),
	)
	return id, nil
}

// BulkDelete は指定IDのうち呼び出し元が所有するユーザーを削除し、削除したIDを返す。
// 空のID一覧ではストアにアクセスしない。
func (s *Service) BulkDelete(ctx context.Context, caller string, ids []string) ([]string, error) {
	if caller == "" {
		return nil, model.NewUnauthorizedError()
	}
	if len(ids) == 0 {
		return []string{}, nil
	}

	deleted, err := s.userRepo.DeleteByIDsAndExternalAuthID(ctx, dedupe(ids), caller)
	if err != nil {
		return nil, fmt.Errorf("failed to bulk delete users: %w", err)
	}
	if deleted == nil {
		deleted = []string{}
	}

	slog.Info("users bulk deleted",
		slog.String("caller_id", caller),
		slog.Int("requested", len(ids)),
		slog.Int("deleted", len(deleted)),
	)
	return deleted, nil
}

func (s *Service) sanitize(input model.UserInput) (model.UserInput, error) {
	clean := model.UserInput{
		FullName:    s.sanitizer.Sanitize(input.FullName),
		AccountType: s.sanitizer.Sanitize(input.AccountType),
	}

	var issues []model.FieldIssue
	if clean.FullName == "" {
		issues = append(issues, model.FieldIssue{Field: "fullName", Message: "must not be empty"})
	}
	if clean.AccountType == "" {
		issues = append(issues, model.FieldIssue{Field: "accountType", Message: "must not be empty"})
	}
	if len(issues) > 0 {
		return model.UserInput{}, model.NewValidationError(issues)
	}
	return clean, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
