// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/deskbot/internal/model"
)

// ErrDuplicate は一意制約に違反する書き込みを表す。
var ErrDuplicate = errors.New("duplicate key")

// UserRepository はユーザーデータの永続化インターフェース。
// すべての操作は呼び出し元の外部認証IDでスコープされる。
type UserRepository interface {
	// ListByExternalAuthID は外部認証IDに一致するユーザーを作成日時順で取得する。
	ListByExternalAuthID(ctx context.Context, externalAuthID string) ([]*model.User, error)

	// FindByIDAndExternalAuthID は指定IDかつ外部認証IDに一致するユーザーを取得する。
	// 見つからない場合はnilを返す。
	FindByIDAndExternalAuthID(ctx context.Context, id, externalAuthID string) (*model.User, error)

	// Create はユーザーを作成し、created_at/updated_atを反映する。
	// external_auth_idが重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, user *model.User) error

	// UpdateByIDAndExternalAuthID は指定IDかつ外部認証IDに一致するユーザーを更新する。
	// 見つからない場合はnilを返す。
	UpdateByIDAndExternalAuthID(ctx context.Context, id, externalAuthID string, input model.UserInput) (*model.User, error)

	// DeleteByIDAndExternalAuthID は指定IDかつ外部認証IDに一致するユーザーを削除する。
	// 削除した場合はtrueを返す。関連データはCASCADE削除される。
	DeleteByIDAndExternalAuthID(ctx context.Context, id, externalAuthID string) (bool, error)

	// DeleteByIDsAndExternalAuthID は指定IDのうち外部認証IDに一致するユーザーを削除し、
	// 削除したIDを返す。
	DeleteByIDsAndExternalAuthID(ctx context.Context, ids []string, externalAuthID string) ([]string, error)
}
