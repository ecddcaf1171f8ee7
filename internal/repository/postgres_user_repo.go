package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/deskbot/internal/model"
	"github.com/lib/pq"
)

// uniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const uniqueViolation = "23505"

const userColumns = `id, full_name, external_auth_id, account_type, billing_id, created_at, updated_at`

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	u := &model.User{}
	var billingID sql.NullString
	if err := row.Scan(&u.ID, &u.FullName, &u.ExternalAuthID, &u.AccountType, &billingID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if billingID.Valid {
		u.BillingID = &billingID.String
	}
	return u, nil
}

// ListByExternalAuthID は外部認証IDに一致するユーザーを作成日時順で取得する。
func (r *PostgresUserRepo) ListByExternalAuthID(ctx context.Context, externalAuthID string) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE external_auth_id = $1 ORDER BY created_at, id`,
		externalAuthID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []*model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// FindByIDAndExternalAuthID は指定IDかつ外部認証IDに一致するユーザーを取得する。
// 見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByIDAndExternalAuthID(ctx context.Context, id, externalAuthID string) (*model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 AND external_auth_id = $2`,
		id, externalAuthID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return u, nil
}

// Create はユーザーを作成し、DBが採番したタイムスタンプをuserに反映する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (id, full_name, external_auth_id, account_type, billing_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`,
		user.ID, user.FullName, user.ExternalAuthID, user.AccountType, user.BillingID,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// UpdateByIDAndExternalAuthID は指定IDかつ外部認証IDに一致するユーザーを更新する。
// updated_atはトリガーで更新される。見つからない場合はnilを返す。
func (r *PostgresUserRepo) UpdateByIDAndExternalAuthID(ctx context.Context, id, externalAuthID string, input model.UserInput) (*model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`UPDATE users SET full_name = $3, account_type = $4
		 WHERE id = $1 AND external_auth_id = $2
		 RETURNING `+userColumns,
		id, externalAuthID, input.FullName, input.AccountType,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return u, nil
}

// DeleteByIDAndExternalAuthID は指定IDかつ外部認証IDに一致するユーザーを削除する。
func (r *PostgresUserRepo) DeleteByIDAndExternalAuthID(ctx context.Context, id, externalAuthID string) (bool, error) {
	var deleted string
	err := r.db.QueryRowContext(ctx,
		`DELETE FROM users WHERE id = $1 AND external_auth_id = $2 RETURNING id`,
		id, externalAuthID,
	).Scan(&deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to delete user: %w", err)
	}
	return true, nil
}

// DeleteByIDsAndExternalAuthID は指定IDのうち外部認証IDに一致するユーザーを1文で削除する。
func (r *PostgresUserRepo) DeleteByIDsAndExternalAuthID(ctx context.Context, ids []string, externalAuthID string) ([]string, error) {
	deleted := []string{}
	if len(ids) == 0 {
		return deleted, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`DELETE FROM users WHERE external_auth_id = $1 AND id = ANY($2) RETURNING id`,
		externalAuthID, pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to bulk delete users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan deleted user ID: %w", err)
		}
		deleted = append(deleted, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate deleted user IDs: %w", err)
	}
	return deleted, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
