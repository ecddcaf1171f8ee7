// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザー（テナントの所有者）を表す。
// ExternalAuthIDは外部IdPが発行した識別子で、ユーザーと1対1に対応する。
type User struct {
	ID             string    `json:"id"`
	FullName       string    `json:"fullName"`
	ExternalAuthID string    `json:"externalAuthId"`
	AccountType    string    `json:"accountType"`
	BillingID      *string   `json:"billingId"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// UserInput はユーザー作成・更新時にクライアントが指定できる項目。
// ExternalAuthIDやIDは含まない（呼び出し元の認証情報から決定される）。
type UserInput struct {
	FullName    string `json:"fullName"`
	AccountType string `json:"accountType"`
}
