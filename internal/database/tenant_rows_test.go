package database

// テナント配下のテーブルの行型。マイグレーションのデフォルト値と外部キーの検証で
// 実際の行を読み出すために使う。

import "time"

// Domain はユーザーが所有するチャットボット設置先のドメイン。
// ChatBot、HelpDesk、FilterQuestion、Customer、Productのルートとなる。
type Domain struct {
	ID         string
	Name       string
	Icon       string
	UserID     *string
	CampaignID *string
}

// ChatBot はドメインに設置するチャットボットの表示設定。
type ChatBot struct {
	ID             string
	WelcomeMessage *string
	Icon           *string
	Background     *string
	TextColor      *string
	HelpDesk       bool
	DomainID       *string
}

// Plan は課金プランを表す。
type Plan string

const (
	PlanStandard Plan = "STANDARD"
	PlanPro      Plan = "PRO"
	PlanUltimate Plan = "ULTIMATE"
)

// Billing はユーザーの課金・クレジット情報。
type Billing struct {
	ID      string
	Plan    Plan
	Credits int
	UserID  *string
}

// HelpDeskEntry はドメインごとのFAQ（質問と回答）。
type HelpDeskEntry struct {
	ID       string
	Question string
	Answer   string
	DomainID *string
}

// FilterQuestion はチャットボットが顧客に尋ねる絞り込み質問。
type FilterQuestion struct {
	ID       string
	Question string
	Answer   *string
	DomainID *string
}

// Customer はドメインに訪問した顧客。
type Customer struct {
	ID       string
	Email    string
	DomainID *string
}

// CustomerResponse は絞り込み質問に対する顧客の回答。
type CustomerResponse struct {
	ID         string
	Question   string
	Answer     *string
	CustomerID *string
}

// ChatRoom は顧客ごとの会話ルーム。
type ChatRoom struct {
	ID         string
	Live       bool
	Mailed     bool
	CustomerID *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// MessageRole はチャットメッセージの発言者種別。
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// ChatMessage はチャットルーム内の1メッセージ。
type ChatMessage struct {
	ID         string
	Message    string
	Role       *MessageRole
	ChatRoomID *string
	Seen       bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Booking は顧客の予約。
type Booking struct {
	ID         string
	Date       time.Time
	Slot       string
	Email      string
	CustomerID *string
	DomainID   *string
	CreatedAt  time.Time
}

// Campaign はユーザーが配信するメールキャンペーン。
// Customersは配信対象の顧客メールアドレス一覧。
type Campaign struct {
	ID        string
	Name      string
	Customers []string
	Template  *string
	UserID    *string
	CreatedAt time.Time
}

// Product はドメインで販売する商品。Priceは最小通貨単位の整数。
type Product struct {
	ID        string
	Name      string
	Price     int
	Image     string
	DomainID  *string
	CreatedAt time.Time
}
