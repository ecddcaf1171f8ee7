// Package schema はリレーショナルストアのテーブル定義と外部キー方針を宣言する。
//
// マイグレーション（internal/database/migrations）はこの宣言と一致していなければならない。
// 外部キーは必ず次のいずれかの方針を明示する:
//
//   - Cascade: 所有関係。親行の削除で子行も同一トランザクション内で削除される。
//   - SetNull: 参照関係。参照先の削除で参照カラムがNULLになる。
//
// 所有関係（Cascade）はusersをルートとする木を構成する。
package schema

import (
	"fmt"
	"sort"
)

// OnDelete は外部キーの削除時動作を表す。
type OnDelete string

const (
	// Cascade は参照先の削除時に参照元の行を削除する。
	Cascade OnDelete = "CASCADE"
	// SetNull は参照先の削除時に参照元のカラムをNULLにする。
	SetNull OnDelete = "SET NULL"
)

// RootTable は所有関係の木のルートとなるテーブル。
const RootTable = "users"

// カラム型（information_schema.columns.data_type と同じ表記）
const (
	TypeText        = "text"
	TypeInteger     = "integer"
	TypeBoolean     = "boolean"
	TypeTimestamptz = "timestamp with time zone"
	TypeJSONB       = "jsonb"
)

// Column はテーブルのカラム定義。
type Column struct {
	Name    string
	Type    string
	NotNull bool
	Unique  bool
}

// ForeignKey は外部キー定義。
type ForeignKey struct {
	Column    string
	RefTable  string
	RefColumn string
	OnDelete  OnDelete
}

// Table はテーブル定義。
// TouchUpdatedAtがtrueのテーブルはUPDATEのたびにupdated_atがトリガーで更新される。
type Table struct {
	Name           string
	Columns        []Column
	ForeignKeys    []ForeignKey
	TouchUpdatedAt bool
}

// Column は指定名のカラム定義を返す。
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Owner はCascadeの外部キー（所有者への参照）を返す。所有者がいない場合はfalse。
func (t Table) Owner() (ForeignKey, bool) {
	for _, fk := range t.ForeignKeys {
		if fk.OnDelete == Cascade {
			return fk, true
		}
	}
	return ForeignKey{}, false
}

func id() Column {
	return Column{Name: "id", Type: TypeText, NotNull: true, Unique: true}
}

func createdAt() Column {
	return Column{Name: "created_at", Type: TypeTimestamptz, NotNull: true}
}

func updatedAt() Column {
	return Column{Name: "updated_at", Type: TypeTimestamptz, NotNull: true}
}

func ref(column string) Column {
	return Column{Name: column, Type: TypeText}
}

func owned(column, table string) ForeignKey {
	return ForeignKey{Column: column, RefTable: table, RefColumn: "id", OnDelete: Cascade}
}

func references(column, table string) ForeignKey {
	return ForeignKey{Column: column, RefTable: table, RefColumn: "id", OnDelete: SetNull}
}

// Tables は全テーブル定義をマイグレーションの作成順で返す。
func Tables() []Table {
	return []Table{
		{
			Name: "users",
			Columns: []Column{
				id(),
				{Name: "full_name", Type: TypeText, NotNull: true},
				{Name: "external_auth_id", Type: TypeText, NotNull: true, Unique: true},
				{Name: "account_type", Type: TypeText, NotNull: true},
				ref("billing_id"),
				createdAt(),
				updatedAt(),
			},
			ForeignKeys:    []ForeignKey{references("billing_id", "billings")},
			TouchUpdatedAt: true,
		},
		{
			Name: "campaign",
			Columns: []Column{
				id(),
				{Name: "name", Type: TypeText, NotNull: true},
				{Name: "customers", Type: TypeJSONB, NotNull: true},
				{Name: "template", Type: TypeText},
				ref("user_id"),
				createdAt(),
			},
			ForeignKeys: []ForeignKey{owned("user_id", "users")},
		},
		{
			Name: "domains",
			Columns: []Column{
				id(),
				{Name: "name", Type: TypeText, NotNull: true},
				{Name: "icon", Type: TypeText, NotNull: true},
				ref("user_id"),
				ref("campaign_id"),
			},
			ForeignKeys: []ForeignKey{
				owned("user_id", "users"),
				references("campaign_id", "campaign"),
			},
		},
		{
			Name: "billings",
			Columns: []Column{
				id(),
				{Name: "plan", Type: TypeText, NotNull: true},
				{Name: "credits", Type: TypeInteger, NotNull: true},
				ref("user_id"),
			},
			ForeignKeys: []ForeignKey{owned("user_id", "users")},
		},
		{
			Name: "chat_bots",
			Columns: []Column{
				id(),
				{Name: "welcome_message", Type: TypeText},
				{Name: "icon", Type: TypeText},
				{Name: "background", Type: TypeText},
				{Name: "text_color", Type: TypeText},
				{Name: "help_desk", Type: TypeBoolean, NotNull: true},
				ref("domain_id"),
			},
			ForeignKeys: []ForeignKey{owned("domain_id", "domains")},
		},
		{
			Name: "help_desk",
			Columns: []Column{
				id(),
				{Name: "question", Type: TypeText, NotNull: true},
				{Name: "answer", Type: TypeText, NotNull: true},
				ref("domain_id"),
			},
			ForeignKeys: []ForeignKey{owned("domain_id", "domains")},
		},
		{
			Name: "filter_questions",
			Columns: []Column{
				id(),
				{Name: "question", Type: TypeText, NotNull: true},
				{Name: "answer", Type: TypeText},
				ref("domain_id"),
			},
			ForeignKeys: []ForeignKey{owned("domain_id", "domains")},
		},
		{
			Name: "customer",
			Columns: []Column{
				id(),
				{Name: "email", Type: TypeText, NotNull: true},
				ref("domain_id"),
			},
			ForeignKeys: []ForeignKey{owned("domain_id", "domains")},
		},
		{
			Name: "customer_responses",
			Columns: []Column{
				id(),
				{Name: "question", Type: TypeText, NotNull: true},
				{Name: "answer", Type: TypeText},
				ref("customer_id"),
			},
			ForeignKeys: []ForeignKey{owned("customer_id", "customer")},
		},
		{
			Name: "chat_room",
			Columns: []Column{
				id(),
				{Name: "live", Type: TypeBoolean, NotNull: true},
				{Name: "mailed", Type: TypeBoolean, NotNull: true},
				ref("customer_id"),
				createdAt(),
				updatedAt(),
			},
			ForeignKeys:    []ForeignKey{owned("customer_id", "customer")},
			TouchUpdatedAt: true,
		},
		{
			Name: "chat_message",
			Columns: []Column{
				id(),
				{Name: "message", Type: TypeText, NotNull: true},
				{Name: "role", Type: TypeText},
				ref("chat_room_id"),
				{Name: "seen", Type: TypeBoolean, NotNull: true},
				createdAt(),
				updatedAt(),
			},
			ForeignKeys:    []ForeignKey{owned("chat_room_id", "chat_room")},
			TouchUpdatedAt: true,
		},
		{
			Name: "bookings",
			Columns: []Column{
				id(),
				{Name: "date", Type: TypeTimestamptz, NotNull: true},
				{Name: "slot", Type: TypeText, NotNull: true},
				{Name: "email", Type: TypeText, NotNull: true},
				ref("customer_id"),
				ref("domain_id"),
				createdAt(),
			},
			ForeignKeys: []ForeignKey{
				owned("customer_id", "customer"),
				references("domain_id", "domains"),
			},
		},
		{
			Name: "product",
			Columns: []Column{
				id(),
				{Name: "name", Type: TypeText, NotNull: true},
				{Name: "price", Type: TypeInteger, NotNull: true},
				{Name: "image", Type: TypeText, NotNull: true},
				ref("domain_id"),
				createdAt(),
			},
			ForeignKeys: []ForeignKey{owned("domain_id", "domains")},
		},
	}
}

// TableNames は全テーブル名を作成順で返す。
func TableNames(tables []Table) []string {
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}
	return names
}

// Validate はテーブル定義の整合性を検証する。
//   - 外部キーは既知のテーブル・カラムを参照し、CascadeかSetNullのいずれかを明示する
//   - 所有者（Cascade外部キー）はテーブルごとに高々1つ
//   - ルート以外のテーブルは所有者をたどるとルートに到達し、循環しない
//   - SetNullの外部キーカラムはNOT NULLであってはならない
func Validate(tables []Table) error {
	byName := make(map[string]Table, len(tables))
	for _, t := range tables {
		if _, dup := byName[t.Name]; dup {
			return fmt.Errorf("duplicate table %q", t.Name)
		}
		byName[t.Name] = t
	}

	for _, t := range tables {
		owners := 0
		for _, fk := range t.ForeignKeys {
			col, ok := t.Column(fk.Column)
			if !ok {
				return fmt.Errorf("%s.%s: foreign key column is not declared", t.Name, fk.Column)
			}
			target, ok := byName[fk.RefTable]
			if !ok {
				return fmt.Errorf("%s.%s: references unknown table %q", t.Name, fk.Column, fk.RefTable)
			}
			if _, ok := target.Column(fk.RefColumn); !ok {
				return fmt.Errorf("%s.%s: references unknown column %s.%s", t.Name, fk.Column, fk.RefTable, fk.RefColumn)
			}
			switch fk.OnDelete {
			case Cascade:
				owners++
			case SetNull:
				if col.NotNull {
					return fmt.Errorf("%s.%s: SET NULL foreign key on a NOT NULL column", t.Name, fk.Column)
				}
			default:
				return fmt.Errorf("%s.%s: on delete policy %q is not explicit", t.Name, fk.Column, fk.OnDelete)
			}
		}
		if owners > 1 {
			return fmt.Errorf("%s: has %d owning foreign keys, want at most 1", t.Name, owners)
		}
	}

	for _, t := range tables {
		if t.Name == RootTable {
			if _, ok := t.Owner(); ok {
				return fmt.Errorf("%s: root table must not have an owner", t.Name)
			}
			continue
		}
		seen := map[string]bool{t.Name: true}
		cur := t
		for cur.Name != RootTable {
			fk, ok := cur.Owner()
			if !ok {
				return fmt.Errorf("%s: ownership chain stops at %q before reaching %q", t.Name, cur.Name, RootTable)
			}
			if seen[fk.RefTable] {
				return fmt.Errorf("%s: ownership cycle through %q", t.Name, fk.RefTable)
			}
			seen[fk.RefTable] = true
			cur = byName[fk.RefTable]
		}
	}

	return nil
}

// CascadeClosure は指定テーブルの行を削除したときに連鎖削除されるテーブル名を
// ソート済みで返す。指定テーブル自身は含まない。
func CascadeClosure(tables []Table, root string) []string {
	children := make(map[string][]string)
	for _, t := range tables {
		for _, fk := range t.ForeignKeys {
			if fk.OnDelete == Cascade {
				children[fk.RefTable] = append(children[fk.RefTable], t.Name)
			}
		}
	}

	visited := map[string]bool{root: true}
	queue := []string{root}
	var result []string
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		for _, child := range children[name] {
			if visited[child] {
				continue
			}
			visited[child] = true
			result = append(result, child)
			queue = append(queue, child)
		}
	}

	sort.Strings(result)
	return result
}

// Nullified は指定テーブルの行を削除したときにNULLに更新される参照（テーブル.カラム）を
// ソート済みで返す。
func Nullified(tables []Table, root string) []string {
	var result []string
	for _, t := range tables {
		for _, fk := range t.ForeignKeys {
			if fk.OnDelete == SetNull && fk.RefTable == root {
				result = append(result, t.Name+"."+fk.Column)
			}
		}
	}
	sort.Strings(result)
	return result
}
