// Package validation はリクエストボディの宣言的なスキーマ検証を提供する。
//
// スキーマに宣言されていないフィールドは無視される（検証も束縛もしない）。
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/deskbot/internal/model"
)

// Kind はフィールドの型を表す。
type Kind int

const (
	// String は文字列フィールド。
	String Kind = iota
	// StringArray は文字列の配列フィールド。
	StringArray
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case StringArray:
		return "array of strings"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Field は1フィールドの制約。
// MaxLenは文字列の最大文字数、MaxItemsは配列の最大要素数（0は無制限）。
type Field struct {
	Name     string
	Kind     Kind
	Required bool
	MaxLen   int
	MaxItems int
}

// Schema はJSONオブジェクトのフィールド制約の集合。
type Schema struct {
	Fields []Field
}

// ErrMalformed はボディがJSONオブジェクトとして解析できない場合のエラー。
var ErrMalformed = errors.New("body must be a JSON object")

// Validate はbodyをスキーマで検証する。
// JSONとして解析できない場合はErrMalformedをラップしたエラーを返し、
// 制約違反はフィールド単位のFieldIssueとして宣言順に返す。
func (s Schema) Validate(body []byte) ([]model.FieldIssue, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformed)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: null", ErrMalformed)
	}

	var issues []model.FieldIssue
	for _, f := range s.Fields {
		raw, present := obj[f.Name]
		if !present || string(raw) == "null" {
			if f.Required {
				issues = append(issues, model.FieldIssue{Field: f.Name, Message: "is required"})
			}
			continue
		}

		switch f.Kind {
		case String:
			issues = append(issues, f.checkString(raw)...)
		case StringArray:
			issues = append(issues, f.checkStringArray(raw)...)
		}
	}
	return issues, nil
}

func (f Field) checkString(raw json.RawMessage) []model.FieldIssue {
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return []model.FieldIssue{{Field: f.Name, Message: "must be a string"}}
	}
	if f.Required && strings.TrimSpace(v) == "" {
		return []model.FieldIssue{{Field: f.Name, Message: "must not be empty"}}
	}
	if f.MaxLen > 0 && utf8.RuneCountInString(v) > f.MaxLen {
		return []model.FieldIssue{{Field: f.Name, Message: fmt.Sprintf("must be at most %d characters", f.MaxLen)}}
	}
	return nil
}

func (f Field) checkStringArray(raw json.RawMessage) []model.FieldIssue {
	var v []json.RawMessage
	if err := json.Unmarshal(raw, &v); err != nil {
		return []model.FieldIssue{{Field: f.Name, Message: "must be an array of strings"}}
	}
	if f.MaxItems > 0 && len(v) > f.MaxItems {
		return []model.FieldIssue{{Field: f.Name, Message: fmt.Sprintf("must contain at most %d items", f.MaxItems)}}
	}

	var issues []model.FieldIssue
	for i, elem := range v {
		name := fmt.Sprintf("%s[%d]", f.Name, i)
		var s string
		if err := json.Unmarshal(elem, &s); err != nil {
			issues = append(issues, model.FieldIssue{Field: name, Message: "must be a string"})
			continue
		}
		if strings.TrimSpace(s) == "" {
			issues = append(issues, model.FieldIssue{Field: name, Message: "must not be empty"})
			continue
		}
		if f.MaxLen > 0 && utf8.RuneCountInString(s) > f.MaxLen {
			issues = append(issues, model.FieldIssue{Field: name, Message: fmt.Sprintf("must be at most %d characters", f.MaxLen)})
		}
	}
	return issues
}
