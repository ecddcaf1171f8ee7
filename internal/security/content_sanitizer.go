// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はクライアントが送信したプロフィール項目からマークアップを除去し、
// プレーンテキストとして保存できる形に正規化する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はプレーンテキスト項目のサニタイズ機能のインターフェースを定義する。
type TextSanitizer interface {
	// Sanitize はタグを除去し、前後の空白を取り除いたプレーンテキストを返す。
	// script、styleタグは内容ごと除去される。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのポリシーはスレッドセーフなので共有してよい。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はbluemondayのStrictPolicy（全タグ不許可）を使うTextSanitizerを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// maxSanitizePasses は実体参照の多重エンコードを展開する回数の上限。
const maxSanitizePasses = 8

// Sanitize はタグを除去したプレーンテキストを返す。
// 実体参照で書かれたタグ（&lt;b&gt; など）もデコードしてから除去する。
// 出力が変化しなくなるまで繰り返すため、結果を再度Sanitizeしても値は変わらない。
// 上限回数で収束しない入力は空文字にする。
func (s *textSanitizer) Sanitize(raw string) string {
	out := raw
	for range maxSanitizePasses {
		next := s.pass(out)
		if next == out {
			return strings.TrimSpace(out)
		}
		out = next
	}
	return ""
}

// pass は1回分のデコードとタグ除去を行う。
// StrictPolicyはテキストをHTMLエスケープして返すため、JSONで返す値としてアンエスケープする。
func (s *textSanitizer) pass(in string) string {
	return html.UnescapeString(s.policy.Sanitize(html.UnescapeString(in)))
}
