// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は利用者が入力した自由記述（氏名など）からマークアップを取り除き、
// テンプレートやメール本文へ安全に埋め込めるプレーンテキストに正規化する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はプレーンテキストのサニタイズ機能のインターフェースを定義する。
type TextSanitizerService interface {
	// Sanitize は全てのHTMLタグを除去し、連続する空白を1つにまとめたテキストを返す。
	// 実体参照はデコードして返す（出力時のエスケープはテンプレートが行う）。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

var _ TextSanitizerService = (*textSanitizer)(nil)

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
// script, styleは要素の中身ごと除去され、その他のタグはテキストだけが残る。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はプレーンテキストに正規化した文字列を返す。
func (s *textSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	stripped := html.UnescapeString(s.policy.Sanitize(raw))
	return strings.Join(strings.Fields(stripped), " ")
}
