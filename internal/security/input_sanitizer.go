// Package security はアプリケーションのセキュリティ機能を提供する。
//
// InputSanitizerService はフォームから送信されたテキスト入力をサニタイズし、
// HTMLタグを含む入力が保存されないようにする。
// bluemondayのStrictPolicyにより全てのタグ・属性を除去し、
// プレーンテキストのみを通過させる。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// InputSanitizerService はテキスト入力のサニタイズ機能のインターフェースを定義する。
// 映画名・説明の保存前に使用される。
type InputSanitizerService interface {
	// Sanitize は入力からHTMLタグを全て除去し、前後の空白をトリムした
	// プレーンテキストを返す。空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(input string) string
}

// inputSanitizer はInputSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type inputSanitizer struct {
	policy *bluemonday.Policy
}

// NewInputSanitizer はInputSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyは許可リストが空のポリシーで、全てのHTMLタグと属性を除去する。
func NewInputSanitizer() *inputSanitizer {
	return &inputSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力からHTMLタグを全て除去したプレーンテキストを返す。
func (s *inputSanitizer) Sanitize(input string) string {
	return strings.TrimSpace(s.policy.Sanitize(input))
}
