package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// TextSanitizer はリモートから受け取った自由記述（イベント名、場所など）を
// 通知用のプレーンテキストに変換する。
type TextSanitizer interface {
	// Plain はHTMLタグを全て除去し、エンティティを戻し、空白を1つにまとめた文字列を返す。
	Plain(s string) string
}

// textSanitizer はbluemondayのStrictPolicyを使うTextSanitizerの実装。
// ポリシーはスレッドセーフに共有できる。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() TextSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// Plain はTextSanitizerを実装する。
func (s *textSanitizer) Plain(in string) string {
	if in == "" {
		return ""
	}
	// StrictPolicyはエンティティをエスケープして返すため、最後に戻す
	stripped := s.policy.Sanitize(in)
	return strings.Join(strings.Fields(html.UnescapeString(stripped)), " ")
}
