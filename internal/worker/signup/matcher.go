// Package signup はHoldsportのアクティビティを定期的に監視し、
// 対象イベントへのサインアップを実行するバックグラウンド処理を提供する。
// スケジューラ、マッチャー、セーフティゲート、エグゼキューターを含む。
package signup

import (
	"strings"

	"github.com/hitoshi/holdwatch/internal/model"
)

// Matches はイベント名が対象名と一致するかを判定する。
// 前後の空白を除去し、大文字小文字を区別せずに完全一致で比較する。
// イベント名または対象名が空の場合は常にfalseを返す。
func Matches(event model.Event, target string) bool {
	name := strings.TrimSpace(event.Name)
	want := strings.TrimSpace(target)
	if name == "" || want == "" {
		return false
	}
	return strings.EqualFold(name, want)
}
