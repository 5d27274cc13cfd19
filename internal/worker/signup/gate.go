package signup

import (
	"strings"

	"github.com/hitoshi/holdwatch/internal/model"
)

// ApprovedAction はセーフティゲートが承認した操作。
// フィールドは非公開のため、Gate.Approve以外から生成できない。
// Executorはこの型しか受け取らないため、未承認の操作は実行されない。
type ApprovedAction struct {
	label  string
	method string
	path   string
}

// Label は承認された操作のラベルを返す。
func (a ApprovedAction) Label() string { return a.label }

// Method は実行するHTTPメソッドを返す。
func (a ApprovedAction) Method() string { return a.method }

// Path はリモートが提示したパスをそのまま返す。
func (a ApprovedAction) Path() string { return a.path }

// Gate は参加（サインアップ）操作のみを許可するセーフティゲート。
// ホワイトリストのラベルは1つだけで、それ以外は全て拒否する。
type Gate struct {
	joinLabel string
}

// NewGate はGateの新しいインスタンスを生成する。
// joinLabelが空の場合は何も承認しない。
func NewGate(joinLabel string) *Gate {
	return &Gate{joinLabel: strings.TrimSpace(joinLabel)}
}

// Approve はイベントのディスクリプタを走査し、参加ラベルと一致し
// メソッドとパスが解決できる最初のものを承認する。該当がなければfalseを返す。
func (g *Gate) Approve(event model.Event) (ApprovedAction, bool) {
	if g.joinLabel == "" {
		return ApprovedAction{}, false
	}
	for _, d := range event.Actions {
		if !strings.EqualFold(strings.TrimSpace(d.Label), g.joinLabel) {
			continue
		}
		method := event.ResolvedMethod(d)
		path := event.ResolvedPath(d)
		if method == "" || path == "" {
			// 不正なディスクリプタは読み飛ばす
			continue
		}
		return ApprovedAction{label: strings.TrimSpace(d.Label), method: method, path: path}, true
	}
	return ApprovedAction{}, false
}
