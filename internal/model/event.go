// Package model はドメインモデルを定義する。
package model

import "strings"

// Group はHoldsport上のチーム（イベントの所有者）を表す。
// ポーリングサイクルごとに取得し直し、永続化しない。
type Group struct {
	ID   int64
	Name string
}

// Event はグループに属する予定（アクティビティ）を表す。
type Event struct {
	ID        int64
	GroupID   int64
	GroupName string
	Name      string
	// StartTime はリモートの値をそのまま保持する。パースはしない。
	StartTime string
	Place     string
	Status    string
	Actions   []ActionDescriptor

	// ActionPath と ActionMethod はイベント単位で提供される実行先。
	// 個々のActionDescriptorがメソッドやパスを持たない場合のフォールバックに使う。
	ActionPath   string
	ActionMethod string
}

// ActionDescriptor はリモートが提示する状態変更操作（ラベル、HTTPメソッド、パス）。
type ActionDescriptor struct {
	Label  string
	Method string
	Path   string
}

// HasStatus はイベントの参加状態が指定の値と一致するかを大文字小文字を区別せずに判定する。
func (e Event) HasStatus(status string) bool {
	want := strings.TrimSpace(status)
	if want == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(e.Status), want)
}

// ResolvedMethod はディスクリプタのメソッドを返す。空の場合はイベントの値を使う。
func (e Event) ResolvedMethod(d ActionDescriptor) string {
	if m := strings.TrimSpace(d.Method); m != "" {
		return strings.ToUpper(m)
	}
	return strings.ToUpper(strings.TrimSpace(e.ActionMethod))
}

// ResolvedPath はディスクリプタのパスを返す。空の場合はイベントの値を使う。
func (e Event) ResolvedPath(d ActionDescriptor) string {
	if p := strings.TrimSpace(d.Path); p != "" {
		return p
	}
	return strings.TrimSpace(e.ActionPath)
}
