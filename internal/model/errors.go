package model

import (
	"errors"
	"fmt"
)

// ErrorKind はウォッチャー内部で発生するエラーの分類。
// スケジューラはこの分類に基づいてサイクルの中断や待機時間を決定する。
type ErrorKind string

// 定義済みエラー分類
const (
	// KindRemoteUnavailable は通信失敗または2xx以外の応答（取得処理）。サイクルを中断する。
	KindRemoteUnavailable ErrorKind = "REMOTE_UNAVAILABLE"
	// KindActionRejected はセーフティゲートが全ディスクリプタを拒否したことを示す。
	KindActionRejected ErrorKind = "ACTION_REJECTED"
	// KindActionFailed はサインアップ実行が2xx以外または通信失敗で終わったことを示す。
	KindActionFailed ErrorKind = "ACTION_FAILED"
	// KindNotificationFailed は通知チャネルへの送信失敗。常に握りつぶされる。
	KindNotificationFailed ErrorKind = "NOTIFICATION_FAILED"
	// KindUnexpected は上記以外の想定外の失敗。フォールバック待機の対象になる。
	KindUnexpected ErrorKind = "UNEXPECTED"
)

// WatchError は分類付きのエラー。
type WatchError struct {
	Kind ErrorKind
	Op   string // 失敗した操作（例: "list_groups"）
	Err  error
}

// Error はerrorインターフェースを実装する。
func (e *WatchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Op, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *WatchError) Unwrap() error {
	return e.Err
}

// NewRemoteUnavailableError はリモート取得失敗のエラーを生成する。
func NewRemoteUnavailableError(op string, err error) *WatchError {
	return &WatchError{Kind: KindRemoteUnavailable, Op: op, Err: err}
}

// NewUnexpectedError は想定外の失敗のエラーを生成する。
func NewUnexpectedError(op string, err error) *WatchError {
	return &WatchError{Kind: KindUnexpected, Op: op, Err: err}
}

// NewActionFailedError はサインアップ実行失敗のエラーを生成する。
func NewActionFailedError(op string, err error) *WatchError {
	return &WatchError{Kind: KindActionFailed, Op: op, Err: err}
}

// KindOf はエラーの分類を返す。WatchErrorでない場合はKindUnexpectedとする。
func KindOf(err error) ErrorKind {
	var we *WatchError
	if errors.As(err, &we) {
		return we.Kind
	}
	return KindUnexpected
}
