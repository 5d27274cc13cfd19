package app

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrRestartRequested は管理コマンドで再起動が要求されたことを示す。
// mainはこのエラーを受け取ると終了コード3で終了し、再起動はスーパーバイザーに任せる。
var ErrRestartRequested = errors.New("restart requested")

// processController はadmin.Controllerの実装。
// 停止・再起動のいずれも共有コンテキストのキャンセルで表現する。
type processController struct {
	cancel  context.CancelFunc
	restart atomic.Bool
}

func newProcessController(cancel context.CancelFunc) *processController {
	return &processController{cancel: cancel}
}

// Stop はグレースフルシャットダウンを開始する。
func (c *processController) Stop() {
	c.cancel()
}

// Restart は再起動フラグを立ててからシャットダウンを開始する。
func (c *processController) Restart() {
	c.restart.Store(true)
	c.cancel()
}

func (c *processController) restartRequested() bool {
	return c.restart.Load()
}
