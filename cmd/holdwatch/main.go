package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/hitoshi/holdwatch/internal/app"
)

// exitRestart は管理コマンドによる再起動要求を示す終了コード。
// systemdやDockerの再起動ポリシーがプロセスを起動し直す。
const exitRestart = 3

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		if errors.Is(err, app.ErrRestartRequested) {
			os.Exit(exitRestart)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
