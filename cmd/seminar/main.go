// Command seminar は競技会参加者の登録サイトを起動する。
//
// サブコマンド:
//
//	serve        HTTPサーバーを起動する（デフォルト）
//	worker       期限切れセッションの定期削除を実行する
//	migrate      データベースマイグレーションを適用する
//	healthcheck  /health を叩いて終了コードで結果を返す
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/seminar/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
