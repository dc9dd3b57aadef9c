// postサービスのエントリポイント。
// 投稿の作成・一覧・取得・削除と、post.created / post.deletedイベントの
// 発行を担当する。
package main

import (
	"log"
	"os"

	"github.com/nao1215/socialhub/internal/post"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "3002"
	}

	server, err := post.NewServer(port)
	if err != nil {
		log.Fatalf("Postサーバーの初期化に失敗: %v", err)
	}

	log.Printf("Postサービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("Postサービスの起動に失敗: %v", err)
	}
}
