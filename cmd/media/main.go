// mediaサービスのエントリポイント。
// メディアのアップロード・一覧取得と、post.deletedイベントによる
// カスケード削除を担当する。
package main

import (
	"log"
	"os"

	"github.com/nao1215/socialhub/internal/media"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "3003"
	}

	server, err := media.NewServer(port)
	if err != nil {
		log.Fatalf("Mediaサーバーの初期化に失敗: %v", err)
	}

	log.Printf("Mediaサービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("Mediaサービスの起動に失敗: %v", err)
	}
}
