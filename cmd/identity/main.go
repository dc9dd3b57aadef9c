// identityサービスのエントリポイント。
// ユーザー登録・ログイン・トークン更新・ログアウトを担当する。
package main

import (
	"log"
	"os"

	"github.com/nao1215/socialhub/internal/identity"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "3001"
	}

	server, err := identity.NewServer(port)
	if err != nil {
		log.Fatalf("Identityサーバーの初期化に失敗: %v", err)
	}

	log.Printf("Identityサービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("Identityサービスの起動に失敗: %v", err)
	}
}
