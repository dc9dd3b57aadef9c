package media

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/nao1215/socialhub/pkg/event"
)

// handlePostDeleted はpost.deletedイベントを処理し、投稿に紐づくメディアを
// ストレージとDBの両方から削除する。
//
// at-least-once配送の下で再配送されるため、処理は冪等でなければならない。
// レコードが見つからないメディアIDは処理済みとみなして黙ってスキップする。
// 個別メディアの削除失敗は収集してログに記録し、残りのIDの処理は継続する。
// ペイロードがデコードできない場合のみエラーを返し、再配送に委ねる。
func (s *Server) handlePostDeleted(ctx context.Context, body []byte) error {
	payload, err := event.Decode[event.PostDeletedPayload](body)
	if err != nil {
		return fmt.Errorf("post.deletedペイロードのデコードに失敗: %w", err)
	}

	var failed []string
	for _, mediaID := range payload.MediaIDs {
		m, err := s.queries.GetMediaByID(ctx, mediaID)
		if err == sql.ErrNoRows {
			// 削除済みまたは未知のID。再配送時にここを通る
			continue
		}
		if err != nil {
			log.Printf("メディアレコードの取得に失敗: mediaID=%s, error=%v", mediaID, err)
			failed = append(failed, mediaID)
			continue
		}

		if err := s.storage.Delete(ctx, m.ObjectKey); err != nil {
			log.Printf("ストレージからのメディア削除に失敗: mediaID=%s, key=%s, error=%v", mediaID, m.ObjectKey, err)
			failed = append(failed, mediaID)
			continue
		}

		// ストレージ削除が成功してからレコードを消す。逆順だと孤児オブジェクトが残る
		if err := s.queries.DeleteMedia(ctx, mediaID); err != nil {
			log.Printf("メディアレコードの削除に失敗: mediaID=%s, error=%v", mediaID, err)
			failed = append(failed, mediaID)
			continue
		}

		log.Printf("投稿削除に伴いメディアを削除しました: postID=%s, mediaID=%s", payload.PostID, mediaID)
	}

	if len(failed) > 0 {
		log.Printf("[ALERT] 投稿削除のカスケード処理で一部のメディアを削除できませんでした: postID=%s, failed=%v", payload.PostID, failed)
	}

	return nil
}
