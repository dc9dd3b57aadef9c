package media

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/nao1215/socialhub/internal/media/storage"
	"github.com/nao1215/socialhub/pkg/bus"
	"github.com/nao1215/socialhub/pkg/event"
	_ "modernc.org/sqlite"
)

// failingStorage は特定のキーの削除だけ失敗するStorage実装。
type failingStorage struct {
	*storage.Memory
	// failKey は削除を失敗させるオブジェクトキー。
	failKey string
}

func (f *failingStorage) Delete(ctx context.Context, key string) error {
	if key == f.failKey {
		return fmt.Errorf("ストレージが応答しません: key=%s", key)
	}
	return f.Memory.Delete(ctx, key)
}

// publishPostDeleted はpost.deletedイベントをバスに発行するヘルパー関数。
func publishPostDeleted(t *testing.T, eventBus *bus.Memory, postID string, mediaIDs []string) {
	t.Helper()

	body, err := event.Encode(event.PostDeletedPayload{
		PostID:   postID,
		UserID:   "user-1",
		MediaIDs: mediaIDs,
	})
	if err != nil {
		t.Fatalf("イベントのエンコードに失敗: %v", err)
	}
	if err := eventBus.Publish(context.Background(), event.TopicPostDeleted, body); err != nil {
		t.Fatalf("イベントの発行に失敗: %v", err)
	}
}

func TestHandlePostDeleted(t *testing.T) {
	t.Parallel()

	t.Run("正常系_イベントに載ったメディアがストレージとDBの両方から消えること", func(t *testing.T) {
		t.Parallel()

		objectStorage := storage.NewMemory()
		s, router, eventBus := setupTestServer(t, objectStorage)

		m1 := uploadTestFile(t, router, "user-1", "one.jpg", []byte("1"))
		m2 := uploadTestFile(t, router, "user-1", "two.jpg", []byte("2"))

		publishPostDeleted(t, eventBus, "post-1", []string{m1.MediaID, m2.MediaID})

		if objectStorage.Len() != 0 {
			t.Errorf("期待するオブジェクト数 0, 実際のオブジェクト数 %d", objectStorage.Len())
		}
		if results := listMedia(t, router, "user-1"); len(results) != 0 {
			t.Errorf("期待するメディア数 0, 実際のメディア数 %d", len(results))
		}
		if _, err := s.queries.GetMediaByID(context.Background(), m1.MediaID); err != sql.ErrNoRows {
			t.Errorf("メディアレコードが残っています: %v", err)
		}
	})

	t.Run("正常系_同じイベントの二重配送が冪等であること", func(t *testing.T) {
		t.Parallel()

		objectStorage := storage.NewMemory()
		_, router, eventBus := setupTestServer(t, objectStorage)

		m1 := uploadTestFile(t, router, "user-1", "one.jpg", []byte("1"))

		publishPostDeleted(t, eventBus, "post-1", []string{m1.MediaID})
		// at-least-once配送の再現。2回目は全IDがスキップされる
		publishPostDeleted(t, eventBus, "post-1", []string{m1.MediaID})

		if objectStorage.Len() != 0 {
			t.Errorf("期待するオブジェクト数 0, 実際のオブジェクト数 %d", objectStorage.Len())
		}
		if results := listMedia(t, router, "user-1"); len(results) != 0 {
			t.Errorf("期待するメディア数 0, 実際のメディア数 %d", len(results))
		}
	})

	t.Run("正常系_未知のメディアIDはスキップされること", func(t *testing.T) {
		t.Parallel()

		objectStorage := storage.NewMemory()
		_, router, eventBus := setupTestServer(t, objectStorage)

		m1 := uploadTestFile(t, router, "user-1", "one.jpg", []byte("1"))

		publishPostDeleted(t, eventBus, "post-1", []string{"unknown-id", m1.MediaID})

		if results := listMedia(t, router, "user-1"); len(results) != 0 {
			t.Errorf("期待するメディア数 0, 実際のメディア数 %d", len(results))
		}
	})

	t.Run("正常系_一部の削除に失敗しても残りは処理されること", func(t *testing.T) {
		t.Parallel()

		s, router, _ := setupTestServer(t, storage.NewMemory())

		m1 := uploadTestFile(t, router, "user-1", "one.jpg", []byte("1"))
		m2 := uploadTestFile(t, router, "user-1", "two.jpg", []byte("2"))

		// m1のオブジェクトキーの削除だけ失敗させる
		record1, err := s.queries.GetMediaByID(context.Background(), m1.MediaID)
		if err != nil {
			t.Fatalf("メディアレコードの取得に失敗: %v", err)
		}
		base := s.storage.(*storage.Memory)
		s.storage = &failingStorage{Memory: base, failKey: record1.ObjectKey}

		body, err := event.Encode(event.PostDeletedPayload{
			PostID:   "post-1",
			UserID:   "user-1",
			MediaIDs: []string{m1.MediaID, m2.MediaID},
		})
		if err != nil {
			t.Fatalf("イベントのエンコードに失敗: %v", err)
		}

		// 一部失敗でもハンドラはエラーを返さない（再配送させない）
		if err := s.handlePostDeleted(context.Background(), body); err != nil {
			t.Fatalf("ハンドラがエラーを返しました: %v", err)
		}

		// m2は消え、m1はレコードが残る
		if _, err := s.queries.GetMediaByID(context.Background(), m2.MediaID); err != sql.ErrNoRows {
			t.Errorf("m2のメディアレコードが残っています: %v", err)
		}
		if _, err := s.queries.GetMediaByID(context.Background(), m1.MediaID); err != nil {
			t.Errorf("m1のメディアレコードが消えています: %v", err)
		}
	})

	t.Run("異常系_デコードできないペイロードはエラーを返すこと", func(t *testing.T) {
		t.Parallel()

		s, _, _ := setupTestServer(t, storage.NewMemory())

		if err := s.handlePostDeleted(context.Background(), []byte("{不正")); err == nil {
			t.Error("不正なペイロードの処理が成功しました")
		}
	})
}
