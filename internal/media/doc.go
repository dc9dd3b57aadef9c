// Package media はメディアサービスを提供する。
//
// メディアファイルのアップロードと一覧取得を持ち、ファイル本体は
// S3互換オブジェクトストレージに、メタデータはDBに保存する。
// post.deletedイベントを購読し、削除された投稿に紐づくメディアを
// ストレージとDBの両方からカスケード削除する。
package media
