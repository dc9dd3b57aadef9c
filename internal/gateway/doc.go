// Package gateway はAPIゲートウェイサービスを提供する。
//
// ゲートウェイはクライアントと内部サービスの唯一の境界であり、
// 受信リクエストを次の順で処理する。
//
//  1. レート制限: クライアントアドレス単位の固定ウィンドウ。共有ストアに
//     到達できない場合も拒否する（フェイルクローズ）。
//  2. 認証ゲート: 認証必須ルートのベアラートークンを共有シークレットで検証する。
//  3. 転送: パスの/v1プレフィックスを/apiに書き換え、検証済みユーザーIDを
//     X-User-IDヘッダーとして注入して転送先サービスへストリームする。
//
// ゲートウェイ自身はレート制限カウンタ以外の状態を持たない。
package gateway
