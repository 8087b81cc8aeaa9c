// Package server は、静的ファイルを配信するHTTPサーバーを管理します。
//
// このパッケージは、HTTPサーバーの起動と停止、ルーティング、
// リクエスト単位のエラーをHTTPステータスへ変換する処理を担当します。
//
// 責務:
//   - リスナーのバインドと解放（バインド失敗は BindError）
//   - "/" へのデフォルトドキュメントの配信
//   - それ以外のパスを静的ルート配下のファイルとして配信
//   - リクエスト単位のエラー（404/400/405/500）への変換
//
// 仕様:
//   - ルーティングには gin を使用
//   - GET と HEAD 以外のメソッドは全パスで 405（Allow: GET, HEAD）
//   - ハンドラ内の panic は回復して 500 を返す
//   - h2c により平文のHTTP/2も受け付ける（設定で無効化可能）
//   - リクエスト間で共有する可変状態は持たない
package server
