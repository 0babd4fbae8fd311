// Package model はドメインモデルを定義する。
package model

import "fmt"

// ErrorKind はWebエラーの分類を表す。
// 回復可能なエラーはリダイレクト+通知またはフォーム再表示で処理され、
// リクエスト処理を停止させることはない。
type ErrorKind string

const (
	// KindUnauthenticated は有効なセッションを持たないリクエストを示す。
	KindUnauthenticated ErrorKind = "unauthenticated"
	// KindNotFound は対象エンティティが存在しないことを示す。
	KindNotFound ErrorKind = "not_found"
	// KindForbidden は認証済みだが所有者でないことを示す。
	KindForbidden ErrorKind = "forbidden"
	// KindConflict はユーザー名またはメールアドレスの重複登録を示す。
	KindConflict ErrorKind = "conflict"
	// KindValidation は入力値の形式・範囲違反を示す。
	KindValidation ErrorKind = "validation"
	// KindServerFault はストレージ等の基盤障害を示す。
	// 詳細はサーバーログのみに記録し、ユーザーには一般的な通知のみを返す。
	KindServerFault ErrorKind = "server_fault"
)

// WebError は分類とユーザー向け通知メッセージを持つエラー。
// バリデーションエラーの場合はFieldsにフィールド名→メッセージを保持し、
// フォーム再表示時のインライン表示に使用する。
type WebError struct {
	Kind    ErrorKind
	Message string            // ユーザーに表示する通知
	Fields  map[string]string // バリデーションエラーのフィールド別詳細
	cause   error             // ログ専用。クライアントには出さない。
}

// Error はerrorインターフェースを実装する。
func (e *WebError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap はラップされた基盤エラーを返す。
func (e *WebError) Unwrap() error {
	return e.cause
}

// ユーザー向け通知メッセージ。
const (
	MsgLoginRequired      = "ログインが必要です。"
	MsgMovieNotFound      = "映画が見つかりません。"
	MsgNotMovieOwner      = "編集・削除は自分が登録した映画のみ可能です。"
	MsgDuplicateUser      = "ユーザー名またはメールアドレスは既に使用されています。"
	MsgInvalidCredentials = "メールアドレスまたはパスワードが正しくありません。"
	MsgServerFault        = "サーバーエラーが発生しました。しばらく待ってから再度お試しください。"
)

// NewUnauthenticatedError は未認証エラーを生成する。
func NewUnauthenticatedError() *WebError {
	return &WebError{Kind: KindUnauthenticated, Message: MsgLoginRequired}
}

// NewMovieNotFoundError は映画未検出エラーを生成する。
func NewMovieNotFoundError() *WebError {
	return &WebError{Kind: KindNotFound, Message: MsgMovieNotFound}
}

// NewForbiddenError は所有者以外による操作エラーを生成する。
func NewForbiddenError() *WebError {
	return &WebError{Kind: KindForbidden, Message: MsgNotMovieOwner}
}

// NewConflictError は重複登録エラーを生成する。
func NewConflictError() *WebError {
	return &WebError{Kind: KindConflict, Message: MsgDuplicateUser}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// メールアドレス未登録とパスワード不一致を区別しない単一のメッセージを返す（ユーザー列挙対策）。
func NewInvalidCredentialsError() *WebError {
	return &WebError{Kind: KindValidation, Message: MsgInvalidCredentials}
}

// NewValidationError は入力値バリデーションエラーを生成する。
func NewValidationError(fields map[string]string) *WebError {
	return &WebError{Kind: KindValidation, Message: "入力内容を確認してください。", Fields: fields}
}

// NewServerFaultError は基盤障害エラーを生成する。
// causeはログ専用で、ユーザーへの通知には含まれない。
func NewServerFaultError(cause error) *WebError {
	return &WebError{Kind: KindServerFault, Message: MsgServerFault, cause: cause}
}
