package model

// Mode はバックエンドの動作モードを表す。
type Mode string

const (
	// ModeRemote はリモートバックエンドで処理したことを示す。
	ModeRemote Mode = "remote"
	// ModeFallback はローカルのフォールバックで処理したことを示す。
	ModeFallback Mode = "fallback"
	// ModeUnavailable はバックエンドに到達できず、フォールバックも無効であることを示す。
	ModeUnavailable Mode = "unavailable"
)

// Result は主たる処理結果と、意図的に握りつぶした副次的な失敗を併せて保持する。
// Diagnosticがnilでない場合でも、処理自体は成功として扱う。
type Result[T any] struct {
	Value      T
	Mode       Mode
	Diagnostic error
}

// Degraded は副次的な失敗を握りつぶしたかどうかを返す。
func (r Result[T]) Degraded() bool {
	return r.Diagnostic != nil
}
