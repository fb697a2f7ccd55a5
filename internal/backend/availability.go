// Package backend はリモートバックエンドの可用性判定と、
// リモート/フォールバックの切り替えを提供する。
package backend

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Availability はリモートバックエンドが現在利用可能かどうかを判定する。
// モードに依存する各操作の前に1回問い合わせる。
type Availability interface {
	Available(ctx context.Context) bool
}

// Pinger はバックエンドへの疎通確認を行う。*sql.DBが満たす。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// StatusRecorder は到達可否の変化を記録する。
type StatusRecorder interface {
	RecordBackendAvailable(available bool)
}

// DefaultPingTimeout は1回の疎通確認の上限時間。
const DefaultPingTimeout = 2 * time.Second

// Probe はPingerで疎通確認を行うAvailabilityの実装。
// 疎通確認は設定間隔につき最大1回とし、間の問い合わせには直前の結果を返す。
type Probe struct {
	pinger    Pinger
	timeout   time.Duration
	recorder  StatusRecorder
	sometimes *rate.Sometimes

	mu        sync.RWMutex
	available bool
	checked   bool
}

// NewProbe はProbeを生成する。
// pingerがnilの場合はバックエンド未設定として常に利用不可を返す。
// intervalが0以下の場合は毎回疎通確認を行う。
func NewProbe(pinger Pinger, interval time.Duration, recorder StatusRecorder) *Probe {
	s := &rate.Sometimes{Interval: interval}
	if interval <= 0 {
		s = &rate.Sometimes{Every: 1}
	}
	p := &Probe{
		pinger:    pinger,
		timeout:   DefaultPingTimeout,
		recorder:  recorder,
		sometimes: s,
	}
	if recorder != nil {
		recorder.RecordBackendAvailable(false)
	}
	return p
}

// Available はリモートバックエンドが利用可能かどうかを返す。
func (p *Probe) Available(ctx context.Context) bool {
	if p.pinger == nil {
		return false
	}

	p.sometimes.Do(func() {
		p.check(ctx)
	})

	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.available
}

// Invalidate は次回の疎通確認までリモートバックエンドを利用不可として扱う。
// リモート操作が接続エラーで失敗した直後に呼び出す。
func (p *Probe) Invalidate() {
	if p.pinger == nil {
		return
	}
	p.mu.Lock()
	p.available = false
	p.mu.Unlock()
	if p.recorder != nil {
		p.recorder.RecordBackendAvailable(false)
	}
}

// check は呼び出し元のキャンセルに影響されないctxで疎通確認を行う。
// 結果は間隔の間キャッシュされるため、1つのリクエストの中断で判定を変えない。
func (p *Probe) check(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	err := p.pinger.PingContext(pingCtx)
	now := err == nil

	p.mu.Lock()
	changed := !p.checked || p.available != now
	p.available = now
	p.checked = true
	p.mu.Unlock()

	if !changed {
		return
	}
	if now {
		slog.Info("remote backend available")
	} else {
		slog.Warn("remote backend unavailable",
			slog.String("error", err.Error()),
		)
	}
	if p.recorder != nil {
		p.recorder.RecordBackendAvailable(now)
	}
}

// Static は固定値を返すAvailability。バックエンド無効時やテストで使う。
type Static bool

// Available は固定値を返す。
func (s Static) Available(context.Context) bool {
	return bool(s)
}

var (
	_ Availability = (*Probe)(nil)
	_ Availability = Static(false)
)
