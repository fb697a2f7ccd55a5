// Package session はプロセスごとに1つだけ存在するログイン状態を保持する。
package session

import (
	"context"
	"iter"
	"sync"

	"github.com/hitoshi/learnhub/internal/model"
)

// Session は現在のユーザー（0人または1人）と、初回の認証状態解決が済んだかを示すready フラグを保持する。
// 状態の変更は購読者ごとのキューに呼び出し順で積まれ、取りこぼしなく届く。
// 呼び出し側には常にコピーを返す。
type Session struct {
	mu        sync.Mutex
	current   *model.User
	ready     bool
	observers map[*observer]struct{}
}

// New は未ready・ユーザーなしのSessionを生成する。
func New() *Session {
	return &Session{
		observers: make(map[*observer]struct{}),
	}
}

// observer は1つの購読者に対する配信キュー。
type observer struct {
	mu     sync.Mutex
	queue  []*model.User
	notify chan struct{}
}

func newObserver() *observer {
	return &observer{notify: make(chan struct{}, 1)}
}

func (o *observer) push(u *model.User) {
	o.mu.Lock()
	o.queue = append(o.queue, u)
	o.mu.Unlock()

	select {
	case o.notify <- struct{}{}:
	default:
	}
}

func (o *observer) pop() (*model.User, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.queue) == 0 {
		return nil, false
	}
	u := o.queue[0]
	o.queue[0] = nil
	o.queue = o.queue[1:]
	return u, true
}

// Set は現在のユーザーを置き換える。nilはユーザーなしを表す。
// ready前の呼び出し、または内容が変わった場合にのみ購読者へ通知し、trueを返す。
// Setを呼ぶとSessionはreadyになる。
func (s *Session) Set(u *model.User) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready && s.current.Equal(u) {
		return false
	}
	s.current = u.Clone()
	s.ready = true
	s.broadcast()
	return true
}

// Clear は現在のユーザーをなしにする。Set(nil)と同じ。
func (s *Session) Clear() bool {
	return s.Set(nil)
}

// MarkReady は認証状態の通知がないままSessionをreadyにする。
// 既にreadyの場合は何もしない。
func (s *Session) MarkReady() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return
	}
	s.ready = true
	s.broadcast()
}

// broadcast は現在の状態を全購読者のキューに積む。s.muを保持して呼ぶ。
func (s *Session) broadcast() {
	for o := range s.observers {
		o.push(s.current.Clone())
	}
}

// Current は現在のユーザーのコピーとreadyフラグを返す。
// ready前はユーザーを返さない。
func (s *Session) Current() (*model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return nil, false
	}
	return s.current.Clone(), true
}

// Ready は初回の認証状態解決が済んだかどうかを返す。
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Observe は現在のユーザーが変わるたびにその値（またはnil）を返すシーケンスを返す。
// 反復開始時にreadyであれば、最初に現在の値を返す。
// ctxが終了するか、呼び出し側が反復を止めると購読を解除する。
func (s *Session) Observe(ctx context.Context) iter.Seq[*model.User] {
	return func(yield func(*model.User) bool) {
		o := newObserver()

		s.mu.Lock()
		if s.ready {
			o.push(s.current.Clone())
		}
		s.observers[o] = struct{}{}
		s.mu.Unlock()

		defer func() {
			s.mu.Lock()
			delete(s.observers, o)
			s.mu.Unlock()
		}()

		for {
			if u, ok := o.pop(); ok {
				if !yield(u) {
					return
				}
				continue
			}
			select {
			case <-ctx.Done():
				return
			case <-o.notify:
			}
		}
	}
}

// Observers は現在の購読者数を返す。
func (s *Session) Observers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.observers)
}
