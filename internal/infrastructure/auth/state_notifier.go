package auth

import (
	"GeoInfo-App/internal/domain/model"
	"GeoInfo-App/internal/domain/repository"
	"sync"
)

// stateNotifier は現在のユーザーを保持し、変化をリスナーへ同期的に通知する
type stateNotifier struct {
	mu        sync.Mutex
	current   *model.AuthUser
	nextID    int
	listeners map[int]repository.AuthStateListener
}

func newStateNotifier() *stateNotifier {
	return &stateNotifier{listeners: map[int]repository.AuthStateListener{}}
}

// set はユーザーを差し替えて通知する。リスナーはロック外で呼ぶ
func (n *stateNotifier) set(user *model.AuthUser) {
	n.mu.Lock()
	n.current = copyUser(user)
	listeners := make([]repository.AuthStateListener, 0, len(n.listeners))
	for _, l := range n.listeners {
		listeners = append(listeners, l)
	}
	n.mu.Unlock()

	for _, l := range listeners {
		l(copyUser(user))
	}
}

// update は通知せずに現在のユーザーを書き換える（表示名の更新など）
func (n *stateNotifier) update(fn func(u *model.AuthUser)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current != nil {
		fn(n.current)
	}
}

func (n *stateNotifier) get() *model.AuthUser {
	n.mu.Lock()
	defer n.mu.Unlock()
	return copyUser(n.current)
}

func (n *stateNotifier) subscribe(listener repository.AuthStateListener) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	n.listeners[id] = listener
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.listeners, id)
	}
}

func copyUser(u *model.AuthUser) *model.AuthUser {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
