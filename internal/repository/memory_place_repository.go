package repository

import (
	"GeoInfo-App/internal/domain/model"
	"GeoInfo-App/internal/domain/repository"
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryPlaceRepository はプロセス内メモリで動くPlaceRepository（ローカル開発・テスト用）
// 通知は書き込みと同じgoroutineで同期的に行う
type MemoryPlaceRepository struct {
	mu       sync.Mutex
	profiles map[string]*model.UserProfile
	places   map[string][]*model.Place

	nextSubID       int
	placeWatchers   map[int]*placeWatcher
	profileWatchers map[int]*profileWatcher
}

type placeWatcher struct {
	userID string
	fn     func([]*model.Place)
}

type profileWatcher struct {
	userID string
	fn     func(*model.UserProfile)
}

// NewMemoryPlaceRepository は新しいMemoryPlaceRepositoryインスタンスを作成
func NewMemoryPlaceRepository() *MemoryPlaceRepository {
	return &MemoryPlaceRepository{
		profiles:        map[string]*model.UserProfile{},
		places:          map[string][]*model.Place{},
		placeWatchers:   map[int]*placeWatcher{},
		profileWatchers: map[int]*profileWatcher{},
	}
}

var _ repository.PlaceRepository = (*MemoryPlaceRepository)(nil)

func (r *MemoryPlaceRepository) CreateProfile(ctx context.Context, userID string, profile *model.UserProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := *profile
	r.profiles[userID] = &p
	r.notifyProfileLocked(userID)
	return nil
}

func (r *MemoryPlaceRepository) AddPlace(ctx context.Context, userID string, place *model.Place) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := place.Clone()
	stored.ID = uuid.NewString()
	r.places[userID] = append(r.places[userID], stored)
	r.notifyPlacesLocked(userID)
	return stored.ID, nil
}

func (r *MemoryPlaceRepository) IncrementPoints(ctx context.Context, userID string, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		return fmt.Errorf("プロフィールが見つかりません: %s", userID)
	}
	p.Points += delta
	r.notifyProfileLocked(userID)
	return nil
}

func (r *MemoryPlaceRepository) SubscribePlaces(ctx context.Context, userID string, onSnapshot func([]*model.Place)) (repository.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextSubID
	r.nextSubID++
	r.placeWatchers[id] = &placeWatcher{userID: userID, fn: onSnapshot}
	onSnapshot(r.snapshotLocked(userID))

	return repository.SubscriptionFunc(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.placeWatchers, id)
	}), nil
}

func (r *MemoryPlaceRepository) SubscribeProfile(ctx context.Context, userID string, onSnapshot func(*model.UserProfile)) (repository.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextSubID
	r.nextSubID++
	r.profileWatchers[id] = &profileWatcher{userID: userID, fn: onSnapshot}
	if p, ok := r.profiles[userID]; ok {
		c := *p
		onSnapshot(&c)
	}

	return repository.SubscriptionFunc(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.profileWatchers, id)
	}), nil
}

// Profile は保存済みのプロフィールを返す
func (r *MemoryPlaceRepository) Profile(userID string) (model.UserProfile, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		return model.UserProfile{}, false
	}
	return *p, true
}

// WatcherCount は有効な購読数を返す
func (r *MemoryPlaceRepository) WatcherCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.placeWatchers) + len(r.profileWatchers)
}

func (r *MemoryPlaceRepository) snapshotLocked(userID string) []*model.Place {
	out := make([]*model.Place, 0, len(r.places[userID]))
	for _, p := range r.places[userID] {
		out = append(out, p.Clone())
	}
	return out
}

func (r *MemoryPlaceRepository) notifyPlacesLocked(userID string) {
	for _, w := range r.placeWatchers {
		if w.userID == userID {
			w.fn(r.snapshotLocked(userID))
		}
	}
}

func (r *MemoryPlaceRepository) notifyProfileLocked(userID string) {
	p, ok := r.profiles[userID]
	if !ok {
		return
	}
	for _, w := range r.profileWatchers {
		if w.userID == userID {
			c := *p
			w.fn(&c)
		}
	}
}
