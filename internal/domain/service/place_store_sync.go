package service

import (
	"GeoInfo-App/internal/domain/model"
	"GeoInfo-App/internal/domain/repository"
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
)

// PlaceStoreSync はリモートのPlaceコレクションとプロフィールをローカルキャッシュに同期する
type PlaceStoreSync struct {
	repo repository.PlaceRepository

	// attachMu はAttach/Detachを直列化する（購読コールバック中は取得しない）
	attachMu   sync.Mutex
	placesSub  repository.Subscription
	profileSub repository.Subscription

	mu      sync.RWMutex
	userID  string
	places  []*model.Place
	profile *model.UserProfile
}

// NewPlaceStoreSync は新しいPlaceStoreSyncインスタンスを作成
func NewPlaceStoreSync(repo repository.PlaceRepository) *PlaceStoreSync {
	return &PlaceStoreSync{repo: repo}
}

// Attach は指定ユーザーのプロフィールとPlaceコレクションの購読を開始する
// 既に別ユーザーを購読している場合は先に解除する
func (s *PlaceStoreSync) Attach(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("userIDは必須です")
	}

	s.attachMu.Lock()
	defer s.attachMu.Unlock()

	if s.AttachedUser() == userID && s.placesSub != nil {
		return nil
	}
	s.detachLocked()

	s.mu.Lock()
	s.userID = userID
	s.mu.Unlock()

	profileSub, err := s.repo.SubscribeProfile(ctx, userID, func(p *model.UserProfile) {
		s.replaceProfile(userID, p)
	})
	if err != nil {
		s.detachLocked()
		return fmt.Errorf("プロフィールの購読に失敗: %w", err)
	}
	s.profileSub = profileSub

	placesSub, err := s.repo.SubscribePlaces(ctx, userID, func(places []*model.Place) {
		s.replacePlaces(userID, places)
	})
	if err != nil {
		s.detachLocked()
		return fmt.Errorf("Placeコレクションの購読に失敗: %w", err)
	}
	s.placesSub = placesSub

	log.Printf("📡 購読開始: user=%s", userID)
	return nil
}

// Detach は購読を停止し、ローカルキャッシュを破棄する
func (s *PlaceStoreSync) Detach() {
	s.attachMu.Lock()
	defer s.attachMu.Unlock()
	s.detachLocked()
}

func (s *PlaceStoreSync) detachLocked() {
	if s.placesSub != nil {
		s.placesSub.Unsubscribe()
		s.placesSub = nil
	}
	if s.profileSub != nil {
		s.profileSub.Unsubscribe()
		s.profileSub = nil
	}

	s.mu.Lock()
	prev := s.userID
	s.userID = ""
	s.places = nil
	s.profile = nil
	s.mu.Unlock()

	if prev != "" {
		log.Printf("🔌 購読解除: user=%s", prev)
	}
}

// replacePlaces はスナップショットでキャッシュを丸ごと置き換える
func (s *PlaceStoreSync) replacePlaces(userID string, places []*model.Place) {
	cache := make([]*model.Place, 0, len(places))
	for _, p := range places {
		if p != nil {
			cache = append(cache, p.Clone())
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userID != userID {
		return
	}
	s.places = cache
}

func (s *PlaceStoreSync) replaceProfile(userID string, profile *model.UserProfile) {
	if profile == nil {
		return
	}
	p := *profile

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userID != userID {
		return
	}
	s.profile = &p
}

// Append はPlaceを保存し、ポイントを加算する（どちらもベストエフォートでロールバックしない）
func (s *PlaceStoreSync) Append(ctx context.Context, userID string, place *model.Place) error {
	if userID == "" || place == nil {
		return &model.WriteError{Op: "append", Err: errors.New("userIDとplaceは必須です")}
	}

	id, err := s.repo.AddPlace(ctx, userID, place)
	if err != nil {
		log.Printf("❌ Placeの保存に失敗: %v", err)
		return &model.WriteError{Op: "add place", Err: err}
	}
	log.Printf("💾 Place保存完了: %s (id=%s)", place.Name, id)

	if err := s.repo.IncrementPoints(ctx, userID, model.PointsPerDiscovery); err != nil {
		log.Printf("❌ ポイント加算に失敗: %v", err)
		return &model.WriteError{Op: "increment points", Err: err}
	}
	log.Printf("✅ ポイント加算: +%d (user=%s)", model.PointsPerDiscovery, userID)
	return nil
}

// AttachedUser は購読中のユーザーIDを返す
func (s *PlaceStoreSync) AttachedUser() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// Places はキャッシュのコピーを返す（順序は保証しない）
func (s *PlaceStoreSync) Places() []*model.Place {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Place, len(s.places))
	for i, p := range s.places {
		out[i] = p.Clone()
	}
	return out
}

// Gallery は作成日時の新しい順に並べたキャッシュのコピーを返す
func (s *PlaceStoreSync) Gallery() []*model.Place {
	places := s.Places()
	SortPlacesNewestFirst(places)
	return places
}

// FindPlace はIDでキャッシュからPlaceを探す
func (s *PlaceStoreSync) FindPlace(id string) (*model.Place, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.places {
		if p.ID == id {
			return p.Clone(), true
		}
	}
	return nil, false
}

// Profile はキャッシュされたプロフィールを返す
func (s *PlaceStoreSync) Profile() (model.UserProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return model.UserProfile{}, false
	}
	return *s.profile, true
}

// SortPlacesNewestFirst はCreatedAtの降順に並べ替える
func SortPlacesNewestFirst(places []*model.Place) {
	sort.SliceStable(places, func(i, j int) bool {
		return places[i].CreatedAt.After(places[j].CreatedAt)
	})
}
