package repository

import (
	"GeoInfo-App/internal/domain/model"
	"GeoInfo-App/internal/domain/repository"
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestorePlaceRepository Firestoreを使用したPlaceコレクション・プロフィールのリポジトリ
// パス: artifacts/{appID}/users/{uid} と artifacts/{appID}/users/{uid}/places
type FirestorePlaceRepository struct {
	client *firestore.Client
	appID  string
}

// NewFirestorePlaceRepository 新しいFirestorePlaceRepositoryインスタンスを作成
func NewFirestorePlaceRepository(client *firestore.Client, appID string) *FirestorePlaceRepository {
	return &FirestorePlaceRepository{
		client: client,
		appID:  appID,
	}
}

var _ repository.PlaceRepository = (*FirestorePlaceRepository)(nil)

// firestorePlace Firestoreに保存するPlaceドキュメント
type firestorePlace struct {
	Name      string    `firestore:"name"`
	Latitude  float64   `firestore:"latitude"`
	Longitude float64   `firestore:"longitude"`
	Info      string    `firestore:"info"`
	ImageURL  string    `firestore:"imageUrl"`
	CreatedAt time.Time `firestore:"createdAt"`
}

func toFirestorePlace(p *model.Place) firestorePlace {
	return firestorePlace{
		Name:      p.Name,
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		Info:      p.Info,
		ImageURL:  p.ImageURL,
		CreatedAt: p.CreatedAt,
	}
}

func (f firestorePlace) toPlace(id string) *model.Place {
	return &model.Place{
		ID:        id,
		Name:      f.Name,
		Latitude:  f.Latitude,
		Longitude: f.Longitude,
		Info:      f.Info,
		ImageURL:  f.ImageURL,
		CreatedAt: f.CreatedAt,
	}
}

func (r *FirestorePlaceRepository) userDoc(userID string) *firestore.DocumentRef {
	return r.client.Collection("artifacts").Doc(r.appID).Collection("users").Doc(userID)
}

func (r *FirestorePlaceRepository) placesCollection(userID string) *firestore.CollectionRef {
	return r.userDoc(userID).Collection("places")
}

// CreateProfile はユーザードキュメントを作成（上書き）する
func (r *FirestorePlaceRepository) CreateProfile(ctx context.Context, userID string, profile *model.UserProfile) error {
	if _, err := r.userDoc(userID).Set(ctx, profile); err != nil {
		return fmt.Errorf("プロフィールの保存に失敗しました: %w", err)
	}
	log.Printf("✅ Profile saved: %s", userID)
	return nil
}

// AddPlace はPlaceを自動採番IDで追加する
func (r *FirestorePlaceRepository) AddPlace(ctx context.Context, userID string, place *model.Place) (string, error) {
	ref, _, err := r.placesCollection(userID).Add(ctx, toFirestorePlace(place))
	if err != nil {
		return "", fmt.Errorf("Placeの保存に失敗しました: %w", err)
	}
	return ref.ID, nil
}

// IncrementPoints はpointsフィールドをアトミックに加算する
func (r *FirestorePlaceRepository) IncrementPoints(ctx context.Context, userID string, delta int) error {
	_, err := r.userDoc(userID).Update(ctx, []firestore.Update{
		{Path: "points", Value: firestore.Increment(delta)},
	})
	if err != nil {
		return fmt.Errorf("ポイントの更新に失敗しました: %w", err)
	}
	return nil
}

// SubscribePlaces はPlaceコレクションのスナップショットを購読する
func (r *FirestorePlaceRepository) SubscribePlaces(ctx context.Context, userID string, onSnapshot func([]*model.Place)) (repository.Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	it := r.placesCollection(userID).Snapshots(subCtx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				if !isStreamClosed(err) {
					log.Printf("❌ Placeコレクションの購読エラー (user=%s): %v", userID, err)
				}
				return
			}
			docs, err := snap.Documents.GetAll()
			if err != nil {
				log.Printf("⚠️ スナップショットの読み込みに失敗 (user=%s): %v", userID, err)
				continue
			}
			places := make([]*model.Place, 0, len(docs))
			for _, doc := range docs {
				var data firestorePlace
				if err := doc.DataTo(&data); err != nil {
					log.Printf("⚠️ Placeドキュメントの変換に失敗 (%s): %v", doc.Ref.ID, err)
					continue
				}
				places = append(places, data.toPlace(doc.Ref.ID))
			}
			onSnapshot(places)
		}
	}()

	return stopFunc(cancel, done), nil
}

// SubscribeProfile はユーザードキュメントのスナップショットを購読する
func (r *FirestorePlaceRepository) SubscribeProfile(ctx context.Context, userID string, onSnapshot func(*model.UserProfile)) (repository.Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	it := r.userDoc(userID).Snapshots(subCtx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				if !isStreamClosed(err) {
					log.Printf("❌ プロフィールの購読エラー (user=%s): %v", userID, err)
				}
				return
			}
			if !snap.Exists() {
				continue
			}
			var profile model.UserProfile
			if err := snap.DataTo(&profile); err != nil {
				log.Printf("⚠️ プロフィールの変換に失敗 (user=%s): %v", userID, err)
				continue
			}
			onSnapshot(&profile)
		}
	}()

	return stopFunc(cancel, done), nil
}

// stopFunc はキャンセル後、購読goroutineの終了を待つSubscriptionを返す
func stopFunc(cancel context.CancelFunc, done <-chan struct{}) repository.Subscription {
	return repository.SubscriptionFunc(func() {
		cancel()
		<-done
	})
}

// isStreamClosed は購読の正常終了（Stop・キャンセル）かどうか
func isStreamClosed(err error) bool {
	if errors.Is(err, iterator.Done) || errors.Is(err, context.Canceled) {
		return true
	}
	return status.Code(err) == codes.Canceled
}
