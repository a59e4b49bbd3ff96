package repository

import (
	"GeoInfo-App/internal/domain/model"
	"context"
)

// Subscription はライブ購読のキャンセルハンドル
type Subscription interface {
	// Unsubscribe は購読を停止し、以降コールバックが呼ばれないことを保証してから戻る
	Unsubscribe()
}

// SubscriptionFunc は関数をSubscriptionとして扱うためのアダプター
type SubscriptionFunc func()

func (f SubscriptionFunc) Unsubscribe() { f() }

// PlaceRepository はユーザーごとのプロフィールとPlaceコレクションを保持するドキュメントストア
type PlaceRepository interface {
	// CreateProfile はプロフィールドキュメントを作成（上書き）する
	CreateProfile(ctx context.Context, userID string, profile *model.UserProfile) error
	// AddPlace はPlaceをコレクションに追加し、採番されたIDを返す
	AddPlace(ctx context.Context, userID string, place *model.Place) (string, error)
	// IncrementPoints はポイントをアトミックに加算する
	IncrementPoints(ctx context.Context, userID string, delta int) error
	// SubscribePlaces は変更のたびにコレクション全件のスナップショットを通知する
	SubscribePlaces(ctx context.Context, userID string, onSnapshot func([]*model.Place)) (Subscription, error)
	// SubscribeProfile はプロフィールの変更を通知する（ドキュメントが無い場合は通知しない）
	SubscribeProfile(ctx context.Context, userID string, onSnapshot func(*model.UserProfile)) (Subscription, error)
}
