package repository

import (
	"GeoInfo-App/internal/domain/model"
	"context"
)

// AuthStateListener は認証状態の変化を受け取るコールバック（nilはセッションなし）
type AuthStateListener func(user *model.AuthUser)

// IdentityProvider は外部IDプロバイダーの機能インターフェース
type IdentityProvider interface {
	SignUp(ctx context.Context, email, password string) (*model.AuthUser, error)
	UpdateDisplayName(ctx context.Context, displayName string) error
	SendVerification(ctx context.Context) error
	SignIn(ctx context.Context, email, password string) (*model.AuthUser, error)
	SignOut(ctx context.Context) error
	SignInAnonymous(ctx context.Context) (*model.AuthUser, error)
	CurrentUser() *model.AuthUser
	// OnStateChange はリスナーを登録し、登録解除用の関数を返す
	OnStateChange(listener AuthStateListener) (unsubscribe func())
}
