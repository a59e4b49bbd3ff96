package usecase

import (
	"GeoInfo-App/internal/domain/model"
	"GeoInfo-App/internal/domain/service"
	"context"
)

type AuthUseCase interface {
	// SignUp はアカウントを作成し、メール認証待ちにする
	SignUp(ctx context.Context, email, password, username string) (model.SessionView, error)

	// SignIn はメール認証済みのアカウントでサインインする
	SignIn(ctx context.Context, email, password string) (model.SessionView, error)

	// SignOut はサインアウトして匿名セッションに戻る
	SignOut(ctx context.Context) (model.SessionView, error)

	// Session は現在のセッション情報を返す
	Session() model.SessionView
}

type authUseCaseImpl struct {
	session *service.SessionStateMachine
}

// NewAuthUseCase は新しいAuthUseCaseインスタンスを作成
func NewAuthUseCase(session *service.SessionStateMachine) AuthUseCase {
	return &authUseCaseImpl{session: session}
}

func (u *authUseCaseImpl) SignUp(ctx context.Context, email, password, username string) (model.SessionView, error) {
	err := u.session.SignUp(ctx, email, password, username)
	return u.session.View(), err
}

func (u *authUseCaseImpl) SignIn(ctx context.Context, email, password string) (model.SessionView, error) {
	err := u.session.SignIn(ctx, email, password)
	return u.session.View(), err
}

func (u *authUseCaseImpl) SignOut(ctx context.Context) (model.SessionView, error) {
	err := u.session.SignOut(ctx)
	return u.session.View(), err
}

func (u *authUseCaseImpl) Session() model.SessionView {
	return u.session.View()
}
