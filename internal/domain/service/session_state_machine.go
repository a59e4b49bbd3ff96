package service

import (
	"GeoInfo-App/internal/domain/model"
	"GeoInfo-App/internal/domain/repository"
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
)

// SessionStateMachine は認証状態を管理し、永続化・ギャラリーの可否を切り替える
// 状態遷移はIDプロバイダーからの通知（HandleStateChange）でのみ行う
type SessionStateMachine struct {
	provider repository.IdentityProvider
	store    repository.PlaceRepository
	session  *SessionContext

	baseCtx         context.Context
	unsubscribeAuth func()

	// transitionMu は状態遷移を直列化する。プロバイダー呼び出し中は保持しない
	transitionMu sync.Mutex

	mu                   sync.RWMutex
	state                model.SessionState
	user                 *model.AuthUser
	awaitingVerification bool
}

// NewSessionStateMachine は新しいSessionStateMachineインスタンスを作成
func NewSessionStateMachine(provider repository.IdentityProvider, store repository.PlaceRepository, session *SessionContext) *SessionStateMachine {
	return &SessionStateMachine{
		provider: provider,
		store:    store,
		session:  session,
		baseCtx:  context.Background(),
		state:    model.SessionUnverifiedOrSignedOut,
	}
}

// Context はセッションに紐づく表示状態とPlace同期を返す
func (m *SessionStateMachine) Context() *SessionContext {
	return m.session
}

// Start は状態変化の購読を開始し、サイレントに匿名サインインする
// 既に匿名以外のセッションがある場合はその状態を引き継ぐ
func (m *SessionStateMachine) Start(ctx context.Context) {
	m.baseCtx = ctx
	m.unsubscribeAuth = m.provider.OnStateChange(m.HandleStateChange)

	if current := m.provider.CurrentUser(); current != nil && !current.IsAnonymous {
		log.Printf("🔑 既存セッションを引き継ぎ: %s", current.UID)
		m.HandleStateChange(current)
		return
	}

	if _, err := m.provider.SignInAnonymous(ctx); err != nil {
		log.Printf("⚠️ 匿名サインインに失敗: %v", err)
	}
}

// Close は購読をすべて解除する
func (m *SessionStateMachine) Close() {
	if m.unsubscribeAuth != nil {
		m.unsubscribeAuth()
		m.unsubscribeAuth = nil
	}
	m.session.Places.Detach()
}

// HandleStateChange はプロバイダーから通知されたユーザーで状態を遷移させる
func (m *SessionStateMachine) HandleStateChange(user *model.AuthUser) {
	m.transitionMu.Lock()
	defer m.transitionMu.Unlock()

	next := model.StateFor(user)
	if next == model.SessionAuthenticatedVerified {
		if err := m.session.Places.Attach(m.baseCtx, user.UID); err != nil {
			log.Printf("❌ 購読の開始に失敗: %v", err)
		}
	} else {
		m.session.Places.Detach()
	}

	var copied *model.AuthUser
	if user != nil {
		u := *user
		copied = &u
	}

	m.mu.Lock()
	prev := m.state
	m.state = next
	m.user = copied
	if next == model.SessionAuthenticatedVerified {
		m.awaitingVerification = false
	}
	m.mu.Unlock()

	if prev != next {
		log.Printf("🔄 セッション状態遷移: %s → %s", prev, next)
	}
}

// SignUp はアカウントを作成し、認証メールを送ってプロフィールを作成する
// メール認証が完了するまでAuthenticatedVerifiedにはならない
func (m *SessionStateMachine) SignUp(ctx context.Context, email, password, displayName string) error {
	email = strings.TrimSpace(email)
	displayName = strings.TrimSpace(displayName)

	user, err := m.provider.SignUp(ctx, email, password)
	if err != nil {
		return model.NewAuthError(err)
	}
	if err := m.provider.UpdateDisplayName(ctx, displayName); err != nil {
		return model.NewAuthError(err)
	}
	if err := m.provider.SendVerification(ctx); err != nil {
		return model.NewAuthError(err)
	}
	profile := &model.UserProfile{Username: displayName, Email: email, Points: 0}
	if err := m.store.CreateProfile(ctx, user.UID, profile); err != nil {
		return model.NewAuthError(fmt.Errorf("プロフィールの作成に失敗: %w", err))
	}

	m.mu.Lock()
	m.awaitingVerification = true
	m.mu.Unlock()

	log.Printf("📧 サインアップ完了、メール認証待ち: %s", user.UID)
	return nil
}

// SignIn はメールとパスワードでサインインする
// メール未認証の場合は即座にサインアウトしてエラーを返す
func (m *SessionStateMachine) SignIn(ctx context.Context, email, password string) error {
	user, err := m.provider.SignIn(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return model.NewAuthError(err)
	}
	if !user.EmailVerified {
		if err := m.provider.SignOut(ctx); err != nil {
			log.Printf("⚠️ 未認証ユーザーのサインアウトに失敗: %v", err)
		}
		return &model.AuthError{Message: model.MessageVerifyEmailFirst}
	}

	log.Printf("✅ サインイン: %s", user.UID)
	return nil
}

// SignOut はサインアウトし、購読とキャッシュを破棄して匿名セッションを再確立する
func (m *SessionStateMachine) SignOut(ctx context.Context) error {
	if err := m.provider.SignOut(ctx); err != nil {
		return model.NewAuthError(err)
	}
	m.session.Places.Detach()
	m.session.Reset()

	if _, err := m.provider.SignInAnonymous(ctx); err != nil {
		log.Printf("❌ サインアウト後の匿名サインインに失敗: %v", err)
		return model.NewAuthError(err)
	}
	log.Printf("👋 サインアウト完了、匿名セッションに戻りました")
	return nil
}

// State は現在の状態を返す
func (m *SessionStateMachine) State() model.SessionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// CanPersist は永続化とギャラリーが有効かどうか
func (m *SessionStateMachine) CanPersist() bool {
	return m.State() == model.SessionAuthenticatedVerified
}

// UserID は現在のユーザーID（セッションなしは空）
func (m *SessionStateMachine) UserID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return ""
	}
	return m.user.UID
}

// Persist は認証済みセッションの場合のみPlaceを現在のユーザーに保存する
// 保存しなかった場合は (false, nil) を返す
func (m *SessionStateMachine) Persist(ctx context.Context, place *model.Place) (bool, error) {
	return m.PersistFor(ctx, m.UserID(), place)
}

// PersistFor はownerUIDが今も認証済みセッションのユーザーである場合のみ保存する
// 解析中にユーザーが切り替わった場合は保存しない
func (m *SessionStateMachine) PersistFor(ctx context.Context, ownerUID string, place *model.Place) (bool, error) {
	m.mu.RLock()
	state := m.state
	var uid string
	if m.user != nil {
		uid = m.user.UID
	}
	m.mu.RUnlock()

	if state != model.SessionAuthenticatedVerified {
		log.Printf("ℹ️ 未認証セッションのため保存をスキップ: %s", place.Name)
		return false, nil
	}
	if ownerUID == "" || ownerUID != uid {
		log.Printf("ℹ️ 解析中にユーザーが切り替わったため保存をスキップ: %s", place.Name)
		return false, nil
	}
	return true, m.session.Places.Append(ctx, uid, place)
}

// View はクライアントに返すセッション情報を組み立てる
func (m *SessionStateMachine) View() model.SessionView {
	m.mu.RLock()
	view := model.SessionView{
		State:                m.state,
		AwaitingVerification: m.awaitingVerification,
		CanPersist:           m.state == model.SessionAuthenticatedVerified,
		Subtitle:             model.GetSubtitle(m.state),
	}
	if m.user != nil {
		view.UserID = m.user.UID
		view.DisplayName = m.user.DisplayName
	}
	m.mu.RUnlock()

	if view.State == model.SessionAuthenticatedVerified {
		if view.DisplayName == "" {
			view.DisplayName = model.DefaultDisplayName
		}
		if profile, ok := m.session.Places.Profile(); ok {
			view.Points = profile.Points
		}
	}
	return view
}
