package auth

import (
	"GeoInfo-App/internal/domain/model"
	"GeoInfo-App/internal/domain/repository"
	"context"
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"
	gotrue "github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"
	"github.com/supabase-community/supabase-go"
)

// displayNameKey はuser_metadataに保存する表示名のキー
const displayNameKey = "display_name"

// gotrueAPI はこのアダプターが使うGoTrueの操作
type gotrueAPI interface {
	Signup(req types.SignupRequest) (*types.SignupResponse, error)
	SignInWithEmailPassword(email, password string) (*types.TokenResponse, error)
	WithToken(token string) gotrue.Client
}

// SupabaseIdentityProvider はSupabase Auth（GoTrue）を使ったIdentityProvider
type SupabaseIdentityProvider struct {
	auth gotrueAPI

	*stateNotifier

	tokenMu     sync.Mutex
	accessToken string
}

// NewSupabaseIdentityProvider は新しいSupabaseIdentityProviderインスタンスを作成
func NewSupabaseIdentityProvider(client *supabase.Client) *SupabaseIdentityProvider {
	return newSupabaseIdentityProvider(client.Auth)
}

func newSupabaseIdentityProvider(auth gotrueAPI) *SupabaseIdentityProvider {
	return &SupabaseIdentityProvider{
		auth:          auth,
		stateNotifier: newStateNotifier(),
	}
}

var _ repository.IdentityProvider = (*SupabaseIdentityProvider)(nil)

// SignUp はアカウントを作成する
// メール確認が有効な場合はセッションが返らないため、確認前のユーザーとして通知する
func (p *SupabaseIdentityProvider) SignUp(ctx context.Context, email, password string) (*model.AuthUser, error) {
	resp, err := p.auth.Signup(types.SignupRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	u := resp.User
	if resp.Session.AccessToken != "" {
		u = resp.Session.User
	}
	p.setToken(resp.Session.AccessToken)

	user := toAuthUser(u, false)
	log.Printf("✅ Supabaseアカウント作成: %s", user.UID)
	p.set(user)
	return copyUser(user), nil
}

// UpdateDisplayName はuser_metadataに表示名を保存する
// セッションが無い（メール確認待ち）場合はローカルのみ更新する
func (p *SupabaseIdentityProvider) UpdateDisplayName(ctx context.Context, displayName string) error {
	if token := p.token(); token != "" {
		_, err := p.auth.WithToken(token).UpdateUser(types.UpdateUserRequest{
			Data: map[string]interface{}{displayNameKey: displayName},
		})
		if err != nil {
			return err
		}
	} else if p.get() == nil {
		return errors.New("no signed-in user")
	}
	p.update(func(u *model.AuthUser) { u.DisplayName = displayName })
	return nil
}

// SendVerification はサインアップ時にSupabaseが確認メールを送るため何もしない
func (p *SupabaseIdentityProvider) SendVerification(ctx context.Context) error {
	log.Printf("ℹ️ 確認メールはSupabaseがサインアップ時に送信済み")
	return nil
}

func (p *SupabaseIdentityProvider) SignIn(ctx context.Context, email, password string) (*model.AuthUser, error) {
	resp, err := p.auth.SignInWithEmailPassword(email, password)
	if err != nil {
		return nil, err
	}
	p.setToken(resp.AccessToken)
	user := toAuthUser(resp.User, false)
	p.set(user)
	return copyUser(user), nil
}

func (p *SupabaseIdentityProvider) SignOut(ctx context.Context) error {
	if token := p.token(); token != "" {
		if err := p.auth.WithToken(token).Logout(); err != nil {
			log.Printf("⚠️ Supabaseのログアウトに失敗（ローカルセッションは破棄）: %v", err)
		}
	}
	p.setToken("")
	p.set(nil)
	return nil
}

// SignInAnonymous はメールアドレスなしのサインアップで匿名ユーザーを作成する
func (p *SupabaseIdentityProvider) SignInAnonymous(ctx context.Context) (*model.AuthUser, error) {
	resp, err := p.auth.Signup(types.SignupRequest{})
	if err != nil {
		return nil, err
	}
	p.setToken(resp.Session.AccessToken)
	u := resp.Session.User
	if u.ID == uuid.Nil {
		u = resp.User
	}
	user := toAuthUser(u, true)
	p.set(user)
	return copyUser(user), nil
}

func (p *SupabaseIdentityProvider) CurrentUser() *model.AuthUser {
	return p.get()
}

func (p *SupabaseIdentityProvider) OnStateChange(listener repository.AuthStateListener) func() {
	return p.subscribe(listener)
}

func (p *SupabaseIdentityProvider) setToken(token string) {
	p.tokenMu.Lock()
	defer p.tokenMu.Unlock()
	p.accessToken = token
}

func (p *SupabaseIdentityProvider) token() string {
	p.tokenMu.Lock()
	defer p.tokenMu.Unlock()
	return p.accessToken
}

func toAuthUser(u types.User, anonymous bool) *model.AuthUser {
	user := &model.AuthUser{
		UID:           u.ID.String(),
		Email:         u.Email,
		IsAnonymous:   anonymous,
		EmailVerified: !anonymous && u.EmailConfirmedAt != nil,
	}
	if name, ok := u.UserMetadata[displayNameKey].(string); ok {
		user.DisplayName = name
	}
	return user
}
