package auth

import (
	"GeoInfo-App/internal/domain/model"
	"GeoInfo-App/internal/domain/repository"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	defaultFirebaseBaseURL = "https://identitytoolkit.googleapis.com/v1"
	defaultFirebaseTimeout = 15 * time.Second
)

// FirebaseConfig はFirebaseIdentityProviderの設定
type FirebaseConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// FirebaseIdentityProvider はIdentity Toolkit REST APIを使ったIdentityProvider
type FirebaseIdentityProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	*stateNotifier

	tokenMu sync.Mutex
	idToken string
}

// NewFirebaseIdentityProvider は新しいFirebaseIdentityProviderインスタンスを作成
func NewFirebaseIdentityProvider(cfg FirebaseConfig) *FirebaseIdentityProvider {
	p := &FirebaseIdentityProvider{
		apiKey:        strings.TrimSpace(cfg.APIKey),
		baseURL:       strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		stateNotifier: newStateNotifier(),
	}
	if p.baseURL == "" {
		p.baseURL = defaultFirebaseBaseURL
	}
	if p.httpClient.Timeout <= 0 {
		p.httpClient.Timeout = defaultFirebaseTimeout
	}
	return p
}

var _ repository.IdentityProvider = (*FirebaseIdentityProvider)(nil)

// firebaseAuthResponse はsignUp/signInWithPasswordのレスポンス
type firebaseAuthResponse struct {
	IDToken     string `json:"idToken"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	LocalID     string `json:"localId"`
}

// firebaseLookupResponse はaccounts:lookupのレスポンス
type firebaseLookupResponse struct {
	Users []struct {
		LocalID       string `json:"localId"`
		Email         string `json:"email"`
		DisplayName   string `json:"displayName"`
		EmailVerified bool   `json:"emailVerified"`
	} `json:"users"`
}

type firebaseErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *FirebaseIdentityProvider) SignUp(ctx context.Context, email, password string) (*model.AuthUser, error) {
	var resp firebaseAuthResponse
	err := p.call(ctx, "accounts:signUp", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}

	p.setToken(resp.IDToken)
	user := &model.AuthUser{UID: resp.LocalID, Email: resp.Email, DisplayName: resp.DisplayName}
	log.Printf("✅ Firebaseアカウント作成: %s", user.UID)
	p.set(user)
	return copyUser(user), nil
}

func (p *FirebaseIdentityProvider) UpdateDisplayName(ctx context.Context, displayName string) error {
	token, err := p.requireToken()
	if err != nil {
		return err
	}
	if err := p.call(ctx, "accounts:update", map[string]any{
		"idToken":           token,
		"displayName":       displayName,
		"returnSecureToken": false,
	}, nil); err != nil {
		return err
	}
	p.update(func(u *model.AuthUser) { u.DisplayName = displayName })
	return nil
}

func (p *FirebaseIdentityProvider) SendVerification(ctx context.Context) error {
	token, err := p.requireToken()
	if err != nil {
		return err
	}
	return p.call(ctx, "accounts:sendOobCode", map[string]any{
		"requestType": "VERIFY_EMAIL",
		"idToken":     token,
	}, nil)
}

// SignIn はパスワードでサインインし、lookupでメール認証状態を取得する
func (p *FirebaseIdentityProvider) SignIn(ctx context.Context, email, password string) (*model.AuthUser, error) {
	var resp firebaseAuthResponse
	err := p.call(ctx, "accounts:signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}

	var lookup firebaseLookupResponse
	if err := p.call(ctx, "accounts:lookup", map[string]any{"idToken": resp.IDToken}, &lookup); err != nil {
		return nil, fmt.Errorf("ユーザー情報の取得に失敗: %w", err)
	}
	if len(lookup.Users) == 0 {
		return nil, errors.New("USER_NOT_FOUND")
	}

	u := lookup.Users[0]
	p.setToken(resp.IDToken)
	user := &model.AuthUser{
		UID:           u.LocalID,
		Email:         u.Email,
		DisplayName:   u.DisplayName,
		EmailVerified: u.EmailVerified,
	}
	p.set(user)
	return copyUser(user), nil
}

// SignOut はトークンを破棄する（Identity Toolkitにサーバー側のサインアウトはない）
func (p *FirebaseIdentityProvider) SignOut(ctx context.Context) error {
	p.setToken("")
	p.set(nil)
	return nil
}

func (p *FirebaseIdentityProvider) SignInAnonymous(ctx context.Context) (*model.AuthUser, error) {
	var resp firebaseAuthResponse
	if err := p.call(ctx, "accounts:signUp", map[string]any{"returnSecureToken": true}, &resp); err != nil {
		return nil, err
	}
	p.setToken(resp.IDToken)
	user := &model.AuthUser{UID: resp.LocalID, IsAnonymous: true}
	p.set(user)
	return copyUser(user), nil
}

func (p *FirebaseIdentityProvider) CurrentUser() *model.AuthUser {
	return p.get()
}

func (p *FirebaseIdentityProvider) OnStateChange(listener repository.AuthStateListener) func() {
	return p.subscribe(listener)
}

func (p *FirebaseIdentityProvider) setToken(token string) {
	p.tokenMu.Lock()
	defer p.tokenMu.Unlock()
	p.idToken = token
}

func (p *FirebaseIdentityProvider) requireToken() (string, error) {
	p.tokenMu.Lock()
	defer p.tokenMu.Unlock()
	if p.idToken == "" {
		return "", errors.New("no signed-in user")
	}
	return p.idToken, nil
}

// call はIdentity ToolkitのエンドポイントにPOSTし、エラー時はプロバイダーのメッセージを返す
func (p *FirebaseIdentityProvider) call(ctx context.Context, method string, payload any, out any) error {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("リクエストのシリアライズに失敗: %w", err)
	}

	url := fmt.Sprintf("%s/%s", p.baseURL, method)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(reqBody))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		log.Printf("❌ Identity Toolkit呼び出しに失敗 (%s): %v", method, err)
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("レスポンスの読み取りに失敗: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp firebaseErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
			return errors.New(errResp.Error.Message)
		}
		return fmt.Errorf("API Error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("レスポンスのパースに失敗: %w", err)
	}
	return nil
}
