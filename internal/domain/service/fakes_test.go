package service

import (
	"GeoInfo-App/internal/domain/model"
	"GeoInfo-App/internal/domain/repository"
	"context"
	"errors"
	"fmt"
	"sync"
)

// fakeIdentityProvider は状態変化を同期的に通知するIdentityProvider
type fakeIdentityProvider struct {
	mu        sync.Mutex
	accounts  map[string]*fakeAccount
	current   *model.AuthUser
	listeners map[int]repository.AuthStateListener
	nextID    int
	nextUID   int

	signUpErr    error
	anonErr      error
	signOutCalls int
	verifySent   int
}

type fakeAccount struct {
	password string
	user     model.AuthUser
}

func newFakeIdentityProvider() *fakeIdentityProvider {
	return &fakeIdentityProvider{
		accounts:  map[string]*fakeAccount{},
		listeners: map[int]repository.AuthStateListener{},
	}
}

// addAccount はテスト用のアカウントを登録する
func (p *fakeIdentityProvider) addAccount(email, password, uid string, verified bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accounts[email] = &fakeAccount{
		password: password,
		user:     model.AuthUser{UID: uid, Email: email, DisplayName: uid, EmailVerified: verified},
	}
}

func (p *fakeIdentityProvider) verify(email string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accounts[email].user.EmailVerified = true
}

func (p *fakeIdentityProvider) emit(user *model.AuthUser) {
	p.mu.Lock()
	p.current = user
	listeners := make([]repository.AuthStateListener, 0, len(p.listeners))
	for _, l := range p.listeners {
		listeners = append(listeners, l)
	}
	p.mu.Unlock()

	for _, l := range listeners {
		if user == nil {
			l(nil)
			continue
		}
		u := *user
		l(&u)
	}
}

func (p *fakeIdentityProvider) SignUp(ctx context.Context, email, password string) (*model.AuthUser, error) {
	if p.signUpErr != nil {
		return nil, p.signUpErr
	}
	p.mu.Lock()
	if _, exists := p.accounts[email]; exists {
		p.mu.Unlock()
		return nil, errors.New("EMAIL_EXISTS")
	}
	p.nextUID++
	acc := &fakeAccount{password: password, user: model.AuthUser{UID: fmt.Sprintf("user-%d", p.nextUID), Email: email}}
	p.accounts[email] = acc
	user := acc.user
	p.mu.Unlock()

	p.emit(&user)
	return &user, nil
}

func (p *fakeIdentityProvider) UpdateDisplayName(ctx context.Context, displayName string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return errors.New("no current user")
	}
	p.current.DisplayName = displayName
	if acc, ok := p.accounts[p.current.Email]; ok {
		acc.user.DisplayName = displayName
	}
	return nil
}

func (p *fakeIdentityProvider) SendVerification(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.verifySent++
	return nil
}

func (p *fakeIdentityProvider) SignIn(ctx context.Context, email, password string) (*model.AuthUser, error) {
	p.mu.Lock()
	acc, ok := p.accounts[email]
	if !ok || acc.password != password {
		p.mu.Unlock()
		return nil, errors.New("INVALID_LOGIN_CREDENTIALS")
	}
	user := acc.user
	p.mu.Unlock()

	p.emit(&user)
	return &user, nil
}

func (p *fakeIdentityProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	p.signOutCalls++
	p.mu.Unlock()
	p.emit(nil)
	return nil
}

func (p *fakeIdentityProvider) SignInAnonymous(ctx context.Context) (*model.AuthUser, error) {
	if p.anonErr != nil {
		return nil, p.anonErr
	}
	p.mu.Lock()
	p.nextUID++
	user := model.AuthUser{UID: fmt.Sprintf("anon-%d", p.nextUID), IsAnonymous: true}
	p.mu.Unlock()

	p.emit(&user)
	return &user, nil
}

func (p *fakeIdentityProvider) CurrentUser() *model.AuthUser {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	u := *p.current
	return &u
}

func (p *fakeIdentityProvider) OnStateChange(listener repository.AuthStateListener) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = listener
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

// recordingRepository は購読の開始・解除の順序を記録するPlaceRepository
type recordingRepository struct {
	repository.PlaceRepository

	mu     sync.Mutex
	events []string

	addErr       error
	incrementErr error
}

func (r *recordingRepository) record(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingRepository) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recordingRepository) AddPlace(ctx context.Context, userID string, place *model.Place) (string, error) {
	if r.addErr != nil {
		return "", r.addErr
	}
	r.record("add:" + userID)
	return r.PlaceRepository.AddPlace(ctx, userID, place)
}

func (r *recordingRepository) IncrementPoints(ctx context.Context, userID string, delta int) error {
	if r.incrementErr != nil {
		return r.incrementErr
	}
	r.record(fmt.Sprintf("increment:%s:%d", userID, delta))
	return r.PlaceRepository.IncrementPoints(ctx, userID, delta)
}

func (r *recordingRepository) SubscribePlaces(ctx context.Context, userID string, onSnapshot func([]*model.Place)) (repository.Subscription, error) {
	r.record("subscribe-places:" + userID)
	sub, err := r.PlaceRepository.SubscribePlaces(ctx, userID, onSnapshot)
	if err != nil {
		return nil, err
	}
	return repository.SubscriptionFunc(func() {
		sub.Unsubscribe()
		r.record("unsubscribe-places:" + userID)
	}), nil
}

func (r *recordingRepository) SubscribeProfile(ctx context.Context, userID string, onSnapshot func(*model.UserProfile)) (repository.Subscription, error) {
	r.record("subscribe-profile:" + userID)
	sub, err := r.PlaceRepository.SubscribeProfile(ctx, userID, onSnapshot)
	if err != nil {
		return nil, err
	}
	return repository.SubscriptionFunc(func() {
		sub.Unsubscribe()
		r.record("unsubscribe-profile:" + userID)
	}), nil
}
