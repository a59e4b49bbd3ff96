package service

import (
	"GeoInfo-App/internal/domain/model"
	repoimpl "GeoInfo-App/internal/repository"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessionFixture struct {
	provider *fakeIdentityProvider
	repo     *recordingRepository
	mem      *repoimpl.MemoryPlaceRepository
	machine  *SessionStateMachine
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	provider := newFakeIdentityProvider()
	repo, mem := newRecordingRepo()
	machine := NewSessionStateMachine(provider, repo, NewSessionContext(NewPlaceStoreSync(repo)))
	t.Cleanup(machine.Close)
	return &sessionFixture{provider: provider, repo: repo, mem: mem, machine: machine}
}

func TestSessionStartSignsInAnonymously(t *testing.T) {
	f := newSessionFixture(t)
	assert.Equal(t, model.SessionUnverifiedOrSignedOut, f.machine.State())

	f.machine.Start(context.Background())

	assert.Equal(t, model.SessionAnonymous, f.machine.State())
	assert.False(t, f.machine.CanPersist())
	view := f.machine.View()
	assert.Equal(t, model.GetSubtitle(model.SessionAnonymous), view.Subtitle)
	assert.Empty(t, f.repo.Events())
}

func TestSessionStartKeepsExistingMemberSession(t *testing.T) {
	f := newSessionFixture(t)
	f.provider.addAccount("a@example.com", "pw", "alice", true)
	_, err := f.provider.SignIn(context.Background(), "a@example.com", "pw")
	require.NoError(t, err)

	f.machine.Start(context.Background())
	assert.Equal(t, model.SessionAuthenticatedVerified, f.machine.State())
	assert.Equal(t, "alice", f.machine.session.Places.AttachedUser())
}

func TestSessionStartToleratesAnonymousFailure(t *testing.T) {
	f := newSessionFixture(t)
	f.provider.anonErr = errors.New("ADMIN_ONLY_OPERATION")
	f.machine.Start(context.Background())
	assert.Equal(t, model.SessionUnverifiedOrSignedOut, f.machine.State())
}

func TestSessionSignUpAwaitsVerification(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t)
	f.machine.Start(ctx)

	require.NoError(t, f.machine.SignUp(ctx, " new@example.com ", "secret1", "Explorer"))

	view := f.machine.View()
	assert.Equal(t, model.SessionUnverifiedOrSignedOut, view.State)
	assert.True(t, view.AwaitingVerification)
	assert.False(t, view.CanPersist)
	assert.Equal(t, 1, f.provider.verifySent)

	profile, ok := f.mem.Profile(view.UserID)
	require.True(t, ok)
	assert.Equal(t, model.UserProfile{Username: "Explorer", Email: "new@example.com", Points: 0}, profile)

	// 認証完了後のサインインでAuthenticatedVerifiedになる
	f.provider.verify("new@example.com")
	require.NoError(t, f.machine.SignIn(ctx, "new@example.com", "secret1"))
	view = f.machine.View()
	assert.Equal(t, model.SessionAuthenticatedVerified, view.State)
	assert.False(t, view.AwaitingVerification)
	assert.Equal(t, "Explorer", view.DisplayName)
}

func TestSessionSignUpErrorPassesMessageThrough(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t)
	f.provider.signUpErr = errors.New("WEAK_PASSWORD : Password should be at least 6 characters")

	err := f.machine.SignUp(ctx, "x@example.com", "1", "x")
	var ae *model.AuthError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "WEAK_PASSWORD : Password should be at least 6 characters", ae.Message)
}

func TestSessionSignInUnverifiedForcesSignOut(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t)
	f.machine.Start(ctx)
	f.provider.addAccount("u@example.com", "pw", "unverified", false)

	err := f.machine.SignIn(ctx, "u@example.com", "pw")
	var ae *model.AuthError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, model.MessageVerifyEmailFirst, ae.Message)

	assert.Equal(t, 1, f.provider.signOutCalls)
	assert.Equal(t, model.SessionUnverifiedOrSignedOut, f.machine.State())
	assert.Empty(t, f.repo.Events())
}

func TestSessionSignInWrongPassword(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t)
	f.machine.Start(ctx)
	f.provider.addAccount("a@example.com", "pw", "alice", true)

	err := f.machine.SignIn(ctx, "a@example.com", "nope")
	var ae *model.AuthError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "INVALID_LOGIN_CREDENTIALS", ae.Message)
	assert.Equal(t, model.SessionAnonymous, f.machine.State())
}

func TestSessionPersistGate(t *testing.T) {
	ctx := context.Background()

	t.Run("未認証セッションでは書き込まず、エラーにもならない", func(t *testing.T) {
		f := newSessionFixture(t)
		f.machine.Start(ctx)

		saved, err := f.machine.Persist(ctx, samplePlace("X", fixedNow))
		assert.False(t, saved)
		assert.NoError(t, err)
		assert.Empty(t, f.repo.Events())
	})

	t.Run("認証済みセッションではPlaceが1件増えポイントが5加算される", func(t *testing.T) {
		f := newSessionFixture(t)
		f.machine.Start(ctx)
		f.provider.addAccount("a@example.com", "pw", "alice", true)
		require.NoError(t, f.mem.CreateProfile(ctx, "alice", &model.UserProfile{Username: "alice", Points: 20}))
		require.NoError(t, f.machine.SignIn(ctx, "a@example.com", "pw"))

		before := len(f.machine.session.Places.Places())
		saved, err := f.machine.Persist(ctx, samplePlace("Fushimi Inari", fixedNow))
		require.NoError(t, err)
		assert.True(t, saved)

		assert.Len(t, f.machine.session.Places.Places(), before+1)
		assert.Equal(t, 25, f.machine.View().Points)
	})

	t.Run("解析開始時と別のユーザーには保存しない", func(t *testing.T) {
		f := newSessionFixture(t)
		f.machine.Start(ctx)
		f.provider.addAccount("b@example.com", "pw", "bob", true)
		require.NoError(t, f.mem.CreateProfile(ctx, "bob", &model.UserProfile{Username: "bob"}))
		require.NoError(t, f.machine.SignIn(ctx, "b@example.com", "pw"))
		eventsBefore := len(f.repo.Events())

		saved, err := f.machine.PersistFor(ctx, "alice", samplePlace("X", fixedNow))
		assert.False(t, saved)
		assert.NoError(t, err)
		assert.Len(t, f.repo.Events(), eventsBefore)
		profile, _ := f.mem.Profile("bob")
		assert.Zero(t, profile.Points)
	})
}

func TestSessionSignOutReestablishesAnonymous(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t)
	f.machine.Start(ctx)
	f.provider.addAccount("a@example.com", "pw", "alice", true)
	require.NoError(t, f.mem.CreateProfile(ctx, "alice", &model.UserProfile{}))
	require.NoError(t, f.machine.SignIn(ctx, "a@example.com", "pw"))
	_, err := f.machine.Persist(ctx, samplePlace("X", fixedNow))
	require.NoError(t, err)
	require.NotEmpty(t, f.machine.session.Places.Places())

	require.NoError(t, f.machine.SignOut(ctx))

	assert.Equal(t, model.SessionAnonymous, f.machine.State())
	current := f.provider.CurrentUser()
	require.NotNil(t, current)
	assert.True(t, current.IsAnonymous)
	assert.Empty(t, f.machine.session.Places.Places())
	assert.Empty(t, f.machine.session.Places.AttachedUser())
	assert.Zero(t, f.mem.WatcherCount())
}

func TestSessionSwitchUserDetachesBeforeAttach(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t)
	f.machine.Start(ctx)
	f.provider.addAccount("a@example.com", "pw", "alice", true)
	f.provider.addAccount("b@example.com", "pw", "bob", true)
	_, err := f.mem.AddPlace(ctx, "alice", samplePlace("alice-only", fixedNow))
	require.NoError(t, err)

	require.NoError(t, f.machine.SignIn(ctx, "a@example.com", "pw"))
	require.Len(t, f.machine.session.Places.Places(), 1)

	// サインアウトを挟まずに別ユーザーでサインイン
	require.NoError(t, f.machine.SignIn(ctx, "b@example.com", "pw"))

	events := f.repo.Events()
	lastAliceUnsub := -1
	firstBobSub := -1
	for i, e := range events {
		if e == "unsubscribe-places:alice" || e == "unsubscribe-profile:alice" {
			lastAliceUnsub = i
		}
		if (e == "subscribe-places:bob" || e == "subscribe-profile:bob") && firstBobSub < 0 {
			firstBobSub = i
		}
	}
	require.GreaterOrEqual(t, lastAliceUnsub, 0)
	require.GreaterOrEqual(t, firstBobSub, 0)
	assert.Less(t, lastAliceUnsub, firstBobSub)
	assert.Empty(t, f.machine.session.Places.Places())
	assert.Equal(t, "bob", f.machine.View().UserID)
}

func TestSessionViewDefaultsDisplayName(t *testing.T) {
	f := newSessionFixture(t)
	f.machine.HandleStateChange(&model.AuthUser{UID: "x", EmailVerified: true})
	view := f.machine.View()
	assert.Equal(t, model.SessionAuthenticatedVerified, view.State)
	assert.Equal(t, model.DefaultDisplayName, view.DisplayName)
	assert.True(t, view.CanPersist)
}
