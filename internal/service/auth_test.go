package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/task-manager/internal/logger"
	"github.com/iliyamo/task-manager/internal/metrics"
	"github.com/iliyamo/task-manager/internal/model"
	"github.com/iliyamo/task-manager/internal/queue"
	"github.com/iliyamo/task-manager/internal/utils"
)

const testSecret = "test-secret"

type authFixture struct {
	svc     *AuthService
	users   *memUsers
	events  *recordingPublisher
	tokens  *utils.TokenService
	metrics *metrics.Metrics
	now     *time.Time
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tokens, err := utils.NewTokenService(testSecret, "HS256", 30*time.Minute, 7*24*time.Hour,
		utils.WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	f := &authFixture{
		users:   newMemUsers(),
		events:  &recordingPublisher{},
		tokens:  tokens,
		metrics: metrics.New(prometheus.NewRegistry()),
		now:     &now,
	}
	f.svc = NewAuthService(logger.Discard(), f.users, tokens, f.events, f.metrics, bcrypt.MinCost)
	return f
}

func (f *authFixture) register(t *testing.T, email, password string) *model.User {
	t.Helper()
	u, err := f.svc.Register(context.Background(), RegisterInput{Email: email, Password: password})
	require.NoError(t, err)
	return u
}

func TestRegister_CreatesActiveUser(t *testing.T) {
	f := newAuthFixture(t)
	name := "alice"

	u, err := f.svc.Register(context.Background(), RegisterInput{Email: "a@x.com", Username: &name, Password: "password123"})
	require.NoError(t, err)

	assert.NotZero(t, u.ID)
	assert.Equal(t, "a@x.com", u.Email)
	assert.Equal(t, model.RoleUser, u.Role)
	assert.True(t, u.IsActive)
	require.NotNil(t, u.Username)
	assert.Equal(t, "alice", *u.Username)
	assert.NotEqual(t, "password123", u.PasswordHash)
	assert.True(t, utils.VerifyPassword(u.PasswordHash, "password123"))

	evs := f.events.all()
	require.Len(t, evs, 1)
	assert.Equal(t, queue.EventUserRegistered, evs[0].Type)
	assert.Equal(t, u.ID, evs[0].UserID)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.AuthEventsTotal.WithLabelValues("register", "success")))
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "a@x.com", "password123")

	_, err := f.svc.Register(context.Background(), RegisterInput{Email: "a@x.com", Password: "otherpass1"})
	assert.ErrorIs(t, err, ErrEmailExists)
	assert.Len(t, f.events.all(), 1)
}

func TestRegister_EmailIsCaseSensitive(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "a@x.com", "password123")

	u, err := f.svc.Register(context.Background(), RegisterInput{Email: "A@x.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, "A@x.com", u.Email)
}

func TestRegister_ConcurrentSameEmail(t *testing.T) {
	f := newAuthFixture(t)

	const n = 8
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		conflicts atomic.Int32
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Register(context.Background(), RegisterInput{Email: "race@x.com", Password: "password123"})
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, ErrEmailExists):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, succeeded.Load())
	assert.EqualValues(t, n-1, conflicts.Load())
	all, _ := f.users.List(context.Background())
	assert.Len(t, all, 1)
}

func TestLogin_Success(t *testing.T) {
	f := newAuthFixture(t)
	u := f.register(t, "a@x.com", "password123")

	pair, err := f.svc.Login(context.Background(), "a@x.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, TokenTypeBearer, pair.TokenType)
	assert.NotEqual(t, pair.Access.Raw, pair.Refresh.Raw)

	ac, err := f.tokens.Verify(pair.Access.Raw, utils.TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, u.ID, ac.UserID)
	assert.Equal(t, model.RoleUser, ac.Role)

	rc, err := f.tokens.Verify(pair.Refresh.Raw, utils.TokenRefresh)
	require.NoError(t, err)
	assert.Equal(t, u.ID, rc.UserID)
}

func TestLogin_Failures(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "a@x.com", "password123")

	_, err := f.svc.Login(context.Background(), "a@x.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Login(context.Background(), "nobody@x.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.AuthEventsTotal.WithLabelValues("login", "invalid_credentials")))
}

func TestLogin_InactiveUser(t *testing.T) {
	f := newAuthFixture(t)
	u := f.register(t, "a@x.com", "password123")
	f.users.update(u.ID, func(u *model.User) { u.IsActive = false })

	_, err := f.svc.Login(context.Background(), "a@x.com", "password123")
	assert.ErrorIs(t, err, ErrInactiveUser)

	// A wrong password still reports invalid credentials, not inactivity.
	_, err = f.svc.Login(context.Background(), "a@x.com", "nope-nope")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefresh_IssuesNewPair(t *testing.T) {
	f := newAuthFixture(t)
	u := f.register(t, "a@x.com", "password123")
	pair, err := f.svc.Login(context.Background(), "a@x.com", "password123")
	require.NoError(t, err)

	*f.now = f.now.Add(time.Minute)
	next, err := f.svc.Refresh(context.Background(), pair.Refresh.Raw)
	require.NoError(t, err)
	assert.NotEqual(t, pair.Access.Raw, next.Access.Raw)
	assert.NotEqual(t, pair.Refresh.Raw, next.Refresh.Raw)

	ac, err := f.tokens.Verify(next.Access.Raw, utils.TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, u.ID, ac.UserID)

	// The presented refresh token is not revoked.
	_, err = f.svc.Refresh(context.Background(), pair.Refresh.Raw)
	assert.NoError(t, err)
}

func TestRefresh_Rejections(t *testing.T) {
	f := newAuthFixture(t)
	u := f.register(t, "a@x.com", "password123")
	pair, err := f.svc.Login(context.Background(), "a@x.com", "password123")
	require.NoError(t, err)

	t.Run("access token", func(t *testing.T) {
		_, err := f.svc.Refresh(context.Background(), pair.Access.Raw)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
	t.Run("garbage", func(t *testing.T) {
		_, err := f.svc.Refresh(context.Background(), "not-a-token")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
	t.Run("inactive user", func(t *testing.T) {
		f.users.update(u.ID, func(u *model.User) { u.IsActive = false })
		defer f.users.update(u.ID, func(u *model.User) { u.IsActive = true })
		_, err := f.svc.Refresh(context.Background(), pair.Refresh.Raw)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
	t.Run("deleted user", func(t *testing.T) {
		require.NoError(t, f.users.Delete(context.Background(), u.ID))
		_, err := f.svc.Refresh(context.Background(), pair.Refresh.Raw)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
	t.Run("expired", func(t *testing.T) {
		g := newAuthFixture(t)
		g.register(t, "b@x.com", "password123")
		p, err := g.svc.Login(context.Background(), "b@x.com", "password123")
		require.NoError(t, err)
		*g.now = g.now.Add(g.tokens.RefreshTTL() + time.Second)
		_, err = g.svc.Refresh(context.Background(), p.Refresh.Raw)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestAuthenticate(t *testing.T) {
	f := newAuthFixture(t)
	u := f.register(t, "a@x.com", "password123")
	pair, err := f.svc.Login(context.Background(), "a@x.com", "password123")
	require.NoError(t, err)

	got, err := f.svc.Authenticate(context.Background(), pair.Access.Raw)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = f.svc.Authenticate(context.Background(), pair.Refresh.Raw)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Role changes apply without waiting for a new token.
	f.users.update(u.ID, func(u *model.User) { u.Role = model.RoleAdmin })
	got, err = f.svc.Authenticate(context.Background(), pair.Access.Raw)
	require.NoError(t, err)
	assert.True(t, got.IsAdmin())

	f.users.update(u.ID, func(u *model.User) { u.IsActive = false })
	_, err = f.svc.Authenticate(context.Background(), pair.Access.Raw)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	*f.now = f.now.Add(f.tokens.AccessTTL())
	f.users.update(u.ID, func(u *model.User) { u.IsActive = true })
	_, err = f.svc.Authenticate(context.Background(), pair.Access.Raw)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
