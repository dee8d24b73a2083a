package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/iliyamo/task-manager/internal/logger"
	"github.com/iliyamo/task-manager/internal/metrics"
	"github.com/iliyamo/task-manager/internal/model"
	"github.com/iliyamo/task-manager/internal/queue"
	"github.com/iliyamo/task-manager/internal/repository"
	"github.com/iliyamo/task-manager/internal/utils"
)

// TokenTypeBearer is the token_type label returned with every token pair.
const TokenTypeBearer = "bearer"

var (
	// ErrEmailExists means the email is already registered (Conflict).
	ErrEmailExists = errors.New("email is already registered")
	// ErrInvalidCredentials covers every authentication failure: unknown
	// email, wrong password, and any bad, expired or wrong-kind token.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInactiveUser is returned by Login for a deactivated account
	// whose password was correct (Forbidden).
	ErrInactiveUser = errors.New("user account is inactive")
)

// UserStore is the part of the user repository the auth flow needs.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id uint64) (*model.User, error)
}

// EventPublisher publishes user lifecycle events.
type EventPublisher interface {
	PublishUserEvent(ctx context.Context, ev queue.UserEvent) error
}

// TokenPair is the result of Login and Refresh.
type TokenPair struct {
	Access    utils.Token
	Refresh   utils.Token
	TokenType string
}

// RegisterInput is a registration request after validation.
type RegisterInput struct {
	Email    string
	Username *string
	Password string
}

// AuthService implements registration, login, refresh and per-request
// authentication on top of the user store, bcrypt and the token service.
type AuthService struct {
	log        *slog.Logger
	users      UserStore
	tokens     *utils.TokenService
	events     EventPublisher
	metrics    *metrics.Metrics
	bcryptCost int

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(
	log *slog.Logger,
	users UserStore,
	tokens *utils.TokenService,
	events EventPublisher,
	m *metrics.Metrics,
	bcryptCost int,
) *AuthService {
	if events == nil {
		events = queue.NopPublisher{}
	}
	return &AuthService{
		log:        log,
		users:      users,
		tokens:     tokens,
		events:     events,
		metrics:    m,
		bcryptCost: bcryptCost,
	}
}

// Register creates an active account with the user role. The pre-check
// only avoids a wasted bcrypt round; the unique index is what settles
// concurrent registrations of the same email.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	const op = "service.AuthService.Register"
	log := s.log.With(slog.String("op", op))

	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		s.metrics.ObserveAuth("register", "conflict")
		return nil, ErrEmailExists
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := utils.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("%s: hash password: %w", op, err)
	}

	u := &model.User{
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: hash,
		Role:         model.RoleUser,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			s.metrics.ObserveAuth("register", "conflict")
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user registered", slog.Uint64("user_id", u.ID))
	s.metrics.ObserveAuth("register", "success")
	s.publish(ctx, queue.UserEvent{
		Type:   queue.EventUserRegistered,
		UserID: u.ID,
		Email:  u.Email,
		Role:   u.Role.String(),
	})
	return u, nil
}

// Login checks the password and issues a fresh token pair. Unknown emails
// still pay for one bcrypt comparison so response time does not reveal
// whether the account exists.
func (s *AuthService) Login(ctx context.Context, email, password string) (TokenPair, error) {
	const op = "service.AuthService.Login"

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			utils.VerifyPassword(s.dummy(), password)
			s.metrics.ObserveAuth("login", "invalid_credentials")
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		s.metrics.ObserveAuth("login", "invalid_credentials")
		return TokenPair{}, ErrInvalidCredentials
	}
	if !u.IsActive {
		s.metrics.ObserveAuth("login", "inactive")
		return TokenPair{}, ErrInactiveUser
	}

	pair, err := s.issuePair(u)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}
	s.metrics.ObserveAuth("login", "success")
	return pair, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token
// stays valid until it expires; there is no revocation store.
func (s *AuthService) Refresh(ctx context.Context, rawRefresh string) (TokenPair, error) {
	const op = "service.AuthService.Refresh"

	claims, err := s.tokens.Verify(rawRefresh, utils.TokenRefresh)
	if err != nil {
		s.log.Debug("refresh token rejected", slog.String("op", op), logger.Err(err))
		s.metrics.ObserveAuth("refresh", "invalid_token")
		return TokenPair{}, ErrInvalidCredentials
	}
	u, err := s.activeUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			s.metrics.ObserveAuth("refresh", "invalid_user")
			return TokenPair{}, err
		}
		return TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	pair, err := s.issuePair(u)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}
	s.metrics.ObserveAuth("refresh", "success")
	return pair, nil
}

// Authenticate resolves an access token to the current user record. The
// user is re-read on every call so deactivation and role changes apply
// immediately rather than after the token expires.
func (s *AuthService) Authenticate(ctx context.Context, rawAccess string) (*model.User, error) {
	const op = "service.AuthService.Authenticate"

	claims, err := s.tokens.Verify(rawAccess, utils.TokenAccess)
	if err != nil {
		s.log.Debug("access token rejected", slog.String("op", op), logger.Err(err))
		s.metrics.ObserveAuth("authenticate", "invalid_token")
		return nil, ErrInvalidCredentials
	}
	u, err := s.activeUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			s.metrics.ObserveAuth("authenticate", "invalid_user")
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func (s *AuthService) activeUser(ctx context.Context, id uint64) (*model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *AuthService) issuePair(u *model.User) (TokenPair, error) {
	access, err := s.tokens.IssueAccess(u.ID, u.Role)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access: %w", err)
	}
	refresh, err := s.tokens.IssueRefresh(u.ID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue refresh: %w", err)
	}
	return TokenPair{Access: access, Refresh: refresh, TokenType: TokenTypeBearer}, nil
}

// dummy returns a bcrypt hash at the configured cost that no password
// matches in practice.
func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := utils.HashPassword("timing-equalizer-not-a-password", s.bcryptCost)
		if err != nil {
			s.log.Error("failed to build dummy hash", logger.Err(err))
			return
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

func (s *AuthService) publish(ctx context.Context, ev queue.UserEvent) {
	ev.OccurredAt = time.Now().UTC()
	if err := s.events.PublishUserEvent(ctx, ev); err != nil {
		s.log.Warn("publish user event failed", slog.String("type", ev.Type), logger.Err(err))
	}
}
