package utils // package utils provides helper functions for token creation and hashing

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/iliyamo/task-manager/internal/model"
)

// TokenKind distinguishes access tokens from refresh tokens. It is encoded
// in the "type" claim and checked on every verification.
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

// ErrInvalidToken is the parent of every verification failure. Callers
// that talk to clients should only ever look at this one.
var ErrInvalidToken = errors.New("invalid token")

var (
	ErrTokenMalformed = fmt.Errorf("%w: malformed", ErrInvalidToken)
	ErrTokenSignature = fmt.Errorf("%w: bad signature", ErrInvalidToken)
	ErrTokenExpired   = fmt.Errorf("%w: expired", ErrInvalidToken)
	ErrTokenKind      = fmt.Errorf("%w: wrong token type", ErrInvalidToken)
	ErrTokenClaims    = fmt.Errorf("%w: bad claims", ErrInvalidToken)
)

// ErrUnsupportedAlgorithm is returned by NewTokenService for anything
// other than the HMAC family.
var ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")

// Claims is the payload carried by both token kinds. Role is only set on
// access tokens. UserID is filled in from the subject after verification.
type Claims struct {
	Kind TokenKind  `json:"type"`
	Role model.Role `json:"role,omitempty"`
	jwt.RegisteredClaims

	UserID uint64 `json:"-"`
}

// Token is a signed token string along with its kind and expiry.
type Token struct {
	Raw       string    // the serialized JWT string
	Kind      TokenKind // access or refresh
	ExpiresAt time.Time // the UTC expiration time
}

// TokenService issues and verifies HMAC-signed JWTs with a shared secret.
// It holds no mutable state and is safe for concurrent use.
type TokenService struct {
	secret     []byte
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	parser     *jwt.Parser
}

// TokenOption customises a TokenService.
type TokenOption func(*TokenService)

// WithClock replaces time.Now, used by tests to move past expiry.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

// NewTokenService builds a TokenService. algorithm must be HS256, HS384 or
// HS512 and both TTLs must be positive.
func NewTokenService(secret, algorithm string, accessTTL, refreshTTL time.Duration, opts ...TokenOption) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	s := &TokenService{
		secret:     []byte(secret),
		method:     method,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	return s, nil
}

// AccessTTL returns the configured access token lifetime.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// IssueAccess signs an access token for the user carrying their role.
func (s *TokenService) IssueAccess(userID uint64, role model.Role) (Token, error) {
	return s.Issue(userID, TokenAccess, role, s.accessTTL)
}

// IssueRefresh signs a refresh token for the user. Refresh tokens carry no
// role; the role is re-read from the store when they are exchanged.
func (s *TokenService) IssueRefresh(userID uint64) (Token, error) {
	return s.Issue(userID, TokenRefresh, "", s.refreshTTL)
}

// Issue builds and signs a JWT. The claims are: subject (sub, the decimal
// user id), type, role (access only), expiration (exp), issued at (iat)
// and a random token id (jti).
func (s *TokenService) Issue(userID uint64, kind TokenKind, role model.Role, ttl time.Duration) (Token, error) {
	if kind != TokenAccess && kind != TokenRefresh {
		return Token{}, fmt.Errorf("unknown token kind %q", kind)
	}
	if kind == TokenAccess && !role.Valid() {
		return Token{}, fmt.Errorf("%w: %q", model.ErrInvalidRole, string(role))
	}
	if kind == TokenRefresh {
		role = ""
	}
	now := s.now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		Kind: kind,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(userID, 10),
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return Token{}, err
	}
	return Token{Raw: signed, Kind: kind, ExpiresAt: exp}, nil
}

// Verify parses raw and checks, in order, structure, algorithm and
// signature, expiry, the token kind and the subject. Each failure is a
// distinct error wrapping ErrInvalidToken.
func (s *TokenService) Verify(raw string, expected TokenKind) (*Claims, error) {
	claims := &Claims{}
	tok, err := s.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, classifyParseError(err)
	}
	if !tok.Valid {
		return nil, ErrTokenClaims
	}
	if claims.Kind != expected {
		return nil, ErrTokenKind
	}
	uid, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || uid == 0 {
		return nil, ErrTokenClaims
	}
	if expected == TokenAccess && !claims.Role.Valid() {
		return nil, ErrTokenClaims
	}
	claims.UserID = uid
	return claims, nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w (%v)", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w (%v)", ErrTokenSignature, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w (%v)", ErrTokenMalformed, err)
	default:
		return fmt.Errorf("%w (%v)", ErrTokenClaims, err)
	}
}
