package services

import (
	"context"
	"errors"
	"strings"
	"time"

	benome_errors "benome-realtime/pkg/errors"
	"benome-realtime/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AuthService verifies bearer tokens issued by the marketplace's account
// service. Accounts and logins live elsewhere; this service only checks the
// signature, the expiry and that the subject still exists.
type AuthService struct {
	profiles  IdentitySource
	jwtSecret []byte
}

func NewAuthService(profiles IdentitySource, jwtSecret string) *AuthService {
	return &AuthService{
		profiles:  profiles,
		jwtSecret: []byte(jwtSecret),
	}
}

type AccessClaims struct {
	UserID    string `json:"sub"`
	SessionID string `json:"sid,omitempty"`
	DeviceID  string `json:"did,omitempty"`
	jwt.RegisteredClaims
}

// Identity is an authenticated user together with the display fields the
// realtime layer attaches to events.
type Identity struct {
	UserID         uuid.UUID
	FirstName      string
	LastName       string
	ProfilePicture string
}

func (s *AuthService) ParseAccessToken(tokenString string) (AccessClaims, error) {
	if tokenString == "" {
		return AccessClaims{}, benome_errors.Authentication(errors.New("missing token"))
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return AccessClaims{}, benome_errors.Authentication(err)
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid {
		return AccessClaims{}, benome_errors.Authentication(errors.New("invalid claims"))
	}

	return *claims, nil
}

// Authenticate resolves a bearer token to an existing user. Every failure,
// including a lookup failure, is an authentication error.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (Identity, error) {
	claims, err := s.ParseAccessToken(tokenString)
	if err != nil {
		return Identity{}, err
	}

	userID, err := uuid.Parse(strings.TrimSpace(claims.UserID))
	if err != nil {
		return Identity{}, benome_errors.Authentication(err)
	}

	profile, err := s.profiles.Resolve(ctx, userID)
	if err != nil {
		return Identity{}, benome_errors.Authentication(err)
	}

	return Identity{
		UserID:         userID,
		FirstName:      profile.FirstName,
		LastName:       profile.LastName,
		ProfilePicture: profile.ProfilePictureURL,
	}, nil
}

// IssueAccessToken signs a token for userID. Production tokens come from the
// account service; this is used by tooling and tests.
func (s *AuthService) IssueAccessToken(userID uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, benome_errors.ErrValidation):
		return 400
	case errors.Is(err, benome_errors.ErrAuthentication):
		return 401
	case errors.Is(err, benome_errors.ErrNotAuthorized):
		return 403
	case errors.Is(err, benome_errors.ErrNotFound):
		return 404
	case errors.Is(err, benome_errors.ErrConflict):
		return 409
	case errors.Is(err, benome_errors.ErrRateLimited):
		return 429
	default:
		return 500
	}
}

type ctxKey string

var userIDKey ctxKey = "user_id"

// WithUserContext stores the authenticated user id for services and for the
// request logger.
func WithUserContext(ctx context.Context, userID uuid.UUID) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, logger.UserIdKey, userID.String())
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	value := ctx.Value(userIDKey)
	if value == nil {
		return uuid.Nil, false
	}
	userID, ok := value.(uuid.UUID)
	return userID, ok
}
