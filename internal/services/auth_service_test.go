package services

import (
	"context"
	"testing"
	"time"

	"benome-realtime/internal/domain/user"
	"benome-realtime/internal/redis"
	"benome-realtime/internal/repository/mocks"
	benome_errors "benome-realtime/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testSecret = "test-secret"

func TestAuthenticateValidToken(t *testing.T) {
	userID := uuid.New()
	svc := NewAuthService(staticProfiles{userID: {ID: userID, FirstName: "Alice", LastName: "A"}}, testSecret)

	token, err := svc.IssueAccessToken(userID, time.Minute)
	require.NoError(t, err)

	id, err := svc.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, userID, id.UserID)
	assert.Equal(t, "Alice", id.FirstName)
}

func TestAuthenticateRejects(t *testing.T) {
	userID := uuid.New()
	profiles := staticProfiles{userID: {ID: userID}}
	svc := NewAuthService(profiles, testSecret)

	sign := func(method jwt.SigningMethod, key any, claims jwt.Claims) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	valid := func(sub string, exp time.Time) AccessClaims {
		return AccessClaims{UserID: sub, RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)}}
	}
	soon := time.Now().Add(time.Minute)

	cases := map[string]string{
		"empty":        "",
		"garbage":      "not-a-jwt",
		"expired":      sign(jwt.SigningMethodHS256, []byte(testSecret), valid(userID.String(), time.Now().Add(-time.Minute))),
		"wrong secret": sign(jwt.SigningMethodHS256, []byte("other"), valid(userID.String(), soon)),
		"alg none":     sign(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid(userID.String(), soon)),
		"no expiry":    sign(jwt.SigningMethodHS256, []byte(testSecret), AccessClaims{UserID: userID.String()}),
		"bad subject":  sign(jwt.SigningMethodHS256, []byte(testSecret), valid("42", soon)),
		"unknown user": sign(jwt.SigningMethodHS256, []byte(testSecret), valid(uuid.NewString(), soon)),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Authenticate(context.Background(), token)
			assert.ErrorIs(t, err, benome_errors.ErrAuthentication)
			assert.Equal(t, 401, HTTPStatus(err))
			assert.Equal(t, "UNAUTHORIZED", benome_errors.Code(err))
		})
	}
}

func TestAuthenticateIgnoresCachedProfileOfDeletedUser(t *testing.T) {
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserRepository(ctrl)
	cache := &fakeProfileCache{items: map[uuid.UUID]redis.CachedProfile{}}
	lookup := NewProfileLookup(users, cache, nil)
	svc := NewAuthService(lookup, testSecret)
	userID := uuid.New()

	gomock.InOrder(
		users.EXPECT().GetByID(gomock.Any(), userID).Return(user.User{ID: userID, FirstName: "Alice"}, nil),
		users.EXPECT().GetByID(gomock.Any(), userID).Return(user.User{}, benome_errors.New(benome_errors.ErrNotFound, "user not found")),
	)

	token, err := svc.IssueAccessToken(userID, time.Minute)
	require.NoError(t, err)

	id, err := svc.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "Alice", id.FirstName)
	require.Contains(t, cache.items, userID)

	_, err = svc.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, benome_errors.ErrAuthentication)
}

func TestUserContextRoundTrip(t *testing.T) {
	userID := uuid.New()
	ctx := WithUserContext(context.Background(), userID)

	got, ok := UserIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, userID, got)

	_, ok = UserIDFromContext(context.Background())
	assert.False(t, ok)
}

type fakeProfileCache struct {
	items map[uuid.UUID]redis.CachedProfile
	sets  int
}

func (c *fakeProfileCache) GetUser(_ context.Context, userID uuid.UUID) (*redis.CachedProfile, error) {
	p, ok := c.items[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (c *fakeProfileCache) SetUser(_ context.Context, p redis.CachedProfile) error {
	c.items[p.ID] = p
	c.sets++
	return nil
}
