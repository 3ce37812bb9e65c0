package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestJWTValidator_RoundTrip(t *testing.T) {
	gen, err := NewJWTGenerator(testSecret, "librefind", []string{"librefind-api"}, time.Hour)
	require.NoError(t, err)
	token, err := gen.GenerateToken("uid-1", "a@example.org", time.Now())
	require.NoError(t, err)

	v, err := NewJWTValidator(JWTConfig{SigningMethod: "HS256", SecretKey: testSecret, Issuer: "librefind", Audience: []string{"librefind-api"}})
	require.NoError(t, err)

	claims, err := v.ValidateToken("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "uid-1", claims.UserID)
	assert.Equal(t, "a@example.org", claims.Email)
}

func TestJWTValidator_Rejections(t *testing.T) {
	v, err := NewJWTValidator(JWTConfig{SigningMethod: "HS256", SecretKey: testSecret, Issuer: "librefind"})
	require.NoError(t, err)

	expiredGen, _ := NewJWTGenerator(testSecret, "librefind", nil, time.Minute)
	expired, err := expiredGen.GenerateToken("uid-1", "", time.Now().Add(-time.Hour))
	require.NoError(t, err)

	otherGen, _ := NewJWTGenerator("other-secret", "librefind", nil, time.Hour)
	forged, err := otherGen.GenerateToken("uid-1", "", time.Now())
	require.NoError(t, err)

	wrongIssuerGen, _ := NewJWTGenerator(testSecret, "someone-else", nil, time.Hour)
	wrongIssuer, err := wrongIssuerGen.GenerateToken("uid-1", "", time.Now())
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"missing", "", ErrMissingToken},
		{"expired", expired, ErrExpiredToken},
		{"bad signature", forged, ErrInvalidSignature},
		{"wrong issuer", wrongIssuer, ErrInvalidClaims},
		{"garbage", "not.a.token", ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.ValidateToken(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewJWTValidator_Config(t *testing.T) {
	_, err := NewJWTValidator(JWTConfig{SigningMethod: "HS256"})
	assert.Error(t, err)
	_, err = NewJWTValidator(JWTConfig{SigningMethod: "RS256"})
	assert.Error(t, err)
	_, err = NewJWTValidator(JWTConfig{SigningMethod: "ES512", SecretKey: "x"})
	assert.Error(t, err)
}

func TestContextSession(t *testing.T) {
	_, ok := SessionFromContext(context.Background()).CurrentUserID()
	assert.False(t, ok)

	ctx := SetUserInContext(context.Background(), &UserContext{UserID: "uid-7"})
	uid, ok := SessionFromContext(ctx).CurrentUserID()
	assert.True(t, ok)
	assert.Equal(t, "uid-7", uid)
}

func TestSessionTracker_SubscribeEmitsCurrentThenChanges(t *testing.T) {
	tracker := NewSessionTracker()
	tracker.SetUser("uid-1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := tracker.Subscribe(ctx)

	assert.Equal(t, SessionState{UserID: "uid-1", SignedIn: true}, <-ch)

	tracker.SignOut()
	assert.Equal(t, SessionState{}, <-ch)
}

func TestSessionTracker_UnregistersOnCancel(t *testing.T) {
	tracker := NewSessionTracker()
	ctx, cancel := context.WithCancel(context.Background())
	ch := tracker.Subscribe(ctx)
	<-ch
	require.Equal(t, 1, tracker.Subscribers())

	cancel()
	assert.Eventually(t, func() bool { return tracker.Subscribers() == 0 }, time.Second, 5*time.Millisecond)

	_, open := <-ch
	assert.False(t, open)
	tracker.SetUser("uid-2")
}

func TestTokenBucketLimiter(t *testing.T) {
	l := NewTokenBucketLimiter(2, time.Minute)
	defer l.Stop()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := l.Allow(ctx, "k")
	assert.False(t, ok, "bucket should be empty")

	ok, _ = l.Allow(ctx, "other")
	assert.True(t, ok, "keys are independent")

	now = now.Add(time.Minute)
	ok, _ = l.Allow(ctx, "k")
	assert.True(t, ok, "one token refilled")

	require.NoError(t, l.Reset(ctx, "k"))
	ok, _ = l.Allow(ctx, "k")
	assert.True(t, ok)
}
