// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/holomush/authd/internal/auth"
	"github.com/holomush/authd/internal/auth/mocks"
	"github.com/holomush/authd/pkg/errutil"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

func newTestTokenStore(t *testing.T, repo auth.SessionRepository, clock *fixedClock) *auth.TokenStore {
	t.Helper()
	store, err := auth.NewTokenStore(repo, auth.WithClock(clock.Now))
	require.NoError(t, err)
	return store
}

func TestNewTokenStore(t *testing.T) {
	t.Run("nil repository", func(t *testing.T) {
		store, err := auth.NewTokenStore(nil)
		assert.Nil(t, store)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "session repository is required")
	})

	t.Run("non-positive ttl", func(t *testing.T) {
		store, err := auth.NewTokenStore(mocks.NewMockSessionRepository(t), auth.WithSessionTTL(0))
		assert.Nil(t, store)
		errutil.AssertErrorCode(t, err, "SESSION_STORE_INVALID")
	})

	t.Run("defaults to eight hours", func(t *testing.T) {
		store, err := auth.NewTokenStore(mocks.NewMockSessionRepository(t))
		require.NoError(t, err)
		assert.Equal(t, 8*time.Hour, store.TTL())
	})
}

func TestTokenStore_Create(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	t.Run("persists hashed token with absolute expiry", func(t *testing.T) {
		repo := mocks.NewMockSessionRepository(t)
		store := newTestTokenStore(t, repo, clock)

		var stored *auth.Session
		repo.On("Create", ctx, mock.AnythingOfType("*auth.Session")).
			Run(func(args mock.Arguments) { stored = args.Get(1).(*auth.Session) }).
			Return(nil)

		token, session, err := store.Create(ctx, 1, "user@test.com")
		require.NoError(t, err)
		assert.Len(t, token, 64)
		require.NotNil(t, stored)
		assert.Same(t, stored, session)
		assert.Equal(t, auth.HashSessionToken(token), session.TokenHash)
		assert.NotEqual(t, token, session.TokenHash)
		assert.Equal(t, clock.now, session.CreatedAt)
		assert.Equal(t, clock.now.Add(8*time.Hour), session.ExpiresAt)
		assert.Equal(t, int64(1), session.UserID)
		assert.Equal(t, "user@test.com", session.Email)
	})

	t.Run("repository failure", func(t *testing.T) {
		repo := mocks.NewMockSessionRepository(t)
		store := newTestTokenStore(t, repo, clock)
		repo.On("Create", ctx, mock.Anything).Return(errors.New("disk full"))

		token, session, err := store.Create(ctx, 1, "user@test.com")
		require.Error(t, err)
		assert.Empty(t, token)
		assert.Nil(t, session)
		errutil.AssertErrorCode(t, err, "SESSION_CREATE_FAILED")
	})

	t.Run("invalid user is rejected before persisting", func(t *testing.T) {
		repo := mocks.NewMockSessionRepository(t)
		store := newTestTokenStore(t, repo, clock)

		_, _, err := store.Create(ctx, 0, "user@test.com")
		errutil.AssertErrorCode(t, err, "SESSION_INVALID_USER")
	})
}

func TestTokenStore_Get(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	token := "0123456789abcdef"
	tokenHash := auth.HashSessionToken(token)

	live := &auth.Session{
		TokenHash: tokenHash,
		UserID:    1,
		Email:     "user@test.com",
		CreatedAt: clock.now.Add(-time.Hour),
		ExpiresAt: clock.now.Add(7 * time.Hour),
	}

	t.Run("returns live session", func(t *testing.T) {
		repo := mocks.NewMockSessionRepository(t)
		store := newTestTokenStore(t, repo, clock)
		repo.On("GetByTokenHash", ctx, tokenHash).Return(live, nil)

		got, err := store.Get(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, live, got)
	})

	t.Run("empty token never reaches repository", func(t *testing.T) {
		repo := mocks.NewMockSessionRepository(t)
		store := newTestTokenStore(t, repo, clock)

		_, err := store.Get(ctx, "")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("unknown token", func(t *testing.T) {
		repo := mocks.NewMockSessionRepository(t)
		store := newTestTokenStore(t, repo, clock)
		repo.On("GetByTokenHash", ctx, tokenHash).Return(nil, auth.ErrNotFound)

		_, err := store.Get(ctx, token)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("expired session is absent and removed", func(t *testing.T) {
		repo := mocks.NewMockSessionRepository(t)
		store := newTestTokenStore(t, repo, clock)
		expired := *live
		expired.ExpiresAt = clock.now
		repo.On("GetByTokenHash", ctx, tokenHash).Return(&expired, nil)
		repo.On("DeleteByTokenHash", ctx, tokenHash).Return(nil)

		_, err := store.Get(ctx, token)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("expired session cleanup failure still reports absent", func(t *testing.T) {
		repo := mocks.NewMockSessionRepository(t)
		store := newTestTokenStore(t, repo, clock)
		expired := *live
		expired.ExpiresAt = clock.now.Add(-time.Minute)
		repo.On("GetByTokenHash", ctx, tokenHash).Return(&expired, nil)
		repo.On("DeleteByTokenHash", ctx, tokenHash).Return(errors.New("connection reset"))

		_, err := store.Get(ctx, token)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("repository failure is not absence", func(t *testing.T) {
		repo := mocks.NewMockSessionRepository(t)
		store := newTestTokenStore(t, repo, clock)
		repo.On("GetByTokenHash", ctx, tokenHash).Return(nil, errors.New("connection refused"))

		_, err := store.Get(ctx, token)
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "SESSION_GET_FAILED")
	})
}

func TestTokenStore_Destroy(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Now()}

	t.Run("deletes by hash", func(t *testing.T) {
		repo := mocks.NewMockSessionRepository(t)
		store := newTestTokenStore(t, repo, clock)
		repo.On("DeleteByTokenHash", ctx, auth.HashSessionToken("tok")).Return(nil)

		require.NoError(t, store.Destroy(ctx, "tok"))
	})

	t.Run("empty token is a no-op", func(t *testing.T) {
		repo := mocks.NewMockSessionRepository(t)
		store := newTestTokenStore(t, repo, clock)

		require.NoError(t, store.Destroy(ctx, ""))
	})

	t.Run("absent session is not an error", func(t *testing.T) {
		repo := mocks.NewMockSessionRepository(t)
		store := newTestTokenStore(t, repo, clock)
		repo.On("DeleteByTokenHash", ctx, mock.Anything).Return(auth.ErrNotFound)

		require.NoError(t, store.Destroy(ctx, "tok"))
	})

	t.Run("repository failure", func(t *testing.T) {
		repo := mocks.NewMockSessionRepository(t)
		store := newTestTokenStore(t, repo, clock)
		repo.On("DeleteByTokenHash", ctx, mock.Anything).Return(errors.New("connection refused"))

		err := store.Destroy(ctx, "tok")
		errutil.AssertErrorCode(t, err, "SESSION_DESTROY_FAILED")
	})
}

func TestTokenStore_SweepExpired(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	t.Run("passes clock time to repository", func(t *testing.T) {
		repo := mocks.NewMockSessionRepository(t)
		store := newTestTokenStore(t, repo, clock)
		repo.On("DeleteExpired", ctx, clock.now).Return(int64(3), nil)

		n, err := store.SweepExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})

	t.Run("repository failure", func(t *testing.T) {
		repo := mocks.NewMockSessionRepository(t)
		store := newTestTokenStore(t, repo, clock)
		repo.On("DeleteExpired", ctx, clock.now).Return(int64(0), errors.New("timeout"))

		_, err := store.SweepExpired(ctx)
		errutil.AssertErrorCode(t, err, "SESSION_SWEEP_FAILED")
	})
}

func TestTokenStore_RunSweeper_StopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	repo := mocks.NewMockSessionRepository(t)
	store, err := auth.NewTokenStore(repo)
	require.NoError(t, err)

	swept := make(chan struct{}, 1)
	repo.On("DeleteExpired", mock.Anything, mock.AnythingOfType("time.Time")).
		Run(func(mock.Arguments) {
			select {
			case swept <- struct{}{}:
			default:
			}
		}).
		Return(int64(0), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		store.RunSweeper(ctx, 5*time.Millisecond)
		close(done)
	}()

	select {
	case <-swept:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper never ran")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

func TestTokenStore_RunSweeper_ReportsCounts(t *testing.T) {
	defer goleak.VerifyNone(t)

	repo := mocks.NewMockSessionRepository(t)
	counts := make(chan int64, 1)
	store, err := auth.NewTokenStore(repo, auth.WithSweepObserver(func(n int64) {
		select {
		case counts <- n:
		default:
		}
	}))
	require.NoError(t, err)

	repo.On("DeleteExpired", mock.Anything, mock.AnythingOfType("time.Time")).Return(int64(3), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		store.RunSweeper(ctx, 5*time.Millisecond)
		close(done)
	}()

	select {
	case n := <-counts:
		assert.Equal(t, int64(3), n)
	case <-time.After(2 * time.Second):
		t.Fatal("observer never called")
	}

	cancel()
	<-done
}
