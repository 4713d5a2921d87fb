package sessionstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kazi/core/reflection"
)

func newSession(id string) reflection.Session {
	return reflection.Session{
		ID:      id,
		StaffID: 7,
		Steps: []reflection.Step{
			{Key: "domain_1", Kind: reflection.DomainStep, DomainID: 1},
			{Key: reflection.GrowthPlanStepKey, Kind: reflection.GrowthPlanStep},
		},
		Current: 1,
		Domains: map[string]reflection.DomainSelection{
			"domain_1": {DomainID: 1, Strengths: []int64{1}, Growths: []int64{2}},
		},
		CreatedAt: time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, time.Hour)
	ctx := context.Background()

	_, err := store.GetSession(ctx, "missing")
	assert.Equal(t, reflection.ErrSessionNotFound, err)

	sess := newSession("abc")
	require.NoError(t, store.SaveSession(ctx, sess))
	assert.Equal(t, time.Hour, mr.TTL(keyPrefix+"abc"))

	got, err := store.GetSession(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, sess, got)

	t.Run("expired sessions are gone", func(t *testing.T) {
		mr.FastForward(2 * time.Hour)
		_, err := store.GetSession(ctx, "abc")
		assert.Equal(t, reflection.ErrSessionNotFound, err)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.SaveSession(ctx, newSession("def")))
		require.NoError(t, store.DeleteSession(ctx, "def"))
		assert.False(t, mr.Exists(keyPrefix+"def"))
	})

	t.Run("take", func(t *testing.T) {
		sess := newSession("ghi")
		require.NoError(t, store.SaveSession(ctx, sess))

		got, err := store.TakeSession(ctx, "ghi")
		require.NoError(t, err)
		assert.Equal(t, sess, got)
		assert.False(t, mr.Exists(keyPrefix+"ghi"))

		_, err = store.TakeSession(ctx, "ghi")
		assert.Equal(t, reflection.ErrSessionNotFound, err)
	})
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	now := time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	sess := newSession("abc")
	require.NoError(t, store.SaveSession(ctx, sess))

	got, err := store.GetSession(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, sess, got)

	// mutating the returned session does not alter the stored one
	got.Domains["domain_1"] = reflection.DomainSelection{DomainID: 1}
	again, err := store.GetSession(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, again.Domains["domain_1"].Growths)

	now = now.Add(2 * time.Minute)
	_, err = store.GetSession(ctx, "abc")
	assert.Equal(t, reflection.ErrSessionNotFound, err)

	require.NoError(t, store.DeleteSession(ctx, "unknown"))

	t.Run("take", func(t *testing.T) {
		sess := newSession("def")
		require.NoError(t, store.SaveSession(ctx, sess))

		got, err := store.TakeSession(ctx, "def")
		require.NoError(t, err)
		assert.Equal(t, sess, got)
		_, err = store.TakeSession(ctx, "def")
		assert.Equal(t, reflection.ErrSessionNotFound, err)
		_, err = store.GetSession(ctx, "def")
		assert.Equal(t, reflection.ErrSessionNotFound, err)

		require.NoError(t, store.SaveSession(ctx, newSession("old")))
		now = now.Add(2 * time.Minute)
		_, err = store.TakeSession(ctx, "old")
		assert.Equal(t, reflection.ErrSessionNotFound, err)
	})
}
