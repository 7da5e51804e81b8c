package staging

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/Itish41/ndareview/models"
)

type entry struct {
	value   string
	expires time.Time
}

// fakeRedis honours expirations against a controllable clock.
type fakeRedis struct {
	data map[string]entry
	now  time.Time
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]entry{}, now: time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	var v string
	switch t := value.(type) {
	case []byte:
		v = string(t)
	case string:
		v = t
	}
	f.data[key] = entry{value: v, expires: f.now.Add(expiration)}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	e, ok := f.data[key]
	if !ok || !f.now.Before(e.expires) {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(e.value, nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestStageAndFetch(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	s := NewStore(fake, 10*time.Minute)
	s.now = func() time.Time { return fake.now }

	staged, err := s.Stage(ctx, model.FileData{Name: "nda.pdf", Type: "application/pdf", Data: []byte("%PDF-1.4")})
	require.NoError(t, err)
	assert.NotEmpty(t, staged.ID)

	got, err := s.Fetch(ctx, staged.ID)
	require.NoError(t, err)
	assert.Equal(t, "nda.pdf", got.Name)
	assert.Equal(t, []byte("%PDF-1.4"), got.Data)
	assert.True(t, got.StagedAt.Equal(fake.now))
}

func TestFetchExpired(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	s := NewStore(fake, time.Minute)

	staged, err := s.Stage(ctx, model.FileData{Name: "a.docx", Data: []byte("PK")})
	require.NoError(t, err)

	fake.now = fake.now.Add(2 * time.Minute)
	_, err = s.Fetch(ctx, staged.ID)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestFetchUnknownOrMalformedID(t *testing.T) {
	s := NewStore(newFakeRedis(), time.Minute)

	_, err := s.Fetch(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrExpired)

	_, err = s.Fetch(context.Background(), "0b6f2a8e-3f7c-4d52-9a51-7f3a0cc1b0de")
	assert.ErrorIs(t, err, ErrExpired)
}

func TestDrop(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newFakeRedis(), time.Minute)

	staged, err := s.Stage(ctx, model.FileData{Name: "x.pdf", Data: []byte("1")})
	require.NoError(t, err)
	require.NoError(t, s.Drop(ctx, staged.ID))

	_, err = s.Fetch(ctx, staged.ID)
	assert.ErrorIs(t, err, ErrExpired)
}
