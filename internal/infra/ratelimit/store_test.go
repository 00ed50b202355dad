package ratelimit

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStore_MemoryWhenNoAddr(t *testing.T) {
	s := NewStore(RedisConfig{})
	require.NotNil(t, s)

	require.NoError(t, s.Set("k", []byte("v"), time.Minute))
	got, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))
}

func TestNewStore_FallsBackWhenRedisDown(t *testing.T) {
	if s := NewStore(RedisConfig{Addr: "127.0.0.1:1", DB: 0}); s == nil {
		t.Fatalf("expected non-nil store even with unreachable redis")
	}
}

func TestNewStore_Redis(t *testing.T) {
	mrs := miniredis.RunT(t)

	s := NewStore(RedisConfig{Addr: mrs.Addr()})
	require.NotNil(t, s)
	defer s.Close()

	require.NoError(t, s.Set("k", []byte("v"), time.Minute))
	assert.True(t, mrs.Exists("k"))
}
