package redisclient

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/ncecere/readaloud/internal/config"
)

func TestNewWithoutURL(t *testing.T) {
	require.Nil(t, New(config.RedisConfig{URL: "  "}))
}

func TestNewAndPing(t *testing.T) {
	mr := miniredis.RunT(t)
	for _, url := range []string{"redis://" + mr.Addr(), mr.Addr()} {
		client := New(config.RedisConfig{URL: url, PoolSize: 2})
		require.NotNil(t, client)
		require.NoError(t, Ping(context.Background(), client))
		require.NoError(t, client.Close())
	}
}

func TestPingFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := New(config.RedisConfig{URL: mr.Addr()})
	defer client.Close()
	mr.Close()
	require.Error(t, Ping(context.Background(), client))
}
