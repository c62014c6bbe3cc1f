package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsHostPort(t *testing.T) {
	opts, err := options(ClientConfig{Addr: "cache:6379", Password: "pw", DB: 2, PoolSize: 20})
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 20, opts.PoolSize)
	assert.Nil(t, opts.TLSConfig)
	assert.Equal(t, dialTimeout, opts.DialTimeout)
}

func TestOptionsURL(t *testing.T) {
	opts, err := options(ClientConfig{Addr: "rediss://:secret@cache.example.com:6380/3", Password: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, "cache.example.com:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 3, opts.DB)
	assert.NotNil(t, opts.TLSConfig)

	_, err = options(ClientConfig{Addr: "redis://cache:6379/notadb"})
	assert.Error(t, err)
}

func TestOptionsTLSFlag(t *testing.T) {
	opts, err := options(ClientConfig{Addr: "cache:6379", TLSEnabled: true})
	require.NoError(t, err)
	require.NotNil(t, opts.TLSConfig)
}
