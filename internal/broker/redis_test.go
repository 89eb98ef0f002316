package broker

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_Success(t *testing.T) {
	mockRedis := miniredis.RunT(t)

	client, err := Open(context.Background(), mockRedis.Addr(), "", 0)
	require.NoError(t, err)
	require.NotNil(t, client)
	defer client.Close()

	assert.NoError(t, client.Ping(context.Background()).Err())
}

func TestOpen_WithPassword(t *testing.T) {
	mockRedis := miniredis.RunT(t)
	mockRedis.RequireAuth("secret")

	client, err := Open(context.Background(), mockRedis.Addr(), "secret", 0)
	require.NoError(t, err)
	client.Close()
}

func TestOpen_WrongPassword(t *testing.T) {
	mockRedis := miniredis.RunT(t)
	mockRedis.RequireAuth("secret")

	client, err := Open(context.Background(), mockRedis.Addr(), "wrong", 0)
	assert.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "failed to connect to Redis")
}

func TestOpen_Unreachable(t *testing.T) {
	mockRedis := miniredis.RunT(t)
	addr := mockRedis.Addr()
	mockRedis.Close()

	client, err := Open(context.Background(), addr, "", 0)
	assert.Error(t, err)
	assert.Nil(t, client)
}
