package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMailerFromEnv(t *testing.T) {
	t.Setenv(envHost, "smtp.example.com")
	t.Setenv(envPort, "2525")
	t.Setenv(envUser, "builder")
	t.Setenv(envPass, "secret")
	t.Setenv(envFrom, "builds@example.com")

	m, err := NewMailerFromEnv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com", m.host)
	assert.Equal(t, 2525, m.port)
	assert.Equal(t, "builds@example.com", m.from)
}

func TestNewMailerFromEnv_MissingHost(t *testing.T) {
	t.Setenv(envHost, "")
	t.Setenv(envFrom, "builds@example.com")

	_, err := NewMailerFromEnv(context.Background())
	require.Error(t, err)
}

func TestNewMailerFromEnv_BadPort(t *testing.T) {
	t.Setenv(envHost, "smtp.example.com")
	t.Setenv(envFrom, "builds@example.com")
	t.Setenv(envPort, "not-a-port")

	_, err := NewMailerFromEnv(context.Background())
	require.Error(t, err)
}

func TestNoop(t *testing.T) {
	require.NoError(t, Noop{}.Notify(context.Background(), "s", "b", ""))
}
