package storage

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, env map[string]string) *Store {
	t.Helper()
	env[EnvConfigPath] = "/home/u/.config/envmanager/config.json"
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/work", 0o755))
	s, err := NewStore(fs, "/work", func(k string) string { return env[k] })
	require.NoError(t, err)
	return s
}

func TestNewStore_GlobalPathFromEnv(t *testing.T) {
	s := newStore(t, map[string]string{})
	assert.Equal(t, "/home/u/.config/envmanager/config.json", s.GlobalPath)
	assert.Equal(t, "/work/.envmanager.json", s.LocalPath())
	assert.Equal(t, "/work/.env", s.EnvPath())
}

func TestLoad_NotInitialized(t *testing.T) {
	s := newStore(t, map[string]string{})

	_, err := s.Load()
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestLoad_MergesGlobalAndLocal(t *testing.T) {
	s := newStore(t, map[string]string{})
	require.NoError(t, s.SaveGlobal(Global{ServerURL: "example.com/api/", SecretKey: "global-key", CAFile: "/ca.crt"}))
	require.NoError(t, s.SaveLocal(Local{Project: "shop", Environment: "prod"}))

	cfg, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "http://example.com", cfg.ServerURL)
	assert.Equal(t, "global-key", cfg.SecretKey)
	assert.Equal(t, "/ca.crt", cfg.CAFile)
	assert.Equal(t, "shop", cfg.Project)
	assert.Equal(t, "prod", cfg.Environment)
	assert.Nil(t, cfg.LastSynced)
}

func TestLoad_LocalOverridesGlobal(t *testing.T) {
	s := newStore(t, map[string]string{})
	require.NoError(t, s.SaveGlobal(Global{ServerURL: "http://global", SecretKey: "global-key"}))
	require.NoError(t, s.SaveLocal(Local{ServerURL: "https://local:8443/", SecretKey: "local-key", Project: "shop", Environment: "alpha"}))

	cfg, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "https://local:8443", cfg.ServerURL)
	assert.Equal(t, "local-key", cfg.SecretKey)
}

func TestLoad_EnvironmentOverridesBoth(t *testing.T) {
	s := newStore(t, map[string]string{
		EnvServerURL: "env-host:3000",
		EnvSecretKey: "env-key",
	})
	require.NoError(t, s.SaveGlobal(Global{ServerURL: "http://global", SecretKey: "global-key"}))
	require.NoError(t, s.SaveLocal(Local{ServerURL: "http://local", SecretKey: "local-key", Project: "shop", Environment: "local"}))

	cfg, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "http://env-host:3000", cfg.ServerURL)
	assert.Equal(t, "env-key", cfg.SecretKey)
}

func TestLoad_CorruptLocal(t *testing.T) {
	s := newStore(t, map[string]string{})
	require.NoError(t, afero.WriteFile(s.Fs, s.LocalPath(), []byte("{"), 0o600))

	_, err := s.Load()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotInitialized)
}

func TestSetLastSynced_KeepsOtherFields(t *testing.T) {
	s := newStore(t, map[string]string{})
	require.NoError(t, s.SaveLocal(Local{SecretKey: "k", Project: "shop", Environment: "prod"}))

	synced := time.Date(2024, 6, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	require.NoError(t, s.SetLastSynced(synced))

	l, ok, err := s.LoadLocal()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "k", l.SecretKey)
	assert.Equal(t, "shop", l.Project)
	require.NotNil(t, l.LastSynced)
	assert.True(t, l.LastSynced.Equal(synced))

	raw, err := afero.ReadFile(s.Fs, s.LocalPath())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"lastSynced": "2024-06-01T11:00:00Z"`)
}

func TestSetLastSynced_NotInitialized(t *testing.T) {
	s := newStore(t, map[string]string{})
	assert.ErrorIs(t, s.SetLastSynced(time.Now()), ErrNotInitialized)
}

func TestLoadGlobal_Missing(t *testing.T) {
	s := newStore(t, map[string]string{})

	g, err := s.LoadGlobal()
	require.NoError(t, err)
	assert.Equal(t, Global{}, g)
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"localhost:3000", "http://localhost:3000"},
		{"http://localhost:3000/", "http://localhost:3000"},
		{"https://env.example.com/api", "https://env.example.com"},
		{"https://env.example.com/api/", "https://env.example.com"},
		{"  http://x//  ", "http://x"},
		{"http://x/base/api", "http://x/base"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeURL(tt.in))
		})
	}
}
