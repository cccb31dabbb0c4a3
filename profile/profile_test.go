package profile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sample = `
timeout: 5s
workers: 3
maxWorkers: 6
mailboxCapacity: 128
fields:
  greeting: hello
log:
  level: debug
  console: false
`

func TestParse(t *testing.T) {
	p, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, p.Timeout)
	require.Equal(t, 3, p.Workers)
	require.Equal(t, 6, p.MaxWorkers)
	require.Equal(t, 128, p.MailboxCapacity)
	require.Equal(t, "hello", p.Fields["greeting"])
	require.Equal(t, "debug", p.Log.Level)
	require.False(t, p.Log.Console)
}

func TestParse_KeepsDefaults(t *testing.T) {
	p, err := Parse([]byte("timeout: 1s\n"))
	require.NoError(t, err)
	require.Equal(t, time.Second, p.Timeout)
	require.Equal(t, 1, p.Workers)
	require.Equal(t, "info", p.Log.Level)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("workers: -1\n"))
	require.Error(t, err)

	_, err = Parse([]byte("workers: [\n"))
	require.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "troupe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	p, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, p.Timeout)
	require.Equal(t, 3, p.Workers)
	require.Equal(t, 6, p.MaxWorkers)
	require.Equal(t, "debug", p.Log.Level)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "troupe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))
	t.Setenv("TROUPE_WORKERS", "9")

	p, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9, p.Workers)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
