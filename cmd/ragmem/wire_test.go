package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragmem/internal/adapters/driven/storage/layout"
	"github.com/custodia-labs/ragmem/internal/adapters/driving/cli"
	"github.com/custodia-labs/ragmem/internal/core/domain"
)

// withEnv replaces the environment seen by the opener.
func withEnv(t *testing.T, vars map[string]string) {
	t.Helper()
	original := lookupEnv
	lookupEnv = func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
	t.Cleanup(func() { lookupEnv = original })
}

func noLockWait(s *domain.AppSettings) { s.Storage.LockTimeout = 0 }

func TestResolveRoot(t *testing.T) {
	tests := []struct {
		name string
		flag string
		env  map[string]string
		want string
	}{
		{name: "flag wins", flag: "/flag", env: map[string]string{"RAGMEM_STORAGE_ROOT": "/env"}, want: "/flag"},
		{name: "environment", env: map[string]string{"RAGMEM_STORAGE_ROOT": "/env"}, want: "/env"},
		{name: "empty environment", env: map[string]string{"RAGMEM_STORAGE_ROOT": ""}, want: "storage-ragmem"},
		{name: "default", want: "storage-ragmem"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withEnv(t, tt.env)
			assert.Equal(t, tt.want, resolveRoot(tt.flag))
		})
	}
}

func TestOpen_SettingsOnly(t *testing.T) {
	withEnv(t, nil)
	root := t.TempDir()

	rt, err := open(context.Background(), cli.OpenOptions{Root: root, Access: cli.AccessSettings})
	require.NoError(t, err)

	assert.Nil(t, rt.Memory)
	require.NotNil(t, rt.Settings)
	assert.Equal(t, filepath.Join(root, "config.toml"), rt.Settings.Path())
	assert.NoFileExists(t, filepath.Join(root, "memory.lock"))
}

func TestOpen_WriteThenRead(t *testing.T) {
	withEnv(t, nil)
	root := t.TempDir()
	doc := filepath.Join(t.TempDir(), "travel.md")
	require.NoError(t, os.WriteFile(doc, []byte("# Travel\n\nBring your passport to the airport.\n"), 0o600))

	rt, err := open(context.Background(), cli.OpenOptions{Root: root, Access: cli.AccessWrite, Configure: noLockWait})
	require.NoError(t, err)

	imported, err := rt.Memory.ImportDocument(context.Background(), doc, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusIndexed, imported.Status)
	require.NoError(t, rt.Close())

	assert.True(t, layout.Exists(root))
	assert.FileExists(t, filepath.Join(root, "docstore", "metadata.db"))

	rt, err = open(context.Background(), cli.OpenOptions{Root: root, Access: cli.AccessRead})
	require.NoError(t, err)
	defer rt.Close()

	docs, err := rt.Memory.List(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, imported.ID, docs[0].ID)

	results, err := rt.Memory.Search(context.Background(), "passport", 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, imported.ID, results[0].Document.ID)
}

func TestOpen_SecondWriterIsLocked(t *testing.T) {
	withEnv(t, nil)
	root := t.TempDir()
	opts := cli.OpenOptions{Root: root, Access: cli.AccessWrite, Configure: noLockWait}

	first, err := open(context.Background(), opts)
	require.NoError(t, err)
	defer first.Close()

	_, err = open(context.Background(), opts)
	require.ErrorIs(t, err, domain.ErrMemoryLocked)

	reader, err := open(context.Background(), cli.OpenOptions{Root: root, Access: cli.AccessRead})
	require.NoError(t, err, "readers take no lock")
	require.NoError(t, reader.Close())
}

func TestOpen_Ephemeral(t *testing.T) {
	withEnv(t, nil)
	root := filepath.Join(t.TempDir(), "unused")

	rt, err := open(context.Background(), cli.OpenOptions{Root: root, Ephemeral: true, Access: cli.AccessWrite})
	require.NoError(t, err)

	docs, err := rt.Memory.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
	require.NoError(t, rt.Close())

	assert.NoDirExists(t, root)
}

func TestOpen_InvalidSettings(t *testing.T) {
	withEnv(t, nil)
	t.Setenv("RAGMEM_SEARCH_MAX_MATCHES", "0")

	_, err := open(context.Background(), cli.OpenOptions{Root: t.TempDir(), Access: cli.AccessRead})

	require.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestCleanup_RunsInReverse(t *testing.T) {
	var order []int
	var c cleanup
	for i := range 3 {
		c.add(func() error {
			order = append(order, i)
			return nil
		})
	}

	require.NoError(t, c.run())
	assert.Equal(t, []int{2, 1, 0}, order)
}
