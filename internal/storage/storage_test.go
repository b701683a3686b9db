package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_RoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Set(ctx, "k", "v"))
	val, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)

	require.NoError(t, m.Delete(ctx, "k"))
	require.NoError(t, m.Delete(ctx, "k"))
	assert.Equal(t, 0, m.Len())
}

func TestFile_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "storage.json")

	first := NewFile(path)
	require.NoError(t, first.Set(ctx, "kt-auth-react-v", `{"access":"a"}`))
	require.NoError(t, first.Set(ctx, "other", "x"))

	second := NewFile(path)
	val, err := second.Get(ctx, "kt-auth-react-v")
	require.NoError(t, err)
	assert.Equal(t, `{"access":"a"}`, val)

	require.NoError(t, second.Delete(ctx, "kt-auth-react-v"))
	_, err = first.Get(ctx, "kt-auth-react-v")
	assert.ErrorIs(t, err, ErrNotFound)

	val, err = first.Get(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, "x", val)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFile_MissingFileIsEmpty(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "absent.json"))

	_, err := f.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, f.Delete(context.Background(), "k"))
}

func TestFile_CorruptFileSurfacesError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFile(path).Get(context.Background(), "k")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestFile_CorruptFileIsReplacedOnWrite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "storage.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	f := NewFile(path)

	assert.NoError(t, f.Delete(ctx, "k"))
	require.NoError(t, f.Set(ctx, "k", "v"))

	got, err := f.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"k":"v"}`, string(raw))
}

func TestOpen(t *testing.T) {
	s, err := Open(Options{Driver: DriverMemory})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open(Options{Driver: DriverFile, Path: filepath.Join(t.TempDir(), "s.json")})
	require.NoError(t, err)
	assert.IsType(t, &File{}, s)

	_, err = Open(Options{Driver: DriverFile})
	assert.Error(t, err)

	_, err = Open(Options{Driver: DriverRedis})
	assert.Error(t, err)

	_, err = Open(Options{Driver: "floppy"})
	assert.Error(t, err)
}
