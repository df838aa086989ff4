package localfs

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/verifiquant/internal/core/domain"
)

func TestSaveAndOpen(t *testing.T) {
	st, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, st.Save(context.Background(), "indexes/main.vqidx", strings.NewReader("payload")))

	rc, err := st.Open(context.Background(), "indexes/main.vqidx")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestSaveOverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	st, err := New(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, st.Save(ctx, "main", strings.NewReader("v1")))
	err = st.Save(ctx, "main", io.MultiReader(strings.NewReader("partial"), failingReader{}))
	require.Error(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "main"))
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data), "failed save must leave the previous artifact intact")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must be cleaned up")
}

func TestOpenMissingKeyIsNotFound(t *testing.T) {
	st, err := New(t.TempDir())
	require.NoError(t, err)
	_, err = st.Open(context.Background(), "absent")
	assert.True(t, domain.IsKind(err, domain.ErrNotFound), "got %v", err)
}

func TestRejectsEscapingKeys(t *testing.T) {
	st, err := New(t.TempDir())
	require.NoError(t, err)
	for _, key := range []string{"", "../outside", "/etc/passwd", "."} {
		err := st.Save(context.Background(), key, strings.NewReader("x"))
		assert.True(t, domain.IsKind(err, domain.ErrInvalidArgument), "key %q: got %v", key, err)
	}
}

func TestSaveStopsOnCancelledContext(t *testing.T) {
	st, err := New(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = st.Save(ctx, "main", strings.NewReader("payload"))
	assert.ErrorIs(t, err, context.Canceled)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }
