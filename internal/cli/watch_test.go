package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a bytes.Buffer safe for the watch goroutine to write while
// the test reads.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchReportsReloads(t *testing.T) {
	dir := t.TempDir()
	src, err := os.ReadFile(filepath.Join(programsFixture, "ventilation.cue"))
	require.NoError(t, err)
	writeFile(t, dir, "ventilation.cue", string(src))

	out := &syncBuffer{}
	cmd := NewWatchCommand(&RootOptions{Format: "text"})
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{dir})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- cmd.ExecuteContext(ctx)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Watching "+dir)
	}, 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, out.String(), "✓ 1 program(s) valid: ventilation-survey")

	// The watcher may not be registered yet when the first write lands, so
	// keep writing until a reload is reported.
	require.Eventually(t, func() bool {
		if strings.Contains(out.String(), "✗ broken:") {
			return true
		}
		writeFile(t, dir, "broken.cue", danglingProgram)
		return false
	}, 10*time.Second, 300*time.Millisecond)
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "✗ reload failed, keeping previous catalogue of 1 program(s)")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestWatchMissingDirectory(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewWatchCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"/nonexistent/programs"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeLoadFailed)
}
