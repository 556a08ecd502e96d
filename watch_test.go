package strata

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchFilesReloadsOnChange(t *testing.T) {
	path := writeTempConfig(t, "app.toml", "port = 1\n")

	s := newTestStore(t)
	require.NoError(t, s.LoadFile(path))
	require.NoError(t, s.WatchFilesDebounced(10*time.Millisecond))

	require.NoError(t, os.WriteFile(path, []byte("port = 2\n"), 0o644))

	require.Eventually(t, func() bool {
		v, err := s.Int64("port")
		return err == nil && v == 2
	}, 3*time.Second, 5*time.Millisecond, "changed file should re-merge")
}

func TestWatchFilesFeedsNotifier(t *testing.T) {
	path := writeTempConfig(t, "app.toml", "port = 1\n")

	s, err := NewWithOptions(Options{Debounce: testDebounce})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.LoadFile(path))
	require.NoError(t, s.WatchFilesDebounced(10*time.Millisecond))

	rec := &notifyRecorder{}
	s.Subscribe("port", rec.simple())

	require.NoError(t, os.WriteFile(path, []byte("port = 2\n"), 0o644))

	require.Eventually(t, func() bool { return rec.count() >= 1 },
		3*time.Second, 5*time.Millisecond, "reload must flow through change notification")
	ev := rec.snapshot()[0]
	assert.Equal(t, "port", ev.changedPath)
	got, _ := ev.newValue.Int()
	assert.Equal(t, int64(2), got)
}

func TestWatchFilesCoversLaterLoads(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.WatchFilesDebounced(10*time.Millisecond))

	// Loaded after the watcher started, still watched.
	path := writeTempConfig(t, "late.toml", "n = 1\n")
	require.NoError(t, s.LoadFile(path))
	require.NoError(t, os.WriteFile(path, []byte("n = 2\n"), 0o644))

	require.Eventually(t, func() bool {
		v, err := s.Int64("n")
		return err == nil && v == 2
	}, 3*time.Second, 5*time.Millisecond)
}

func TestWatchFilesIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.WatchFiles())
	require.NoError(t, s.WatchFiles())
	s.Close()
	s.Close() // watcher teardown is safe to repeat
}

func TestWatchFilesSurvivesBadReload(t *testing.T) {
	path := writeTempConfig(t, "app.toml", "port = 1\n")

	s := newTestStore(t)
	require.NoError(t, s.LoadFile(path))
	require.NoError(t, s.WatchFilesDebounced(10*time.Millisecond))

	// Unparseable content fails the reload but keeps prior state and the
	// watcher alive.
	require.NoError(t, os.WriteFile(path, []byte("]]] not toml"), 0o644))
	time.Sleep(100 * time.Millisecond)

	v, err := s.Int64("port")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	require.NoError(t, os.WriteFile(path, []byte("port = 3\n"), 0o644))
	require.Eventually(t, func() bool {
		v, err := s.Int64("port")
		return err == nil && v == 3
	}, 3*time.Second, 5*time.Millisecond)
}
