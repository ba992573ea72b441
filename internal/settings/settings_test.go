package settings

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"speechspy/internal/storage"
	logx "speechspy/pkg/logx"
)

func TestGetReturnsDefaults(t *testing.T) {
	s := New(nil, logx.Nop())
	require.Equal(t, "224.1.1.1", s.Get(KeyGroup))
	require.Equal(t, "5004", s.Get(KeyPort))
	require.Equal(t, "2", s.Get(KeyTTL))
	require.Equal(t, "2spc", s.Get(KeySeparator))
	require.Equal(t, "", s.Get(KeyCustomSeparator))
	require.Equal(t, "", s.Get("nope"))
}

func TestSetIsVisibleImmediatelyAndUnvalidated(t *testing.T) {
	s := New(nil, logx.Nop())
	require.Equal(t, "abc", s.Set(KeyTTL, "abc"))
	require.Equal(t, "abc", s.Get(KeyTTL))

	// an explicit empty value overrides the default
	s.Set(KeyGroup, "")
	require.Equal(t, "", s.Get(KeyGroup))
}

func TestSnapshotCoversKnownKeys(t *testing.T) {
	s := New(nil, logx.Nop())
	s.Set(KeyPort, "6000")
	s.Set("extra", "x")
	snap := s.Snapshot()
	require.Len(t, snap, 5)
	require.Equal(t, "6000", snap[KeyPort])
	require.NotContains(t, snap, "extra")
	require.Equal(t, []string{KeyCustomSeparator, KeyGroup, KeyPort, KeySeparator, KeyTTL}, Keys())
}

func TestUpdateReportsChange(t *testing.T) {
	s := New(nil, logx.Nop())
	require.False(t, s.Update(map[string]string{KeyPort: "5004"}))
	require.True(t, s.Update(map[string]string{KeyPort: "5005", KeyTTL: "2"}))
	require.Equal(t, "5005", s.Get(KeyPort))
}

func TestSeedKeepsStoredValues(t *testing.T) {
	s := New(nil, logx.Nop())
	s.Set(KeyPort, "6000")

	seeded := s.Seed(map[string]string{KeyPort: "5004", KeyTTL: "4"})
	require.Equal(t, []string{KeyTTL}, seeded)
	require.Equal(t, "6000", s.Get(KeyPort))
	require.Equal(t, "4", s.Get(KeyTTL))
	require.Empty(t, s.Seed(map[string]string{KeyTTL: "9"}))
}

func TestValuesSurviveReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "speechspy.db")

	backend, err := storage.Open(storage.Config{Driver: "sqlite", Path: path}, logx.Nop())
	require.NoError(t, err)
	s, err := Load(ctx, backend, logx.Nop())
	require.NoError(t, err)
	s.Set(KeySeparator, "custom")
	s.Set(KeyCustomSeparator, `\t`)
	require.NoError(t, backend.Close())

	backend, err = storage.Open(storage.Config{Driver: "sqlite", Path: path}, logx.Nop())
	require.NoError(t, err)
	defer backend.Close()
	s, err = Load(ctx, backend, logx.Nop())
	require.NoError(t, err)
	require.Equal(t, "custom", s.Get(KeySeparator))
	require.Equal(t, `\t`, s.Get(KeyCustomSeparator))
	require.Equal(t, "5004", s.Get(KeyPort))
}

type failingBackend struct{ storage.Store }

func (failingBackend) PutSetting(context.Context, string, string) error {
	return errors.New("disk full")
}

func (failingBackend) Settings(context.Context) (map[string]string, error) {
	return nil, errors.New("disk gone")
}

func TestPersistFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	s := New(failingBackend{}, logx.NewWriter(&buf, "debug"))
	require.Equal(t, "7", s.Set(KeyTTL, "7"))
	require.Equal(t, "7", s.Get(KeyTTL))
	require.Contains(t, buf.String(), "persist setting failed")
	require.Contains(t, buf.String(), "disk full")

	_, err := Load(context.Background(), failingBackend{}, logx.Nop())
	require.Error(t, err)
}

func TestConcurrentAccess(t *testing.T) {
	s := New(nil, logx.Nop())
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			s.Set(KeyPort, "5004")
		}
	}()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-done:
			return
		case <-deadline:
			t.Fatal("writer did not finish")
		default:
			_ = s.Snapshot()
		}
	}
}
