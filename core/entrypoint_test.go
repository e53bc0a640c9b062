package core

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/encodeous/babelcore/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T) (*state.State, <-chan error) {
	t.Helper()
	s := newTestState(t, routerConfig())
	dispatch := make(chan func(*state.State) error, 8)
	s.DispatchChannel = dispatch
	require.NoError(t, initModules(s))

	done := make(chan error, 1)
	go func() {
		done <- MainLoop(s, dispatch)
	}()
	return s, done
}

func waitStopped(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("main loop did not stop")
	}
}

func TestMainLoop_DispatchAndStop(t *testing.T) {
	s, done := startLoop(t)
	key1 := s.Ring.Get("k1")

	res, err := s.DispatchWait(func(s *state.State) (any, error) {
		r := Get[*BabelRouter](s)
		n := MakeNeighbours("fe80::1")[0]
		r.HandleUpdate(n, dstKey("10.0.0.0/8"), idA, 1, 10)
		return r.Table.Len(), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res)

	s.Cancel(errors.New("test finished"))
	waitStopped(t, done)

	assert.True(t, s.Stopping.Load())
	assert.True(t, key1.Destroyed(), "keys are wiped on shutdown")
	assert.Equal(t, 0, s.Ring.Len())
}

func TestMainLoop_DispatchErrorStops(t *testing.T) {
	s, done := startLoop(t)
	s.Dispatch(func(s *state.State) error {
		return errors.New("fatal")
	})
	waitStopped(t, done)
	assert.True(t, s.Stopping.Load())
}

func TestStop_Twice(t *testing.T) {
	s := newTestState(t, routerConfig())
	require.NoError(t, initModules(s))
	Stop(s)
	Stop(s)
	assert.True(t, s.Stopping.Load())
}

func TestStart_InvalidConfig(t *testing.T) {
	cfg := state.Config{
		Id:         "a",
		Interfaces: []state.InterfaceCfg{{Name: "eth0", Keys: []string{"missing"}}},
	}
	assert.Error(t, Start(cfg, 0, nil))
}

func TestBootstrap_Errors(t *testing.T) {
	dir := t.TempDir()
	assert.Error(t, Bootstrap(filepath.Join(dir, "missing.yaml"), "", false))

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("id: Not Valid\n"), 0600))
	assert.Error(t, Bootstrap(path, "", false))
}
