package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/encodeous/babelcore/state"
	"github.com/google/go-cmp/cmp"
)

type HarnessEvent struct {
	Message string
	Args    []any
}

func MakeEvent(msg string, args ...any) HarnessEvent {
	return HarnessEvent{
		Message: msg,
		Args:    args,
	}
}

// KernelHarness records installation decisions.
type KernelHarness struct {
	actions []HarnessEvent
	fail    bool
}

var errKernel = errors.New("kernel failure")

func (h *KernelHarness) AddRoute(r *state.Route) error {
	if h.fail {
		return errKernel
	}
	h.actions = append(h.actions, MakeEvent("ADD", r.Key().String(), r.Neigh.String()))
	return nil
}

func (h *KernelHarness) DelRoute(r *state.Route) error {
	if h.fail {
		return errKernel
	}
	h.actions = append(h.actions, MakeEvent("DEL", r.Key().String(), r.Neigh.String()))
	return nil
}

func (h *KernelHarness) SwitchRoute(old, new *state.Route) error {
	if h.fail {
		return errKernel
	}
	h.actions = append(h.actions, MakeEvent("SWITCH", old.Key().String(), old.Neigh.String(), new.Neigh.String()))
	return nil
}

type HarnessEvents []HarnessEvent

func (e HarnessEvents) String() string {
	out := make([]string, 0, len(e))
	for _, action := range e {
		cur := action.Message
		for _, arg := range action.Args {
			cur += " " + fmt.Sprint(arg)
		}
		out = append(out, cur)
	}
	return strings.Join(out, "\n")
}

func (h *KernelHarness) GetActions() HarnessEvents {
	x := h.actions
	h.actions = nil
	return x
}

func (e HarnessEvents) contains(msg string, args ...any) bool {
	for _, event := range e {
		if event.Message != msg || len(event.Args) < len(args) {
			continue
		}
		match := true
		for i, arg := range args {
			if !cmp.Equal(event.Args[i], arg) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func (e HarnessEvents) AssertContains(t *testing.T, msg string, args ...any) {
	t.Helper()
	if e.contains(msg, args...) {
		return
	}
	t.Fatal("Expected event not found: ", msg, " with args: ", args, " in ", e)
}

func (e HarnessEvents) AssertNotContains(t *testing.T, msg string, args ...any) {
	t.Helper()
	if e.contains(msg, args...) {
		t.Fatal("Unexpected event found: ", msg, " with args: ", args, " in ", e)
	}
}

func MakeNeighbours(addrs ...string) []*state.Neighbour {
	neighs := make([]*state.Neighbour, 0, len(addrs))
	for _, a := range addrs {
		neighs = append(neighs, &state.Neighbour{
			Addr: netip.AddrPortFrom(netip.MustParseAddr(a), state.DefaultPort),
		})
	}
	return neighs
}

func dstKey(dst string) state.SourceKey {
	return state.KeyFor(state.MustParsePrefix(dst))
}

func srcKey(dst, src string) state.SourceKey {
	return state.MustSourceKey(state.MustParsePrefix(dst), state.MustParsePrefix(src))
}

// makeRoute builds a route with its own source, outside of any SourceTable.
func makeRoute(k state.SourceKey, neigh *state.Neighbour, metric uint16) *state.Route {
	return &state.Route{
		Src:      &state.Source{SourceKey: k},
		Neigh:    neigh,
		NextHop:  neigh.Addr.Addr(),
		Metric:   metric,
		ExpireAt: time.Now().Add(time.Hour),
	}
}

// newTestState builds a State whose dispatch channel is drained by nobody; tasks are run by hand.
func newTestState(t *testing.T, cfg state.Config) *state.State {
	t.Helper()
	ring, ifaces, err := state.BuildKeyRing(&cfg)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancelCause(context.Background())
	t.Cleanup(func() {
		cancel(nil)
	})
	return &state.State{
		Modules: make(map[string]state.Module),
		Ring:    ring,
		Ifaces:  ifaces,
		Env: &state.Env{
			DispatchChannel: make(chan func(*state.State) error, 128),
			Config:          cfg,
			Context:         ctx,
			Cancel:          cancel,
			Log:             slog.New(slog.DiscardHandler),
		},
	}
}
