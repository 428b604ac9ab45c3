package registry

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/ceilingd/internal/config"
	"github.com/dokzlo13/ceilingd/internal/device"
)

type probeFunc func(ctx context.Context, h device.Handle) (uint32, error)

func (f probeFunc) ProductID(ctx context.Context, h device.Handle) (uint32, error) {
	return f(ctx, h)
}

func TestResolve(t *testing.T) {
	calls := 0
	probe := probeFunc(func(_ context.Context, h device.Handle) (uint32, error) {
		calls++
		if h.Serial == "d073d5000003" {
			return 0, errors.New("unreachable")
		}
		return 201, nil
	})

	r := New([]config.DeviceConfig{
		{Serial: "D0:73:D5:00:00:01", Addr: "192.0.2.1:56700", ProductID: 176},
		{Serial: "d073d5000002", Addr: "192.0.2.2:56700"},
		{Serial: "d073d5000003", Addr: "192.0.2.3:56700"},
		{Serial: "d073d5000004", Addr: "192.0.2.4:56700", ProductID: 27},
	}, probe)

	got := r.Resolve(context.Background())
	if len(got) != 2 {
		t.Fatalf("got %+v, want two ceilings", got)
	}
	if got[0].Serial != "d073d5000001" {
		t.Errorf("serial not normalized: %q", got[0].Serial)
	}
	if got[1].ProductID != 201 {
		t.Errorf("probed product id = %d", got[1].ProductID)
	}

	r.Resolve(context.Background())
	if calls != 3 {
		t.Errorf("probe calls = %d, want 3 (probed device cached, failed one retried)", calls)
	}
}

func TestResolve_NoProber(t *testing.T) {
	r := New([]config.DeviceConfig{{Serial: "d073d5000001", Addr: "x"}}, nil)
	if got := r.Resolve(context.Background()); len(got) != 0 {
		t.Errorf("got %+v", got)
	}
}

func TestResolve_NonCeilingReportedOnce(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	calls := 0
	probe := probeFunc(func(context.Context, device.Handle) (uint32, error) {
		calls++
		return 27, nil
	})
	r := New([]config.DeviceConfig{
		{Serial: "d073d5000001", Addr: "192.0.2.1:56700"},
		{Serial: "d073d5000002", Addr: "192.0.2.2:56700", ProductID: 31},
	}, probe)

	for i := 0; i < 3; i++ {
		if got := r.Resolve(context.Background()); len(got) != 0 {
			t.Fatalf("got %+v, want none", got)
		}
	}

	if n := strings.Count(buf.String(), "Not a ceiling fixture"); n != 2 {
		t.Errorf("warnings = %d, want one per device", n)
	}
	if calls != 1 {
		t.Errorf("probe calls = %d, want 1", calls)
	}
}

func TestRun(t *testing.T) {
	r := New([]config.DeviceConfig{{Serial: "d073d5000001", Addr: "x", ProductID: 177}}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan device.Handle)
	go r.Run(ctx, 10*time.Millisecond, out)

	for i := 0; i < 2; i++ {
		select {
		case h := <-out:
			if h.Serial != "d073d5000001" {
				t.Errorf("handle = %+v", h)
			}
		case <-time.After(time.Second):
			t.Fatal("no handle received")
		}
	}

	cancel()
	for range out {
	}
}
