package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dokzlo13/ceilingd/internal/ceiling"
	"github.com/dokzlo13/ceilingd/internal/color"
	"github.com/dokzlo13/ceilingd/internal/device"
	"github.com/dokzlo13/ceilingd/internal/executor"
	"github.com/dokzlo13/ceilingd/internal/ledger"
)

const serial = "d073d5000001"

type fakeController struct {
	err        error
	turnOn     *ceiling.Request
	light      ceiling.Light
	transition time.Duration
	setState   *ceiling.SetStateRequest
}

func (f *fakeController) Devices() []*device.Ceiling {
	return []*device.Ceiling{
		device.NewCeiling(device.Handle{Serial: "d073d5000002", ProductID: 201}),
		device.NewCeiling(device.Handle{Serial: serial, ProductID: 176}),
	}
}

func (f *fakeController) ReadState(_ context.Context, s string) (ceiling.Reading, error) {
	if s != serial {
		return ceiling.Reading{}, ceiling.ErrUnknownDevice
	}
	return ceiling.Reading{Serial: s, Model: "LIFX Ceiling"}, f.err
}

func (f *fakeController) HandleTurnOn(_ context.Context, _ string, l ceiling.Light, req ceiling.Request) error {
	f.light = l
	f.turnOn = &req
	return f.err
}

func (f *fakeController) TurnOff(_ context.Context, _ string, l ceiling.Light, transition time.Duration) error {
	f.light = l
	f.transition = transition
	return f.err
}

func (f *fakeController) SetState(_ context.Context, _ string, req ceiling.SetStateRequest) error {
	f.setState = &req
	return f.err
}

type fakeHistory []*ledger.Entry

func (h fakeHistory) BySerial(_ string, limit int) ([]*ledger.Entry, error) {
	if limit < len(h) {
		return h[:limit], nil
	}
	return h, nil
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestListDevices(t *testing.T) {
	h := NewServer("", 0, &fakeController{}, nil).Handler()

	rec := do(t, h, http.MethodGet, "/devices", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Error("missing request id")
	}

	var out []deviceSummary
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 || out[0].Serial != serial || out[1].Zones != 128 {
		t.Errorf("devices = %+v", out)
	}
}

func TestGetDevice(t *testing.T) {
	h := NewServer("", 0, &fakeController{}, nil).Handler()

	if rec := do(t, h, http.MethodGet, "/devices/"+serial, ""); rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/devices/unknown", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown device status = %d", rec.Code)
	}
}

func TestTurnOn(t *testing.T) {
	ctrl := &fakeController{}
	h := NewServer("", 0, ctrl, nil).Handler()

	rec := do(t, h, http.MethodPost, "/devices/"+serial+"/uplight/turn_on",
		`{"hs_color":[240,100],"brightness":128,"transition":1.5,"effect":"pulse"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}

	req := ctrl.turnOn
	if ctrl.light != ceiling.Uplight {
		t.Errorf("light = %v", ctrl.light)
	}
	if req.Color.HS == nil || req.Color.HS.Hue != 240 || req.Color.HS.Saturation != 100 {
		t.Errorf("hs = %+v", req.Color.HS)
	}
	if req.Color.Level == nil || *req.Color.Level != 128 {
		t.Errorf("level = %v", req.Color.Level)
	}
	if req.Transition != 1500*time.Millisecond {
		t.Errorf("transition = %v", req.Transition)
	}
	if len(req.Unrecognized) != 1 || req.Unrecognized[0] != "effect" {
		t.Errorf("unrecognized = %v", req.Unrecognized)
	}
}

func TestTurnOn_EmptyBody(t *testing.T) {
	ctrl := &fakeController{}
	h := NewServer("", 0, ctrl, nil).Handler()

	if rec := do(t, h, http.MethodPost, "/devices/"+serial+"/downlight/turn_on", ""); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !ctrl.turnOn.Color.IsEmpty() || len(ctrl.turnOn.Unrecognized) != 0 {
		t.Errorf("request = %+v", ctrl.turnOn)
	}
}

func TestTurnOff(t *testing.T) {
	ctrl := &fakeController{}
	h := NewServer("", 0, ctrl, nil).Handler()

	if rec := do(t, h, http.MethodPost, "/devices/"+serial+"/downlight/turn_off", `{"transition":2}`); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ctrl.light != ceiling.Downlight || ctrl.transition != 2*time.Second {
		t.Errorf("light=%v transition=%v", ctrl.light, ctrl.transition)
	}
}

func TestSetState(t *testing.T) {
	ctrl := &fakeController{}
	h := NewServer("", 0, ctrl, nil).Handler()

	rec := do(t, h, http.MethodPost, "/devices/"+serial+"/state",
		`{"downlight_brightness":0,"uplight_hue":120,"uplight_saturation":100,"uplight_kelvin":4000}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}

	got := ctrl.setState
	if got.Downlight.Brightness != 0 || got.Downlight.Kelvin != color.NeutralKelvin {
		t.Errorf("downlight = %+v", got.Downlight)
	}
	if got.Uplight.Brightness != color.MaxBrightness || got.Uplight.Saturation != 65535 || got.Uplight.Kelvin != 4000 {
		t.Errorf("uplight = %+v", got.Uplight)
	}
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		path string
		body string
		want int
	}{
		{"unknown light", nil, "/devices/" + serial + "/sidelight/turn_on", "", http.StatusNotFound},
		{"bad json", nil, "/devices/" + serial + "/uplight/turn_on", "{", http.StatusBadRequest},
		{"bad attribute", nil, "/devices/" + serial + "/uplight/turn_on", `{"brightness":"high"}`, http.StatusBadRequest},
		{"negative transition", nil, "/devices/" + serial + "/uplight/turn_off", `{"transition":-1}`, http.StatusBadRequest},
		{"timeout", &executor.TimeoutError{Failed: 1, Total: 1}, "/devices/" + serial + "/uplight/turn_on", "", http.StatusGatewayTimeout},
		{"unknown device", ceiling.ErrUnknownDevice, "/devices/x/uplight/turn_on", "", http.StatusNotFound},
		{"other", errors.New("boom"), "/devices/" + serial + "/state", "", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewServer("", 0, &fakeController{err: tt.err}, nil).Handler()
			rec := do(t, h, http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestHistory(t *testing.T) {
	history := fakeHistory{
		{ID: 2, EventType: ledger.EventCommandFailed, Serial: serial},
		{ID: 1, EventType: ledger.EventCommandApplied, Serial: serial},
	}
	h := NewServer("", 0, &fakeController{}, history).Handler()

	rec := do(t, h, http.MethodGet, "/devices/"+serial+"/history?limit=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out []ledger.Entry
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].ID != 2 {
		t.Errorf("history = %+v", out)
	}

	if rec := do(t, h, http.MethodGet, "/devices/"+serial+"/history?limit=x", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", rec.Code)
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	h := NewServer("", 0, &fakeController{}, nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/devices", nil)
	req.Header.Set(requestIDHeader, "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get(requestIDHeader); got != "abc" {
		t.Errorf("request id = %q", got)
	}
}
