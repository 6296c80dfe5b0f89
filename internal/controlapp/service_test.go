package controlapp

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danmuck/afcctl/internal/afcd"
	"github.com/danmuck/afcctl/internal/dispatch"
	"github.com/danmuck/afcctl/internal/protocol/packet"
	"github.com/danmuck/afcctl/internal/protocol/schema"
	"github.com/danmuck/afcctl/internal/testutil/testlog"
	"github.com/danmuck/afcctl/internal/vendor"
	"github.com/rs/zerolog/log"
)

func testConfig() ServiceConfig {
	cfg := DefaultServiceConfig()
	cfg.NodeID = "dut-test"
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.Version = "v0.0.0-test"
	return cfg
}

func startService(t *testing.T, cfg ServiceConfig) (*Service, net.Addr, func()) {
	t.Helper()
	svc, err := NewServiceWithConfig(cfg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- svc.Serve(ctx)
	}()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	addr, err := svc.UDPAddr(waitCtx)
	if err != nil {
		cancel()
		t.Fatalf("udp addr: %v", err)
	}
	stop := func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("serve returned %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("serve did not stop")
		}
	}
	return svc, addr, stop
}

func exchange(t *testing.T, conn net.Conn, req *packet.Packet, want int) []*packet.Packet {
	t.Helper()
	raw, err := packet.Encode(req, packet.DefaultLimits())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := conn.Write(raw); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := make([]*packet.Packet, 0, want)
	buf := make([]byte, packet.BufferLen)
	for len(out) < want {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, err := conn.Read(buf)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		p, err := packet.Decode(buf[:n], packet.DefaultLimits())
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		out = append(out, p)
	}
	return out
}

func statusByte(t *testing.T, p *packet.Packet) byte {
	t.Helper()
	f, ok := p.FindField(schema.FieldStatus)
	if !ok || len(f.Value) != 1 {
		t.Fatalf("missing status in %+v", p)
	}
	return f.Value[0]
}

func TestServiceConfigureOverUDP(t *testing.T) {
	testlog.Start(t)
	svc, addr, stop := startService(t, testConfig())
	defer stop()

	conn, err := net.Dial("udp", addr.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	req := packet.New(packet.DefaultLimits())
	req.AppendHeader(schema.CmdAFCDConfigure, 7)
	if err := req.AppendStringField(schema.FieldServerURL, "https://afc.example.test"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := req.AppendStringField(schema.FieldCACert, "cert"); err != nil {
		t.Fatalf("append: %v", err)
	}

	got := exchange(t, conn, req, 2)
	if got[0].Header.Command != schema.CmdAck || statusByte(t, got[0]) != schema.StatusOK {
		t.Fatalf("expected OK ack first, got %+v", got[0])
	}
	if got[1].Header.Command != schema.CmdResponse || got[1].Header.Sequence != 7 {
		t.Fatalf("unexpected response header %+v", got[1].Header)
	}
	if statusByte(t, got[1]) != schema.StatusOK {
		t.Fatalf("expected OK response")
	}
	if cfg := svc.Config(); cfg.ServerURL != "https://afc.example.test" {
		t.Fatalf("state not committed: %+v", cfg)
	}
}

func TestServiceUnknownCommandAndMalformedInput(t *testing.T) {
	testlog.Start(t)
	_, addr, stop := startService(t, testConfig())
	defer stop()

	conn, err := net.Dial("udp", addr.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	req := packet.New(packet.DefaultLimits())
	req.AppendHeader(0x7777, 3)
	got := exchange(t, conn, req, 2)
	for _, p := range got {
		if statusByte(t, p) != schema.StatusNotOK {
			t.Fatalf("expected NOT_OK for unknown command, got %+v", p)
		}
	}

	if _, err := conn.Write([]byte{0x01, 0x90, 0x02}); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, packet.BufferLen)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read after malformed input: %v", err)
	}
	p, err := packet.Decode(buf[:n], packet.DefaultLimits())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if statusByte(t, p) != schema.StatusNotOK {
		t.Fatalf("expected NOT_OK for malformed input")
	}
}

func TestServiceStateClearedOnStop(t *testing.T) {
	testlog.Start(t)
	cfg := testConfig()
	cfg.Ack = false
	svc, addr, stop := startService(t, cfg)

	conn, err := net.Dial("udp", addr.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	req := packet.New(packet.DefaultLimits())
	req.AppendHeader(schema.CmdAFCDConfigure, 1)
	_ = req.AppendStringField(schema.FieldServerURL, "https://afc.example.test")
	_ = req.AppendStringField(schema.FieldCACert, "")
	got := exchange(t, conn, req, 1)
	conn.Close()
	if got[0].Header.Command != schema.CmdResponse {
		t.Fatalf("expected response without ack, got %+v", got[0].Header)
	}
	stop()

	if cfg := svc.Config(); cfg.ServerURL != "" || cfg.Generation != 0 {
		t.Fatalf("state survived stop: %+v", cfg)
	}
}

func TestServiceVendorHooksRouteOperate(t *testing.T) {
	testlog.Start(t)
	cfg := testConfig()
	cfg.Ack = false
	cfg.Vendor.Hooks = map[vendor.Kind][]string{
		vendor.KindPowerCycle: {"sh", "-c", "exit 3"},
	}
	_, addr, stop := startService(t, cfg)
	defer stop()

	conn, err := net.Dial("udp", addr.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	req := packet.New(packet.DefaultLimits())
	req.AppendHeader(schema.CmdAFCDOperation, 9)
	_ = req.AppendStringField(schema.FieldPowerCycle, "1")
	got := exchange(t, conn, req, 1)
	msg, _ := got[0].FindField(schema.FieldMessage)
	if statusByte(t, got[0]) != schema.StatusNotOK || msg.Text() != "VENDOR_ERROR: power_cycle" {
		t.Fatalf("unexpected operate result %q", msg.Text())
	}
}

func TestNewServiceRejectsBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.ListenAddr = " "
	if _, err := NewServiceWithConfig(cfg); !errors.Is(err, ErrListenAddrRequired) {
		t.Fatalf("expected ErrListenAddrRequired, got %v", err)
	}

	cfg = testConfig()
	cfg.MaxFields = 0
	if _, err := NewServiceWithConfig(cfg); !errors.Is(err, ErrInvalidLimits) {
		t.Fatalf("expected ErrInvalidLimits, got %v", err)
	}

	cfg = testConfig()
	cfg.Vendor.Hooks = map[vendor.Kind][]string{"warp_drive": {"true"}}
	if _, err := NewServiceWithConfig(cfg); !errors.Is(err, ErrUnknownVendorKind) {
		t.Fatalf("expected ErrUnknownVendorKind, got %v", err)
	}
}

func TestStatusRouter(t *testing.T) {
	testlog.Start(t)
	svc, err := NewServiceWithConfig(testConfig())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	r := svc.StatusRouter()

	for _, path := range []string{"/health", "/config", "/routes", "/metrics"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("%s returned %d", path, w.Code)
		}
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/routes", nil))
	var body struct {
		Routes []struct {
			Name string `json:"name"`
		} `json:"routes"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode routes: %v", err)
	}
	if len(body.Routes) != 4 || body.Routes[1].Name != "AFCD_CONFIGURE" {
		t.Fatalf("unexpected routes %+v", body.Routes)
	}
}

func TestServeWaitsForInFlightRequestBeforeReset(t *testing.T) {
	testlog.Start(t)
	svc, err := NewServiceWithConfig(testConfig())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	entered := make(chan struct{})
	release := make(chan struct{})
	svc.table = dispatch.MustTable(dispatch.Options{Logger: log.Logger}, dispatch.Route{
		Command: schema.CmdAFCDConfigure,
		Handle: func(_ context.Context, req, resp *packet.Packet) error {
			close(entered)
			<-release
			svc.state.Commit(afcd.Staged{ServerURL: "https://late.example.test"})
			resp.AppendHeader(schema.CmdResponse, req.Header.Sequence)
			return dispatch.Respond(resp, nil)
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- svc.Serve(ctx)
	}()
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	addr, err := svc.UDPAddr(waitCtx)
	if err != nil {
		t.Fatalf("udp addr: %v", err)
	}

	conn, err := net.Dial("udp", addr.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	req := packet.New(packet.DefaultLimits())
	req.AppendHeader(schema.CmdAFCDConfigure, 4)
	raw, err := packet.Encode(req, packet.DefaultLimits())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := conn.Write(raw); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("handler never ran")
	}
	cancel()
	select {
	case err := <-done:
		t.Fatalf("serve returned with a request in flight: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
	close(release)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("serve did not stop")
	}
	if cfg := svc.Config(); cfg.ServerURL != "" || cfg.Generation != 0 {
		t.Fatalf("commit after stop survived reset: %+v", cfg)
	}
}

func TestServeOnlyOnce(t *testing.T) {
	testlog.Start(t)
	svc, _, stop := startService(t, testConfig())
	stop()
	if err := svc.Serve(context.Background()); !errors.Is(err, ErrAlreadyServed) {
		t.Fatalf("expected ErrAlreadyServed, got %v", err)
	}
}
