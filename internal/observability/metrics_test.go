package observability

import (
	"strings"
	"testing"
	"time"

	"github.com/danmuck/afcctl/internal/dispatch"
	"github.com/danmuck/afcctl/internal/testutil/testlog"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("dut-a", "GET", "/health", 200, 12*time.Millisecond)
	RecordVendorAction("dut-a", "send_test_frame:80MHz", true, 24*time.Millisecond)
	RecordConfigGeneration("dut-a", 3)

	if got := testutil.ToFloat64(configGeneration.WithLabelValues("dut-a")); got != 3 {
		t.Fatalf("unexpected generation gauge %v", got)
	}
}

func TestDispatchObserverCounts(t *testing.T) {
	testlog.Start(t)
	obs := DispatchObserver{Node: "dut-observer"}
	obs.ObserveDispatch("AFCD_GET_INFO", true, time.Millisecond)
	obs.ObserveDispatch("AFCD_GET_INFO", true, time.Millisecond)
	obs.ObserveDispatch("AFCD_GET_INFO", false, time.Millisecond)

	if got := testutil.ToFloat64(dispatchRequests.WithLabelValues("dut-observer", "AFCD_GET_INFO", "true")); got != 2 {
		t.Fatalf("unexpected ok count %v", got)
	}
	if got := testutil.ToFloat64(dispatchRequests.WithLabelValues("dut-observer", "AFCD_GET_INFO", "false")); got != 1 {
		t.Fatalf("unexpected failure count %v", got)
	}
}

func TestMalformedPacketCounter(t *testing.T) {
	testlog.Start(t)
	DispatchObserver{Node: "dut-malformed"}.ObserveDispatch(dispatch.DecodeErrorName, false, time.Millisecond)
	expected := `
# HELP afcctl_dispatch_malformed_packets_total Datagrams that failed to decode.
# TYPE afcctl_dispatch_malformed_packets_total counter
afcctl_dispatch_malformed_packets_total{node="dut-malformed"} 1
`
	if err := testutil.CollectAndCompare(malformedPackets, strings.NewReader(expected)); err != nil {
		t.Fatalf("collect: %v", err)
	}
}

func TestComponentLoggerTagsFields(t *testing.T) {
	testlog.Start(t)
	l := ComponentLogger("dut-a", "udp")
	l.Debug().Msg("component logger")
}
