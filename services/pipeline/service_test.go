package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"batmon-go/bus"
	"batmon-go/config"
	"batmon-go/persist"
	"batmon-go/scan"
	"batmon-go/store/memlog"
	"batmon-go/types"
	"batmon-go/volt"
	"batmon-go/x/timex"
)

// rig serves scripted sweeps in logical-channel order.
type rig struct {
	channels int
	sweeps   [][]uint16
	reads    int
	fail     bool
}

func (r *rig) Select(bank types.Bank, index uint8) {}

func (r *rig) ReadRaw() (uint16, error) {
	if r.fail {
		return 0, errors.New("adc busy")
	}
	sweep := r.reads / r.channels
	if sweep >= len(r.sweeps) {
		sweep = len(r.sweeps) - 1
	}
	v := r.sweeps[sweep][r.reads%r.channels]
	r.reads++
	return v, nil
}

type fakeLink struct {
	ready bool
	sent  [][]byte
	fail  bool
}

func (l *fakeLink) Ready() bool { return l.ready }
func (l *fakeLink) Send(p []byte) error {
	if l.fail {
		return errors.New("link reset")
	}
	l.sent = append(l.sent, append([]byte(nil), p...))
	return nil
}

func (l *fakeLink) payload() string {
	var b strings.Builder
	for _, c := range l.sent {
		b.Write(c)
	}
	return b.String()
}

var unity = volt.Converter{RefCV: 1024, FullScale: 1024, R1: 0, R2: 1}

func testConfig(capacity, csvBuf int) *config.Config {
	cfg := config.Default()
	cfg.Channels.PerBank = 1 // 2 logical channels
	cfg.Buffer.Capacity = capacity
	cfg.Transport.ChunkSize = 64
	cfg.Transport.PacingMs = 0
	cfg.CSV.BufSize = csvBuf
	return cfg
}

func newService(cfg *config.Config, r *rig, link *fakeLink, adapter *persist.Adapter) *Service {
	r.channels = types.NumBanks * cfg.Channels.PerBank
	return New(Options{
		Cfg:     cfg,
		Scanner: &scan.Scanner{Sel: r, ADC: r, Conv: unity, PerBank: cfg.Channels.PerBank},
		Log:     adapter,
		Link:    link,
		Clock:   timex.NewUptime(),
	})
}

func TestCycleFlushesOnSuccess(t *testing.T) {
	link := &fakeLink{ready: true}
	s := newService(testConfig(8, 256), &rig{sweeps: [][]uint16{{10, 20}}}, link, nil)

	s.cycle()

	require.Zero(t, s.Buffered(), "buffer resets after a confirmed flush")
	require.Equal(t, "Timestamp,B1,B2\n0,10,20\n", link.payload())
	st := s.Status()
	require.Equal(t, uint32(1), st.Cycles)
	require.Equal(t, uint32(1), st.Flushes)
}

func TestNotReadyRetainsBuffer(t *testing.T) {
	link := &fakeLink{ready: false}
	s := newService(testConfig(8, 256), &rig{sweeps: [][]uint16{{10, 20}, {11, 21}}}, link, nil)

	s.cycle()
	s.cycle()

	require.Empty(t, link.sent, "no chunk attempted without a subscriber")
	require.Equal(t, 2, s.Buffered())
	require.Equal(t, "not_ready", s.Status().LastError)

	// Peer subscribes; next drain delivers everything accumulated.
	link.ready = true
	s.drain()
	require.Zero(t, s.Buffered())
	require.Equal(t, "Timestamp,B1,B2\n0,10,20\n0,11,21\n", link.payload())
}

func TestBufferFullDropsAreCounted(t *testing.T) {
	link := &fakeLink{ready: false}
	sweeps := [][]uint16{{10, 20}, {11, 21}, {12, 22}, {13, 23}, {14, 24}}
	s := newService(testConfig(4, 512), &rig{sweeps: sweeps}, link, nil)

	for i := 0; i < 5; i++ {
		s.cycle()
	}
	require.Equal(t, 4, s.Buffered(), "5th scan is rejected, buffer stays at capacity")
	require.Equal(t, uint32(1), s.Status().Dropped)

	link.ready = true
	s.drain()
	require.Equal(t, "Timestamp,B1,B2\n0,10,20\n0,11,21\n0,12,22\n0,13,23\n", link.payload())
}

func TestScanFailureAppendsNothing(t *testing.T) {
	link := &fakeLink{ready: true}
	s := newService(testConfig(8, 256), &rig{fail: true, sweeps: [][]uint16{{0, 0}}}, link, nil)

	s.cycle()

	require.Zero(t, s.Buffered())
	require.Empty(t, link.sent)
	require.Equal(t, "acquisition_failed", s.Status().LastError)
}

func TestTransportFailureRetries(t *testing.T) {
	link := &fakeLink{ready: true, fail: true}
	s := newService(testConfig(8, 256), &rig{sweeps: [][]uint16{{10, 20}}}, link, nil)

	s.cycle()
	require.Equal(t, 1, s.Buffered(), "buffer retained on partial send")
	require.Equal(t, "partial_send", s.Status().LastError)

	link.fail = false
	link.sent = nil
	s.drain()
	require.Zero(t, s.Buffered())
}

func TestTruncatedFlushDropsOnlyDeliveredRows(t *testing.T) {
	link := &fakeLink{ready: false}
	sweeps := [][]uint16{{10, 20}, {11, 21}, {12, 22}, {13, 23}}
	// Room for the header (16) plus two rows of "0,1x,2x\n" (8 each).
	s := newService(testConfig(8, 16+8+8+3), &rig{sweeps: sweeps}, link, nil)

	for i := 0; i < 4; i++ {
		s.cycle()
	}
	link.ready = true
	s.drain()

	require.Equal(t, 2, s.Buffered(), "undelivered rows stay queued")
	require.Equal(t, "Timestamp,B1,B2\n0,10,20\n0,11,21\n", link.payload())
	require.Equal(t, "truncated", s.Status().LastError)
}

func TestTruncatedFlushKeepsSlotMirror(t *testing.T) {
	kv := memlog.New()
	link := &fakeLink{ready: false}
	sweeps := [][]uint16{{10, 20}, {11, 21}, {12, 22}, {13, 23}}
	// CSV room for the header plus two of the four buffered rows.
	s := newService(testConfig(8, 16+8+8+3), &rig{sweeps: sweeps}, link, persist.New(kv))

	for i := 0; i < 4; i++ {
		s.cycle()
	}
	link.ready = true
	s.drain()
	require.Equal(t, 2, s.Buffered())

	// Restart over the same log: the retained rows must come back in their
	// compacted positions, not under their pre-drain slots.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := bus.NewBus(4)
	link2 := &fakeLink{ready: true}
	s2 := newService(testConfig(8, 256), &rig{sweeps: sweeps}, link2, persist.New(kv))
	require.NoError(t, s2.Start(ctx, b.NewConnection("pipeline")))

	require.Equal(t, 2, s2.Status().Recovered)
	s2.drain()
	require.Equal(t, "Timestamp,B1,B2\n0,12,22\n0,13,23\n", link2.payload())
}

func TestWriteThroughThenRecoverAfterRestart(t *testing.T) {
	kv := memlog.New()
	link := &fakeLink{ready: false}
	sweeps := [][]uint16{{10, 20}, {11, 21}, {12, 22}}
	s := newService(testConfig(8, 256), &rig{sweeps: sweeps}, link, persist.New(kv))

	for i := 0; i < 3; i++ {
		s.cycle()
	}
	require.Equal(t, 3, s.Buffered())

	// Simulated restart: fresh service over the same log.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := bus.NewBus(4)
	s2 := newService(testConfig(8, 256), &rig{sweeps: sweeps}, &fakeLink{}, persist.New(kv))
	require.NoError(t, s2.Start(ctx, b.NewConnection("pipeline")))

	require.Equal(t, 3, s2.Buffered())
	require.Equal(t, 3, s2.Status().Recovered)
}

func TestForceFlushCommand(t *testing.T) {
	link := &fakeLink{ready: true}
	cfg := testConfig(8, 256)
	cfg.Sampling.PeriodMs = 3_600_000 // park the ticker; only the command drains
	s := newService(cfg, &rig{sweeps: [][]uint16{{10, 20}}}, link, nil)
	s.acquire()
	require.Equal(t, 1, s.Buffered())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b := bus.NewBus(4)
	require.NoError(t, s.Start(ctx, b.NewConnection("pipeline")))

	// Republish until the service loop has picked the command up; the first
	// publish can race the subscription being installed.
	cmd := b.NewConnection("app")
	require.Eventually(t, func() bool {
		cmd.Publish(&bus.Message{Topic: bus.T("cmd", "force_flush"), Payload: "now"})
		return s.Buffered() == 0
	}, time.Second, 5*time.Millisecond)
	require.Contains(t, link.payload(), "0,10,20\n")
}

func TestSamplingConfigRetunesPeriod(t *testing.T) {
	link := &fakeLink{ready: true}
	cfg := testConfig(8, 256)
	cfg.Sampling.PeriodMs = 3_600_000 // parked until the bus retunes it
	s := newService(cfg, &rig{sweeps: [][]uint16{{10, 20}}}, link, nil)

	b := bus.NewBus(4)
	// Retained, the same shape the config service publishes for the
	// sampling section.
	b.NewConnection("app").PublishRetained(bus.T("config", "sampling"),
		map[string]any{"period_ms": 25})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx, b.NewConnection("pipeline")))

	require.Eventually(t, func() bool {
		return s.Status().Flushes >= 1
	}, time.Second, 5*time.Millisecond)
	require.Contains(t, link.payload(), "0,10,20\n")
}

func TestDecoupledRequiresMemoryOnlyMode(t *testing.T) {
	cfg := testConfig(8, 256)
	cfg.Sampling.Decoupled = true

	s := newService(cfg, &rig{sweeps: [][]uint16{{10, 20}}}, &fakeLink{}, nil)
	require.True(t, s.decoupled, "memory-only mode gets the dedicated sampling task")

	s = newService(cfg, &rig{sweeps: [][]uint16{{10, 20}}}, &fakeLink{}, persist.New(memlog.New()))
	require.False(t, s.decoupled, "write-through pins sampling to the driver task")
}
