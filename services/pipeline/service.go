// Package pipeline drives the scan → buffer → persist → flush cycle on a
// fixed period. It is the only owner of the record buffer: acquisition and
// drain never interleave without the buffer lock, and the lock is never held
// across the settle or pacing delays.
package pipeline

import (
	"context"
	"sync"
	"time"

	"batmon-go/bus"
	"batmon-go/config"
	"batmon-go/csvenc"
	"batmon-go/errcode"
	"batmon-go/persist"
	"batmon-go/record"
	"batmon-go/scan"
	"batmon-go/transport"
	"batmon-go/types"
	"batmon-go/x/timex"
)

var (
	topicStatus     = bus.T("status", "pipeline")
	topicConfig     = bus.T("config", "sampling")
	topicForceFlush = bus.T("cmd", "force_flush")
)

// Options wires the pipeline's collaborators.
type Options struct {
	Cfg     *config.Config
	Scanner *scan.Scanner
	Log     *persist.Adapter // nil-adapter for memory-only mode
	Link    types.Notifier
	Clock   *timex.Uptime
}

type Service struct {
	cfg     *config.Config
	scanner *scan.Scanner
	log     *persist.Adapter
	chunk   *transport.Chunker
	clock   *timex.Uptime
	labels  []string

	mu     sync.Mutex // guards buf and status; held only across append or serialize
	buf    *record.Buffer
	status types.PipelineStatus

	scratch   []uint16
	csvBuf    []byte
	period    time.Duration
	decoupled bool
}

func New(o Options) *Service {
	labels := o.Cfg.Channels.Labels
	if len(labels) != o.Scanner.Channels() {
		labels = csvenc.DefaultLabels(o.Scanner.Channels())
	}
	log := o.Log
	if log == nil {
		log = persist.New(nil)
	}
	return &Service{
		cfg:     o.Cfg,
		scanner: o.Scanner,
		log:     log,
		chunk:   transport.NewChunker(o.Link, o.Cfg.Transport.ChunkSize, o.Cfg.Pacing()),
		clock:   o.Clock,
		labels:  labels,
		buf:     record.NewBuffer(o.Cfg.Buffer.Capacity),
		scratch: make([]uint16, o.Scanner.Channels()),
		csvBuf:  make([]byte, o.Cfg.CSV.BufSize),
		period:  o.Cfg.Period(),
		// Persistence stays single-task: the slot mirror cannot survive a
		// partial drain racing a write-through.
		decoupled: o.Cfg.Sampling.Decoupled && !log.Enabled(),
	}
}

// Start recovers any persisted records and launches the driver loop. With
// Decoupled set (and persistence off), acquisition runs on its own
// low-priority task and the driver loop only drains.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	n := s.log.Recover(s.buf)
	s.mu.Lock()
	s.status.Recovered = n
	s.mu.Unlock()
	if n > 0 {
		println("Info: pipeline recovered", n, "records from log")
	}

	if s.cfg.Sampling.Decoupled && !s.decoupled {
		println("Info: pipeline persistence active, sampling stays on the driver task")
	}

	go s.serviceLoop(ctx, conn)
	if s.decoupled {
		go s.sampleLoop(ctx)
	}
	return nil
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cmdSub := conn.Subscribe(topicForceFlush)
	cfgSub := conn.Subscribe(topicConfig)
	defer conn.Unsubscribe(cmdSub)
	defer conn.Unsubscribe(cfgSub)

	tick := time.NewTicker(s.period)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			println("Info: pipeline service stopping")
			return
		case <-tick.C:
			if s.decoupled {
				s.drain()
			} else {
				s.cycle()
			}
			s.publishStatus(conn)
		case <-cmdSub.Channel():
			s.drain()
			s.publishStatus(conn)
		case msg := <-cfgSub.Channel():
			if m, ok := msg.Payload.(map[string]any); ok {
				if iv, ok := m["period_ms"]; ok {
					if ms, ok := asInt(iv); ok && ms > 0 {
						s.period = time.Duration(ms) * time.Millisecond
						tick.Reset(s.period)
						println("Info: pipeline period set to", ms, "ms")
					}
				}
			}
		}
	}
}

// sampleLoop is the optional dedicated acquisition task.
func (s *Service) sampleLoop(ctx context.Context) {
	tick := time.NewTicker(s.period)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			s.acquire()
		}
	}
}

// cycle runs one acquire-then-drain pass on the driver task.
func (s *Service) cycle() {
	s.acquire()
	s.drain()
}

// acquire performs one scan and appends the record. The scan (and its
// settle delays) happens outside the buffer lock.
func (s *Service) acquire() {
	s.mu.Lock()
	s.status.Cycles++
	s.mu.Unlock()

	if err := s.scanner.ScanAll(s.scratch); err != nil {
		// Fail-fast: no partial record for an aborted sweep.
		s.setError(err)
		return
	}
	rec := record.Record{Timestamp: s.clock.Seconds(), Values: s.scratch}

	s.mu.Lock()
	err := s.buf.Append(rec)
	slot := s.buf.Len() - 1
	if err != nil {
		s.status.Dropped++
	}
	s.mu.Unlock()

	if err != nil {
		s.setError(err)
		return
	}
	if perr := s.log.StoreSlot(slot, rec); perr != nil {
		// Persistence is now off for the session; acquisition continues.
		println("Warn: persistence disabled:", perr.Error())
		s.setError(perr)
	}
}

// drain serializes and sends whatever is buffered. The transport pacing
// delay runs outside the buffer lock; only the rows actually delivered are
// discarded.
func (s *Service) drain() {
	s.mu.Lock()
	if s.buf.Len() == 0 {
		s.mu.Unlock()
		return
	}
	n, rows, serr := csvenc.Write(s.buf, s.labels, s.csvBuf)
	s.mu.Unlock()

	if serr != nil && rows == 0 {
		s.setError(serr)
		return
	}

	if err := s.chunk.Send(s.csvBuf[:n]); err != nil {
		// Buffer retained; retried next cycle. The receiver may have seen a
		// prefix, which the CSV row format tolerates.
		s.setError(err)
		return
	}

	compacted := false
	s.mu.Lock()
	if serr != nil {
		s.buf.DropFirst(rows)
		compacted = true
		s.status.LastError = string(errcode.Truncated)
	} else if s.buf.Len() == rows {
		s.buf.Reset()
		s.status.LastError = ""
	} else {
		// Records appended while the link was busy stay queued.
		s.buf.DropFirst(rows)
		compacted = true
		s.status.LastError = ""
	}
	s.status.Flushes++
	s.mu.Unlock()

	if compacted {
		// Compaction shifted the surviving records, so their log slots no
		// longer line up; re-mirror them or a restart recovers stale state.
		// Persistence forces the single-task topology, so the buffer cannot
		// change between the unlock above and the rewrite.
		if err := s.log.Rewrite(s.buf); err != nil {
			println("Warn: persistence disabled:", err.Error())
			s.setError(err)
		}
	}
}

func (s *Service) setError(err error) {
	s.mu.Lock()
	s.status.LastError = string(errcode.Of(err))
	s.mu.Unlock()
}

func (s *Service) publishStatus(conn *bus.Connection) {
	s.mu.Lock()
	st := s.status
	s.mu.Unlock()
	st.TsMs = timex.NowMs()
	conn.PublishRetained(topicStatus, st)
}

// Buffered reports the number of records awaiting flush.
func (s *Service) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Len()
}

// Status returns a snapshot of the pipeline counters.
func (s *Service) Status() types.PipelineStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
