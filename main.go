package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"batmon-go/bus"
	"batmon-go/config"
	"batmon-go/persist"
	"batmon-go/scan"
	"batmon-go/services/pipeline"
	"batmon-go/store"
	"batmon-go/store/badgerlog"
	"batmon-go/types"
	"batmon-go/volt"
	"batmon-go/x/timex"

	configsvc "batmon-go/services/config"
)

// simRig stands in for the mux + ADC chain: each logical channel sits near a
// nominal cell voltage with a slow sawtooth wobble.
type simRig struct {
	perBank  int
	selected int
	tick     uint16
}

func (r *simRig) Select(bank types.Bank, index uint8) {
	r.selected = int(bank)*r.perBank + int(index)
}

func (r *simRig) ReadRaw() (uint16, error) {
	r.tick++
	base := uint16(380 + 3*r.selected) // ~1.2 V at the divider tap
	return base + r.tick%7, nil
}

// consoleLink plays the notify capability: always subscribed, chunks go to
// stdout framed for eyeballing.
type consoleLink struct{}

func (consoleLink) Ready() bool { return true }
func (consoleLink) Send(p []byte) error {
	fmt.Printf("--- chunk (%d bytes) ---\n%s", len(p), p)
	return nil
}

func main() {
	cfg := config.Default()
	path := "batmon.yaml"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	if loaded, err := config.Load(path); err == nil {
		cfg = loaded
		println("Info: loaded config from", path)
	} else {
		println("Info: using default config:", err.Error())
	}

	var kv store.KV
	if cfg.Persist.Enabled {
		l, err := badgerlog.Open(badgerlog.Config{Path: cfg.Persist.Path, InMemory: cfg.Persist.InMemory})
		if err != nil {
			// Mount failure kills persistence only; the pipeline runs memory-only.
			println("Warn: log mount failed, memory-only mode:", err.Error())
		} else {
			kv = l
			defer l.Close()
		}
	}

	rig := &simRig{perBank: cfg.Channels.PerBank}
	svc := pipeline.New(pipeline.Options{
		Cfg: cfg,
		Scanner: &scan.Scanner{
			Sel:     rig,
			ADC:     rig,
			Conv:    volt.Converter{RefCV: cfg.Divider.RefCV, FullScale: cfg.Divider.FullScale, R1: cfg.Divider.R1, R2: cfg.Divider.R2},
			PerBank: cfg.Channels.PerBank,
			Settle:  cfg.Settle(),
		},
		Log:   persist.New(kv),
		Link:  consoleLink{},
		Clock: timex.NewUptime(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	b := bus.NewBus(8)
	configsvc.NewService(path).Start(ctx, b.NewConnection("config"))
	if err := svc.Start(ctx, b.NewConnection("pipeline")); err != nil {
		println("Error: pipeline start failed:", err.Error())
		os.Exit(1)
	}

	statusSub := b.NewConnection("main").Subscribe(bus.T("status", "pipeline"))
	for {
		select {
		case <-ctx.Done():
			println("Info: shutting down")
			return
		case msg := <-statusSub.Channel():
			if st, ok := msg.Payload.(types.PipelineStatus); ok {
				fmt.Printf("%s status cycles=%d flushes=%d dropped=%d err=%q\n",
					time.Now().Format("15:04:05"), st.Cycles, st.Flushes, st.Dropped, st.LastError)
			}
		}
	}
}
