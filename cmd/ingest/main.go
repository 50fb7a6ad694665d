// Command ingest receives the device's chunked CSV export on a serial link,
// reassembles rows, and writes them to InfluxDB. Rows are de-duplicated on
// timestamp: the device may resend a prefix after a partial flush.
package main

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"go.bug.st/serial"
)

const headerPrefix = "Timestamp,"

// row is one parsed CSV data row.
type row struct {
	ts     int64
	values map[string]int64 // label -> centivolts
}

// parseHeader returns the channel labels of a header line.
func parseHeader(line string) []string {
	fields := strings.Split(strings.TrimSpace(line), ",")
	return fields[1:]
}

// parseRow parses a data line against the current labels.
func parseRow(labels []string, line string) (row, bool) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != len(labels)+1 {
		return row{}, false
	}
	ts, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return row{}, false
	}
	r := row{ts: ts, values: make(map[string]int64, len(labels))}
	for i, label := range labels {
		v, err := strconv.ParseInt(fields[i+1], 10, 64)
		if err != nil {
			return row{}, false
		}
		r.values[label] = v
	}
	return r, true
}

// dedup tracks already-ingested timestamps.
type dedup struct {
	seen map[int64]struct{}
}

func newDedup() *dedup { return &dedup{seen: map[int64]struct{}{}} }

func (d *dedup) fresh(ts int64) bool {
	if _, ok := d.seen[ts]; ok {
		return false
	}
	d.seen[ts] = struct{}{}
	return true
}

// ingest consumes CSV lines from r and hands fresh rows to sink.
func ingest(r io.Reader, sink func(row) error) error {
	var labels []string
	seen := newDedup()

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, headerPrefix) {
			labels = parseHeader(line)
			continue
		}
		if labels == nil {
			slog.Debug("data before header, skipping", "line", line)
			continue
		}
		rw, ok := parseRow(labels, line)
		if !ok {
			slog.Warn("unparseable row", "line", line)
			continue
		}
		if !seen.fresh(rw.ts) {
			slog.Debug("duplicate row", "ts", rw.ts)
			continue
		}
		if err := sink(rw); err != nil {
			return err
		}
	}
	return sc.Err()
}

func influxSink(write api.WriteAPIBlocking, device string) func(row) error {
	return func(rw row) error {
		fields := make(map[string]any, len(rw.values))
		for label, cv := range rw.values {
			fields[label] = cv
		}
		p := influxdb2.NewPoint("pack_voltage",
			map[string]string{"device": device},
			fields,
			time.Unix(rw.ts, 0),
		)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return write.WritePoint(ctx, p)
	}
}

func main() {
	path := "config.yaml"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	cfg, err := readConfig(path)
	if err != nil {
		slog.Error("failed to read config", "error", err)
		os.Exit(1)
	}
	slog.SetLogLoggerLevel(getLogLevel(cfg.Log.Level))

	port, err := serial.Open(cfg.Serial.Port, &serial.Mode{BaudRate: cfg.Serial.BaudRate})
	if err != nil {
		slog.Error("failed to open serial port", "port", cfg.Serial.Port, "error", err)
		os.Exit(1)
	}
	defer port.Close()

	client := influxdb2.NewClient(cfg.Influx.URL, cfg.Influx.Token)
	defer client.Close()
	write := client.WriteAPIBlocking(cfg.Influx.Org, cfg.Influx.Bucket)

	slog.Info("ingesting", "port", cfg.Serial.Port, "bucket", cfg.Influx.Bucket)
	if err := ingest(port, influxSink(write, cfg.Serial.Port)); err != nil {
		slog.Error("ingest stopped", "error", err)
		os.Exit(1)
	}
}
