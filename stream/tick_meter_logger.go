package stream

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/drivelab/drived/common"
)

// TickMeter periodically logs replay throughput: samples per second and
// how far into the recording the cursor has read.
type TickMeter struct {
	label      time.Time // the last sample timestamp seen
	interval   time.Duration
	started    time.Time
	ticker     *time.Ticker
	done       chan struct{}
	nn         atomic.Uint64
	reg        metrics.Registry
	count      metrics.Counter
	size       metrics.Counter
	countMeter metrics.Meter
	sizeMeter  metrics.Meter
}

func NewTickMeter(interval time.Duration) *TickMeter {
	// The metrics package is inert without this global switch.
	metrics.Enabled = true

	reg := metrics.NewRegistry()
	tm := &TickMeter{
		reg:        reg,
		interval:   interval,
		started:    time.Now(),
		done:       make(chan struct{}),
		count:      metrics.NewCounter(),
		size:       metrics.NewCounter(),
		countMeter: metrics.NewMeter(),
		sizeMeter:  metrics.NewMeter(),
	}
	for name, c := range map[string]any{
		"count.count": tm.count,
		"size.count":  tm.size,
		"line.meter":  tm.countMeter,
		"size.meter":  tm.sizeMeter,
	} {
		if err := reg.Register(name, c); err != nil {
			panic(err)
		}
	}
	tm.nn.Store(0)
	tm.ticker = time.NewTicker(tm.interval)
	go tm.run()
	return tm
}

// Mark records one processed sample of the given encoded size.
func (tm *TickMeter) Mark(label time.Time, size int) {
	tm.label = label
	tm.nn.Add(1)
	tm.count.Inc(1)
	tm.size.Inc(int64(size))
	tm.countMeter.Mark(1)
	tm.sizeMeter.Mark(int64(size))
}

func (tm *TickMeter) run() {
	for {
		select {
		case <-tm.done:
			return
		case <-tm.ticker.C:
			tm.log()
		}
	}
}

func (tm *TickMeter) log() {
	countSnap := tm.countMeter.Snapshot()
	sizeSnap := tm.sizeMeter.Snapshot()

	slog.Info("Read samples", "n", humanize.Comma(countSnap.Count()),
		"read.last", tm.label.Format(time.DateTime),
		"sps", common.DecimalToFixed(countSnap.Rate1(), 0),
		"bps", humanize.Bytes(uint64(sizeSnap.Rate1())),
		"total.bytes", humanize.Bytes(uint64(sizeSnap.Count())),
		"running", time.Since(tm.started).Round(time.Second))
}

// Stop halts the ticker, the logging goroutine, and the underlying meters.
// Safe to call once.
func (tm *TickMeter) Stop() {
	if tm == nil || tm.ticker == nil {
		return
	}
	close(tm.done)
	tm.ticker.Stop()
	tm.countMeter.Stop()
	tm.sizeMeter.Stop()
}
