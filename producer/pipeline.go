package producer

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"framecast/internal/logging"
	"framecast/internal/rt"
)

var pipeLog = logging.New("producer")

// Pipeline owns the producer-side services and their shared state: the
// frame source, the local store and the timing recorder. One lifetime,
// bound to main; the abort flag is created per Run.
type Pipeline struct {
	cfg    *Config
	source FrameSource
	store  *LocalStore
	rec    *Recorder
	node   string
}

// NewPipeline opens the frame source and the local store. Camera open
// failure is startup-fatal and surfaces here.
func NewPipeline(cfg *Config) (*Pipeline, error) {
	var source FrameSource
	var err error
	if cfg.Camera.Synthetic {
		source = NewSyntheticSource(cfg.Camera.Width, cfg.Camera.Height)
	} else {
		source, err = OpenCamera(cfg.Camera.Index, cfg.Camera.Width, cfg.Camera.Height)
		if err != nil {
			return nil, err
		}
	}

	store, err := NewLocalStore(cfg.ImagesDir)
	if err != nil {
		source.Close()
		return nil, err
	}

	node, err := os.Hostname()
	if err != nil {
		node = "unknown"
	}

	if cfg.Sched.RequireRealtime {
		// Probe promotion up front so a missing CAP_SYS_NICE is a
		// startup failure, not a mid-run surprise inside a service.
		runtime.LockOSThread()
		err := rt.Promote(rt.Sequencer)
		runtime.UnlockOSThread()
		if err != nil {
			source.Close()
			return nil, fmt.Errorf("realtime scheduling required: %w", err)
		}
	}

	return &Pipeline{
		cfg:    cfg,
		source: source,
		store:  store,
		rec:    NewRecorder(),
		node:   node,
	}, nil
}

// Recorder exposes the timing matrix for the final report.
func (p *Pipeline) Recorder() *Recorder { return p.rec }

// Run executes the full producer: starts S1 and S2, drives the sequencer
// to completion, joins the services and writes the timing CSV. It blocks
// until shutdown is complete.
func (p *Pipeline) Run() error {
	var abort atomic.Bool
	seq := NewSequencer(p.cfg.Sequencer, p.rec, &abort)

	handoff := make(chan slotResult, p.cfg.Sequencer.Cycles)

	capture := &CaptureService{
		source:  p.source,
		store:   p.store,
		rec:     p.rec,
		node:    p.node,
		period:  p.cfg.Sequencer.Period() * time.Duration(p.cfg.Sequencer.CaptureDivisor),
		release: seq.CaptureTickets(),
		handoff: handoff,
	}
	ship := &ShipService{
		store:       p.store,
		rec:         p.rec,
		addr:        p.cfg.Collector,
		period:      p.cfg.Sequencer.Period() * time.Duration(p.cfg.Sequencer.ShipDivisor),
		dialTimeout: p.cfg.DialTimeout(),
		release:     seq.ShipTickets(),
		handoff:     handoff,
	}

	var captureDone, shipDone sync.WaitGroup
	captureDone.Add(1)
	go func() {
		defer captureDone.Done()
		p.promote(rt.Capture)
		capture.Run()
	}()
	shipDone.Add(1)
	go func() {
		defer shipDone.Done()
		p.promote(rt.Ship)
		ship.Run()
	}()

	p.promote(rt.Sequencer)
	seq.Run()

	// Capture exits first; closing the hand-off then wakes a ship that
	// is still waiting on a slot that will never be produced.
	captureDone.Wait()
	close(handoff)
	shipDone.Wait()

	if err := p.rec.WriteCSV(p.cfg.RecordCSV); err != nil {
		return err
	}
	pipeLog.Infof("run complete: %d capture jobs, %d ship jobs, %d missed deadlines",
		len(p.rec.Rows(SvcCapture)), len(p.rec.Rows(SvcShip)), p.rec.MissedDeadlines())
	return nil
}

// promote applies SCHED_FIFO on the calling goroutine's thread. Refusal
// is a warning unless config demands realtime (checked at startup).
func (p *Pipeline) promote(lvl rt.Level) {
	runtime.LockOSThread()
	if err := rt.Promote(lvl); err != nil {
		pipeLog.Warningf("running %s without realtime priority: %v", lvl, err)
	}
	if p.cfg.Sched.CPU >= 0 {
		if err := rt.PinCPU(p.cfg.Sched.CPU); err != nil {
			pipeLog.Warningf("cpu pin for %s: %v", lvl, err)
		}
	}
}

// Close releases the frame source.
func (p *Pipeline) Close() error {
	return p.source.Close()
}
