package producer

import (
	"sync/atomic"
	"time"

	"framecast/internal/logging"
)

var seqLog = logging.New("sequencer")

// Sequencer releases the capture and ship services at integer
// sub-multiples of the master period. It owns shutdown: after the
// configured cycle count it sets the abort flag and closes the ticket
// channels, so every posted ticket is consumed before a service observes
// shutdown and no post is ever lost.
type Sequencer struct {
	period   time.Duration
	cycles   int
	captureD int
	shipD    int

	rec   *Recorder
	abort *atomic.Bool

	// Release tickets are counted semaphores: the buffer is sized so a
	// post can never block or be dropped.
	releaseCapture chan struct{}
	releaseShip    chan struct{}

	loopingDelay int
}

// NewSequencer builds the release loop. Divisors must be >= 1.
func NewSequencer(cfg SequencerConfig, rec *Recorder, abort *atomic.Bool) *Sequencer {
	return &Sequencer{
		period:         cfg.Period(),
		cycles:         cfg.Cycles,
		captureD:       cfg.CaptureDivisor,
		shipD:          cfg.ShipDivisor,
		rec:            rec,
		abort:          abort,
		releaseCapture: make(chan struct{}, cfg.Cycles),
		releaseShip:    make(chan struct{}, cfg.Cycles),
	}
}

// CaptureTickets returns the capture service's release semaphore.
func (s *Sequencer) CaptureTickets() <-chan struct{} { return s.releaseCapture }

// ShipTickets returns the ship service's release semaphore.
func (s *Sequencer) ShipTickets() <-chan struct{} { return s.releaseShip }

// LoopingDelay reports how many cycles began with a tick already pending,
// i.e. the sequencer body overran the master period. A metric, not an
// error.
func (s *Sequencer) LoopingDelay() int { return s.loopingDelay }

// Run drives the release loop for the configured cycle count, then sets
// abort and closes both ticket channels so blocked services wake. The
// time.Ticker channel holds at most one pending tick, so an
// overrun absorbs one extra wake and the next cycle starts with zero
// idle.
func (s *Sequencer) Run() {
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	seqLog.Infof("releasing %d cycles at %v (capture /%d, ship /%d)",
		s.cycles, s.period, s.captureD, s.shipD)

	for k := 0; k < s.cycles; k++ {
		select {
		case <-ticker.C:
			s.loopingDelay++
			seqLog.Warningf("cycle %d: looping delay %d", k, s.loopingDelay)
		default:
			<-ticker.C
		}

		start := s.rec.Now()

		// Capture is posted first. It also runs at higher priority, so
		// dispatch order never depends on post order.
		if k%s.captureD == 0 {
			s.releaseCapture <- struct{}{}
		}
		if k%s.shipD == 0 {
			s.releaseShip <- struct{}{}
		}

		end := s.rec.Now()
		t := s.period.Milliseconds()
		s.rec.Append(SvcSequencer, JobRecord{
			Count: k + 1,
			Start: start,
			End:   end,
			C:     end - start,
			T:     t,
			D:     start + t,
		})
	}

	s.abort.Store(true)
	close(s.releaseCapture)
	close(s.releaseShip)
	seqLog.Infof("done after %d cycles, looping delay %d", s.cycles, s.loopingDelay)
}
