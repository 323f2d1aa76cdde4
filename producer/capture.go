package producer

import (
	"time"

	"framecast/internal/logging"
)

var capLog = logging.New("capture")

// slotResult is the hand-off from capture to ship for one slot. ok=false
// marks a slot whose capture failed; ship observes it and skips instead
// of waiting forever.
type slotResult struct {
	slot int
	ok   bool
}

// CaptureService is S1: per release it pulls a raster from the source,
// annotates it, persists it at the current slot, then hands the slot to
// the ship service. Slot numbers are dense and strictly increasing, even
// across failed captures.
type CaptureService struct {
	source FrameSource
	store  *LocalStore
	rec    *Recorder
	node   string
	period time.Duration

	release <-chan struct{}
	handoff chan<- slotResult
}

// Run consumes release tickets until the sequencer closes the channel;
// every ticket posted before shutdown is processed. Caller runs it on
// its own goroutine and closes the hand-off channel after Run returns.
func (s *CaptureService) Run() {
	count := 0
	slot := 0
	for range s.release {
		start := s.rec.Now()
		if err := s.captureSlot(slot); err != nil {
			capLog.Errorf("slot %d skipped: %v", slot, err)
			s.handoff <- slotResult{slot: slot, ok: false}
			slot++
			continue
		}
		s.handoff <- slotResult{slot: slot, ok: true}

		end := s.rec.Now()
		t := s.period.Milliseconds()
		count++
		s.rec.Append(SvcCapture, JobRecord{
			Count: count,
			Start: start,
			End:   end,
			C:     end - start,
			T:     t,
			D:     start + t,
		})
		slot++
	}
	capLog.Debugf("shutdown observed after %d jobs", count)
}

func (s *CaptureService) captureSlot(slot int) error {
	frame, err := s.source.NextFrame()
	if err != nil {
		return err
	}
	encoded, err := Annotate(frame, NewStamp(s.node))
	if err != nil {
		return err
	}
	return s.store.Write(slot, encoded)
}
