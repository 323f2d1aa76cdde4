package producer

import (
	"fmt"
	"net"
	"time"

	"framecast/internal/logging"
	"framecast/internal/wire"
)

var shipLog = logging.New("ship")

// ShipService is S2: per release it waits for the capture hand-off, reads
// the slot's encoded frame, frames it with the wire terminator and sends
// it to the collector over a fresh TCP connection. One logical message
// per connection; the connection is closed by the sender.
type ShipService struct {
	store       *LocalStore
	rec         *Recorder
	addr        string
	period      time.Duration
	dialTimeout time.Duration

	// chunkSize > 0 splits the send into fixed-size writes. Transport
	// fragmentation must not affect the receiver, so tests exercise it.
	chunkSize int

	release <-chan struct{}
	handoff <-chan slotResult
}

// Run consumes release tickets until the sequencer closes the channel,
// or until the hand-off channel closes (capture finished and no further
// slot will ever arrive).
func (s *ShipService) Run() {
	count := 0
	for range s.release {
		res, ok := <-s.handoff
		if !ok {
			shipLog.Debugf("hand-off closed after %d jobs", count)
			return
		}
		if !res.ok {
			shipLog.Warningf("slot %d unavailable, not shipped", res.slot)
			continue
		}

		// Start is taken after the hand-off: waiting on capture is idle
		// time, not execution time.
		start := s.rec.Now()
		if err := s.shipSlot(res.slot); err != nil {
			shipLog.Errorf("slot %d abandoned: %v", res.slot, err)
		}
		end := s.rec.Now()
		t := s.period.Milliseconds()
		count++
		s.rec.Append(SvcShip, JobRecord{
			Count: count,
			Start: start,
			End:   end,
			C:     end - start,
			T:     t,
			D:     start + t,
		})
	}
	shipLog.Debugf("shutdown observed after %d jobs", count)
}

func (s *ShipService) shipSlot(slot int) error {
	data, err := s.store.Read(slot)
	if err != nil {
		return err
	}
	payload := wire.Append(data)

	// No retry within the job: the next slot dials again.
	conn, err := net.DialTimeout("tcp", s.addr, s.dialTimeout)
	if err != nil {
		return fmt.Errorf("ship: connect %s: %w", s.addr, err)
	}
	defer conn.Close()

	if err := s.writeAll(conn, payload); err != nil {
		return fmt.Errorf("ship: send slot %d: %w", slot, err)
	}
	shipLog.Infof("slot %d shipped: %d bytes", slot, len(payload))
	return nil
}

func (s *ShipService) writeAll(conn net.Conn, payload []byte) error {
	if s.chunkSize <= 0 {
		_, err := conn.Write(payload)
		return err
	}
	for off := 0; off < len(payload); off += s.chunkSize {
		end := off + s.chunkSize
		if end > len(payload) {
			end = len(payload)
		}
		if _, err := conn.Write(payload[off:end]); err != nil {
			return err
		}
	}
	return nil
}
