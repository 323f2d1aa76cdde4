package producer

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"
)

// ServiceID names a row owner in the timing report.
type ServiceID int

const (
	SvcSequencer ServiceID = iota
	SvcCapture
	SvcShip
	numServices
)

func (s ServiceID) String() string {
	switch s {
	case SvcSequencer:
		return "Seq"
	case SvcCapture:
		return "S1"
	case SvcShip:
		return "S2"
	}
	return "?"
}

// JobRecord captures one release of a service. All times are milliseconds
// since the start of the run. C is the observed execution time, T the
// assigned period, D the descriptive deadline start+T.
type JobRecord struct {
	Count int
	Start int64
	End   int64
	C     int64
	T     int64
	D     int64
}

// Recorder accumulates JobRecords per service. Each service's slice is
// appended only from that service's goroutine; rows are read only after
// every service has been joined, so no locking is needed.
type Recorder struct {
	base time.Time
	rows [numServices][]JobRecord
}

// NewRecorder starts the run clock.
func NewRecorder() *Recorder {
	return &Recorder{base: time.Now()}
}

// Now returns milliseconds since the run started.
func (r *Recorder) Now() int64 {
	return time.Since(r.base).Milliseconds()
}

// Append adds one record for svc. Owner-goroutine only.
func (r *Recorder) Append(svc ServiceID, rec JobRecord) {
	r.rows[svc] = append(r.rows[svc], rec)
}

// Rows returns the records for svc. Call only after the services joined.
func (r *Recorder) Rows(svc ServiceID) []JobRecord {
	return r.rows[svc]
}

// MissedDeadlines counts records whose execution time exceeded the
// period. Informational; overruns are recorded, never aborted.
func (r *Recorder) MissedDeadlines() int {
	missed := 0
	for svc := ServiceID(0); svc < numServices; svc++ {
		for _, rec := range r.rows[svc] {
			if rec.C > rec.T {
				missed++
			}
		}
	}
	return missed
}

// WriteCSV flushes the full matrix to path, sequencer rows first, then S1
// and S2.
func (r *Recorder) WriteCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("records: create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{"Service", "Count", "StartTime", "EndTime", "C", "T", "D"}); err != nil {
		f.Close()
		return fmt.Errorf("records: write header: %w", err)
	}
	for svc := ServiceID(0); svc < numServices; svc++ {
		for _, rec := range r.rows[svc] {
			row := []string{
				svc.String(),
				strconv.Itoa(rec.Count),
				strconv.FormatInt(rec.Start, 10),
				strconv.FormatInt(rec.End, 10),
				strconv.FormatInt(rec.C, 10),
				strconv.FormatInt(rec.T, 10),
				strconv.FormatInt(rec.D, 10),
			}
			if err := w.Write(row); err != nil {
				f.Close()
				return fmt.Errorf("records: write row: %w", err)
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("records: flush: %w", err)
	}
	return f.Close()
}
