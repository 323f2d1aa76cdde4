package collector

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/google/uuid"

	"framecast/internal/logging"
)

var srvLog = logging.New("collector")

// connEntry tracks one in-flight receiver so the accept loop can reap
// completed connections and drain the rest at shutdown.
type connEntry struct {
	id   uuid.UUID
	conn net.Conn
	done atomic.Bool
}

// Server owns the listener, the connection registry and the frame sink.
type Server struct {
	cfg     *Config
	sink    *FrameSink
	catalog *Catalog
	ln      net.Listener

	stop atomic.Bool

	mu      sync.Mutex
	entries []*connEntry
	wg      sync.WaitGroup
}

// NewServer binds the listen address and prepares the sink and the
// optional catalog. Bind failure is startup-fatal for the collector.
func NewServer(cfg *Config) (*Server, error) {
	sink, err := NewFrameSink(cfg.ImagesDir)
	if err != nil {
		return nil, err
	}

	var catalog *Catalog
	if cfg.DatabaseURL != "" {
		catalog, err = OpenCatalog(context.Background(), cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
	}

	lc := net.ListenConfig{Control: reuseAddr}
	ln, err := lc.Listen(context.Background(), "tcp", cfg.ListenAddr)
	if err != nil {
		if catalog != nil {
			catalog.Close()
		}
		return nil, err
	}

	return &Server{cfg: cfg, sink: sink, catalog: catalog, ln: ln}, nil
}

// Sink exposes the frame sink, mainly for tests and status reporting.
func (s *Server) Sink() *FrameSink { return s.sink }

// ImagesDir returns where committed frames land.
func (s *Server) ImagesDir() string { return s.cfg.ImagesDir }

// Addr returns the bound listen address.
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Stop requests shutdown: the accept loop unblocks, stops accepting and
// drains in-flight receivers. Safe to call from a signal goroutine.
func (s *Server) Stop() {
	if s.stop.CompareAndSwap(false, true) {
		s.ln.Close()
	}
}

// Run accepts connections until Stop. Each connection gets a receiver
// goroutine; completed entries are reaped between accepts. Receivers in
// progress when stop is raised are allowed to complete.
func (s *Server) Run() error {
	srvLog.Infof("listening on %s", s.ln.Addr())
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if s.stop.Load() || errors.Is(err, net.ErrClosed) {
				break
			}
			srvLog.Errorf("accept: %v", err)
			continue
		}

		e := &connEntry{id: uuid.New(), conn: conn}
		s.mu.Lock()
		s.entries = append(s.entries, e)
		s.mu.Unlock()

		s.wg.Add(1)
		go s.receive(e)

		s.reap()
		if s.stop.Load() {
			break
		}
	}

	srvLog.Infof("stop requested, draining %d connections", s.active())
	s.wg.Wait()
	s.reap()
	if s.catalog != nil {
		s.catalog.Close()
	}
	srvLog.Infof("shut down after %d committed frames", s.sink.Committed())
	return nil
}

// receive reassembles one frame from the connection and commits it. A
// protocol violation discards the payload and never disturbs the accept
// loop or the other receivers.
func (s *Server) receive(e *connEntry) {
	defer s.wg.Done()
	defer e.done.Store(true)
	defer e.conn.Close()

	remote := e.conn.RemoteAddr().String()
	srvLog.Infof("conn %s: accepted from %s", shortID(e.id), remote)

	payload, err := ReadFrame(e.conn, s.cfg.BufSize)
	if err != nil {
		srvLog.Errorf("conn %s: discarding: %v", shortID(e.id), err)
		return
	}

	slot, err := s.sink.Commit(payload)
	if err != nil {
		srvLog.Errorf("conn %s: commit failed: %v", shortID(e.id), err)
		return
	}
	srvLog.Infof("conn %s: committed slot %d (%d bytes)", shortID(e.id), slot, len(payload))

	if s.catalog != nil {
		if err := s.catalog.Record(context.Background(), slot, len(payload), remote); err != nil {
			srvLog.Warningf("conn %s: catalog insert: %v", shortID(e.id), err)
		}
	}
}

// reap removes completed entries from the registry. Receivers finish out
// of order, so the scan keeps whatever is still running.
func (s *Server) reap() {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	for _, e := range s.entries {
		if !e.done.Load() {
			kept = append(kept, e)
		}
	}
	s.entries = kept
}

func (s *Server) active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		if !e.done.Load() {
			n++
		}
	}
	return n
}

// NotifyStop installs SIGINT/SIGTERM handlers that request shutdown. The
// handler goroutine only flips the stop flag and closes the listener;
// everything else happens at loop boundaries.
func (s *Server) NotifyStop() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-ch
		srvLog.Noticef("caught %v, exiting", sig)
		s.Stop()
	}()
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
