package collector

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"framecast/internal/wire"
)

func testServer(t *testing.T) (*Server, string, chan error) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.ImagesDir = filepath.Join(t.TempDir(), "images")
	cfg.BufSize = 4096

	srv, err := NewServer(cfg)
	require.NoError(t, err)

	runErr := make(chan error, 1)
	go func() { runErr <- srv.Run() }()
	return srv, srv.Addr().String(), runErr
}

func sendFrame(t *testing.T, addr string, payload []byte) {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	_, err = conn.Write(wire.Append(payload))
	require.NoError(t, err)
	require.NoError(t, conn.Close())
}

func waitCommitted(t *testing.T, srv *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for srv.Sink().Committed() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d commits, have %d", n, srv.Sink().Committed())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServerCommitsSequentialConnections(t *testing.T) {
	srv, addr, runErr := testServer(t)

	const n = 4
	for i := 0; i < n; i++ {
		sendFrame(t, addr, []byte(fmt.Sprintf("frame number %d", i)))
		waitCommitted(t, srv, i+1)
	}

	srv.Stop()
	require.NoError(t, <-runErr)

	for i := 0; i < n; i++ {
		data, err := os.ReadFile(filepath.Join(srv.cfg.ImagesDir, fmt.Sprintf("cap_%06d.ppm", i)))
		require.NoError(t, err)
		assert.Equal(t, []byte(fmt.Sprintf("frame number %d", i)), data)
	}
}

func TestServerProtocolViolationKeepsAccepting(t *testing.T) {
	srv, addr, runErr := testServer(t)

	// truncated sender: half a payload, no terminator
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	_, err = conn.Write([]byte("partial frame without a terminator"))
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	// a healthy frame afterwards still commits, to slot 0
	sendFrame(t, addr, []byte("good frame"))
	waitCommitted(t, srv, 1)

	srv.Stop()
	require.NoError(t, <-runErr)

	data, err := os.ReadFile(filepath.Join(srv.cfg.ImagesDir, "cap_000000.ppm"))
	require.NoError(t, err)
	assert.Equal(t, []byte("good frame"), data)

	_, err = os.Stat(filepath.Join(srv.cfg.ImagesDir, "cap_000001.ppm"))
	assert.True(t, os.IsNotExist(err), "discarded payload must not produce a file")
}

func TestServerGracefulStopCompletesInFlightReceive(t *testing.T) {
	srv, addr, runErr := testServer(t)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)

	payload := make([]byte, 2000)
	for i := range payload {
		payload[i] = byte(i)
	}
	framed := wire.Append(payload)

	// half the frame, then stop is raised mid-receive
	_, err = conn.Write(framed[:1000])
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	srv.Stop()

	// the in-flight receiver is allowed to complete
	_, err = conn.Write(framed[1000:])
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	require.NoError(t, <-runErr)
	assert.Equal(t, 1, srv.Sink().Committed())

	// new connections are refused after shutdown
	_, err = net.Dial("tcp", addr)
	assert.Error(t, err)
}

func TestServerConcurrentSenders(t *testing.T) {
	srv, addr, runErr := testServer(t)

	const n = 8
	for i := 0; i < n; i++ {
		go func(i int) {
			conn, err := net.Dial("tcp", addr)
			if err != nil {
				return
			}
			defer conn.Close()
			payload := make([]byte, 500+i*37)
			for j := range payload {
				payload[j] = byte(i)
			}
			conn.Write(wire.Append(payload))
		}(i)
	}

	waitCommitted(t, srv, n)
	srv.Stop()
	require.NoError(t, <-runErr)

	// slots are dense even though receivers completed out of order
	for i := 0; i < n; i++ {
		_, err := os.Stat(filepath.Join(srv.cfg.ImagesDir, fmt.Sprintf("cap_%06d.ppm", i)))
		assert.NoError(t, err, "slot %d missing", i)
	}
}
