package collector

import (
	"bytes"
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

// pipeConn returns a connected TCP pair so reads see real socket
// semantics, fragmentation included.
func pipeConn(t *testing.T) (client, server net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	done := make(chan struct{})
	go func() {
		server, _ = ln.Accept()
		close(done)
	}()
	client, err = net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	<-done
	ln.Close()
	return client, server
}

func TestReadFrameSingleWrite(t *testing.T) {
	client, server := pipeConn(t)
	defer server.Close()

	payload := []byte("P6\n# stamped\n2 2\n255\npixelbytes!!")
	go func() {
		client.Write(wire.Append(payload))
		client.Close()
	}()

	got, err := ReadFrame(server, 4096)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestReadFrameFragmented(t *testing.T) {
	client, server := pipeConn(t)
	defer server.Close()

	payload := make([]byte, 7000)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	framed := wire.Append(payload)

	// sender flushes every 64 bytes with a pause, exercising short reads
	go func() {
		for off := 0; off < len(framed); off += 64 {
			end := off + 64
			if end > len(framed) {
				end = len(framed)
			}
			client.Write(framed[off:end])
			time.Sleep(time.Millisecond)
		}
		client.Close()
	}()

	got, err := ReadFrame(server, 4096)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestReadFrameOversizeGrowsBuffer(t *testing.T) {
	client, server := pipeConn(t)
	defer server.Close()

	const bufSize = 1024
	payload := make([]byte, 2*bufSize+17)
	for i := range payload {
		payload[i] = byte(i % 7)
	}

	go func() {
		client.Write(wire.Append(payload))
		client.Close()
	}()

	got, err := ReadFrame(server, bufSize)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestReadFrameTruncatedStream(t *testing.T) {
	client, server := pipeConn(t)
	defer server.Close()

	payload := wire.Append(make([]byte, 1000))
	go func() {
		// half the message, no terminator, then hang up
		client.Write(payload[:500])
		client.Close()
	}()

	_, err := ReadFrame(server, 4096)
	require.ErrorIs(t, err, ErrTruncatedStream)
}

func TestReadFramePayloadEOTNotTerminator(t *testing.T) {
	client, server := pipeConn(t)
	defer server.Close()

	// payload ending in a bare EOT byte must not terminate the read
	payload := append([]byte("data data"), 0x04)
	go func() {
		client.Write(payload)
		time.Sleep(10 * time.Millisecond)
		client.Write(wire.Terminator)
		client.Close()
	}()

	got, err := ReadFrame(server, 4096)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestSinkSequentialSlots(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFrameSink(dir)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		slot, err := sink.Commit([]byte(fmt.Sprintf("frame %d", i)))
		require.NoError(t, err)
		assert.Equal(t, i, slot)
	}
	assert.Equal(t, 5, sink.Committed())

	for i := 0; i < 5; i++ {
		data, err := os.ReadFile(filepath.Join(dir, fmt.Sprintf("cap_%06d.ppm", i)))
		require.NoError(t, err)
		assert.Equal(t, []byte(fmt.Sprintf("frame %d", i)), data)
	}
}

func TestSinkCounterHoldsOnFailure(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("directory permissions do not bind root")
	}
	dir := t.TempDir()
	sink, err := NewFrameSink(dir)
	require.NoError(t, err)

	_, err = sink.Commit([]byte("first"))
	require.NoError(t, err)

	// make the directory unwritable so the next commit fails
	require.NoError(t, os.Chmod(dir, 0555))
	_, err = sink.Commit([]byte("second"))
	require.Error(t, err)
	require.NoError(t, os.Chmod(dir, 0777))

	slot, err := sink.Commit([]byte("third"))
	require.NoError(t, err)
	assert.Equal(t, 1, slot, "failed commit must not burn a slot")
}

func TestCommittedFilesContainNoTerminator(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFrameSink(dir)
	require.NoError(t, err)

	client, server := pipeConn(t)
	defer server.Close()
	payload := []byte("P6\n# c\n2 1\n255\nabcdef")
	go func() {
		client.Write(wire.Append(payload))
		client.Close()
	}()
	got, err := ReadFrame(server, 4096)
	require.NoError(t, err)
	_, err = sink.Commit(got)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "cap_000000.ppm"))
	require.NoError(t, err)
	assert.False(t, bytes.Contains(data, wire.Terminator),
		"terminator bytes leaked into a committed file")
}
