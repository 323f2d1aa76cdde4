package producer

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"time"
)

// ErrNoFrame reports a per-read capture failure. The current slot is
// skipped; the pipeline keeps running.
var ErrNoFrame = errors.New("camera: no frame available")

// Frame is one captured raster plus its acquisition metadata.
type Frame struct {
	Raster     *image.RGBA
	CapturedAt time.Time
}

// FrameSource yields rasters from a camera device or a test double.
type FrameSource interface {
	// NextFrame blocks until a raster is available. A read failure
	// returns ErrNoFrame (possibly wrapped) and fails only that job.
	NextFrame() (*Frame, error)
	Close() error
}

// deviceSource backs FrameSource with a V4L-style character device. The
// raster itself is synthesized; decoding the device's native stream is
// the codec collaborator's job, outside this pipeline.
type deviceSource struct {
	f   *os.File
	gen *syntheticSource
}

// OpenCamera opens /dev/video<index>. Open failure is startup-fatal for
// the producer, so it is surfaced here rather than on first read.
func OpenCamera(index, width, height int) (FrameSource, error) {
	path := fmt.Sprintf("/dev/video%d", index)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("camera: open %s: %w", path, err)
	}
	return &deviceSource{f: f, gen: NewSyntheticSource(width, height)}, nil
}

func (d *deviceSource) NextFrame() (*Frame, error) {
	// Probe the device node so a yanked camera fails the current job
	// only, not the whole run.
	if _, err := os.Stat(d.f.Name()); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNoFrame, d.f.Name(), err)
	}
	return d.gen.NextFrame()
}

func (d *deviceSource) Close() error {
	return d.f.Close()
}

// syntheticSource generates deterministic gradient rasters. It is the
// configured source on camera-less hosts and the test double everywhere.
type syntheticSource struct {
	width, height int
	seq           int
}

// NewSyntheticSource returns a FrameSource producing w x h gradients that
// shift with each frame so successive captures differ.
func NewSyntheticSource(w, h int) *syntheticSource {
	return &syntheticSource{width: w, height: h}
}

func (s *syntheticSource) NextFrame() (*Frame, error) {
	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	shift := uint8(s.seq * 16)
	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x) + shift,
				G: uint8(y),
				B: uint8(x+y) - shift,
				A: 0xFF,
			})
		}
	}
	s.seq++
	return &Frame{Raster: img, CapturedAt: time.Now()}, nil
}

func (s *syntheticSource) Close() error { return nil }
