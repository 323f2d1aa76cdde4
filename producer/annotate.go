package producer

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"framecast/internal/ppm"
)

// Stamp is the annotation applied to every captured frame: when it was
// taken and which node took it.
type Stamp struct {
	Wall time.Time
	Node string
}

// NewStamp captures the current wall clock for node.
func NewStamp(node string) Stamp {
	return Stamp{Wall: time.Now(), Node: node}
}

// Lines returns the three annotation strings. The same strings are drawn
// onto the raster and injected as PPM comment lines, so a viewer and a
// parser see identical metadata.
func (st Stamp) Lines() [3]string {
	return [3]string{
		fmt.Sprintf("#timestamp:%s ", st.Wall.Format("Mon, 02 Jan 2006 15:04:05 -0700")),
		fmt.Sprintf("# sec=%d, msec=%d", st.Wall.Unix(), st.Wall.Nanosecond()/int(time.Millisecond)),
		fmt.Sprintf("# %s ", st.Node),
	}
}

// Text anchors keep the overlay in the top-left, clear of the frame's
// salient area. Tuning values, not protocol.
var textAnchors = [3]image.Point{{X: 10, Y: 40}, {X: 10, Y: 80}, {X: 10, Y: 120}}

// Annotate draws the stamp onto the frame's raster and encodes the result
// as a binary PPM with the stamp repeated as header comment lines.
func Annotate(frame *Frame, st Stamp) ([]byte, error) {
	if frame == nil || frame.Raster == nil {
		return nil, fmt.Errorf("annotate: nil frame")
	}
	lines := st.Lines()
	for i, line := range lines {
		drawLabel(frame.Raster, textAnchors[i].X, textAnchors[i].Y, line,
			color.White, color.Black)
	}
	encoded, err := ppm.Encode(frame.Raster, lines[:])
	if err != nil {
		return nil, fmt.Errorf("annotate: encode: %w", err)
	}
	return encoded, nil
}

// drawLabel draws text with a background band for visibility.
func drawLabel(dst *image.RGBA, x, y int, text string, textColor, bgColor color.Color) {
	const padding = 1
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(textColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x + padding), Y: fixed.I(y + padding + 8)},
	}

	textWidth := d.MeasureString(text).Ceil()
	textHeight := 10

	for by := y; by < y+textHeight+2*padding; by++ {
		for bx := x; bx < x+textWidth+2*padding; bx++ {
			dst.Set(bx, by, bgColor)
		}
	}

	d.DrawString(text)
}
