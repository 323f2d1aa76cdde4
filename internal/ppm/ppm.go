// Package ppm encodes and decodes binary PPM (P6) images.
//
// The format is: a 3-byte magic "P6\n", zero or more '#'-prefixed comment
// lines, the ASCII width, height and maxval, one whitespace byte, then
// width*height*3 bytes of RGB pixel data. Comment lines injected by this
// package always sit between the magic and the dimensions, which is where
// annotation metadata is carried in-band.
package ppm

import (
	"bytes"
	"fmt"
	"image"
	"strconv"
)

// MagicLen is the length of the "P6\n" header.
const MagicLen = 3

var magic = []byte("P6\n")

// Encode serializes img as a binary PPM. Each comment is written as a
// '#'-prefixed, newline-terminated line immediately after the magic.
// Comments must not contain newlines of their own.
func Encode(img *image.RGBA, comments []string) ([]byte, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("ppm: empty image %dx%d", w, h)
	}

	var buf bytes.Buffer
	buf.Grow(MagicLen + 64 + w*h*3)
	buf.Write(magic)
	for _, c := range comments {
		if err := writeComment(&buf, c); err != nil {
			return nil, err
		}
	}
	fmt.Fprintf(&buf, "%d %d\n255\n", w, h)

	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[(y-b.Min.Y)*img.Stride : (y-b.Min.Y)*img.Stride+w*4]
		for x := 0; x < w; x++ {
			buf.Write(row[x*4 : x*4+3])
		}
	}
	return buf.Bytes(), nil
}

// InjectComments inserts comment lines into an already-encoded PPM,
// immediately after the 3-byte magic and before anything else. The
// original bytes past the magic, including any existing comments, are
// preserved unchanged.
func InjectComments(data []byte, comments []string) ([]byte, error) {
	if len(data) < MagicLen || !bytes.Equal(data[:MagicLen], magic) {
		return nil, fmt.Errorf("ppm: bad magic")
	}
	var buf bytes.Buffer
	buf.Grow(len(data) + 64*len(comments))
	buf.Write(data[:MagicLen])
	for _, c := range comments {
		if err := writeComment(&buf, c); err != nil {
			return nil, err
		}
	}
	buf.Write(data[MagicLen:])
	return buf.Bytes(), nil
}

func writeComment(buf *bytes.Buffer, c string) error {
	if len(c) == 0 || c[0] != '#' {
		buf.WriteByte('#')
	}
	for i := 0; i < len(c); i++ {
		if c[i] == '\n' && i != len(c)-1 {
			return fmt.Errorf("ppm: comment contains interior newline")
		}
	}
	buf.WriteString(c)
	if c == "" || c[len(c)-1] != '\n' {
		buf.WriteByte('\n')
	}
	return nil
}

// Decode parses a binary PPM produced by Encode (maxval 255). It returns
// the raster and the comment lines found between the magic and the pixel
// data, without their '#' prefix or trailing newline.
func Decode(data []byte) (*image.RGBA, []string, error) {
	comments, w, h, off, err := parseHeader(data)
	if err != nil {
		return nil, nil, err
	}
	need := w * h * 3
	if len(data)-off < need {
		return nil, nil, fmt.Errorf("ppm: pixel data truncated: have %d, want %d", len(data)-off, need)
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	src := data[off:]
	for i := 0; i < w*h; i++ {
		img.Pix[i*4+0] = src[i*3+0]
		img.Pix[i*4+1] = src[i*3+1]
		img.Pix[i*4+2] = src[i*3+2]
		img.Pix[i*4+3] = 0xFF
	}
	return img, comments, nil
}

// Comments returns only the header comment lines of an encoded PPM.
func Comments(data []byte) ([]string, error) {
	comments, _, _, _, err := parseHeader(data)
	return comments, err
}

func parseHeader(data []byte) (comments []string, w, h, off int, err error) {
	if len(data) < MagicLen || !bytes.Equal(data[:MagicLen], magic) {
		return nil, 0, 0, 0, fmt.Errorf("ppm: bad magic")
	}
	pos := MagicLen
	fields := make([]int, 0, 3)
	for len(fields) < 3 {
		if pos >= len(data) {
			return nil, 0, 0, 0, fmt.Errorf("ppm: header truncated")
		}
		switch c := data[pos]; {
		case c == '#':
			end := bytes.IndexByte(data[pos:], '\n')
			if end < 0 {
				return nil, 0, 0, 0, fmt.Errorf("ppm: unterminated comment")
			}
			comments = append(comments, string(data[pos+1:pos+end]))
			pos += end + 1
		case isSpace(c):
			pos++
		default:
			end := pos
			for end < len(data) && !isSpace(data[end]) && data[end] != '#' {
				end++
			}
			v, perr := strconv.Atoi(string(data[pos:end]))
			if perr != nil {
				return nil, 0, 0, 0, fmt.Errorf("ppm: bad header field %q", data[pos:end])
			}
			fields = append(fields, v)
			pos = end
		}
	}
	if fields[2] != 255 {
		return nil, 0, 0, 0, fmt.Errorf("ppm: unsupported maxval %d", fields[2])
	}
	// exactly one whitespace byte separates maxval from pixel data
	if pos >= len(data) || !isSpace(data[pos]) {
		return nil, 0, 0, 0, fmt.Errorf("ppm: missing pixel data separator")
	}
	pos++
	if fields[0] <= 0 || fields[1] <= 0 {
		return nil, 0, 0, 0, fmt.Errorf("ppm: bad dimensions %dx%d", fields[0], fields[1])
	}
	return comments, fields[0], fields[1], pos, nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
