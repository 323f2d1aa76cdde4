package ppm

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: uint8(x ^ y), A: 0xFF})
		}
	}
	return img
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	img := testImage(17, 9)
	comments := []string{"#timestamp:Mon, 02 Jan 2006 15:04:05 -0700 ", "# sec=1, msec=2", "# hostname "}

	data, err := Encode(img, comments)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte("P6\n")))

	decoded, gotComments, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())
	assert.Equal(t, img.Pix, decoded.Pix)

	require.Len(t, gotComments, 3)
	assert.Equal(t, "timestamp:Mon, 02 Jan 2006 15:04:05 -0700 ", gotComments[0])
	assert.Equal(t, " sec=1, msec=2", gotComments[1])
	assert.Equal(t, " hostname ", gotComments[2])
}

func TestCommentsSitBetweenMagicAndDimensions(t *testing.T) {
	data, err := Encode(testImage(4, 4), []string{"# first", "# second"})
	require.NoError(t, err)

	// magic, then comments, then dimensions
	require.True(t, bytes.HasPrefix(data, []byte("P6\n# first\n# second\n4 4\n255\n")))
}

func TestEncodeNoComments(t *testing.T) {
	data, err := Encode(testImage(2, 2), nil)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte("P6\n2 2\n255\n")))

	_, comments, err := Decode(data)
	require.NoError(t, err)
	assert.Empty(t, comments)
}

func TestInjectComments(t *testing.T) {
	plain, err := Encode(testImage(6, 3), nil)
	require.NoError(t, err)

	injected, err := InjectComments(plain, []string{"# injected later"})
	require.NoError(t, err)

	// everything past the magic is preserved byte for byte
	assert.Equal(t, plain[MagicLen:], injected[len(injected)-len(plain)+MagicLen:])

	decoded, comments, err := Decode(injected)
	require.NoError(t, err)
	assert.Equal(t, []string{" injected later"}, comments)

	orig, _, err := Decode(plain)
	require.NoError(t, err)
	assert.Equal(t, orig.Pix, decoded.Pix)
}

func TestInjectCommentsBadMagic(t *testing.T) {
	_, err := InjectComments([]byte("JFIF...."), []string{"# x"})
	assert.Error(t, err)
}

func TestEncodeRejectsInteriorNewline(t *testing.T) {
	_, err := Encode(testImage(2, 2), []string{"# line one\nline two"})
	assert.Error(t, err)
}

func TestDecodeErrors(t *testing.T) {
	cases := map[string][]byte{
		"bad magic":       []byte("P5\n2 2\n255\n    "),
		"truncated pixel": []byte("P6\n2 2\n255\nab"),
		"garbage header":  []byte("P6\nx y\n255\n"),
		"truncated":       []byte("P6\n"),
	}
	for name, data := range cases {
		_, _, err := Decode(data)
		assert.Error(t, err, name)
	}
}
