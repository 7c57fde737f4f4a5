package postprocess

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/fpang/optimize-images/internal/filehandler"
)

func photo(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{uint8(x * 255 / w), uint8(y * 255 / h), 128, 255})
		}
	}
	return img
}

func mustPNG(t *testing.T, img image.Image, level png.CompressionLevel) []byte {
	t.Helper()
	enc := png.Encoder{CompressionLevel: level}
	var buf bytes.Buffer
	if err := enc.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestMinifiable(t *testing.T) {
	tests := []struct {
		format filehandler.Format
		want   bool
	}{
		{filehandler.FormatJPEG, true},
		{filehandler.FormatJPG, true},
		{filehandler.FormatPNG, true},
		{filehandler.FormatGIF, true},
		{filehandler.FormatSVG, true},
		{filehandler.FormatWebP, false},
		{filehandler.FormatAVIF, false},
	}
	for _, tt := range tests {
		if got := Minifiable(tt.format); got != tt.want {
			t.Errorf("Minifiable(%s) = %v, want %v", tt.format, got, tt.want)
		}
	}
}

func TestProcessPassesThroughFinalFormats(t *testing.T) {
	data := []byte("already-encoded")
	for _, f := range []filehandler.Format{filehandler.FormatWebP, filehandler.FormatAVIF} {
		out, err := Process(data, f, 80)
		if err != nil {
			t.Fatalf("Process(%s) error = %v", f, err)
		}
		if !bytes.Equal(out, data) {
			t.Errorf("Process(%s) changed bytes", f)
		}
	}
}

func TestProcessJPEGNeverGrows(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, photo(128, 96), &jpeg.Options{Quality: 100}); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()

	out, err := Process(data, filehandler.FormatJPG, 60)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(out) > len(data) {
		t.Errorf("output grew: %d > %d", len(out), len(data))
	}
	if _, err := jpeg.Decode(bytes.NewReader(out)); err != nil {
		t.Errorf("output is not a jpeg: %v", err)
	}
}

func TestProcessPNGQuantizes(t *testing.T) {
	data := mustPNG(t, photo(96, 96), png.NoCompression)

	out, err := Process(data, filehandler.FormatPNG, 80)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(out) > len(data) {
		t.Errorf("output grew: %d > %d", len(out), len(data))
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not a png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 96 || b.Dy() != 96 {
		t.Errorf("dimensions = %dx%d, want 96x96", b.Dx(), b.Dy())
	}
}

func TestProcessPNGKeepsPaletted(t *testing.T) {
	p := image.NewPaletted(image.Rect(0, 0, 4, 4), color.Palette{color.Black, color.White})
	data := mustPNG(t, p, png.BestCompression)

	out, err := Process(data, filehandler.FormatPNG, 80)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Error("paletted png was re-encoded")
	}
}

func TestSimilarity(t *testing.T) {
	img := photo(8, 8)
	if got := similarity(img, img); got != 100 {
		t.Errorf("similarity(identical) = %v, want 100", got)
	}

	black := image.NewNRGBA(img.Bounds())
	white := image.NewNRGBA(img.Bounds())
	for i := range white.Pix {
		white.Pix[i] = 255
	}
	if got := similarity(white, black); got != 0 {
		t.Errorf("similarity(opposite) = %v, want 0", got)
	}
}

func TestProcessGIF(t *testing.T) {
	p := image.NewPaletted(image.Rect(0, 0, 16, 16), color.Palette{color.Black, color.White})
	for i := range p.Pix {
		p.Pix[i] = uint8(i % 2)
	}
	var buf bytes.Buffer
	if err := gif.Encode(&buf, p, nil); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()

	out, err := Process(data, filehandler.FormatGIF, 80)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(out) > len(data) {
		t.Errorf("output grew: %d > %d", len(out), len(data))
	}
	if _, err := gif.Decode(bytes.NewReader(out)); err != nil {
		t.Errorf("output is not a gif: %v", err)
	}
}

func TestProcessSVGMinifies(t *testing.T) {
	markup := `<?xml version="1.0" encoding="UTF-8"?>
<!-- exported by an editor -->
<svg xmlns="http://www.w3.org/2000/svg"   viewBox="0 0 10 10">
    <rect   width="10.000"   height="10.000"   fill="#ff0000" />
</svg>
`
	out, err := Process([]byte(markup), filehandler.FormatSVG, 80)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(out) >= len(markup) {
		t.Errorf("svg not minified: %d >= %d", len(out), len(markup))
	}
	if strings.Contains(string(out), "exported by an editor") {
		t.Error("comment survived minification")
	}
	if !strings.Contains(string(out), "viewBox") {
		t.Error("viewBox was dropped")
	}
}

func TestApplyDegradesOnError(t *testing.T) {
	data := []byte("not a png at all")
	out := Apply(data, filehandler.FormatPNG, 80)
	if !bytes.Equal(out, data) {
		t.Error("Apply() did not fall back to its input")
	}

	if _, err := Process(data, filehandler.FormatPNG, 80); err == nil {
		t.Error("Process() expected error for corrupt png")
	}
}

func TestDegradedErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := error(&DegradedError{Format: filehandler.FormatGIF, Err: cause})
	if !errors.Is(err, cause) {
		t.Error("DegradedError does not unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "gif") {
		t.Errorf("Error() = %q, want format mentioned", err.Error())
	}
}
