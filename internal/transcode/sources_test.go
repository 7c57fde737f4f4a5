package transcode

import (
	"bytes"
	"context"
	"encoding/binary"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"testing"

	"github.com/fpang/optimize-images/internal/filehandler"
)

// twoColour returns an opaque paletted image, the shape GIF and 8-bit PNG
// sources decode to.
func twoColour(w, h int) *image.Paletted {
	img := image.NewPaletted(image.Rect(0, 0, w, h), color.Palette{
		color.RGBA{200, 30, 30, 255},
		color.RGBA{30, 30, 200, 255},
	})
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/8+y/8)%2 == 0 {
				img.SetColorIndex(x, y, 1)
			}
		}
	}
	return img
}

func encodeGIFFixture(t *testing.T, img *image.Paletted) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := gif.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func decodeConfigAt(t *testing.T, path string, decode func(f *os.File) (image.Config, error)) image.Config {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	defer f.Close()
	cfg, err := decode(f)
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return cfg
}

func jpegConfig(f *os.File) (image.Config, error) { return jpeg.DecodeConfig(f) }
func gifConfig(f *os.File) (image.Config, error)  { return gif.DecodeConfig(f) }
func pngConfig(f *os.File) (image.Config, error)  { return png.DecodeConfig(f) }

func TestTranscodePalettedSourcesToJPEG(t *testing.T) {
	palette := twoColour(64, 32)
	pngData := encodePNGFixture(t, palette)
	if img, err := png.Decode(bytes.NewReader(pngData)); err != nil {
		t.Fatal(err)
	} else if _, ok := img.(*image.Paletted); !ok {
		t.Fatalf("fixture decodes as %T, want *image.Paletted", img)
	}

	sources := []struct {
		rel  string
		data []byte
	}{
		{"anim.gif", encodeGIFFixture(t, palette)},
		{"logo8.png", pngData},
	}

	for _, s := range sources {
		for _, width := range []int{0, 640} {
			in, out := t.TempDir(), t.TempDir()
			src := writeSource(t, in, s.rel, s.data)

			tr := newTestTranscoder(out, nil)
			res := tr.Transcode(context.Background(), Task{Source: src, Format: filehandler.FormatJPEG, Width: width})
			if res.Status != StatusSuccess {
				t.Fatalf("%s -> jpeg (width %d): Status = %v, err = %v", s.rel, width, res.Status, res.Err)
			}

			cfg := decodeConfigAt(t, res.OutputPath, jpegConfig)
			if cfg.Width != 64 || cfg.Height != 32 {
				t.Errorf("%s -> jpeg (width %d): dimensions = %dx%d, want 64x32", s.rel, width, cfg.Width, cfg.Height)
			}
		}
	}
}

func TestTranscodeGIFPassThroughOriginalSize(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	src := writeSource(t, in, "icons/spinner.gif", encodeGIFFixture(t, twoColour(48, 24)))

	tr := newTestTranscoder(out, nil)
	res := tr.Transcode(context.Background(), Task{Source: src, Format: filehandler.FormatGIF})
	if res.Status != StatusSuccess {
		t.Fatalf("Status = %v, err = %v", res.Status, res.Err)
	}

	cfg := decodeConfigAt(t, res.OutputPath, gifConfig)
	if cfg.Width != 48 || cfg.Height != 24 {
		t.Errorf("dimensions = %dx%d, want 48x24", cfg.Width, cfg.Height)
	}
}

func TestEncodeJPEGAcceptsAnyImageType(t *testing.T) {
	bounds := image.Rect(0, 0, 16, 8)
	translucent := image.NewRGBA(bounds)
	translucent.Set(1, 1, color.RGBA{10, 20, 30, 128})

	tests := []struct {
		name string
		img  image.Image
	}{
		{"paletted", twoColour(16, 8)},
		{"nrgba", image.NewNRGBA(bounds)},
		{"rgba64", image.NewRGBA64(bounds)},
		{"gray16", image.NewGray16(bounds)},
		{"translucent rgba", translucent},
		{"offset rgba", gradient(32, 16).SubImage(image.Rect(8, 4, 24, 12))},
		{"gray", image.NewGray(bounds)},
		{"ycbcr", image.NewYCbCr(bounds, image.YCbCrSubsampleRatio420)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flat := flatten(tt.img)
			if !flat.Opaque() {
				t.Error("flatten() result is not opaque")
			}
			if flat.Bounds().Dx() != 16 || flat.Bounds().Dy() != 8 {
				t.Errorf("flatten() bounds = %v", flat.Bounds())
			}

			data, err := encodeJPEG(tt.img, 80)
			if err != nil {
				t.Fatalf("encodeJPEG() error = %v", err)
			}
			cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("output is not jpeg: %v", err)
			}
			if cfg.Width != 16 || cfg.Height != 8 {
				t.Errorf("dimensions = %dx%d, want 16x8", cfg.Width, cfg.Height)
			}
		})
	}
}

// withOrientation inserts a minimal big-endian EXIF APP1 segment carrying
// only the orientation tag right after the JPEG SOI marker.
func withOrientation(t *testing.T, jpg []byte, orientation uint16) []byte {
	t.Helper()
	if len(jpg) < 2 || jpg[0] != 0xFF || jpg[1] != 0xD8 {
		t.Fatal("fixture is not a JPEG")
	}

	var tiff bytes.Buffer
	tiff.WriteString("MM")
	binary.Write(&tiff, binary.BigEndian, uint16(42))
	binary.Write(&tiff, binary.BigEndian, uint32(8)) // IFD0 offset
	binary.Write(&tiff, binary.BigEndian, uint16(1)) // entry count
	binary.Write(&tiff, binary.BigEndian, uint16(0x0112))
	binary.Write(&tiff, binary.BigEndian, uint16(3)) // SHORT
	binary.Write(&tiff, binary.BigEndian, uint32(1))
	binary.Write(&tiff, binary.BigEndian, orientation)
	binary.Write(&tiff, binary.BigEndian, uint16(0))
	binary.Write(&tiff, binary.BigEndian, uint32(0)) // no IFD1

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)

	var out bytes.Buffer
	out.Write(jpg[:2])
	out.Write([]byte{0xFF, 0xE1})
	binary.Write(&out, binary.BigEndian, uint16(len(payload)+2))
	out.Write(payload)
	out.Write(jpg[2:])
	return out.Bytes()
}

func TestTranscodeAppliesEXIFOrientationBeforeResize(t *testing.T) {
	tests := []struct {
		name        string
		orientation uint16
		width       int
		wantW       int
		wantH       int
	}{
		{"normal", filehandler.OrientationNormal, 0, 200, 100},
		{"rotate 180 keeps shape", filehandler.OrientationRotate180, 0, 200, 100},
		{"rotate 90 original", filehandler.OrientationRotate90, 0, 100, 200},
		{"rotate 270 original", filehandler.OrientationRotate270, 0, 100, 200},
		{"rotate 90 resized", filehandler.OrientationRotate90, 80, 80, 160},
		{"rotate 270 resized", filehandler.OrientationRotate270, 80, 80, 160},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := withOrientation(t, encodeJPEGFixture(t, gradient(200, 100)), tt.orientation)
			if got := filehandler.ReadOrientation(bytes.NewReader(data)); got != int(tt.orientation) {
				t.Fatalf("ReadOrientation() = %d, want %d", got, tt.orientation)
			}

			in, out := t.TempDir(), t.TempDir()
			src := writeSource(t, in, "camera/portrait.jpg", data)

			tr := newTestTranscoder(out, nil)
			res := tr.Transcode(context.Background(), Task{Source: src, Format: filehandler.FormatPNG, Width: tt.width})
			if res.Status != StatusSuccess {
				t.Fatalf("Status = %v, err = %v", res.Status, res.Err)
			}

			cfg := decodeConfigAt(t, res.OutputPath, pngConfig)
			if cfg.Width != tt.wantW || cfg.Height != tt.wantH {
				t.Errorf("dimensions = %dx%d, want %dx%d", cfg.Width, cfg.Height, tt.wantW, tt.wantH)
			}
		})
	}
}
