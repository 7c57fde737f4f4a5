package transcode

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/png"

	"github.com/ericpauley/go-quantize/quantize"
	"github.com/gen2brain/avif"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	libjpeg "github.com/pixiv/go-libjpeg/jpeg"
	"golang.org/x/image/draw"

	"github.com/fpang/optimize-images/internal/filehandler"
)

// Fixed per-format encoder settings. Only quality is user-tunable.
const (
	webpMethod = 6 // 0-6, highest effort
	avifSpeed  = 5 // 0-10, lower is slower and smaller
)

// Encodable reports whether the encoder can produce format from a raster.
func Encodable(format filehandler.Format) bool {
	switch format.Canonical() {
	case filehandler.FormatWebP, filehandler.FormatAVIF, filehandler.FormatJPEG,
		filehandler.FormatPNG, filehandler.FormatGIF:
		return true
	}
	return false
}

// encodeImage encodes img into format at quality (0-100).
func encodeImage(img image.Image, format filehandler.Format, quality int) ([]byte, error) {
	switch format.Canonical() {
	case filehandler.FormatWebP:
		return encodeWebP(img, quality)
	case filehandler.FormatAVIF:
		return encodeAVIF(img, quality)
	case filehandler.FormatJPEG:
		return encodeJPEG(img, quality)
	case filehandler.FormatPNG:
		return encodePNG(img)
	case filehandler.FormatGIF:
		return encodeGIF(img)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// encodeWebP uses maximum compression effort and sharp RGB->YUV conversion
// for the 4:2:0 chroma subsampling lossy WebP always applies.
func encodeWebP(img image.Image, quality int) ([]byte, error) {
	opts, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, float32(quality))
	if err != nil {
		return nil, fmt.Errorf("webp options: %w", err)
	}
	opts.Method = webpMethod
	opts.UseSharpYuv = true

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeAVIF(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	err := avif.Encode(&buf, img, avif.Options{
		Quality:           quality,
		QualityAlpha:      quality,
		Speed:             avifSpeed,
		ChromaSubsampling: image.YCbCrSubsampleRatio420,
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeJPEG writes a progressive JPEG with optimized Huffman tables.
// Every source type is flattened onto opaque RGBA first.
func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	err := libjpeg.Encode(&buf, flatten(img), &libjpeg.EncoderOptions{
		Quality:         quality,
		OptimizeCoding:  true,
		ProgressiveMode: true,
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodePNG writes at the highest zlib level. Images with at most 256 colours
// are stored as paletted PNG, which is lossless and always smaller.
func encodePNG(img image.Image) ([]byte, error) {
	if p, ok := exactPalette(img); ok {
		img = p
	}

	enc := png.Encoder{CompressionLevel: png.BestCompression}
	var buf bytes.Buffer
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeGIF(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	err := gif.Encode(&buf, img, &gif.Options{
		NumColors: 256,
		Quantizer: quantize.MedianCutQuantizer{},
		Drawer:    draw.FloydSteinberg,
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// flatten returns an opaque *image.RGBA, the one input libjpeg encodes
// scanline by scanline. Its YCbCr and Gray paths read whole MCUs and need
// buffers padded the way its own decoder allocates them, so those are
// converted too. Transparent pixels end up composited over white.
func flatten(img image.Image) *image.RGBA {
	if m, ok := img.(*image.RGBA); ok && m.Opaque() {
		return m
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

// exactPalette converts img to a paletted image when it uses at most 256
// distinct colours. It returns false as soon as a 257th colour is seen.
func exactPalette(img image.Image) (*image.Paletted, bool) {
	if p, ok := img.(*image.Paletted); ok {
		return p, true
	}

	b := img.Bounds()
	index := make(map[color.NRGBA64]uint8, 256)
	palette := make(color.Palette, 0, 256)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBA64Model.Convert(img.At(x, y)).(color.NRGBA64)
			if _, seen := index[c]; seen {
				continue
			}
			if len(palette) == 256 {
				return nil, false
			}
			index[c] = uint8(len(palette))
			palette = append(palette, c)
		}
	}

	dst := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), palette)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBA64Model.Convert(img.At(x, y)).(color.NRGBA64)
			dst.SetColorIndex(x-b.Min.X, y-b.Min.Y, index[c])
		}
	}
	return dst, true
}
