package postprocess

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"math"

	"github.com/ericpauley/go-quantize/quantize"
	libjpeg "github.com/pixiv/go-libjpeg/jpeg"
	"golang.org/x/image/draw"
)

// PNG quantization quality range, pngquant style: below pngQualityMin the
// quantized image is rejected; above pngQualityMax fewer colours are tried.
const (
	pngQualityMin = 60
	pngQualityMax = 80
	pngMinColors  = 16
)

func recompressJPEG(data []byte, quality int) ([]byte, error) {
	img, err := libjpeg.Decode(bytes.NewReader(data), &libjpeg.DecoderOptions{})
	if err != nil {
		return nil, fmt.Errorf("decode jpeg: %w", err)
	}

	var buf bytes.Buffer
	err = libjpeg.Encode(&buf, img, &libjpeg.EncoderOptions{
		Quality:         quality,
		OptimizeCoding:  true,
		ProgressiveMode: true,
	})
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return smaller(data, buf.Bytes()), nil
}

func quantizePNG(data []byte) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}
	if _, ok := img.(*image.Paletted); ok {
		return data, nil
	}

	var best *image.Paletted
	for colors := 256; colors >= pngMinColors; colors /= 2 {
		candidate := quantizeTo(img, colors)
		score := similarity(img, candidate)
		if score < pngQualityMin {
			break
		}
		best = candidate
		if score <= pngQualityMax {
			break
		}
	}
	if best == nil {
		return nil, fmt.Errorf("quantized quality below %d", pngQualityMin)
	}

	enc := png.Encoder{CompressionLevel: png.BestCompression}
	var buf bytes.Buffer
	if err := enc.Encode(&buf, best); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return smaller(data, buf.Bytes()), nil
}

func quantizeTo(img image.Image, colors int) *image.Paletted {
	b := img.Bounds()
	palette := quantize.MedianCutQuantizer{}.Quantize(make(color.Palette, 0, colors), img)
	dst := image.NewPaletted(b, palette)
	draw.FloydSteinberg.Draw(dst, b, img, b.Min)
	return dst
}

// similarity scores q against ref on a 0-100 scale from the RMS error of the
// 8-bit RGBA channels. An RMSE of 0 scores 100, an RMSE of 64 or more scores 0.
func similarity(ref image.Image, q image.Image) float64 {
	b := ref.Bounds()
	n := float64(b.Dx() * b.Dy() * 4)
	if n == 0 {
		return 100
	}

	var sum float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r1, g1, b1, a1 := ref.At(x, y).RGBA()
			r2, g2, b2, a2 := q.At(x, y).RGBA()
			sum += sq(r1, r2) + sq(g1, g2) + sq(b1, b2) + sq(a1, a2)
		}
	}
	rmse := math.Sqrt(sum / n)
	return math.Max(0, 100*(1-rmse/64))
}

func sq(a, b uint32) float64 {
	d := float64(a>>8) - float64(b>>8)
	return d * d
}

func optimizeGIF(data []byte) ([]byte, error) {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode gif: %w", err)
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, g); err != nil {
		return nil, fmt.Errorf("encode gif: %w", err)
	}
	return smaller(data, buf.Bytes()), nil
}
