package transcode

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/png"
	"math"

	libjpeg "github.com/pixiv/go-libjpeg/jpeg"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/webp"

	"github.com/fpang/optimize-images/internal/filehandler"
)

// maxSVGDimension bounds the raster size of an SVG whose viewBox is huge.
const maxSVGDimension = 8192

// decodeImage decodes raw source bytes according to the source format and
// applies EXIF orientation for formats that can carry it.
func decodeImage(data []byte, format filehandler.Format) (image.Image, error) {
	var (
		img image.Image
		err error
	)

	switch format.Canonical() {
	case filehandler.FormatJPEG:
		img, err = libjpeg.Decode(bytes.NewReader(data), &libjpeg.DecoderOptions{})
	case filehandler.FormatPNG:
		img, err = png.Decode(bytes.NewReader(data))
	case filehandler.FormatGIF:
		img, err = gif.Decode(bytes.NewReader(data))
	case filehandler.FormatWebP:
		img, err = webp.Decode(bytes.NewReader(data))
	case filehandler.FormatSVG:
		return rasterizeSVG(data)
	default:
		return nil, fmt.Errorf("%w: cannot decode source format %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}

	switch format.Canonical() {
	case filehandler.FormatJPEG, filehandler.FormatPNG, filehandler.FormatWebP:
		orientation := filehandler.ReadOrientation(bytes.NewReader(data))
		img = filehandler.ApplyOrientation(img, orientation)
	}
	return img, nil
}

// rasterizeSVG draws the markup at its viewBox size.
func rasterizeSVG(data []byte) (image.Image, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data), oksvg.WarnErrorMode)
	if err != nil {
		return nil, fmt.Errorf("parse svg: %w", err)
	}

	w := int(math.Ceil(icon.ViewBox.W))
	h := int(math.Ceil(icon.ViewBox.H))
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("svg has no usable viewBox (%vx%v)", icon.ViewBox.W, icon.ViewBox.H)
	}
	if w > maxSVGDimension || h > maxSVGDimension {
		return nil, fmt.Errorf("svg viewBox %dx%d exceeds %d pixels", w, h, maxSVGDimension)
	}

	icon.SetTarget(0, 0, float64(w), float64(h))
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, rgba, rgba.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1)
	return rgba, nil
}
