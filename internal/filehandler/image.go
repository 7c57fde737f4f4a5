package filehandler

import (
	"image"
	"io"

	"github.com/disintegration/gift"
	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"
)

// EXIF orientation values (TIFF tag 0x0112).
const (
	OrientationNormal     = 1
	OrientationFlipH      = 2
	OrientationRotate180  = 3
	OrientationFlipV      = 4
	OrientationTranspose  = 5
	OrientationRotate90   = 6 // stored rotated 90° counter-clockwise, display needs 90° clockwise
	OrientationTransverse = 7
	OrientationRotate270  = 8
)

// ReadOrientation extracts the EXIF orientation tag using the imagemeta library.
//
// imagemeta only reads the metadata block, not the pixel data. Images without
// EXIF (most PNG, GIF, SVG files) and unreadable metadata both report
// OrientationNormal so that callers can apply the result unconditionally.
func ReadOrientation(r io.ReadSeeker) int {
	exifData, err := imagemeta.Decode(r)
	if err != nil {
		log.Debug().Err(err).Msg("No EXIF metadata, assuming normal orientation")
		return OrientationNormal
	}

	o := int(exifData.Orientation)
	if o < OrientationNormal || o > OrientationRotate270 {
		return OrientationNormal
	}
	return o
}

// ApplyOrientation returns img transformed so that it displays upright.
// gift rotates counter-clockwise, hence Rotate270 for orientation 6.
func ApplyOrientation(img image.Image, orientation int) image.Image {
	var filter gift.Filter
	switch orientation {
	case OrientationFlipH:
		filter = gift.FlipHorizontal()
	case OrientationRotate180:
		filter = gift.Rotate180()
	case OrientationFlipV:
		filter = gift.FlipVertical()
	case OrientationTranspose:
		filter = gift.Transpose()
	case OrientationRotate90:
		filter = gift.Rotate270()
	case OrientationTransverse:
		filter = gift.Transverse()
	case OrientationRotate270:
		filter = gift.Rotate90()
	default:
		return img
	}

	g := gift.New(filter)
	dst := image.NewRGBA(g.Bounds(img.Bounds()))
	g.Draw(dst, img)

	log.Debug().
		Int("orientation", orientation).
		Int("width", dst.Bounds().Dx()).
		Int("height", dst.Bounds().Dy()).
		Msg("Applied EXIF orientation")

	return dst
}
