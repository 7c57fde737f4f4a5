package filehandler

import (
	"image"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
)

// FitWidth scales img to fit within maxWidth, preserving aspect ratio.
// Images already at or below maxWidth are returned unchanged: no enlargement.
func FitWidth(img image.Image, maxWidth int) image.Image {
	bounds := img.Bounds()
	origWidth := bounds.Dx()
	origHeight := bounds.Dy()

	newWidth, newHeight := calculateResizeDimensions(origWidth, origHeight, maxWidth)
	if newWidth == origWidth && newHeight == origHeight {
		return img
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	log.Debug().
		Int("orig_width", origWidth).
		Int("orig_height", origHeight).
		Int("new_width", newWidth).
		Int("new_height", newHeight).
		Msg("Image resized")

	return resized
}

// calculateResizeDimensions calculates new dimensions for a width-bounded fit.
// A non-positive maxWidth means "original size".
func calculateResizeDimensions(width, height, maxWidth int) (int, int) {
	if maxWidth <= 0 || width <= maxWidth {
		return width, height
	}

	newHeight := int(float64(height)*float64(maxWidth)/float64(width) + 0.5)
	if newHeight < 1 {
		newHeight = 1
	}
	return maxWidth, newHeight
}
