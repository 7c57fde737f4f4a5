package postprocess

import (
	"fmt"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/svg"
)

const svgMIME = "image/svg+xml"

// The svg minifier keeps the viewBox and element ids, which stylesheets and
// scripts reference.
var svgMinifier = func() *minify.M {
	m := minify.New()
	m.Add(svgMIME, &svg.Minifier{})
	return m
}()

func minifySVG(data []byte) ([]byte, error) {
	out, err := svgMinifier.Bytes(svgMIME, data)
	if err != nil {
		return nil, fmt.Errorf("minify svg: %w", err)
	}
	return smaller(data, out), nil
}
