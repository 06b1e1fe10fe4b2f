package raster

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"gonum.org/v1/plot/palette/moreland"
)

// RenderOverlay paints g as an RGBA image, one pixel per cell, coloured with
// the black-body luminance map. Cells without a source measurement are
// transparent; the rest carry the given opacity.
func RenderOverlay(g *Grid, opacity float64) (*image.NRGBA, error) {
	if opacity < 0 || opacity > 1 {
		return nil, eris.Errorf("raster: overlay opacity %v outside [0,1]", opacity)
	}
	cmap := moreland.BlackBody()
	cmap.SetMin(0)
	cmap.SetMax(1)

	img := image.NewNRGBA(image.Rect(0, 0, g.Cols, g.Rows))
	alpha := uint8(opacity*255 + 0.5)
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			i := r*g.Cols + c
			if !g.Valid[i] {
				continue
			}
			col, err := cmap.At(g.Data[i])
			if err != nil {
				return nil, eris.Wrapf(err, "raster: colour cell (%d,%d)", r, c)
			}
			n := color.NRGBAModel.Convert(col).(color.NRGBA)
			n.A = alpha
			img.SetNRGBA(c, r, n)
		}
	}
	return img, nil
}

// EncodeOverlay writes the overlay for g to w as PNG.
func EncodeOverlay(w io.Writer, g *Grid, opacity float64) error {
	img, err := RenderOverlay(g, opacity)
	if err != nil {
		return err
	}
	return eris.Wrap(png.Encode(w, img), "raster: encode overlay")
}

// WriteOverlay writes the overlay PNG to a new temporary file in dir (the
// system temp dir when empty) and returns its path. The caller owns the
// file and must remove it.
func WriteOverlay(g *Grid, dir string, opacity float64) (string, error) {
	f, err := os.CreateTemp(dir, "sdg11-overlay-*.png")
	if err != nil {
		return "", eris.Wrap(err, "raster: create overlay file")
	}
	if err := EncodeOverlay(f, g, opacity); err != nil {
		f.Close()           //nolint:errcheck
		os.Remove(f.Name()) //nolint:errcheck
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name()) //nolint:errcheck
		return "", eris.Wrap(err, "raster: close overlay file")
	}
	return f.Name(), nil
}
