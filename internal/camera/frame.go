package camera

import (
	"image"
	"image/draw"

	"github.com/nfnt/resize"
)

// Downscale derives a low-resolution detection frame from a high-resolution
// frame. Nearest-neighbor is deliberate: motion analysis counts changed
// pixels, so interpolation artifacts only add noise.
func Downscale(f *Frame, width, height int) *Frame {
	scaled := resize.Resize(uint(width), uint(height), f.Pixels, resize.NearestNeighbor)

	rgba, ok := scaled.(*image.RGBA)
	if !ok {
		rgba = image.NewRGBA(scaled.Bounds())
		draw.Draw(rgba, rgba.Bounds(), scaled, scaled.Bounds().Min, draw.Src)
	}

	return &Frame{
		Pixels:     rgba,
		Res:        ResLow,
		Seq:        f.Seq,
		CapturedAt: f.CapturedAt,
	}
}

// rgbaFromRaw copies a raw RGBA byte stream into a standalone image. The
// source buffer is reused by the read loop, so the copy is required for
// frame immutability.
func rgbaFromRaw(raw []byte, width, height int) *image.RGBA {
	pix := make([]byte, len(raw))
	copy(pix, raw)
	return &image.RGBA{
		Pix:    pix,
		Stride: width * bytesPerPixel,
		Rect:   image.Rect(0, 0, width, height),
	}
}

// Grayscale flattens an RGBA buffer to one luminance byte per pixel using
// the BT.601 integer approximation.
func Grayscale(img *image.RGBA) []uint8 {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	out := make([]uint8, w*h)

	i := 0
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			r := uint32(row[x*4])
			g := uint32(row[x*4+1])
			b := uint32(row[x*4+2])
			out[i] = uint8((299*r + 587*g + 114*b) / 1000)
			i++
		}
	}
	return out
}
