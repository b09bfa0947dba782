package utils

import (
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// DecodeImage decodes an image from r and reports its format name
// (jpeg, png, gif, webp).
func DecodeImage(r io.Reader) (image.Image, string, error) {
	return image.Decode(r)
}

// DecodeImageConfig reads only the header to get dimensions and format.
func DecodeImageConfig(r io.Reader) (image.Config, string, error) {
	return image.DecodeConfig(r)
}

// EncodeWebP writes img to w as lossy WebP with the given quality (0-100).
func EncodeWebP(w io.Writer, img image.Image, quality float32) error {
	return webp.Encode(w, img, &webp.Options{Quality: quality})
}

// EncodeJPEG writes img to w as JPEG, used for thumbnails.
func EncodeJPEG(w io.Writer, img image.Image, quality int) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
}

// Thumbnail scales img down to fit within maxW x maxH while preserving the
// aspect ratio. Images already inside the bound are returned unchanged.
func Thumbnail(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxW && h <= maxH {
		return img
	}

	ratioW := float64(maxW) / float64(w)
	ratioH := float64(maxH) / float64(h)
	ratio := ratioW
	if ratioH < ratio {
		ratio = ratioH
	}
	dw := int(float64(w) * ratio)
	dh := int(float64(h) * ratio)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}
