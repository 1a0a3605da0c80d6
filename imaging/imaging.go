// Package imaging holds the pixel helpers the removal pipeline runs before
// and after inference.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"

	_ "image/jpeg"

	"golang.org/x/image/draw"
)

// ErrNoForeground is returned when no pixel passes the alpha threshold.
var ErrNoForeground = errors.New("no foreground detected")

// Decode decodes PNG or JPEG bytes.
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

// EncodePNG encodes img as PNG, keeping its alpha channel.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// ToNRGBA returns img as *image.NRGBA, converting only when needed.
func ToNRGBA(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok {
		return nrgba
	}
	b := img.Bounds()
	dst := image.NewNRGBA(b)
	draw.Draw(dst, b, img, b.Min, draw.Src)
	return dst
}

// AlphaBBox 从 alpha 通道计算主体 bounding box
// 把 alpha > threshold * 255 的像素当作“主体”
func AlphaBBox(img *image.NRGBA, threshold float64) (image.Rectangle, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	th := uint8(threshold * 255)

	minX, minY := w, h
	maxX, maxY := 0, 0
	found := false

	for y := 0; y < h; y++ {
		row := y * img.Stride
		for x := 0; x < w; x++ {
			if img.Pix[row+x*4+3] <= th {
				continue
			}
			found = true
			minX = min(minX, x)
			minY = min(minY, y)
			maxX = max(maxX, x)
			maxY = max(maxY, y)
		}
	}

	if !found {
		return image.Rectangle{}, ErrNoForeground
	}

	return image.Rect(minX, minY, maxX+1, maxY+1).Add(b.Min), nil
}

// Crop copies rect grown by padding on every side, clipped to img.
// The result starts at (0, 0).
func Crop(img *image.NRGBA, rect image.Rectangle, padding int) *image.NRGBA {
	rect = rect.Inset(-padding).Intersect(img.Bounds())
	dst := image.NewNRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), img, rect.Min, draw.Src)
	return dst
}

// CropSquare 正方形裁剪（中心对齐）
// 以主体中心为中心、最长边为边长；超出原图的部分保持透明
func CropSquare(img *image.NRGBA, bbox image.Rectangle, padding int) *image.NRGBA {
	cx := (bbox.Min.X + bbox.Max.X) / 2
	cy := (bbox.Min.Y + bbox.Max.Y) / 2
	size := max(bbox.Dx(), bbox.Dy()) + 2*padding
	half := size / 2

	square := image.Rect(cx-half, cy-half, cx-half+size, cy-half+size)
	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	src := square.Intersect(img.Bounds())
	draw.Draw(dst, src.Sub(square.Min), img, src.Min, draw.Src)
	return dst
}
