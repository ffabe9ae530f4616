package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"path"
	"strconv"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Thumbnail scales src down to fit inside d keeping its aspect ratio.
// Images already inside the box are returned unchanged.
func Thumbnail(src image.Image, d Dimension) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= d.Width && h <= d.Height {
		return src
	}

	if w*d.Height > h*d.Width {
		h = max(1, h*d.Width/w)
		w = d.Width
	} else {
		w = max(1, w*d.Height/h)
		h = d.Height
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

// Encode writes img in format. Formats without an encoder fall back to png.
func Encode(w io.Writer, img image.Image, format string) error {
	switch format {
	case "jpeg", "jpg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 90})
	case "gif":
		return gif.Encode(w, img, nil)
	case "bmp":
		return bmp.Encode(w, img)
	default:
		return png.Encode(w, img)
	}
}

// VariantKey names the resized copy of key for the given height,
// "12/user_image.png" becoming "12/256_user_image.png".
func VariantKey(key string, height int) string {
	return path.Join(path.Dir(key), strconv.Itoa(height)+"_"+path.Base(key))
}

// ResizeVariants writes one thumbnail per dimension next to the base image
// and then removes the base image.
func ResizeVariants(ctx context.Context, storage Storage, key string, dims []Dimension) error {
	rc, err := storage.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("open base image: %w", err)
	}
	src, format, err := image.Decode(rc)
	rc.Close()
	if err != nil {
		return fmt.Errorf("decode base image: %w", err)
	}

	for _, d := range dims {
		var buf bytes.Buffer
		if err := Encode(&buf, Thumbnail(src, d), format); err != nil {
			return fmt.Errorf("encode %dx%d: %w", d.Width, d.Height, err)
		}
		if err := storage.Put(ctx, VariantKey(key, d.Height), bytes.NewReader(buf.Bytes())); err != nil {
			return err
		}
	}

	return storage.Remove(ctx, key)
}
