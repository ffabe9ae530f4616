// Package media stores profile images and resolves their public URLs.
package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"path"
	"strconv"
	"strings"

	"github.com/frahmantamala/leaf/internal"
)

const userImageStem = "user_image"

type Images struct {
	storage Storage
	sizes   *Sizes
	baseURL string
}

func NewImages(storage Storage, sizes *Sizes, baseURL string) *Images {
	return &Images{
		storage: storage,
		sizes:   sizes,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

func (m *Images) Sizes() *Sizes {
	return m.sizes
}

func (m *Images) Storage() Storage {
	return m.storage
}

// ImageKey is the storage key of a user's base image.
func ImageKey(userID int64, name string) string {
	return path.Join(strconv.FormatInt(userID, 10), name)
}

// URL resolves a stored profile image name to the public URL of one size
// variant. A nil name stays nil.
func (m *Images) URL(userID int64, name *string, height int) *string {
	if name == nil || *name == "" {
		return nil
	}
	if height <= 0 {
		height = m.sizes.DefaultHeight()
	}
	u := fmt.Sprintf("%s/%d/%d_%s", m.baseURL, userID, height, *name)
	return &u
}

// Flush removes every earlier user image and its variants.
func (m *Images) Flush(ctx context.Context, userID int64) error {
	dir := strconv.FormatInt(userID, 10)
	keys, err := m.storage.List(ctx, dir)
	if err != nil {
		return fmt.Errorf("list media: %w", err)
	}
	for _, key := range keys {
		if ok, _ := path.Match("*"+userImageStem+".*", path.Base(key)); !ok {
			continue
		}
		if err := m.storage.Remove(ctx, key); err != nil {
			return fmt.Errorf("remove %s: %w", key, err)
		}
	}
	return nil
}

// extensions maps the decoded formats accepted for profile images to the
// extension they are stored under.
var extensions = map[string]string{
	"png":  "png",
	"jpeg": "jpg",
	"gif":  "gif",
	"bmp":  "bmp",
}

// Upload is a checked profile image, ready to be stored under Name.
type Upload struct {
	Name string
	data []byte
}

// Decode checks data is an image in an accepted format. The stored name
// follows the detected format, never the client's filename. Formats without
// an encoder, webp, are converted to png so the base image and its variants
// share one extension.
func Decode(data []byte) (*Upload, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, internal.ErrInvalidImage.WithCause(err)
	}

	if format == "webp" {
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, internal.ErrInvalidImage.WithCause(err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("convert webp: %w", err)
		}
		data, format = buf.Bytes(), "png"
	}

	ext, ok := extensions[format]
	if !ok {
		return nil, internal.ErrInvalidImage.WithCause(fmt.Errorf("unsupported image format %q", format))
	}
	return &Upload{Name: userImageStem + "." + ext, data: data}, nil
}

// Save stores a decoded upload as the user's base image and returns its key.
func (m *Images) Save(ctx context.Context, userID int64, up *Upload) (string, error) {
	key := ImageKey(userID, up.Name)
	if err := m.storage.Put(ctx, key, bytes.NewReader(up.data)); err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	return key, nil
}
