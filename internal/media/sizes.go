package media

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/frahmantamala/leaf/internal"
)

// Dimension is the bounding box of one image variant.
type Dimension struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ParseDimension reads "WxH", e.g. "256x256".
func ParseDimension(s string) (Dimension, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return Dimension{}, fmt.Errorf("image size %q: want WIDTHxHEIGHT", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil || width <= 0 {
		return Dimension{}, fmt.Errorf("image size %q: bad width", s)
	}
	height, err := strconv.Atoi(h)
	if err != nil || height <= 0 {
		return Dimension{}, fmt.Errorf("image size %q: bad height", s)
	}
	return Dimension{Width: width, Height: height}, nil
}

// Sizes is the configured set of image variants. The first available size
// is the default one.
type Sizes struct {
	available []string
	dims      map[string]Dimension
}

func NewSizes(available []string, dims map[string]string) (*Sizes, error) {
	if len(available) == 0 {
		return nil, fmt.Errorf("no image sizes available")
	}
	s := &Sizes{available: append([]string(nil), available...), dims: make(map[string]Dimension, len(dims))}
	for name, raw := range dims {
		d, err := ParseDimension(raw)
		if err != nil {
			return nil, err
		}
		s.dims[name] = d
	}
	for _, name := range available {
		if _, ok := s.dims[name]; !ok {
			return nil, fmt.Errorf("image size %q has no dimensions", name)
		}
	}
	return s, nil
}

func (s *Sizes) Available() []string {
	return append([]string(nil), s.available...)
}

// DefaultHeight is the height of the first available size.
func (s *Sizes) DefaultHeight() int {
	return s.dims[s.available[0]].Height
}

// Resolve maps the image_size header value to a variant height.
func (s *Sizes) Resolve(name string) (int, error) {
	if name == "" {
		return s.DefaultHeight(), nil
	}
	for _, a := range s.available {
		if a == name {
			return s.dims[a].Height, nil
		}
	}
	return 0, s.InvalidSizeError()
}

func (s *Sizes) InvalidSizeError() *internal.AppError {
	quoted := make([]string, len(s.available))
	for i, a := range s.available {
		quoted[i] = "'" + a + "'"
	}
	msg := fmt.Sprintf("Wrong image size! Available sizes are: [%s]", strings.Join(quoted, ", "))
	return internal.NewValidationError(msg, internal.ErrCodeInvalidImageSize)
}

// Variants lists every configured dimension, available ones first, the
// rest by name. Resizing produces all of them.
func (s *Sizes) Variants() []Dimension {
	out := make([]Dimension, 0, len(s.dims))
	seen := make(map[string]bool, len(s.available))
	for _, a := range s.available {
		out = append(out, s.dims[a])
		seen[a] = true
	}
	rest := make([]string, 0, len(s.dims))
	for name := range s.dims {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		out = append(out, s.dims[name])
	}
	return out
}
