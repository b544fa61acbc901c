package helpers

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"golang.org/x/image/draw"
)

const (
	EvidenceFolder = "evidence"
	CoverFolder    = "covers"
	AvatarFolder   = "avatars"

	DefaultMaxEdge  = 800
	DefaultQuality  = 70
	DefaultMaxBytes = 700 * 1024

	minQuality  = 30
	qualityStep = 10
)

var (
	ErrUnsupportedImage = errors.New("unsupported or corrupt image")
	ErrImageTooLarge    = errors.New("image too large after compression")
)

type ImageOptions struct {
	MaxEdge  int
	Quality  int
	MaxBytes int
}

func (o ImageOptions) withDefaults() ImageOptions {
	if o.MaxEdge <= 0 {
		o.MaxEdge = DefaultMaxEdge
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = DefaultQuality
	}
	if o.MaxBytes <= 0 {
		o.MaxBytes = DefaultMaxBytes
	}
	return o
}

// CompressImage decodes a JPEG, PNG or GIF, shrinks it so its longest edge
// is at most MaxEdge, and re-encodes it as JPEG. Quality is lowered until the
// result fits MaxBytes.
func CompressImage(data []byte, opts ImageOptions) ([]byte, error) {
	opts = opts.withDefaults()
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	img := resize(src, opts.MaxEdge)
	for q := opts.Quality; q >= minQuality; q -= qualityStep {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
			return nil, fmt.Errorf("encoding jpeg: %w", err)
		}
		if buf.Len() <= opts.MaxBytes {
			return buf.Bytes(), nil
		}
	}
	return nil, ErrImageTooLarge
}

func resize(src image.Image, maxEdge int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxEdge && h <= maxEdge {
		return src
	}
	if w >= h {
		h = h * maxEdge / w
		w = maxEdge
	} else {
		w = w * maxEdge / h
		h = maxEdge
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// ImageStore turns an uploaded image into something embeddable in a
// document: an inline data URI or a hosted URL.
type ImageStore interface {
	Store(ctx context.Context, data []byte, folder string) (string, error)
}

// InlineStore returns data:image/jpeg;base64 URIs.
type InlineStore struct {
	Options ImageOptions
}

func (s InlineStore) Store(ctx context.Context, data []byte, folder string) (string, error) {
	compressed, err := CompressImage(data, s.Options)
	if err != nil {
		return "", err
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(compressed), nil
}

// CloudinaryStore uploads the compressed image and returns its secure URL.
type CloudinaryStore struct {
	cld     *cloudinary.Cloudinary
	options ImageOptions
}

func NewCloudinaryStore(cld *cloudinary.Cloudinary, opts ImageOptions) *CloudinaryStore {
	return &CloudinaryStore{cld: cld, options: opts}
}

func (s *CloudinaryStore) Store(ctx context.Context, data []byte, folder string) (string, error) {
	compressed, err := CompressImage(data, s.options)
	if err != nil {
		return "", err
	}
	res, err := s.cld.Upload.Upload(ctx, bytes.NewReader(compressed), uploader.UploadParams{
		Folder: folder,
		Tags:   []string{"humanfolio"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("failed to upload image: %s", res.Error.Message)
	}
	return res.SecureURL, nil
}
