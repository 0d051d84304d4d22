package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"time"

	apperrors "go-damage-sync/internal/errors"
	"go-damage-sync/internal/logger"
	"go-damage-sync/internal/storage"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
)

// Options bounds thumbnail output and encoding quality.
type Options struct {
	ThumbMaxWidth  int
	ThumbMaxHeight int
	ThumbQuality   int
}

// Pipeline turns an uploaded image into a durable original + bounded
// thumbnail pair in blob storage.
type Pipeline struct {
	blobs storage.BlobStore
	opts  Options
	now   func() time.Time
}

func NewPipeline(blobs storage.BlobStore, opts Options) *Pipeline {
	if opts.ThumbMaxWidth <= 0 {
		opts.ThumbMaxWidth = 400
	}
	if opts.ThumbMaxHeight <= 0 {
		opts.ThumbMaxHeight = 400
	}
	if opts.ThumbQuality <= 0 || opts.ThumbQuality > 100 {
		opts.ThumbQuality = 80
	}
	return &Pipeline{blobs: blobs, opts: opts, now: time.Now}
}

// PersistedMedia is the durable reference pair for one uploaded image.
type PersistedMedia struct {
	Original  Reference
	Thumbnail Reference
}

// Reference points at one stored blob.
type Reference struct {
	Path string
	URL  string
}

// Persist stores the original image and a bounded thumbnail under a
// per-user, per-timestamp path and returns their references. The input is
// validated as a decodable image before anything is uploaded.
func (p *Pipeline) Persist(ctx context.Context, userID string, data []byte) (PersistedMedia, error) {
	if len(data) == 0 {
		return PersistedMedia{}, apperrors.NewValidationError("image payload is empty", nil)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return PersistedMedia{}, apperrors.NewValidationError("failed to decode image", err)
	}

	thumbData, err := p.encodeThumbnail(img)
	if err != nil {
		return PersistedMedia{}, apperrors.NewInternalError("failed to encode thumbnail", err)
	}

	base := fmt.Sprintf("users/%s/analyses/%d_%s", userID, p.now().Unix(), uuid.NewString())
	originalPath := base + "." + extensionFor(format)
	thumbPath := base + "_thumb.jpg"

	originalURL, err := p.blobs.Upload(ctx, originalPath, data, "image/"+format)
	if err != nil {
		return PersistedMedia{}, apperrors.NewPersistenceError("failed to upload original image", err)
	}
	thumbURL, err := p.blobs.Upload(ctx, thumbPath, thumbData, "image/jpeg")
	if err != nil {
		return PersistedMedia{}, apperrors.NewPersistenceError("failed to upload thumbnail", err)
	}

	logger.WithFields(logrus.Fields{
		"user_id":        userID,
		"original_path":  originalPath,
		"thumbnail_path": thumbPath,
	}).Debug("Persisted media pair")

	return PersistedMedia{
		Original:  Reference{Path: originalPath, URL: originalURL},
		Thumbnail: Reference{Path: thumbPath, URL: thumbURL},
	}, nil
}

// encodeThumbnail scales the image down to fit the configured bounds,
// preserving aspect ratio and never upscaling, then JPEG-encodes it.
func (p *Pipeline) encodeThumbnail(img image.Image) ([]byte, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	scale := minScale(
		float64(p.opts.ThumbMaxWidth)/float64(width),
		float64(p.opts.ThumbMaxHeight)/float64(height),
	)

	thumb := img
	if scale < 1 {
		dstW := int(float64(width) * scale)
		dstH := int(float64(height) * scale)
		if dstW < 1 {
			dstW = 1
		}
		if dstH < 1 {
			dstH = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		thumb = dst
	}

	buf := &bytes.Buffer{}
	if err := jpeg.Encode(buf, thumb, &jpeg.Options{Quality: p.opts.ThumbQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func minScale(a, b float64) float64 {
	scale := a
	if b < scale {
		scale = b
	}
	if scale > 1 {
		return 1
	}
	return scale
}

func extensionFor(format string) string {
	switch format {
	case "png":
		return "png"
	default:
		return "jpg"
	}
}
