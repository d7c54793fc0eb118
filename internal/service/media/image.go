package media

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/iamasit07/chat-app/backend/internal/domain"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

const (
	MaxImageSize  = 5 * 1024 * 1024
	AvatarMaxEdge = 256
)

var allowedContentTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
	"image/webp": {},
}

// DecodeDataURL parses a base64 "data:image/...;base64," URL.
func DecodeDataURL(ref string) ([]byte, string, error) {
	if !strings.HasPrefix(ref, "data:") {
		return nil, "", errors.WithMessage(domain.ErrUpload, "not a data URL")
	}
	meta, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, "", errors.WithMessage(domain.ErrUpload, "data URL must be base64 encoded")
	}

	contentType := strings.ToLower(strings.TrimSuffix(meta, ";base64"))
	if _, allowed := allowedContentTypes[contentType]; !allowed {
		return nil, "", errors.WithMessagef(domain.ErrUpload, "unsupported image type %q", contentType)
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > MaxImageSize+3 {
		return nil, "", errors.WithMessage(domain.ErrUpload, "image exceeds 5MB limit")
	}

	blob, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", errors.WithMessage(domain.ErrUpload, "invalid base64 payload")
	}
	if len(blob) == 0 {
		return nil, "", errors.WithMessage(domain.ErrUpload, "empty image")
	}
	if len(blob) > MaxImageSize {
		return nil, "", errors.WithMessage(domain.ErrUpload, "image exceeds 5MB limit")
	}
	return blob, contentType, nil
}

// PrepareAvatar shrinks the image so its longest edge is at most
// AvatarMaxEdge. Images already small enough, and formats the standard
// decoders do not cover, are returned unchanged.
func PrepareAvatar(blob []byte, contentType string) ([]byte, string, error) {
	if contentType == "image/webp" {
		return blob, contentType, nil
	}

	img, format, err := image.Decode(bytes.NewReader(blob))
	if err != nil {
		return nil, "", errors.WithMessage(domain.ErrUpload, "cannot decode image")
	}
	bounds := img.Bounds()
	if bounds.Dx() <= AvatarMaxEdge && bounds.Dy() <= AvatarMaxEdge {
		return blob, contentType, nil
	}

	thumb := resize.Thumbnail(AvatarMaxEdge, AvatarMaxEdge, img, resize.Lanczos3)

	var buf bytes.Buffer
	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 85})
		contentType = "image/jpeg"
	case "gif":
		err = gif.Encode(&buf, thumb, nil)
		contentType = "image/gif"
	default:
		err = png.Encode(&buf, thumb)
		contentType = "image/png"
	}
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to encode avatar")
	}
	return buf.Bytes(), contentType, nil
}
