package media

import (
	"context"
	"strings"

	"github.com/iamasit07/chat-app/backend/internal/domain"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

const (
	FolderMessages = "messages"
	FolderAvatars  = "avatars"
)

// Service turns client image references into hosted URLs. Clients send
// either a data URL, which is uploaded, or an http(s) URL, which is kept.
type Service struct {
	uploader Uploader
}

func NewService(uploader Uploader) *Service {
	return &Service{uploader: uploader}
}

// StoreImage resolves a message attachment. An empty ref yields "".
func (s *Service) StoreImage(ctx context.Context, ref string) (string, error) {
	return s.store(ctx, FolderMessages, ref, false)
}

// StoreAvatar resolves a profile picture, downscaling uploads.
func (s *Service) StoreAvatar(ctx context.Context, ref string) (string, error) {
	return s.store(ctx, FolderAvatars, ref, true)
}

func (s *Service) store(ctx context.Context, folder, ref string, avatar bool) (string, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return "", nil
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return ref, nil
	case !strings.HasPrefix(ref, "data:"):
		return "", errors.WithMessage(domain.ErrUpload, "image must be a data URL or http(s) URL")
	}

	blob, contentType, err := DecodeDataURL(ref)
	if err != nil {
		return "", err
	}
	if avatar {
		if blob, contentType, err = PrepareAvatar(blob, contentType); err != nil {
			return "", err
		}
	}

	url, err := s.uploader.Upload(ctx, folder, blob, contentType)
	if err != nil {
		jww.ERROR.Printf("[MEDIA] Upload to %s failed: %v", folder, err)
		if !errors.Is(err, domain.ErrUpload) {
			err = errors.WithMessage(domain.ErrUpload, err.Error())
		}
		return "", err
	}
	jww.DEBUG.Printf("[MEDIA] Stored %d bytes at %s", len(blob), url)
	return url, nil
}
