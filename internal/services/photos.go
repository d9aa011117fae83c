package services

import (
	"context"
	"strings"

	"relun-backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	// MaxPhotos is the gallery size limit per user
	MaxPhotos = 6
	// MaxPhotoBytes is the largest accepted upload
	MaxPhotoBytes = 10 << 20
)

var photoExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/heic": ".heic",
}

// PhotoUpload is one file of a multipart upload
type PhotoUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

func photoExtension(u PhotoUpload) (string, error) {
	ct := strings.ToLower(strings.TrimSpace(u.ContentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	ext, ok := photoExtensions[ct]
	if !ok {
		return "", validationError("unsupported image type %q", u.ContentType)
	}
	return ext, nil
}

// UploadPhotos stores the files and appends them to the caller's gallery in
// upload order. Either every file is added or none is.
func (s *ProfileService) UploadPhotos(ctx context.Context, userID string, uploads []PhotoUpload) ([]*models.Photo, error) {
	if len(uploads) == 0 {
		return nil, validationError("at least one photo is required")
	}
	if len(uploads) > MaxPhotos {
		return nil, ErrPhotoLimit
	}

	exts := make([]string, len(uploads))
	for i, u := range uploads {
		if len(u.Data) == 0 {
			return nil, validationError("photo %q is empty", u.Filename)
		}
		if len(u.Data) > MaxPhotoBytes {
			return nil, validationError("photo %q exceeds %d MB", u.Filename, MaxPhotoBytes>>20)
		}
		ext, err := photoExtension(u)
		if err != nil {
			return nil, err
		}
		exts[i] = ext
	}

	count, err := s.photos.CountByUser(ctx, userID)
	if err != nil {
		return nil, storeError(err, "photos")
	}
	if count+len(uploads) > MaxPhotos {
		return nil, ErrPhotoLimit
	}

	photos := make([]*models.Photo, 0, len(uploads))
	for i, u := range uploads {
		id := uuid.New().String()
		key := "profiles/" + userID + "/" + id + exts[i]
		url, err := s.images.Upload(ctx, key, u.ContentType, u.Data)
		if err != nil {
			s.discard(photos)
			return nil, unavailableError(err, "failed to store photo")
		}
		photos = append(photos, &models.Photo{ID: id, UserID: userID, URL: url, ObjectKey: key})
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.tx.Lock(ctx, "photos:"+userID); err != nil {
			return storeError(err, "photos")
		}
		n, err := s.photos.CountByUser(ctx, userID)
		if err != nil {
			return storeError(err, "photos")
		}
		if n+len(photos) > MaxPhotos {
			return ErrPhotoLimit
		}
		now := s.now()
		for i, p := range photos {
			p.Position = n + i
			p.CreatedAt = now
			if err := s.photos.Create(ctx, p); err != nil {
				return storeError(err, "photo")
			}
		}
		return nil
	})
	if err != nil {
		s.discard(photos)
		return nil, err
	}

	log.Info().Str("user_id", userID).Int("count", len(photos)).Msg("Photos uploaded")
	return photos, nil
}

// DeletePhoto removes one of the caller's photos and closes the gap in the
// ordering
func (s *ProfileService) DeletePhoto(ctx context.Context, userID, photoID string) error {
	var removed *models.Photo
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.tx.Lock(ctx, "photos:"+userID); err != nil {
			return storeError(err, "photos")
		}
		photo, err := s.photos.GetForUser(ctx, photoID, userID)
		if err != nil {
			return storeError(err, "photo")
		}
		if err := s.photos.Delete(ctx, photo.ID); err != nil {
			return storeError(err, "photo")
		}
		if err := s.photos.Resequence(ctx, userID); err != nil {
			return storeError(err, "photos")
		}
		removed = photo
		return nil
	})
	if err != nil {
		return err
	}

	s.discard([]*models.Photo{removed})
	log.Info().Str("user_id", userID).Str("photo_id", photoID).Msg("Photo deleted")
	return nil
}

// discard deletes stored objects whose rows were never written or are gone
func (s *ProfileService) discard(photos []*models.Photo) {
	for _, p := range photos {
		if p.ObjectKey == "" {
			continue
		}
		if err := s.images.Delete(context.Background(), p.ObjectKey); err != nil {
			log.Warn().Err(err).Str("key", p.ObjectKey).Msg("Failed to delete stored photo")
		}
	}
}
