// Package objectstore implements the content-addressed file storage
// backing receipt originals and their derived images. Objects
// live in a single S3-compatible bucket; the key layout encodes entity,
// vendor, and date so a human can browse the bucket directly.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/rezonia/invoice-processor/internal/model"
)

// File names for the siblings that accumulate next to the original as
// the pipeline runs.
const (
	FileOriginal   = "original"
	FileNormalized = "normalized.jpg"
	FileThumbnail  = "thumbnail.jpg"
	FileCropped    = "cropped.jpg"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// Store is the minio-backed object store.
type Store struct {
	client *minio.Client
	bucket string
}

// NewStore dials an S3-compatible endpoint and returns a Store bound to
// bucket. The bucket must already exist; this constructor doesn't create it.
func NewStore(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Store, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: connect to %s: %w", endpoint, err)
	}
	return &Store{client: client, bucket: bucket}, nil
}

// VendorSlug normalizes a vendor name into the path-safe segment used
// in the post-parse folder layout: non-alphanumerics collapse to a
// single hyphen, and the result is lowercased.
func VendorSlug(vendor string) string {
	slug := nonAlphanumeric.ReplaceAllString(vendor, "-")
	slug = strings.Trim(slug, "-")
	return strings.ToLower(slug)
}

// initialKey builds the upload-time key, before the vendor/date/total
// are known.
func initialKey(entity model.Entity, receiptID, ext, filename string) string {
	return fmt.Sprintf("%s/%s/%s.%s", entity, receiptID, filename, ext)
}

// finalDir builds the human-readable post-parse directory.
func finalDir(entity model.Entity, vendorCanonical string, purchaseDate time.Time, total decimal.Decimal) string {
	return fmt.Sprintf("%s/%s/%s_%s", entity, VendorSlug(vendorCanonical),
		purchaseDate.Format("2006-01-02"), total.StringFixed(2))
}

// PutOriginal uploads the freshly received file to its initial,
// receipt-id-keyed location, `{entity}/{receipt_id}/original.{ext}`.
func (s *Store) PutOriginal(ctx context.Context, entity model.Entity, receiptID, ext string, data []byte, contentType string) (string, error) {
	key := initialKey(entity, receiptID, ext, FileOriginal)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("objectstore: put original: %w", err)
	}
	return key, nil
}

// PutSibling uploads a derived image (normalized preview, thumbnail,
// or cropped region) next to an existing key, in the same directory.
func (s *Store) PutSibling(ctx context.Context, originalKey, filename string, data []byte, contentType string) (string, error) {
	key := siblingKey(originalKey, filename)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("objectstore: put sibling %s: %w", filename, err)
	}
	return key, nil
}

func siblingKey(originalKey, filename string) string {
	dir := originalKey[:strings.LastIndex(originalKey, "/")]
	return fmt.Sprintf("%s/%s", dir, filename)
}

// SiblingKey exposes siblingKey's naming convention to callers outside
// the package (the file-serving HTTP handler needs it to look up a
// derived image next to a receipt's stored original).
func SiblingKey(originalKey, filename string) string {
	return siblingKey(originalKey, filename)
}

// Relocate moves every object under an original's receipt-id-keyed
// directory into the human-readable vendor/date/total directory, once
// parsing has determined those values. minio has no rename primitive,
// so this copies each known sibling to its new key and removes the old
// one — a receipt's siblings are a small, known set (original,
// normalized, thumbnail, cropped), so this never needs to list the
// bucket.
func (s *Store) Relocate(ctx context.Context, entity model.Entity, receiptID, ext string, vendorCanonical string, purchaseDate time.Time, total decimal.Decimal) (string, error) {
	oldOriginal := initialKey(entity, receiptID, ext, FileOriginal)
	newDir := finalDir(entity, vendorCanonical, purchaseDate, total)
	newOriginal := fmt.Sprintf("%s/%s.%s", newDir, FileOriginal, ext)

	candidates := map[string]string{
		oldOriginal: newOriginal,
		siblingKey(oldOriginal, FileNormalized): fmt.Sprintf("%s/%s", newDir, FileNormalized),
		siblingKey(oldOriginal, FileThumbnail):  fmt.Sprintf("%s/%s", newDir, FileThumbnail),
		siblingKey(oldOriginal, FileCropped):    fmt.Sprintf("%s/%s", newDir, FileCropped),
	}

	for oldKey, newKey := range candidates {
		if err := s.copyAndRemove(ctx, oldKey, newKey); err != nil {
			if oldKey == oldOriginal {
				return "", err
			}
			// Derived siblings (normalized/thumbnail/cropped) may not
			// exist yet at relocation time; that's fine.
			log.Debug().Str("stage", "objectstore").Str("key", oldKey).
				Err(err).Msg("sibling not present during relocation, skipping")
		}
	}

	return newOriginal, nil
}

func (s *Store) copyAndRemove(ctx context.Context, oldKey, newKey string) error {
	_, err := s.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: s.bucket, Object: newKey},
		minio.CopySrcOptions{Bucket: s.bucket, Object: oldKey},
	)
	if err != nil {
		return fmt.Errorf("copy %s -> %s: %w", oldKey, newKey, err)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, oldKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s after copy: %w", oldKey, err)
	}
	return nil
}

// Get streams an object's bytes and content type. Callers must close
// the returned reader.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("objectstore: get %s: %w", key, err)
	}
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, "", fmt.Errorf("objectstore: stat %s: %w", key, err)
	}
	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return obj, contentType, nil
}
