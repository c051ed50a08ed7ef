package storage

import (
	"bytes"
	"context"
	"errors"
	"image"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"backend-nlmap/internal/db"
	"backend-nlmap/internal/logging"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rwcarlsen/goexif/exif"
	"go.uber.org/zap"
)

const (
	maxUploadBytes = 20 << 20
	defaultMaxEdge = 2048
	filesPrefix    = "/files/"
)

var (
	ErrInvalidPath = errors.New("invalid object path")
	ErrTooLarge    = errors.New("file exceeds 20MB limit")
)

// Service is a path-addressed blob store on the local filesystem. Files
// are served back by the HTTP server under /files.
type Service struct {
	db      db.Querier
	root    string
	baseURL string
	maxEdge int
	logger  *zap.Logger
}

func NewService(db db.Querier, root, baseURL string, logger *zap.Logger) *Service {
	return &Service{
		db:      db,
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
		maxEdge: defaultMaxEdge,
		logger:  logging.OrNop(logger),
	}
}

// Root is the directory served under /files.
func (s *Service) Root() string {
	return s.root
}

// Put stores an anonymous photo and returns its public URL.
func (s *Service) Put(ctx context.Context, objectPath string, r io.Reader, contentType string) (string, error) {
	obj, err := s.Upload(ctx, "", objectPath, r, contentType, "photo")
	if err != nil {
		return "", err
	}
	return obj.URL, nil
}

// Upload writes the blob, normalising images on the way, and records it.
func (s *Service) Upload(ctx context.Context, userID, objectPath string, r io.Reader, contentType, kind string) (Object, error) {
	clean, err := cleanObjectPath(objectPath)
	if err != nil {
		return Object{}, err
	}

	data, err := io.ReadAll(io.LimitReader(r, maxUploadBytes+1))
	if err != nil {
		return Object{}, err
	}
	if len(data) > maxUploadBytes {
		return Object{}, ErrTooLarge
	}

	obj := Object{
		ID:     uuid.NewString(),
		UserID: userID,
		Kind:   kind,
		Path:   clean,
	}
	if isImage(contentType, data) {
		obj.TakenAt = takenAt(data)
		if processed, err := s.normalizeImage(data, clean); err == nil {
			data = processed
		} else {
			s.logger.Debug("storing image as uploaded", zap.String("path", clean), zap.Error(err))
		}
	}
	obj.Size = int64(len(data))

	dest := filepath.Join(s.root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Object{}, err
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return Object{}, err
	}
	obj.URL = s.publicURL(clean)

	if err := s.SaveObject(ctx, obj); err != nil {
		return Object{}, err
	}
	return obj, nil
}

func (s *Service) SaveObject(ctx context.Context, obj Object) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO storage_objects (id, user_id, url, kind, path, size_bytes, taken_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, obj.ID, obj.UserID, obj.URL, obj.Kind, obj.Path, obj.Size, obj.TakenAt)
	return err
}

// normalizeImage applies EXIF orientation and caps the long edge.
func (s *Service) normalizeImage(data []byte, objectPath string) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	if b := img.Bounds(); b.Dx() > s.maxEdge || b.Dy() > s.maxEdge {
		img = imaging.Fit(img, s.maxEdge, s.maxEdge, imaging.Lanczos)
	}

	format, err := imaging.FormatFromFilename(objectPath)
	if err != nil {
		format = imaging.JPEG
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(85)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Service) publicURL(clean string) string {
	segments := strings.Split(clean, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.baseURL + filesPrefix + strings.Join(segments, "/")
}

func cleanObjectPath(p string) (string, error) {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	if p == "" || strings.HasPrefix(p, "/") {
		return "", ErrInvalidPath
	}
	clean := path.Clean(p)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrInvalidPath
	}
	return clean, nil
}

func isImage(contentType string, data []byte) bool {
	if strings.HasPrefix(contentType, "image/") {
		return true
	}
	_, _, err := image.DecodeConfig(bytes.NewReader(data))
	return err == nil
}

func takenAt(data []byte) *time.Time {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	t, err := x.DateTime()
	if err != nil {
		return nil
	}
	return &t
}
