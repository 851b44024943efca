package storage

import (
	"errors"
	"fmt"
	"image"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avanel/bookhub/internal/observability"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

const (
	// MaxUploadBytes caps a single cover upload before any decoding happens.
	MaxUploadBytes = 4 << 20 // 4 MiB

	// Covers are shrunk to at most this width, aspect preserved.
	maxWidth = 800

	jpegQuality = 80
)

var (
	ErrTooLarge      = errors.New("image exceeds the maximum upload size")
	ErrNotAnImage    = errors.New("file is not a decodable image")
	ErrOutsideStore  = errors.New("url does not point into the image store")
	ErrDeleteFailed  = errors.New("could not delete image file")
	ErrProcessFailed = errors.New("could not process image")
)

// FileStore processes uploaded cover images and keeps the results on disk.
// Stored files are re-encoded JPEGs named <unix-ms>-<uuid>.jpg; the public
// URL for each is baseURL + "/images/" + name.
type FileStore struct {
	dir     string
	baseURL string
	obs     *observability.Prom
}

// NewFileStore creates the image directory if missing.
func NewFileStore(dir, baseURL string, obs *observability.Prom) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("image store dir is required")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}

	return &FileStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		obs:     obs,
	}, nil
}

// Save runs the upload pipeline for one cover: size check, decode, shrink to
// the max width, re-encode as JPEG, write under a collision-resistant name.
// The original upload is never written to disk. Returns the public URL.
func (f *FileStore) Save(file *multipart.FileHeader) (string, error) {
	if file.Size > MaxUploadBytes {
		return "", ErrTooLarge
	}

	name := fmt.Sprintf("%d-%s.jpg", time.Now().UnixMilli(), uuid.NewString())
	target := filepath.Join(f.dir, name)

	err := f.obs.ObserveImage("process", func() error {
		src, err := file.Open()

		if err != nil {
			return fmt.Errorf("%w: %v", ErrProcessFailed, err)
		}

		defer src.Close()

		img, err := imaging.Decode(src, imaging.AutoOrientation(true))

		if err != nil {
			return ErrNotAnImage
		}

		// shrink only, never enlarge
		if img.Bounds().Dx() > maxWidth {
			img = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
		}

		err = saveJPEG(img, target)

		if err != nil {
			return fmt.Errorf("%w: %v", ErrProcessFailed, err)
		}

		return nil
	})

	if err != nil {
		return "", err
	}

	return f.baseURL + "/images/" + name, nil
}

// Remove maps a public image URL back to the stored file and deletes it.
func (f *FileStore) Remove(imageURL string) error {
	name, err := f.fileNameFromURL(imageURL)

	if err != nil {
		return err
	}

	return f.obs.ObserveImage("delete", func() error {
		err := os.Remove(filepath.Join(f.dir, name))

		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
		}

		return nil
	})
}

// Dir returns the directory the router serves statically.
func (f *FileStore) Dir() string {
	return f.dir
}

func (f *FileStore) fileNameFromURL(imageURL string) (string, error) {
	idx := strings.LastIndex(imageURL, "/images/")

	if idx == -1 {
		return "", ErrOutsideStore
	}

	name := imageURL[idx+len("/images/"):]

	// refuse anything that could escape the store directory
	if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") {
		return "", ErrOutsideStore
	}

	return name, nil
}

func saveJPEG(img image.Image, target string) error {
	return imaging.Save(img, target, imaging.JPEGQuality(jpegQuality))
}
