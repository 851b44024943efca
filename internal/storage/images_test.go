package storage

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
)

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))

	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer

	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}

	return buf.Bytes()
}

// builds a real *multipart.FileHeader the way gin would hand it over

func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer

	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("image", name)

	if err != nil {
		t.Fatalf("create form file: %v", err)
	}

	if _, err := part.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest("POST", "/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())

	if err := req.ParseMultipartForm(32 << 20); err != nil {
		t.Fatalf("parse multipart form: %v", err)
	}

	return req.MultipartForm.File["image"][0]
}

func newTestStore(t *testing.T) *FileStore {
	t.Helper()

	store, err := NewFileStore(t.TempDir(), "http://localhost:8080", nil)

	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	return store
}

func storedFile(t *testing.T, store *FileStore, url string) string {
	t.Helper()

	idx := strings.LastIndex(url, "/images/")

	if idx == -1 {
		t.Fatalf("url %q does not point into the store", url)
	}

	return filepath.Join(store.Dir(), url[idx+len("/images/"):])
}

func TestSaveShrinksWideImages(t *testing.T) {
	store := newTestStore(t)

	url, err := store.Save(fileHeader(t, "wide.png", pngBytes(t, 1600, 400)))

	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if !strings.HasPrefix(url, "http://localhost:8080/images/") || !strings.HasSuffix(url, ".jpg") {
		t.Fatalf("url = %q, want a jpg under the public images path", url)
	}

	img, err := imaging.Open(storedFile(t, store, url))

	if err != nil {
		t.Fatalf("open stored file: %v", err)
	}

	if img.Bounds().Dx() != maxWidth {
		t.Fatalf("stored width = %d, want %d", img.Bounds().Dx(), maxWidth)
	}

	// aspect ratio preserved
	if img.Bounds().Dy() != 200 {
		t.Fatalf("stored height = %d, want 200", img.Bounds().Dy())
	}
}

func TestSaveKeepsSmallImages(t *testing.T) {
	store := newTestStore(t)

	url, err := store.Save(fileHeader(t, "small.png", pngBytes(t, 400, 300)))

	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	img, err := imaging.Open(storedFile(t, store, url))

	if err != nil {
		t.Fatalf("open stored file: %v", err)
	}

	if img.Bounds().Dx() != 400 || img.Bounds().Dy() != 300 {
		t.Fatalf("stored size = %dx%d, want 400x300 untouched", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestSaveRejectsOversizedUpload(t *testing.T) {
	store := newTestStore(t)

	// size is checked before the body is ever opened
	header := &multipart.FileHeader{Filename: "huge.png", Size: MaxUploadBytes + 1}

	_, err := store.Save(header)

	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("Save() error = %v, want ErrTooLarge", err)
	}
}

func TestSaveRejectsNonImage(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Save(fileHeader(t, "notes.txt", []byte("definitely not pixels")))

	if !errors.Is(err, ErrNotAnImage) {
		t.Fatalf("Save() error = %v, want ErrNotAnImage", err)
	}

	entries, err := os.ReadDir(store.Dir())

	if err != nil {
		t.Fatalf("read store dir: %v", err)
	}

	if len(entries) != 0 {
		t.Fatalf("store dir has %d files, want none after a rejected upload", len(entries))
	}
}

func TestRemove(t *testing.T) {
	store := newTestStore(t)

	url, err := store.Save(fileHeader(t, "cover.png", pngBytes(t, 100, 100)))

	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	target := storedFile(t, store, url)

	if err := store.Remove(url); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Fatalf("stored file still present after Remove (stat err = %v)", err)
	}

	// removing an already-removed file is not an error
	if err := store.Remove(url); err != nil {
		t.Fatalf("second Remove() error = %v", err)
	}
}

func TestRemoveRefusesURLsOutsideStore(t *testing.T) {
	store := newTestStore(t)

	for _, url := range []string{
		"http://localhost:8080/files/cover.jpg",
		"http://localhost:8080/images/",
		"http://localhost:8080/images/../../etc/passwd",
		"not even a url",
	} {
		if err := store.Remove(url); !errors.Is(err, ErrOutsideStore) {
			t.Fatalf("Remove(%q) error = %v, want ErrOutsideStore", url, err)
		}
	}
}
