package media

import (
	"bytes"
	"io"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/cardlink-app/cardlink-web/internal/domain"
	"github.com/cardlink-app/cardlink-web/internal/usecase"
)

const (
	maxImageBytes  = 8 << 20
	previewMaxEdge = 512
)

var ErrHandleNotFound = errors.New("image handle not found")

type entry struct {
	name string
	data []byte
}

// Store keeps freshly picked editor images in memory under opaque handles
// until they are published or discarded. One Store per editing session; the
// session registry calls ReleaseAll on teardown so nothing outlives its
// draft.
type Store struct {
	mu      sync.Mutex
	entries map[domain.HandleID]entry
}

func NewStore() *Store {
	return &Store{entries: map[domain.HandleID]entry{}}
}

// Track reads the picked file into memory and returns its handle.
func (s *Store) Track(name string, r io.Reader) (domain.HandleID, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxImageBytes+1))
	if err != nil {
		return "", errors.Wrap(err, "failed to read image")
	}
	if len(data) > maxImageBytes {
		return "", errors.New("image exceeds size limit")
	}
	if len(data) == 0 {
		return "", errors.New("empty image")
	}

	h := domain.HandleID(uuid.New().String())
	s.mu.Lock()
	s.entries[h] = entry{name: name, data: data}
	s.mu.Unlock()
	return h, nil
}

// Open returns the original bytes for upload.
func (s *Store) Open(h domain.HandleID) (io.ReadCloser, string, error) {
	s.mu.Lock()
	e, ok := s.entries[h]
	s.mu.Unlock()
	if !ok {
		return nil, "", ErrHandleNotFound
	}
	return io.NopCloser(bytes.NewReader(e.data)), e.name, nil
}

// Preview returns a downscaled JPEG for the editor canvas, so a freshly
// picked photo does not push megabytes through every preview refresh.
func (s *Store) Preview(h domain.HandleID) ([]byte, string, error) {
	s.mu.Lock()
	e, ok := s.entries[h]
	s.mu.Unlock()
	if !ok {
		return nil, "", ErrHandleNotFound
	}

	img, err := imaging.Decode(bytes.NewReader(e.data), imaging.AutoOrientation(true))
	if err != nil {
		// not decodable as an image; hand back the original bytes
		return e.data, "application/octet-stream", nil
	}
	img = imaging.Fit(img, previewMaxEdge, previewMaxEdge, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, "", errors.Wrap(err, "failed to encode preview")
	}
	return buf.Bytes(), "image/jpeg", nil
}

// Release drops one handle. Safe to call twice; the second call reports
// false.
func (s *Store) Release(h domain.HandleID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[h]; !ok {
		return false
	}
	delete(s.entries, h)
	return true
}

// ReleaseAll empties the store.
func (s *Store) ReleaseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for h := range s.entries {
		delete(s.entries, h)
	}
}

// Live reports the number of tracked handles.
func (s *Store) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

var _ usecase.ImageStore = (*Store)(nil)
