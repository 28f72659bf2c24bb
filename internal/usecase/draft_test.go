package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strconv"
	"sync"
	"testing"

	cardlink "github.com/cardlink-app/cardlink-web"
	"github.com/cardlink-app/cardlink-web/internal/domain"
)

type mockCardRepo struct {
	mu       sync.Mutex
	doc      *cardlink.BusinessCardDocument
	saveErr  error
	saved    []SaveRequest
	fetchErr error
}

func (m *mockCardRepo) FetchOwn(ctx context.Context, token string) (*cardlink.BusinessCardDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return m.doc, nil
}

func (m *mockCardRepo) FetchPublic(ctx context.Context, slug string) (*cardlink.BusinessCardDocument, error) {
	return m.FetchOwn(ctx, "")
}

func (m *mockCardRepo) Save(ctx context.Context, token string, req SaveRequest) (*cardlink.BusinessCardDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, req)
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	doc := &cardlink.BusinessCardDocument{
		OwnerID:     req.OwnerID,
		MainHeading: req.Draft.MainHeading,
		Visibility:  cardlink.AllVisible(),
	}
	return doc, nil
}

type mockImageStore struct {
	mu   sync.Mutex
	next int
	live map[domain.HandleID]string
}

func newMockImageStore() *mockImageStore {
	return &mockImageStore{live: map[domain.HandleID]string{}}
}

func (m *mockImageStore) Track(name string, r io.Reader) (domain.HandleID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	h := domain.HandleID("h-" + strconv.Itoa(m.next))
	m.live[h] = name
	return h, nil
}

func (m *mockImageStore) Open(h domain.HandleID) (io.ReadCloser, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.live[h]
	if !ok {
		return nil, "", errors.New("handle not found")
	}
	return io.NopCloser(bytes.NewReader([]byte("img"))), name, nil
}

func (m *mockImageStore) Preview(h domain.HandleID) ([]byte, string, error) {
	return []byte("img"), "image/jpeg", nil
}

func (m *mockImageStore) Release(h domain.HandleID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live[h]; !ok {
		return false
	}
	delete(m.live, h)
	return true
}

func (m *mockImageStore) ReleaseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.live = map[domain.HandleID]string{}
}

func (m *mockImageStore) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

func savedDoc() *cardlink.BusinessCardDocument {
	return &cardlink.BusinessCardDocument{
		OwnerID:     "u-1",
		MainHeading: "Hello",
		FullName:    "Ada",
		WorkImages:  []string{"https://cdn/x/a.jpg"},
		Visibility:  cardlink.AllVisible(),
	}
}

func TestDraftHasNoChangesAfterHydrate(t *testing.T) {
	uc := NewDraftUsecase(&mockCardRepo{}, newMockImageStore(), "u-1")
	uc.Hydrate(savedDoc())

	if uc.HasChanges() {
		t.Fatalf("fresh hydrate must not report changes")
	}
}

func TestDraftDetectsFieldChange(t *testing.T) {
	uc := NewDraftUsecase(&mockCardRepo{}, newMockImageStore(), "u-1")
	uc.Hydrate(savedDoc())

	bio := "new bio"
	uc.Update(domain.DraftPatch{Bio: &bio})
	if !uc.HasChanges() {
		t.Fatalf("field edit must be detected")
	}

	empty := ""
	uc.Update(domain.DraftPatch{Bio: &empty})
	if uc.HasChanges() {
		t.Fatalf("reverting the edit must clear the change flag")
	}
}

func TestDraftDetectsListAndVisibilityChanges(t *testing.T) {
	uc := NewDraftUsecase(&mockCardRepo{}, newMockImageStore(), "u-1")
	uc.Hydrate(savedDoc())

	services := []cardlink.ServiceEntry{{Name: "Cut", Price: "30"}}
	uc.Update(domain.DraftPatch{Services: &services})
	if !uc.HasChanges() {
		t.Fatalf("list growth must be detected")
	}

	uc.Reset()
	vis := cardlink.AllVisible()
	vis.Reviews = false
	uc.Update(domain.DraftPatch{Visibility: &vis})
	if !uc.HasChanges() {
		t.Fatalf("visibility flip must be detected")
	}
}

func TestDraftClampsRatingsOnUpdate(t *testing.T) {
	uc := NewDraftUsecase(&mockCardRepo{}, newMockImageStore(), "u-1")

	reviews := []cardlink.ReviewEntry{{Name: "A", Rating: 7}, {Name: "B", Rating: -2}}
	uc.Update(domain.DraftPatch{Reviews: &reviews})

	state, _, _ := uc.State()
	if state.Reviews[0].Rating != 5 || state.Reviews[1].Rating != 0 {
		t.Fatalf("ratings not clamped: %+v", state.Reviews)
	}
}

func TestChangeDetectionSettlesOnEncodings(t *testing.T) {
	same := encodeProjection(comparableProjection(domain.DraftFromDocument(savedDoc())))
	again := encodeProjection(comparableProjection(domain.DraftFromDocument(savedDoc())))
	if !bytes.Equal(same, again) {
		t.Fatalf("equal drafts must encode identically")
	}
	if fingerprint(same) != fingerprint(again) {
		t.Fatalf("equal encodings must share a fingerprint")
	}

	other := savedDoc()
	other.Bio = "changed"
	diff := encodeProjection(comparableProjection(domain.DraftFromDocument(other)))
	if bytes.Equal(same, diff) {
		t.Fatalf("differing drafts must encode differently")
	}
}

func TestDraftResetMatchesFreshHydrate(t *testing.T) {
	images := newMockImageStore()
	uc := NewDraftUsecase(&mockCardRepo{}, images, "u-1")
	uc.Hydrate(savedDoc())

	h, _ := images.Track("new.jpg", bytes.NewReader([]byte("x")))
	uc.AttachCover(h)
	heading := "edited"
	uc.Update(domain.DraftPatch{MainHeading: &heading})

	uc.Reset()

	if uc.HasChanges() {
		t.Fatalf("reset must return to the snapshot")
	}
	if images.Live() != 0 {
		t.Fatalf("reset must release pending handles, %d live", images.Live())
	}

	fresh := NewDraftUsecase(&mockCardRepo{}, newMockImageStore(), "u-1")
	fresh.Hydrate(savedDoc())
	got, _, _ := uc.State()
	want, _, _ := fresh.State()
	if got.MainHeading != want.MainHeading || got.CoverPhoto != want.CoverPhoto {
		t.Fatalf("reset state diverged: got %+v want %+v", got, want)
	}
}

func TestDraftAttachReplacesPendingHandle(t *testing.T) {
	images := newMockImageStore()
	uc := NewDraftUsecase(&mockCardRepo{}, images, "u-1")

	h1, _ := images.Track("a.jpg", bytes.NewReader([]byte("a")))
	uc.AttachCover(h1)
	h2, _ := images.Track("b.jpg", bytes.NewReader([]byte("b")))
	uc.AttachCover(h2)

	if images.Live() != 1 {
		t.Fatalf("replaced handle must be released, %d live", images.Live())
	}
	state, _, _ := uc.State()
	if state.CoverPhoto.Handle != h2 {
		t.Fatalf("newest handle must win, got %s", state.CoverPhoto.Handle)
	}
}

func TestDraftRemoveCoverSemantics(t *testing.T) {
	images := newMockImageStore()
	uc := NewDraftUsecase(&mockCardRepo{}, images, "u-1")
	doc := savedDoc()
	doc.CoverPhoto = "https://cdn/x/cover.jpg"
	uc.Hydrate(doc)

	// removing a durable photo raises the flag
	uc.RemoveCover()
	_, flags, _ := uc.State()
	if !flags.CoverPhotoRemoved {
		t.Fatalf("durable removal must raise the flag")
	}

	// removing only a pending pick does not
	uc.Reset()
	h, _ := images.Track("new.jpg", bytes.NewReader([]byte("x")))
	doc2 := savedDoc()
	doc2.CoverPhoto = ""
	uc.Hydrate(doc2)
	uc.AttachCover(h)
	uc.RemoveCover()
	_, flags, _ = uc.State()
	if flags.CoverPhotoRemoved {
		t.Fatalf("dropping an unsaved pick must not raise the flag")
	}
	if images.Live() != 0 {
		t.Fatalf("dropped pick must be released")
	}
}

func TestDraftRemoveWorkImageReleasesHandle(t *testing.T) {
	images := newMockImageStore()
	uc := NewDraftUsecase(&mockCardRepo{}, images, "u-1")
	uc.Hydrate(savedDoc())

	h, _ := images.Track("w.jpg", bytes.NewReader([]byte("w")))
	uc.AddWorkImage(h)
	state, _, _ := uc.State()
	if len(state.WorkImages) != 2 {
		t.Fatalf("expected 2 work images, got %d", len(state.WorkImages))
	}

	uc.RemoveWorkImage(1)
	if images.Live() != 0 {
		t.Fatalf("removed entry's handle must be released")
	}

	// out-of-range indices are ignored
	uc.RemoveWorkImage(99)
	state, _, _ = uc.State()
	if len(state.WorkImages) != 1 {
		t.Fatalf("expected 1 work image, got %d", len(state.WorkImages))
	}
}

func TestDraftReorderWorkImages(t *testing.T) {
	uc := NewDraftUsecase(&mockCardRepo{}, newMockImageStore(), "u-1")
	doc := savedDoc()
	doc.WorkImages = []string{"a", "b", "c"}
	uc.Hydrate(doc)

	uc.ReorderWorkImages(2, 0)
	state, _, _ := uc.State()
	got := []string{state.WorkImages[0].URL, state.WorkImages[1].URL, state.WorkImages[2].URL}
	if got[0] != "c" || got[1] != "a" || got[2] != "b" {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestDraftPublishRejectsNoChanges(t *testing.T) {
	uc := NewDraftUsecase(&mockCardRepo{}, newMockImageStore(), "u-1")
	uc.Hydrate(savedDoc())

	_, err := uc.Publish(context.Background(), "tok")
	if !errors.Is(err, domain.ErrNoChanges) {
		t.Fatalf("expected ErrNoChanges, got %v", err)
	}
}

func TestDraftPublishRehydratesAndReleases(t *testing.T) {
	repo := &mockCardRepo{}
	images := newMockImageStore()
	uc := NewDraftUsecase(repo, images, "u-1")
	uc.Hydrate(savedDoc())

	h, _ := images.Track("new.jpg", bytes.NewReader([]byte("x")))
	uc.AttachCover(h)
	heading := "published"
	uc.Update(domain.DraftPatch{MainHeading: &heading})

	doc, err := uc.Publish(context.Background(), "tok")
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if doc.MainHeading != "published" {
		t.Fatalf("canonical document not returned: %+v", doc)
	}
	if images.Live() != 0 {
		t.Fatalf("publish must release handles, %d live", images.Live())
	}
	if uc.HasChanges() {
		t.Fatalf("rehydrated draft must be clean")
	}
	if len(repo.saved) != 1 || repo.saved[0].OwnerID != "u-1" {
		t.Fatalf("unexpected save requests %+v", repo.saved)
	}
}

func TestDraftPublishFailureLeavesDraftUntouched(t *testing.T) {
	repo := &mockCardRepo{saveErr: domain.ValidationError{Message: "email is invalid"}}
	images := newMockImageStore()
	uc := NewDraftUsecase(repo, images, "u-1")
	uc.Hydrate(savedDoc())

	heading := "edited"
	uc.Update(domain.DraftPatch{MainHeading: &heading})
	h, _ := images.Track("new.jpg", bytes.NewReader([]byte("x")))
	uc.AttachCover(h)

	_, err := uc.Publish(context.Background(), "tok")
	var ve domain.ValidationError
	if !errors.As(err, &ve) || ve.Message != "email is invalid" {
		t.Fatalf("rejection not surfaced verbatim: %v", err)
	}

	state, _, _ := uc.State()
	if state.MainHeading != "edited" || state.CoverPhoto.Handle != h {
		t.Fatalf("failed publish must not discard the draft: %+v", state)
	}
	if images.Live() != 1 {
		t.Fatalf("failed publish must keep handles alive")
	}
}

func TestDraftPublishWithoutOwner(t *testing.T) {
	uc := NewDraftUsecase(&mockCardRepo{}, newMockImageStore(), "")

	heading := "x"
	uc.Update(domain.DraftPatch{MainHeading: &heading})

	_, err := uc.Publish(context.Background(), "tok")
	if !errors.Is(err, domain.ErrMissingOwner) {
		t.Fatalf("expected ErrMissingOwner, got %v", err)
	}
}

func TestDraftLoadKeepsStateOnFetchFailure(t *testing.T) {
	repo := &mockCardRepo{}
	uc := NewDraftUsecase(repo, newMockImageStore(), "u-1")
	uc.Hydrate(savedDoc())

	heading := "edited"
	uc.Update(domain.DraftPatch{MainHeading: &heading})

	repo.fetchErr = domain.TransientError{Err: errors.New("boom")}
	if err := uc.Load(context.Background(), "tok"); err == nil {
		t.Fatalf("expected fetch error")
	}

	state, _, _ := uc.State()
	if state.MainHeading != "edited" {
		t.Fatalf("failed load must leave the draft untouched")
	}
}

// gatedRepo hands control of each FetchOwn/Save response to the test: every
// call sends a reply channel on calls and blocks until the test answers.
type gatedRepo struct {
	fetches chan chan *cardlink.BusinessCardDocument
	saves   chan chan *cardlink.BusinessCardDocument
}

func newGatedRepo() *gatedRepo {
	return &gatedRepo{
		fetches: make(chan chan *cardlink.BusinessCardDocument, 4),
		saves:   make(chan chan *cardlink.BusinessCardDocument, 4),
	}
}

func (g *gatedRepo) FetchOwn(ctx context.Context, token string) (*cardlink.BusinessCardDocument, error) {
	reply := make(chan *cardlink.BusinessCardDocument)
	g.fetches <- reply
	return <-reply, nil
}

func (g *gatedRepo) FetchPublic(ctx context.Context, slug string) (*cardlink.BusinessCardDocument, error) {
	return nil, nil
}

func (g *gatedRepo) Save(ctx context.Context, token string, req SaveRequest) (*cardlink.BusinessCardDocument, error) {
	reply := make(chan *cardlink.BusinessCardDocument)
	g.saves <- reply
	return <-reply, nil
}

func TestDraftLoadDiscardsSupersededFetch(t *testing.T) {
	repo := newGatedRepo()
	uc := NewDraftUsecase(repo, newMockImageStore(), "u-1")

	done1 := make(chan error, 1)
	go func() { done1 <- uc.Load(context.Background(), "tok") }()
	first := <-repo.fetches

	done2 := make(chan error, 1)
	go func() { done2 <- uc.Load(context.Background(), "tok") }()
	second := <-repo.fetches

	newer := savedDoc()
	newer.MainHeading = "newer"
	second <- newer
	if err := <-done2; err != nil {
		t.Fatalf("load failed: %v", err)
	}

	stale := savedDoc()
	stale.MainHeading = "stale"
	first <- stale
	if err := <-done1; err != nil {
		t.Fatalf("load failed: %v", err)
	}

	state, _, _ := uc.State()
	if state.MainHeading != "newer" {
		t.Fatalf("slow fetch clobbered newer state: %q", state.MainHeading)
	}
}

func TestDraftPublishRejectsWhileInFlight(t *testing.T) {
	repo := newGatedRepo()
	uc := NewDraftUsecase(repo, newMockImageStore(), "u-1")

	heading := "x"
	uc.Update(domain.DraftPatch{MainHeading: &heading})

	done := make(chan error, 1)
	go func() {
		_, err := uc.Publish(context.Background(), "tok")
		done <- err
	}()
	reply := <-repo.saves

	if _, err := uc.Publish(context.Background(), "tok"); !errors.Is(err, domain.ErrPublishInFlight) {
		t.Fatalf("expected ErrPublishInFlight, got %v", err)
	}

	reply <- &cardlink.BusinessCardDocument{OwnerID: "u-1", MainHeading: heading, Visibility: cardlink.AllVisible()}
	if err := <-done; err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if uc.publishing.Load() {
		t.Fatalf("publish gate must be released after completion")
	}
}

func TestDraftSubscribeReceivesUpdates(t *testing.T) {
	uc := NewDraftUsecase(&mockCardRepo{}, newMockImageStore(), "u-1")
	updates, cancel := uc.Subscribe()
	defer cancel()

	heading := "live"
	uc.Update(domain.DraftPatch{MainHeading: &heading})

	state := <-updates
	if state.Phase != PhaseLive {
		t.Fatalf("expected live preview, got %s", state.Phase)
	}
}

func TestDraftCloseReleasesEverything(t *testing.T) {
	images := newMockImageStore()
	uc := NewDraftUsecase(&mockCardRepo{}, images, "u-1")

	h, _ := images.Track("a.jpg", bytes.NewReader([]byte("a")))
	uc.AttachCover(h)
	updates, _ := uc.Subscribe()

	uc.Close()

	if images.Live() != 0 {
		t.Fatalf("close must release handles")
	}
	if _, ok := <-updates; ok {
		t.Fatalf("close must detach subscribers")
	}
}
