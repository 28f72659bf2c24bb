package usecase

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"

	cardlink "github.com/cardlink-app/cardlink-web"
	"github.com/cardlink-app/cardlink-web/internal/domain"
)

// DraftUsecase owns the editable draft for one editing session: hydration
// from the server document, editor mutations, change detection against the
// last-persisted snapshot, and the publish flow. All mutations go through it
// so temporary image handles have a single release authority.
type DraftUsecase struct {
	repo   CardRepository
	images ImageStore

	mu          sync.Mutex
	state       domain.DraftState
	flags       domain.RemovalFlags
	snapshot    domain.DraftState
	snapshotRaw []byte
	snapshotFP  uint64
	hasDoc      bool
	ownerID     string
	slug        string

	hydrateSeq atomic.Uint64
	publishing atomic.Bool

	subMu   sync.Mutex
	subs    map[int]chan RenderState
	nextSub int
	closed  bool
}

func NewDraftUsecase(repo CardRepository, images ImageStore, ownerID string) *DraftUsecase {
	u := &DraftUsecase{
		repo:    repo,
		images:  images,
		ownerID: ownerID,
		subs:    map[int]chan RenderState{},
	}
	u.Hydrate(nil)
	return u
}

// Images exposes the session's handle store (the handler serves previews and
// tracks uploads through it).
func (u *DraftUsecase) Images() ImageStore { return u.images }

// Load fetches the user's card and hydrates the draft. A fetch superseded by
// a newer Load is discarded on arrival so a slow response can never clobber
// newer state. On failure the draft is left exactly as it was.
func (u *DraftUsecase) Load(ctx context.Context, token string) error {
	seq := u.hydrateSeq.Add(1)

	doc, err := u.repo.FetchOwn(ctx, token)
	if err != nil {
		return err
	}
	if seq != u.hydrateSeq.Load() {
		return nil
	}

	u.Hydrate(doc)
	return nil
}

// Hydrate replaces the draft wholesale from a fetched document (nil resets to
// empty defaults), snapshots it for change detection and reset, and clears
// the removal flags. It deliberately does not release previously tracked
// handles: a handle may still be visually in use during the transition, so
// release stays with the caller.
func (u *DraftUsecase) Hydrate(doc *cardlink.BusinessCardDocument) {
	u.mu.Lock()
	u.state = domain.DraftFromDocument(doc)
	u.snapshot = u.state.Clone()
	u.snapshotRaw = encodeProjection(comparableProjection(u.snapshot))
	u.snapshotFP = fingerprint(u.snapshotRaw)
	u.flags = domain.RemovalFlags{}
	u.hasDoc = doc != nil
	if doc != nil {
		if doc.OwnerID != "" {
			u.ownerID = doc.OwnerID
		}
		u.slug = doc.Slug
	}
	u.mu.Unlock()

	u.notify()
}

// Update shallow-merges a patch into the draft. No validation happens here;
// that is the serializer's job at publish time. Ratings are the one
// exception: they are clamped on every write.
func (u *DraftUsecase) Update(patch domain.DraftPatch) {
	u.mu.Lock()
	mergePatch(&u.state, patch)
	for i := range u.state.Reviews {
		u.state.Reviews[i].Rating = cardlink.ClampRating(u.state.Reviews[i].Rating)
	}
	u.mu.Unlock()

	u.notify()
}

// Reset reverts to the last-hydrated snapshot (or empty defaults) and
// releases every temporary handle created since.
func (u *DraftUsecase) Reset() {
	u.mu.Lock()
	u.images.ReleaseAll()
	u.state = u.snapshot.Clone()
	u.flags = domain.RemovalFlags{}
	u.mu.Unlock()

	u.notify()
}

// AttachCover points the cover slot at a freshly tracked handle, replacing
// (and releasing) any previously pending one.
func (u *DraftUsecase) AttachCover(h domain.HandleID) {
	u.mu.Lock()
	old := u.state.CoverPhoto.Handle
	u.state.CoverPhoto.Handle = h
	u.flags.CoverPhotoRemoved = false
	u.mu.Unlock()

	if old != "" {
		u.images.Release(old)
	}
	u.notify()
}

// RemoveCover clears the cover slot. Clearing a durable URL raises the
// removal flag so the server can tell "deleted" from "untouched"; a pending
// local pick is simply released.
func (u *DraftUsecase) RemoveCover() {
	u.mu.Lock()
	pending := u.state.CoverPhoto.Handle
	hadURL := u.state.CoverPhoto.URL != ""
	u.state.CoverPhoto = domain.ImageSlot{}
	if hadURL {
		u.flags.CoverPhotoRemoved = true
	}
	u.mu.Unlock()

	if pending != "" {
		u.images.Release(pending)
	}
	u.notify()
}

func (u *DraftUsecase) AttachAvatar(h domain.HandleID) {
	u.mu.Lock()
	old := u.state.Avatar.Handle
	u.state.Avatar.Handle = h
	u.flags.AvatarRemoved = false
	u.mu.Unlock()

	if old != "" {
		u.images.Release(old)
	}
	u.notify()
}

func (u *DraftUsecase) RemoveAvatar() {
	u.mu.Lock()
	pending := u.state.Avatar.Handle
	hadURL := u.state.Avatar.URL != ""
	u.state.Avatar = domain.ImageSlot{}
	if hadURL {
		u.flags.AvatarRemoved = true
	}
	u.mu.Unlock()

	if pending != "" {
		u.images.Release(pending)
	}
	u.notify()
}

// AddWorkImage appends a freshly tracked handle to the gallery.
func (u *DraftUsecase) AddWorkImage(h domain.HandleID) {
	u.mu.Lock()
	u.state.WorkImages = append(u.state.WorkImages, domain.WorkImage{Handle: h})
	u.mu.Unlock()

	u.notify()
}

// RemoveWorkImage drops a gallery entry by index, releasing its handle when
// the entry was a local pick.
func (u *DraftUsecase) RemoveWorkImage(index int) {
	u.mu.Lock()
	if index < 0 || index >= len(u.state.WorkImages) {
		u.mu.Unlock()
		return
	}
	removed := u.state.WorkImages[index]
	u.state.WorkImages = append(u.state.WorkImages[:index], u.state.WorkImages[index+1:]...)
	u.mu.Unlock()

	if removed.Handle != "" {
		u.images.Release(removed.Handle)
	}
	u.notify()
}

// ReorderWorkImages moves the entry at from to position to.
func (u *DraftUsecase) ReorderWorkImages(from, to int) {
	u.mu.Lock()
	n := len(u.state.WorkImages)
	if from < 0 || from >= n || to < 0 || to >= n || from == to {
		u.mu.Unlock()
		return
	}
	entry := u.state.WorkImages[from]
	rest := append(u.state.WorkImages[:from], u.state.WorkImages[from+1:]...)
	u.state.WorkImages = append(rest[:to], append([]domain.WorkImage{entry}, rest[to:]...)...)
	u.mu.Unlock()

	u.notify()
}

// HasChanges reports whether publishing would do anything: a pending file, a
// raised removal flag, or any value difference against the snapshot.
func (u *DraftUsecase) HasChanges() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.changedLocked()
}

func (u *DraftUsecase) changedLocked() bool {
	if u.state.HasPendingFiles() || u.flags.Any() {
		return true
	}
	raw := encodeProjection(comparableProjection(u.state))
	if fingerprint(raw) != u.snapshotFP {
		return true
	}
	// a fingerprint match could still be a collision; the encodings decide
	return !bytes.Equal(raw, u.snapshotRaw)
}

// State returns a defensive copy of the draft plus its bookkeeping.
func (u *DraftUsecase) State() (domain.DraftState, domain.RemovalFlags, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state.Clone(), u.flags, u.hasDoc
}

// HasDocument reports whether the user has ever saved a card.
func (u *DraftUsecase) HasDocument() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.hasDoc
}

// Publish serializes the draft, saves it, and re-hydrates from the canonical
// response. Only one publish may run at a time for a draft; failures leave
// the draft untouched so the user can correct and resubmit.
func (u *DraftUsecase) Publish(ctx context.Context, token string) (*cardlink.BusinessCardDocument, error) {
	if !u.publishing.CompareAndSwap(false, true) {
		return nil, domain.ErrPublishInFlight
	}
	defer u.publishing.Store(false)

	u.mu.Lock()
	if !u.changedLocked() {
		u.mu.Unlock()
		return nil, domain.ErrNoChanges
	}
	req := SaveRequest{
		OwnerID: u.ownerID,
		Draft:   u.state.Clone(),
		Flags:   u.flags,
		Images:  u.images,
	}
	u.mu.Unlock()

	if req.OwnerID == "" {
		return nil, domain.ErrMissingOwner
	}

	doc, err := u.repo.Save(ctx, token, req)
	if err != nil {
		return nil, err
	}

	// handles are superseded by the durable URLs in the response
	u.images.ReleaseAll()
	u.Hydrate(doc)
	return doc, nil
}

// Preview computes the editor's live preview render state.
func (u *DraftUsecase) Preview() RenderState {
	u.mu.Lock()
	state := u.state.Clone()
	hasDoc := u.hasDoc
	u.mu.Unlock()
	return BuildPreview(state, hasDoc)
}

// Subscribe returns a channel receiving the recomputed preview after every
// draft mutation, plus a cancel function. Slow consumers miss intermediate
// states rather than blocking the editor.
func (u *DraftUsecase) Subscribe() (<-chan RenderState, func()) {
	u.subMu.Lock()
	defer u.subMu.Unlock()

	ch := make(chan RenderState, 4)
	if u.closed {
		close(ch)
		return ch, func() {}
	}
	id := u.nextSub
	u.nextSub++
	u.subs[id] = ch

	return ch, func() {
		u.subMu.Lock()
		defer u.subMu.Unlock()
		if sub, ok := u.subs[id]; ok {
			delete(u.subs, id)
			close(sub)
		}
	}
}

func (u *DraftUsecase) notify() {
	u.subMu.Lock()
	if u.closed || len(u.subs) == 0 {
		u.subMu.Unlock()
		return
	}
	preview := u.Preview()
	for _, ch := range u.subs {
		select {
		case ch <- preview:
		default:
		}
	}
	u.subMu.Unlock()
}

// Close tears the session down: every live handle is released and all preview
// subscribers are detached.
func (u *DraftUsecase) Close() {
	u.subMu.Lock()
	if !u.closed {
		u.closed = true
		for id, ch := range u.subs {
			delete(u.subs, id)
			close(ch)
		}
	}
	u.subMu.Unlock()

	u.images.ReleaseAll()
}

func mergePatch(state *domain.DraftState, patch domain.DraftPatch) {
	if patch.Theme != nil {
		state.Theme = *patch.Theme
	}
	if patch.Font != nil {
		state.Font = *patch.Font
	}
	if patch.Alignment != nil {
		state.Alignment = *patch.Alignment
	}
	if patch.ButtonColor != nil {
		state.ButtonColor = *patch.ButtonColor
	}
	if patch.AboutLayout != nil {
		state.AboutLayout = *patch.AboutLayout
	}
	if patch.MainHeading != nil {
		state.MainHeading = *patch.MainHeading
	}
	if patch.SubHeading != nil {
		state.SubHeading = *patch.SubHeading
	}
	if patch.FullName != nil {
		state.FullName = *patch.FullName
	}
	if patch.JobTitle != nil {
		state.JobTitle = *patch.JobTitle
	}
	if patch.Bio != nil {
		state.Bio = *patch.Bio
	}
	if patch.WorkDisplay != nil {
		state.WorkDisplay = *patch.WorkDisplay
	}
	if patch.Services != nil {
		state.Services = append([]cardlink.ServiceEntry(nil), (*patch.Services)...)
	}
	if patch.ServicesDisplay != nil {
		state.ServicesDisplay = *patch.ServicesDisplay
	}
	if patch.Reviews != nil {
		state.Reviews = append([]cardlink.ReviewEntry(nil), (*patch.Reviews)...)
	}
	if patch.ReviewsDisplay != nil {
		state.ReviewsDisplay = *patch.ReviewsDisplay
	}
	if patch.Email != nil {
		state.Email = *patch.Email
	}
	if patch.Phone != nil {
		state.Phone = *patch.Phone
	}
	if patch.Social != nil {
		state.Social = *patch.Social
	}
	if patch.Visibility != nil {
		state.Visibility = *patch.Visibility
	}
	if patch.SectionOrder != nil {
		state.SectionOrder = cardlink.NormalizeSectionOrder(*patch.SectionOrder)
	}
}
