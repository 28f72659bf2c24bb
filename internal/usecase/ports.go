package usecase

import (
	"context"
	"io"

	cardlink "github.com/cardlink-app/cardlink-web"
	"github.com/cardlink-app/cardlink-web/internal/domain"
)

// SaveRequest is everything the form serializer needs to build one publish
// payload. Images resolves the draft's pending handles to their bytes; the
// store is per-session, so it travels with the request.
type SaveRequest struct {
	OwnerID string
	Draft   domain.DraftState
	Flags   domain.RemovalFlags
	Images  ImageOpener
}

// ImageOpener is the read side of ImageStore needed at serialize time.
type ImageOpener interface {
	Open(h domain.HandleID) (io.ReadCloser, string, error)
}

// CardRepository is the seam to the external card API. Implementations return
// normalized documents, (nil, nil) for "no document yet", and the typed domain
// errors for failures.
type CardRepository interface {
	FetchOwn(ctx context.Context, token string) (*cardlink.BusinessCardDocument, error)
	FetchPublic(ctx context.Context, slug string) (*cardlink.BusinessCardDocument, error)
	Save(ctx context.Context, token string, req SaveRequest) (*cardlink.BusinessCardDocument, error)
}

// AccountRepository covers the account-level operations delegated to the API.
type AccountRepository interface {
	FetchIdentity(ctx context.Context, token string) (string, error)
	DeleteAccount(ctx context.Context, token string) error
	CancelSubscription(ctx context.Context, token string) error
}

// ImageStore owns temporary image handles picked in the editor. Every tracked
// handle is released exactly once: individually, or wholesale on publish,
// reset, or session teardown. Releasing an untracked handle is a no-op.
type ImageStore interface {
	ImageOpener
	Track(name string, r io.Reader) (domain.HandleID, error)
	Preview(h domain.HandleID) ([]byte, string, error)
	Release(h domain.HandleID) bool
	ReleaseAll()
	Live() int
}
