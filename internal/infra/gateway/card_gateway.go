package gateway

import (
	"context"

	"github.com/pkg/errors"

	cardlink "github.com/cardlink-app/cardlink-web"
	"github.com/cardlink-app/cardlink-web/client"
	"github.com/cardlink-app/cardlink-web/internal/domain"
	"github.com/cardlink-app/cardlink-web/internal/usecase"
)

// CardGateway adapts the card API client to the usecase ports, translating
// transport failures into the domain error taxonomy: 4xx rejections become
// validation errors carrying the server's message verbatim, everything else
// becomes transient.
type CardGateway struct {
	client *client.Client
}

func NewCardGateway(cl *client.Client) *CardGateway {
	return &CardGateway{client: cl}
}

func (g *CardGateway) FetchOwn(ctx context.Context, token string) (*cardlink.BusinessCardDocument, error) {
	doc, err := g.client.FetchCard(ctx, token)
	if err != nil {
		return nil, classify(err)
	}
	return doc, nil
}

func (g *CardGateway) FetchPublic(ctx context.Context, slug string) (*cardlink.BusinessCardDocument, error) {
	doc, err := g.client.FetchPublicCard(ctx, slug)
	if err != nil {
		return nil, classify(err)
	}
	return doc, nil
}

func (g *CardGateway) Save(ctx context.Context, token string, req usecase.SaveRequest) (*cardlink.BusinessCardDocument, error) {
	body, contentType, err := BuildSaveForm(req)
	if err != nil {
		return nil, err
	}

	doc, err := g.client.SaveCard(ctx, token, body, contentType)
	if err != nil {
		return nil, classify(err)
	}
	return doc, nil
}

func (g *CardGateway) FetchIdentity(ctx context.Context, token string) (string, error) {
	id, err := g.client.FetchIdentity(ctx, token)
	if err != nil {
		return "", classify(err)
	}
	return id, nil
}

func (g *CardGateway) CancelSubscription(ctx context.Context, token string) error {
	if err := g.client.CancelSubscription(ctx, token); err != nil {
		return classify(err)
	}
	return nil
}

func (g *CardGateway) DeleteAccount(ctx context.Context, token string) error {
	if err := g.client.DeleteAccount(ctx, token); err != nil {
		return classify(err)
	}
	return nil
}

func classify(err error) error {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		if apiErr.IsRejection() {
			return domain.ValidationError{Message: apiErr.Message}
		}
		return domain.TransientError{Err: apiErr}
	}
	return domain.TransientError{Err: err}
}

var (
	_ usecase.CardRepository    = (*CardGateway)(nil)
	_ usecase.AccountRepository = (*CardGateway)(nil)
)
