package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"

	cardlink "github.com/cardlink-app/cardlink-web"
)

const (
	defaultTimeout = 10 * time.Second
	publicCacheTTL = 30 * time.Second
)

// Client talks to the external card API. It is the only component that knows
// the API's URL layout; everything above it deals in normalized documents.
// Public profile fetches are cached briefly since they are unauthenticated and
// read-heavy.
type Client struct {
	client    *http.Client
	cache     *cache.Cache
	baseURL   string
	userAgent string
}

func New(baseURL string) *Client {
	httpClient := http.Client{
		Timeout: defaultTimeout,
	}

	c := &Client{
		client:    &httpClient,
		cache:     cache.New(publicCacheTTL, time.Minute),
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: "cardlink-web/1.0",
	}
	httpClient.Transport = c
	return c
}

func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", c.userAgent)
	return http.DefaultTransport.RoundTrip(req)
}

// APIError is a non-2xx response from the card API, with the server's message
// when one was provided.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("card api returned status %d", e.Status)
	}
	return fmt.Sprintf("card api: %s (status %d)", e.Message, e.Status)
}

// IsRejection reports whether the API refused the request as a business-rule
// violation rather than failing.
func (e *APIError) IsRejection() bool {
	return e.Status >= 400 && e.Status < 500
}

// envelope is the API's standard {data: ...} wrapper.
type envelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// FetchCard returns the authenticated user's card, or (nil, nil) when no
// document exists yet. Absence is a normal state, not an error.
func (c *Client) FetchCard(ctx context.Context, token string) (*cardlink.BusinessCardDocument, error) {
	return c.fetchDocument(ctx, c.baseURL+"/api/v1/cards/me", token)
}

// FetchPublicCard returns the card published under a public slug, or
// (nil, nil) when the slug resolves to nothing. Responses are cached for a
// short window.
func (c *Client) FetchPublicCard(ctx context.Context, slug string) (*cardlink.BusinessCardDocument, error) {
	if cached, found := c.cache.Get(slug); found {
		doc := cached.(cardlink.BusinessCardDocument)
		return &doc, nil
	}

	doc, err := c.fetchDocument(ctx, c.baseURL+"/api/v1/profiles/"+slug, "")
	if err != nil || doc == nil {
		return doc, err
	}
	c.cache.Set(slug, *doc, cache.DefaultExpiration)
	return doc, nil
}

// SaveCard posts the multipart payload produced by the form serializer and
// returns the freshly persisted canonical document.
func (c *Client) SaveCard(ctx context.Context, token string, body io.Reader, contentType string) (*cardlink.BusinessCardDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/cards", body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create save request")
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "save request failed")
	}
	defer resp.Body.Close()

	env, err := decodeEnvelope(resp)
	if err != nil {
		return nil, err
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, errors.New("save response carried no document")
	}
	return cardlink.Normalize(env.Data)
}

// FetchIdentity resolves the authenticated account's owner id. Used at login
// to verify the upstream token before minting a session.
func (c *Client) FetchIdentity(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/me", nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to create identity request")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "identity request failed")
	}
	defer resp.Body.Close()

	env, err := decodeEnvelope(resp)
	if err != nil {
		return "", err
	}

	var account struct {
		OwnerID string `json:"user_id"`
	}
	if err := json.Unmarshal(env.Data, &account); err != nil {
		return "", errors.Wrap(err, "malformed identity response")
	}
	if account.OwnerID == "" {
		return "", errors.New("identity response carried no user id")
	}
	return account.OwnerID, nil
}

// CancelSubscription asks the API to cancel the authenticated account's
// subscription at the end of the current period.
func (c *Client) CancelSubscription(ctx context.Context, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/subscription/cancel", nil)
	if err != nil {
		return errors.Wrap(err, "failed to create cancel request")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "cancel request failed")
	}
	defer resp.Body.Close()

	_, err = decodeEnvelope(resp)
	return err
}

// DeleteAccount asks the API to delete the authenticated account.
func (c *Client) DeleteAccount(ctx context.Context, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/v1/account", nil)
	if err != nil {
		return errors.Wrap(err, "failed to create delete request")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "delete request failed")
	}
	defer resp.Body.Close()

	_, err = decodeEnvelope(resp)
	return err
}

func (c *Client) fetchDocument(ctx context.Context, url, token string) (*cardlink.BusinessCardDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch request failed")
	}
	defer resp.Body.Close()

	// the API historically answers both 404 and {data: null} for "no card
	// yet"; either way this is absence, not failure
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}

	env, err := decodeEnvelope(resp)
	if err != nil {
		return nil, err
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, nil
	}
	return cardlink.Normalize(env.Data)
}

func decodeEnvelope(resp *http.Response) (*envelope, error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}

	var env envelope
	if len(raw) > 0 {
		// a non-JSON body on an error status is still a usable message
		_ = json.Unmarshal(raw, &env)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := env.Message
		if msg == "" {
			msg = env.Error
		}
		return nil, &APIError{Status: resp.StatusCode, Message: msg}
	}
	return &env, nil
}
