package domain

type contextKey string

const (
	// SessionIDCtxKey carries the editing-session id once the session
	// middleware has validated the cookie.
	SessionIDCtxKey contextKey = "cl-sessionId"

	// APITokenCtxKey carries the upstream card-API bearer token for the
	// authenticated requester.
	APITokenCtxKey contextKey = "cl-apiToken"

	// OwnerIDCtxKey carries the authenticated account's owner id.
	OwnerIDCtxKey contextKey = "cl-ownerId"
)

// SessionCookieName is the browser cookie holding the signed session token.
const SessionCookieName = "cardlink_session"
