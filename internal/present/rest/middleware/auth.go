package middleware

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/cardlink-app/cardlink-web/internal/domain"
	"github.com/cardlink-app/cardlink-web/internal/service"
)

var tracer = otel.Tracer("auth")

type SessionMiddleware struct {
	sessions *service.SessionService
}

func NewSessionMiddleware(sessions *service.SessionService) *SessionMiddleware {
	return &SessionMiddleware{sessions: sessions}
}

// Restore silently attaches the session to the request context when a valid
// session cookie is present. Requests without one pass through untouched;
// the handlers decide whether a session is required.
func (m *SessionMiddleware) Restore(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "Session.Middleware.Restore")
		defer span.End()

		cookie, err := c.Cookie(domain.SessionCookieName)
		if err == nil && cookie.Value != "" {
			session, err := m.sessions.Authenticate(ctx, cookie.Value)
			if err != nil {
				span.RecordError(errors.Wrap(err, "session restore failed"))
			} else {
				ctx = context.WithValue(ctx, domain.SessionIDCtxKey, session.ID)
				ctx = context.WithValue(ctx, domain.APITokenCtxKey, session.Token)
				ctx = context.WithValue(ctx, domain.OwnerIDCtxKey, session.OwnerID)
				span.SetAttributes(attribute.String("SessionId", session.ID))
			}
		}

		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}
