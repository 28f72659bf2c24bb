package rest

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/cardlink-app/cardlink-web/internal/domain"
	"github.com/cardlink-app/cardlink-web/internal/present/rest/presenter"
	"github.com/cardlink-app/cardlink-web/internal/service"
	"github.com/cardlink-app/cardlink-web/internal/usecase"
)

const maxUploadBytes = 8 << 20

type Handler struct {
	sessions   *service.SessionService
	registry   *service.EditSessionRegistry
	profile    *usecase.ProfileUsecase
	sessionTTL time.Duration
	logger     *zap.Logger
}

func NewHandler(
	sessions *service.SessionService,
	registry *service.EditSessionRegistry,
	profile *usecase.ProfileUsecase,
	sessionTTL time.Duration,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		sessions:   sessions,
		registry:   registry,
		profile:    profile,
		sessionTTL: sessionTTL,
		logger:     logger,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/p/:slug", h.handlePublicProfile)

	e.POST("/api/v1/session", h.handleLogin)
	e.DELETE("/api/v1/session", h.handleLogout)

	e.GET("/api/v1/card", h.handleGetCard)
	e.PATCH("/api/v1/card", h.handlePatchCard)
	e.POST("/api/v1/card/cover", h.handleUploadCover)
	e.DELETE("/api/v1/card/cover", h.handleRemoveCover)
	e.POST("/api/v1/card/avatar", h.handleUploadAvatar)
	e.DELETE("/api/v1/card/avatar", h.handleRemoveAvatar)
	e.POST("/api/v1/card/work", h.handleUploadWork)
	e.DELETE("/api/v1/card/work/:index", h.handleRemoveWork)
	e.POST("/api/v1/card/work/reorder", h.handleReorderWork)
	e.GET("/api/v1/card/images/:handle", h.handleImagePreview)
	e.POST("/api/v1/card/publish", h.handlePublish)
	e.POST("/api/v1/card/reset", h.handleReset)
	e.GET("/api/v1/card/preview", h.handlePreview)
	e.GET("/api/v1/card/preview/live", h.handlePreviewLive)

	e.POST("/api/v1/account/delete", h.handleDeleteRequest)
	e.POST("/api/v1/account/delete/confirm", h.handleDeleteConfirm)
	e.DELETE("/api/v1/account/delete", h.handleDeleteCancel)
	e.POST("/api/v1/subscription/cancel", h.handleCancelPlanRequest)
	e.POST("/api/v1/subscription/cancel/confirm", h.handleCancelPlanConfirm)
	e.DELETE("/api/v1/subscription/cancel", h.handleCancelPlanAbort)
}

// edit resolves the request's editing session, or nil when unauthenticated.
func (h *Handler) edit(c echo.Context) (*service.EditSession, string, string) {
	ctx := c.Request().Context()
	sessionID, ok := ctx.Value(domain.SessionIDCtxKey).(string)
	if !ok || sessionID == "" {
		return nil, "", ""
	}
	token, _ := ctx.Value(domain.APITokenCtxKey).(string)
	ownerID, _ := ctx.Value(domain.OwnerIDCtxKey).(string)
	return h.registry.Acquire(sessionID, ownerID), sessionID, token
}

func (h *Handler) handlePublicProfile(c echo.Context) error {
	ctx := c.Request().Context()

	state, err := h.profile.RenderPublic(ctx, c.Param("slug"))
	if err != nil {
		return presenter.BadGateway(c, err)
	}
	return presenter.OK(c, state)
}

type loginRequest struct {
	Token string `json:"token"`
}

func (h *Handler) handleLogin(c echo.Context) error {
	ctx := c.Request().Context()

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	if req.Token == "" {
		return presenter.BadRequestMessage(c, "token is required")
	}

	cookieValue, ownerID, err := h.sessions.Login(ctx, req.Token)
	if err != nil {
		if errors.Is(err, domain.ValidationError{}) {
			return presenter.Unauthorized(c, "invalid token")
		}
		return presenter.BadGateway(c, err)
	}

	c.SetCookie(&http.Cookie{
		Name:     domain.SessionCookieName,
		Value:    cookieValue,
		Path:     "/",
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return presenter.OK(c, echo.Map{"user_id": ownerID})
}

func (h *Handler) handleLogout(c echo.Context) error {
	ctx := c.Request().Context()

	session, sessionID, _ := h.edit(c)
	if session == nil {
		return presenter.Unauthorized(c, "no session")
	}

	h.registry.Drop(sessionID)
	if err := h.sessions.Logout(ctx, sessionID); err != nil {
		h.logger.Warn("logout cleanup failed", zap.Error(err))
	}

	c.SetCookie(&http.Cookie{
		Name:     domain.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	return presenter.OK(c, echo.Map{"status": "ok"})
}

func (h *Handler) handleGetCard(c echo.Context) error {
	ctx := c.Request().Context()

	session, _, token := h.edit(c)
	if session == nil {
		return presenter.Unauthorized(c, "no session")
	}

	if err := session.Draft.Load(ctx, token); err != nil {
		return presenter.BadGateway(c, err)
	}

	state, flags, hasDoc := session.Draft.State()
	return presenter.OK(c, echo.Map{
		"draft":        state,
		"flags":        flags,
		"has_document": hasDoc,
		"has_changes":  session.Draft.HasChanges(),
	})
}

func (h *Handler) handlePatchCard(c echo.Context) error {
	session, _, _ := h.edit(c)
	if session == nil {
		return presenter.Unauthorized(c, "no session")
	}

	var patch domain.DraftPatch
	if err := c.Bind(&patch); err != nil {
		return presenter.BadRequest(c, err)
	}

	session.Draft.Update(patch)
	return presenter.OK(c, echo.Map{"has_changes": session.Draft.HasChanges()})
}

func (h *Handler) trackUpload(c echo.Context) (domain.HandleID, error) {
	session, _, _ := h.edit(c)
	if session == nil {
		return "", domain.ErrNoSession
	}

	file, err := c.FormFile("image")
	if err != nil {
		return "", err
	}
	if file.Size > maxUploadBytes {
		return "", errors.New("image exceeds size limit")
	}
	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	return session.Draft.Images().Track(file.Filename, src)
}

func (h *Handler) handleUploadCover(c echo.Context) error {
	session, _, _ := h.edit(c)
	if session == nil {
		return presenter.Unauthorized(c, "no session")
	}

	handle, err := h.trackUpload(c)
	if err != nil {
		return presenter.BadRequest(c, err)
	}
	session.Draft.AttachCover(handle)
	return presenter.OK(c, echo.Map{"handle": handle})
}

func (h *Handler) handleRemoveCover(c echo.Context) error {
	session, _, _ := h.edit(c)
	if session == nil {
		return presenter.Unauthorized(c, "no session")
	}
	session.Draft.RemoveCover()
	return presenter.OK(c, echo.Map{"status": "ok"})
}

func (h *Handler) handleUploadAvatar(c echo.Context) error {
	session, _, _ := h.edit(c)
	if session == nil {
		return presenter.Unauthorized(c, "no session")
	}

	handle, err := h.trackUpload(c)
	if err != nil {
		return presenter.BadRequest(c, err)
	}
	session.Draft.AttachAvatar(handle)
	return presenter.OK(c, echo.Map{"handle": handle})
}

func (h *Handler) handleRemoveAvatar(c echo.Context) error {
	session, _, _ := h.edit(c)
	if session == nil {
		return presenter.Unauthorized(c, "no session")
	}
	session.Draft.RemoveAvatar()
	return presenter.OK(c, echo.Map{"status": "ok"})
}

func (h *Handler) handleUploadWork(c echo.Context) error {
	session, _, _ := h.edit(c)
	if session == nil {
		return presenter.Unauthorized(c, "no session")
	}

	handle, err := h.trackUpload(c)
	if err != nil {
		return presenter.BadRequest(c, err)
	}
	session.Draft.AddWorkImage(handle)
	return presenter.OK(c, echo.Map{"handle": handle})
}

func (h *Handler) handleRemoveWork(c echo.Context) error {
	session, _, _ := h.edit(c)
	if session == nil {
		return presenter.Unauthorized(c, "no session")
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid index")
	}
	session.Draft.RemoveWorkImage(index)
	return presenter.OK(c, echo.Map{"status": "ok"})
}

type reorderRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func (h *Handler) handleReorderWork(c echo.Context) error {
	session, _, _ := h.edit(c)
	if session == nil {
		return presenter.Unauthorized(c, "no session")
	}

	var req reorderRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	session.Draft.ReorderWorkImages(req.From, req.To)
	return presenter.OK(c, echo.Map{"status": "ok"})
}

func (h *Handler) handleImagePreview(c echo.Context) error {
	session, _, _ := h.edit(c)
	if session == nil {
		return presenter.Unauthorized(c, "no session")
	}

	data, contentType, err := session.Draft.Images().Preview(domain.HandleID(c.Param("handle")))
	if err != nil {
		return presenter.NotFound(c, "image not found")
	}
	return c.Blob(http.StatusOK, contentType, data)
}

func (h *Handler) handlePublish(c echo.Context) error {
	ctx := c.Request().Context()

	session, _, token := h.edit(c)
	if session == nil {
		return presenter.Unauthorized(c, "no session")
	}

	doc, err := session.Draft.Publish(ctx, token)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNoChanges):
			return presenter.Conflict(c, "nothing to publish")
		case errors.Is(err, domain.ErrPublishInFlight):
			return presenter.Conflict(c, "publish already in progress")
		case errors.Is(err, domain.ValidationError{}):
			var ve domain.ValidationError
			errors.As(err, &ve)
			return presenter.Unprocessable(c, ve.Message)
		case errors.Is(err, domain.ErrMissingOwner):
			h.logger.Error("publish without owner id", zap.Error(err))
			return presenter.InternalError(c, errors.New("publish failed"))
		default:
			return presenter.BadGateway(c, err)
		}
	}
	return presenter.OK(c, echo.Map{"card": doc})
}

func (h *Handler) handleReset(c echo.Context) error {
	session, _, _ := h.edit(c)
	if session == nil {
		return presenter.Unauthorized(c, "no session")
	}
	session.Draft.Reset()
	return presenter.OK(c, echo.Map{"status": "ok"})
}

func (h *Handler) handlePreview(c echo.Context) error {
	session, _, _ := h.edit(c)
	if session == nil {
		return presenter.Unauthorized(c, "no session")
	}
	return presenter.OK(c, session.Draft.Preview())
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handlePreviewLive streams the recomputed preview over a websocket after
// every draft mutation. The read loop only consumes heartbeats; its real job
// is noticing the peer going away.
func (h *Handler) handlePreviewLive(c echo.Context) error {
	session, _, _ := h.edit(c)
	if session == nil {
		return presenter.Unauthorized(c, "no session")
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", zap.Error(err))
		return err
	}
	defer ws.Close()

	updates, cancel := session.Draft.Subscribe()
	defer cancel()

	quit := make(chan struct{})
	go func() {
		defer close(quit)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				var wsErr *websocket.CloseError
				if errors.As(err, &wsErr) {
					if wsErr.Code != websocket.CloseNormalClosure && wsErr.Code != websocket.CloseGoingAway {
						h.logger.Debug("websocket closed", zap.Error(wsErr))
					}
				} else {
					h.logger.Debug("websocket read failed", zap.Error(err))
				}
				return
			}
		}
	}()

	if err := ws.WriteJSON(session.Draft.Preview()); err != nil {
		return nil
	}

	for {
		select {
		case <-quit:
			return nil
		case state, ok := <-updates:
			if !ok {
				return nil
			}
			if err := ws.WriteJSON(state); err != nil {
				h.logger.Debug("websocket write failed", zap.Error(err))
				return nil
			}
		}
	}
}

func (h *Handler) handleDeleteRequest(c echo.Context) error {
	session, _, _ := h.edit(c)
	if session == nil {
		return presenter.Unauthorized(c, "no session")
	}

	deadline := session.Delete.Request()
	return presenter.OK(c, echo.Map{"confirm_before": deadline})
}

func (h *Handler) handleDeleteConfirm(c echo.Context) error {
	ctx := c.Request().Context()

	session, sessionID, token := h.edit(c)
	if session == nil {
		return presenter.Unauthorized(c, "no session")
	}

	if err := session.Delete.Confirm(); err != nil {
		switch {
		case errors.Is(err, service.ErrConfirmExpired):
			return presenter.Conflict(c, "confirmation window expired")
		default:
			return presenter.Conflict(c, "deletion was not requested")
		}
	}

	if err := h.sessions.DeleteAccount(ctx, token); err != nil {
		if errors.Is(err, domain.ValidationError{}) {
			var ve domain.ValidationError
			errors.As(err, &ve)
			return presenter.Unprocessable(c, ve.Message)
		}
		return presenter.BadGateway(c, err)
	}

	h.registry.Drop(sessionID)
	if err := h.sessions.Logout(ctx, sessionID); err != nil {
		h.logger.Warn("session cleanup failed", zap.Error(err))
	}
	c.SetCookie(&http.Cookie{
		Name:     domain.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	return presenter.OK(c, echo.Map{"status": "deleted"})
}

func (h *Handler) handleDeleteCancel(c echo.Context) error {
	session, _, _ := h.edit(c)
	if session == nil {
		return presenter.Unauthorized(c, "no session")
	}
	session.Delete.Cancel()
	return presenter.OK(c, echo.Map{"status": "ok"})
}

func (h *Handler) handleCancelPlanRequest(c echo.Context) error {
	session, _, _ := h.edit(c)
	if session == nil {
		return presenter.Unauthorized(c, "no session")
	}

	deadline := session.CancelPlan.Request()
	return presenter.OK(c, echo.Map{"confirm_before": deadline})
}

func (h *Handler) handleCancelPlanConfirm(c echo.Context) error {
	ctx := c.Request().Context()

	session, _, token := h.edit(c)
	if session == nil {
		return presenter.Unauthorized(c, "no session")
	}

	if err := session.CancelPlan.Confirm(); err != nil {
		switch {
		case errors.Is(err, service.ErrConfirmExpired):
			return presenter.Conflict(c, "confirmation window expired")
		default:
			return presenter.Conflict(c, "cancellation was not requested")
		}
	}

	if err := h.sessions.CancelSubscription(ctx, token); err != nil {
		if errors.Is(err, domain.ValidationError{}) {
			var ve domain.ValidationError
			errors.As(err, &ve)
			return presenter.Unprocessable(c, ve.Message)
		}
		return presenter.BadGateway(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "cancelled"})
}

func (h *Handler) handleCancelPlanAbort(c echo.Context) error {
	session, _, _ := h.edit(c)
	if session == nil {
		return presenter.Unauthorized(c, "no session")
	}
	session.CancelPlan.Cancel()
	return presenter.OK(c, echo.Map{"status": "ok"})
}
