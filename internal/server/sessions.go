package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/newsie/models"
	"github.com/mohammad-safakhou/newsie/session"
)

// Responder produces the assistant reply for one user message.
type Responder interface {
	Answer(ctx context.Context, query string, topK int) (string, error)
}

// SessionsHandler exposes the chat session API: session lifecycle, the
// implicit default chat, and named chats with their message logs.
type SessionsHandler struct {
	Sessions  *session.Store
	Responder Responder
	TopK      int
}

func (h *SessionsHandler) Register(g *echo.Group) {
	g.GET("/:id", h.getSession)
	g.POST("/:id", h.postDefaultTurn)
	g.DELETE("/:id", h.deleteSession)
	g.POST("/:id/init", h.initSession)
	g.GET("/:id/chats", h.listChats)
	g.POST("/:id/chats", h.createChat)
	g.GET("/:id/chats/:chatId", h.getChat)
	g.POST("/:id/chats/:chatId", h.postChatTurn)
	g.DELETE("/:id/chats/:chatId", h.deleteChat)
}

func (h *SessionsHandler) getSession(c echo.Context) error {
	sess, err := h.Sessions.Load(c.Request().Context(), c.Param("id"))
	if err != nil {
		return sessionHTTPError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

// postDefaultTurn answers against the reserved default chat, creating it on
// first use.
func (h *SessionsHandler) postDefaultTurn(c echo.Context) error {
	return h.turn(c, session.DefaultChatID, false)
}

func (h *SessionsHandler) deleteSession(c echo.Context) error {
	if err := h.Sessions.Clear(c.Request().Context(), c.Param("id")); err != nil {
		return sessionHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "cleared"})
}

func (h *SessionsHandler) initSession(c echo.Context) error {
	created, err := h.Sessions.Initialize(c.Request().Context(), c.Param("id"))
	if err != nil {
		return sessionHTTPError(err)
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	return c.JSON(code, map[string]bool{"created": created})
}

func (h *SessionsHandler) listChats(c echo.Context) error {
	summaries, err := h.Sessions.ListChats(c.Request().Context(), c.Param("id"))
	if err != nil {
		return sessionHTTPError(err)
	}
	return c.JSON(http.StatusOK, summaries)
}

func (h *SessionsHandler) createChat(c echo.Context) error {
	var req struct {
		Title string `json:"title"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	chat, err := h.Sessions.CreateChat(c.Request().Context(), c.Param("id"), req.Title)
	if err != nil {
		return sessionHTTPError(err)
	}
	return c.JSON(http.StatusCreated, models.ChatSummary{
		ChatID:    chat.ChatID,
		Title:     chat.Title,
		CreatedAt: chat.CreatedAt,
		UpdatedAt: chat.UpdatedAt,
	})
}

func (h *SessionsHandler) getChat(c echo.Context) error {
	chat, err := h.Sessions.GetChat(c.Request().Context(), c.Param("id"), c.Param("chatId"))
	if err != nil {
		return sessionHTTPError(err)
	}
	return c.JSON(http.StatusOK, chat)
}

// postChatTurn answers against a named chat. Unlike the default chat, an
// unknown chat id is a 404 and nothing is created.
func (h *SessionsHandler) postChatTurn(c echo.Context) error {
	return h.turn(c, c.Param("chatId"), true)
}

func (h *SessionsHandler) deleteChat(c echo.Context) error {
	if err := h.Sessions.DeleteChat(c.Request().Context(), c.Param("id"), c.Param("chatId")); err != nil {
		return sessionHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "deleted"})
}

// turn runs one retrieval-augmented exchange and persists the user/bot pair.
// When mustExist is set the chat is checked before the model is invoked, so
// a missing chat never costs an embedding call.
func (h *SessionsHandler) turn(c echo.Context, chatID string, mustExist bool) error {
	var req struct {
		Message string `json:"message"`
	}
	if err := c.Bind(&req); err != nil || req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message required")
	}

	ctx := c.Request().Context()
	sessionID := c.Param("id")

	if mustExist {
		if _, err := h.Sessions.GetChat(ctx, sessionID, chatID); err != nil {
			return sessionHTTPError(err)
		}
	}

	answer, err := h.Responder.Answer(ctx, req.Message, h.TopK)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "error processing chat message")
	}
	turnsTotal.WithLabelValues(turnOutcome(answer)).Inc()

	if err := h.Sessions.AppendTurn(ctx, sessionID, chatID, req.Message, answer); err != nil {
		return sessionHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"answer": answer})
}

// sessionHTTPError maps store errors onto status codes: unavailable storage
// is a 503, a missing chat a 404, anything else a 500.
func sessionHTTPError(err error) error {
	switch {
	case errors.Is(err, models.ErrStorageUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "session storage unavailable")
	case errors.Is(err, models.ErrChatNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "chat not found")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
