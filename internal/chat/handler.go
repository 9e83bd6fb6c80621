package chat

import (
	"net/http"
	"net/url"
	"strings"

	"letscrap-backend/internal/auth"
	"letscrap-backend/internal/config"
	"letscrap-backend/internal/logging"
	"letscrap-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
)

// Server upgrades authenticated HTTP requests to chat sockets.
type Server struct {
	cfg      *config.Config
	hub      *Hub
	dispatch *dispatcher
	upgrader websocket.Upgrader
}

func NewServer(cfg *config.Config, hub *Hub) *Server {
	s := &Server{
		cfg:      cfg,
		hub:      hub,
		dispatch: &dispatcher{hub: hub},
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// checkOrigin allows non-browser clients (no Origin) and the configured CORS origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range s.cfg.Origins() {
		if allowed == "*" || strings.EqualFold(strings.TrimRight(allowed, "/"), u.Scheme+"://"+u.Host) {
			return true
		}
	}
	return false
}

func tokenFrom(r *http.Request) (string, bool) {
	if t := strings.TrimSpace(r.URL.Query().Get("token")); t != "" {
		return t, true
	}
	return auth.BearerToken(r.Header.Get("Authorization"))
}

// ServeHTTP handles GET /socket.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tokenStr, ok := tokenFrom(r)
	if !ok {
		http.Error(w, "Authentication token missing", http.StatusUnauthorized)
		return
	}
	claims, err := auth.ParseToken(s.cfg.JWTSecret, tokenStr)
	if err != nil {
		http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		logging.Debug().Err(err).Msg("chat upgrade failed")
		return
	}

	c := NewClient(s.hub, conn, claims.UserID, claims.Name, claims.Role)
	if !s.hub.register(c) {
		_ = conn.Close()
		return
	}
	c.start(s.dispatch.handle)
}

// Handler returns the mux served on the chat port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/socket", s)
	return mux
}

// GET /api/messages/:requestId
func HistoryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		me, err := auth.Current(c)
		if err != nil {
			return err
		}
		id, err := c.ParamsInt("requestId")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request id")
		}

		if err := Authorize(me.UserID, uint(id)); err != nil {
			switch err {
			case ErrRequestNotFound:
				return fiber.NewError(fiber.StatusNotFound, clientMessages[err])
			case ErrNotParticipant:
				if !me.Is(models.RoleAdmin) {
					return fiber.NewError(fiber.StatusForbidden, clientMessages[err])
				}
			default:
				return fiber.NewError(fiber.StatusInternalServerError, "Could not load chat")
			}
		}

		history, err := History(uint(id))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load chat")
		}
		return c.JSON(history)
	}
}
