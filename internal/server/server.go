package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"taskboard/internal/board"
	"taskboard/internal/models"
	"taskboard/internal/storage/journal"
)

// Journal is the move journal as the HTTP layer uses it.
type Journal interface {
	board.Journal
	ListMoves(ctx context.Context, f journal.Filter) ([]models.MoveRecord, error)
}

// Options configures a Server.
type Options struct {
	// Remotes maps each task kind to the API client serving it.
	Remotes map[models.TaskKind]board.Remote
	// Journal may be nil, which disables move recording and /api/moves.
	Journal       Journal
	Logger        *slog.Logger
	DueSoonWindow time.Duration
	InboxSize     int
	// ConsoleDir holds a built staff console to serve next to the API.
	ConsoleDir string
	Now        func() time.Time
}

// Server provides HTTP handlers for the staff task boards.
type Server struct {
	engine   *gin.Engine
	sessions *sessions
	journal  Journal
	logger   *slog.Logger
	dueSoon  time.Duration
	now      func() time.Time
}

// New constructs the HTTP server with routes and middleware configured.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if opts.DueSoonWindow <= 0 {
		opts.DueSoonWindow = 72 * time.Hour
	}

	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(gin.LoggerWithWriter(gin.DefaultWriter, "/api/healthz"))

	var bj board.Journal
	if opts.Journal != nil {
		bj = opts.Journal
	}

	srv := &Server{
		engine:   router,
		sessions: newSessions(opts.Remotes, bj, logger, opts.InboxSize, now),
		journal:  opts.Journal,
		logger:   logger,
		dueSoon:  opts.DueSoonWindow,
		now:      now,
	}

	srv.registerRoutes()
	srv.mountConsole(opts.ConsoleDir)
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Close ends every open board session.
func (s *Server) Close() {
	s.sessions.closeAll()
}

// registerRoutes wires the API handlers together.
func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	{
		api.GET("/healthz", s.handleHealth)

		staff := api.Group("", requireStaff())
		staff.GET("/moves", s.handleListMoves)

		boards := staff.Group("/boards/:kind")
		{
			boards.GET("", s.handleGetBoard)
			boards.DELETE("", s.handleCloseBoard)
			boards.POST("/refresh", s.handleRefresh)
			boards.POST("/moves", s.handleMove)
			boards.GET("/notifications", s.handleNotifications)
			boards.PUT("/tasks/:id/status", s.handleChangeStatus)
			boards.POST("/tasks/:id/assign", s.handleAssign)
			boards.POST("/tasks/:id/unassign", s.handleUnassign)
			boards.DELETE("/tasks/:id", s.handleDeleteTask)
			boards.DELETE("/columns/:status", s.handleClearColumn)
		}
	}
}

// handleHealth provides a basic readiness endpoint.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": s.sessions.count()})
}

const staffKey = "staff"

// requireStaff reads the caller's identity from the X-Staff-* headers set by
// the console gateway.
func requireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Staff-ID")
		role, err := models.ParseRole(c.GetHeader("X-Staff-Role"))
		if id == "" || err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid staff identity"})
			return
		}
		var park int64
		if raw := c.GetHeader("X-Staff-Park"); raw != "" {
			park, err = strconv.ParseInt(raw, 10, 64)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid park identifier"})
				return
			}
		}
		c.Set(staffKey, models.Staff{ID: id, Role: role, ParkID: park})
		c.Next()
	}
}

func staffFrom(c *gin.Context) models.Staff {
	v, _ := c.Get(staffKey)
	staff, _ := v.(models.Staff)
	return staff
}

// requestID propagates or assigns an X-Request-ID.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// statusFor maps a board error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errUnknownKind), errors.Is(err, board.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, board.ErrInvalidTransition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, board.ErrConflict), errors.Is(err, board.ErrTaskBusy):
		return http.StatusConflict
	case errors.Is(err, board.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, board.ErrBoardClosed):
		return http.StatusGone
	case errors.Is(err, board.ErrNetworkFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs the error and returns a JSON payload.
func (s *Server) respondError(c *gin.Context, status int, err error, extra gin.H) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
	} else {
		s.logger.Debug("request rejected", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
	}
	body := gin.H{"error": err.Error()}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(status, body)
}

// respondSuccess wraps a payload in a JSON envelope for consistency.
func respondSuccess(c *gin.Context, status int, payload any) {
	if payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}
