// Package audit serves a read-only HTTP view of the relay store.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/m3rciful/feedbackbot/core/logger"
	"github.com/m3rciful/feedbackbot/relay/model"
	"github.com/m3rciful/feedbackbot/relay/store"
)

// MaxLimit caps the limit query parameter of the inquiry listing.
const MaxLimit = 100

// Reader is the part of the store the API reads from.
type Reader interface {
	ListRecentInquiries(ctx context.Context, limit int) ([]model.Inquiry, error)
	GetInquiry(ctx context.Context, id int64) (model.Inquiry, error)
	ListReplies(ctx context.Context, inquiryID int64) ([]model.Reply, error)
	Administrators(ctx context.Context) ([]model.Administrator, error)
}

// Handler implements the API endpoints.
type Handler struct {
	store Reader
}

// NewHandler returns the endpoint handlers over r.
func NewHandler(r Reader) *Handler {
	return &Handler{store: r}
}

type inquiryView struct {
	model.Inquiry
	Replies []model.Reply `json:"replies"`
}

type administratorView struct {
	UserID      int64     `json:"user_id"`
	Username    string    `json:"username,omitempty"`
	AddedBy     *int64    `json:"added_by"`
	SelfGranted bool      `json:"self_granted"`
	AddedAt     time.Time `json:"added_at"`
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListInquiries returns the most recent inquiries, newest first.
func (h *Handler) ListInquiries(c *gin.Context) {
	limit := store.DefaultRecentLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid limit"})
			return
		}
		limit = min(n, MaxLimit)
	}

	list, err := h.store.ListRecentInquiries(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, "inquiries.list", err)
		return
	}
	if list == nil {
		list = []model.Inquiry{}
	}
	c.JSON(http.StatusOK, gin.H{"inquiries": list})
}

// GetInquiry returns one inquiry with its replies.
func (h *Handler) GetInquiry(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid inquiry id"})
		return
	}

	ctx := c.Request.Context()
	inq, err := h.store.GetInquiry(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"msg": "inquiry not found"})
		return
	}
	if err != nil {
		h.fail(c, "inquiries.get", err)
		return
	}
	replies, err := h.store.ListReplies(ctx, id)
	if err != nil {
		h.fail(c, "replies.list", err)
		return
	}
	if replies == nil {
		replies = []model.Reply{}
	}
	c.JSON(http.StatusOK, inquiryView{Inquiry: inq, Replies: replies})
}

// ListAdministrators returns every administrator record.
func (h *Handler) ListAdministrators(c *gin.Context) {
	admins, err := h.store.Administrators(c.Request.Context())
	if err != nil {
		h.fail(c, "administrators.list", err)
		return
	}
	out := make([]administratorView, 0, len(admins))
	for _, a := range admins {
		v := administratorView{
			UserID:      a.UserID,
			Username:    a.Username.String,
			SelfGranted: a.SelfGranted(),
			AddedAt:     a.AddedAt,
		}
		if a.AddedBy.Valid {
			by := a.AddedBy.Int64
			v.AddedBy = &by
		}
		out = append(out, v)
	}
	c.JSON(http.StatusOK, gin.H{"administrators": out})
}

func (h *Handler) fail(c *gin.Context, event string, err error) {
	logger.Error(c.Request.Context(), logger.CompAudit, event,
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"msg": "store unavailable"})
}

// requestLog writes one line per request.
func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug(c.Request.Context(), logger.CompAudit, "request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("code", c.Writer.Status()),
			slog.Duration("duration", logger.Took(start)),
		)
	}
}

// NewRouter builds the gin engine serving the API.
func NewRouter(r Reader) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	h := NewHandler(r)

	e := gin.New()
	e.Use(gin.Recovery(), requestLog())

	e.GET("/healthz", h.Health)
	api := e.Group("/api")
	{
		api.GET("/inquiries", h.ListInquiries)
		api.GET("/inquiries/:id", h.GetInquiry)
		api.GET("/administrators", h.ListAdministrators)
	}
	return e
}

// Server runs the API on its own listener next to the bot.
type Server struct {
	srv *http.Server
}

// NewServer prepares a server for listen, e.g. ":8081".
func NewServer(listen string, r Reader) *Server {
	return &Server{srv: &http.Server{
		Addr:              listen,
		Handler:           NewRouter(r),
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Start binds the listener and serves in the background. It returns the bound
// address so callers can use port 0.
func (s *Server) Start(ctx context.Context) (net.Addr, error) {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, logger.CompAudit, "listen", slog.String("addr", ln.Addr().String()))
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), logger.CompAudit, "serve",
				slog.String("err", err.Error()),
			)
		}
	}()
	return ln.Addr(), nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	logger.Info(ctx, logger.CompAudit, "shutdown", slog.String("status", logger.Status(err)))
	return err
}
