// Package signalserver is a self-hostable coordination server for warpmeet
// clients: a websocket hub for room membership and chat plus the media
// token endpoint.
package signalserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/BioHazard786/Warpmeet/internal/domain"
	"github.com/BioHazard786/Warpmeet/internal/roomlink"
	"github.com/BioHazard786/Warpmeet/internal/signaling"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 5 * time.Second

// Options configures a Server.
type Options struct {
	ListenAddr string
	// WebDomain is the only browser origin allowed to call the server.
	// Requests without an Origin header (CLI clients) are always allowed.
	WebDomain string
	// JWTSecret signs media tokens. A random secret is used when empty.
	JWTSecret string
	TokenTTL  time.Duration
	// Mode is the gin mode: "debug", "release" or "test".
	Mode string
}

type Server struct {
	opts   Options
	hub    *Hub
	issuer *Issuer
	router *gin.Engine
	log    zerolog.Logger
}

func New(opts Options) *Server {
	logger := log.With().Str("module", "signalserver").Logger()

	if opts.JWTSecret == "" {
		opts.JWTSecret = uuid.NewString()
		logger.Warn().Msg("no jwt secret configured, tokens will not survive a restart")
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}

	s := &Server{
		opts:   opts,
		hub:    NewHub(),
		issuer: NewIssuer(opts.JWTSecret, opts.TokenTTL),
		log:    logger,
	}
	s.router = s.setupRouter()
	return s
}

func (s *Server) setupRouter() *gin.Engine {
	switch s.opts.Mode {
	case gin.ReleaseMode, gin.DebugMode, gin.TestMode:
		gin.SetMode(s.opts.Mode)
	}

	r := gin.New()
	if s.opts.Mode == gin.DebugMode {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	var origins []string
	if s.opts.WebDomain != "" {
		origins = append(origins, "https://"+s.opts.WebDomain)
	}
	r.Use(OriginFilter(origins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/getToken", s.getToken)
	r.GET("/verify", JWTAuth(s.issuer), func(c *gin.Context) {
		claims := c.MustGet(claimsKey).(*TokenClaims)
		c.JSON(http.StatusOK, gin.H{"channel": claims.Channel, "uid": claims.UID})
	})
	r.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": s.hub.Rooms(c.Request.Context())})
	})
	r.GET("/ws", s.serveWs)

	return r
}

// Handler exposes the router. The hub must be running, see Start.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the hub until ctx is done.
func (s *Server) Start(ctx context.Context) {
	go s.hub.Run(ctx)
}

// Run serves on the configured address until ctx is done, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	s.Start(ctx)

	srv := &http.Server{
		Addr:    s.opts.ListenAddr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.opts.ListenAddr).Msg("signaling server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Error().Err(err).Msg("server forced to shutdown")
		return err
	}
	return nil
}

func (s *Server) getToken(c *gin.Context) {
	channel, err := roomlink.Parse(c.Query("channelName"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channelName"})
		return
	}
	uid, err := domain.ParseParticipantID(c.Query("uid"))
	if err != nil || uid == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid uid"})
		return
	}

	token, err := s.issuer.Issue(string(channel), uint32(uid))
	if err != nil {
		s.log.Error().Err(err).Msg("failed to sign token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  maxMessageSize,
	WriteBufferSize: maxMessageSize,
	// Origins are checked by OriginFilter.
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) serveWs(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("failed to upgrade connection")
		return
	}

	id := uuid.NewString()
	client := &Client{
		ID:   id,
		hub:  s.hub,
		conn: conn,
		send: make(chan *signaling.Message, sendBuffer),
		log:  s.log.With().Str("conn", id).Logger(),
	}
	if !s.hub.Register(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

// OriginFilter rejects browser requests from origins other than allowed.
func OriginFilter(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := false
		for _, o := range allowedOrigins {
			if origin == o {
				allowed = true
				break
			}
		}

		if !allowed && origin != "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Origin not allowed",
			})
			return
		}

		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
