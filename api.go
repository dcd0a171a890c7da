package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"bancho/server/internal/config"
	"bancho/server/internal/multiplayer"
	"bancho/server/internal/router"
	"bancho/server/internal/session"
)

// APIServer is the single HTTP front door: the raw binary bancho
// endpoint at POST / plus a handful of read-only status/info routes.
// It runs on one TCP port, unlike the teacher's split websocket/API
// listeners, since the bancho protocol multiplexes everything over HTTP.
type APIServer struct {
	cfg      config.Config
	router   *router.Router
	sessions *session.Registry
	matches  *multiplayer.Registry
	echo     *echo.Echo
}

// Version is the current server version. Set at build time via -ldflags.
var Version = "0.1.0-dev"

// NewAPIServer constructs an APIServer and registers all routes.
func NewAPIServer(cfg config.Config, rt *router.Router, sessions *session.Registry, matches *multiplayer.Registry) *APIServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			log.Printf("[api] %s %s %d", v.Method, v.URI, v.Status)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = jsonErrorHandler

	s := &APIServer{cfg: cfg, router: rt, sessions: sessions, matches: matches, echo: e}
	s.registerRoutes()
	return s
}

func (s *APIServer) registerRoutes() {
	s.echo.POST("/", s.handleBancho)
	s.echo.GET("/", s.handleIndex)
	s.echo.GET("/infos", s.handleInfos)
	s.echo.GET("/api/v1/onlineUsers", s.handleOnlineUsers)
	s.echo.GET("/api/v1/serverStatus", s.handleServerStatus)
	s.echo.GET("/api/status/:userID", s.handleUserStatus)
	s.echo.GET("/api/v2/status/:userID", s.handleUserStatus)
	s.echo.GET("/api/version", s.handleVersion)
}

// Run starts the Echo HTTP server on addr and blocks until ctx is cancelled.
func (s *APIServer) Run(ctx context.Context, addr string) {
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Printf("[api] server error: %v", err)
		}
	}()
	<-ctx.Done()
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(shutCtx); err != nil {
		log.Printf("[api] shutdown: %v", err)
	}
}

// handleBancho is the one endpoint every osu! client actually speaks to:
// a login handshake when osu-token is absent, otherwise a framed packet
// batch for the named session. The response always carries the same
// three headers the client expects back, even on a failed login.
func (s *APIServer) handleBancho(c echo.Context) error {
	token := c.Request().Header.Get("osu-token")
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
	}

	remoteIP := c.RealIP()
	if h := s.cfg.ClientIPHeader(); h != "" {
		if v := c.Request().Header.Get(h); v != "" {
			remoteIP = v
		}
	}

	newToken, resp := s.router.HandleRequest(c.Request().Context(), token, body, remoteIP)

	c.Response().Header().Set("cho-token", newToken)
	c.Response().Header().Set("cho-protocol", "19")
	c.Response().Header().Set("Connection", "keep-alive")
	return c.Blob(http.StatusOK, "application/octet-stream", resp)
}

func (s *APIServer) handleIndex(c echo.Context) error {
	return c.HTML(http.StatusOK, "<html><body><h1>"+s.cfg.ServerName+"</h1><p>running.</p></body></html>")
}

// InfosResponse is the payload for GET /infos.
type InfosResponse struct {
	ServerName  string `json:"server_name"`
	Domain      string `json:"domain"`
	OnlineUsers int    `json:"online_users"`
	BotUserID   int32  `json:"bot_user_id"`
}

func (s *APIServer) handleInfos(c echo.Context) error {
	return c.JSON(http.StatusOK, InfosResponse{
		ServerName:  s.cfg.ServerName,
		Domain:      s.cfg.Domain,
		OnlineUsers: s.sessions.Count(),
		BotUserID:   s.cfg.BotUserID,
	})
}

func (s *APIServer) handleOnlineUsers(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]int{"count": s.sessions.Count()})
}

// ServerStatusResponse is the payload for GET /api/v1/serverStatus.
type ServerStatusResponse struct {
	Status      string `json:"status"`
	OnlineUsers int    `json:"online_users"`
	Matches     int    `json:"matches"`
}

func (s *APIServer) handleServerStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, ServerStatusResponse{
		Status:      "ok",
		OnlineUsers: s.sessions.Count(),
		Matches:     len(s.matches.All()),
	})
}

// UserStatusResponse is the payload for GET /api/status/:userID.
type UserStatusResponse struct {
	Online bool   `json:"online"`
	Action uint8  `json:"action,omitempty"`
	Text   string `json:"action_text,omitempty"`
}

func (s *APIServer) handleUserStatus(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("userID"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	sess, ok := s.sessions.ByUserID(int32(id))
	if !ok {
		return c.JSON(http.StatusOK, UserStatusResponse{Online: false})
	}
	action := sess.GetAction()
	return c.JSON(http.StatusOK, UserStatusResponse{Online: true, Action: action.Kind, Text: action.Text})
}

// VersionResponse is the payload for GET /api/version.
type VersionResponse struct {
	Version string `json:"version"`
}

func (s *APIServer) handleVersion(c echo.Context) error {
	return c.JSON(http.StatusOK, VersionResponse{Version: Version})
}

// jsonErrorHandler ensures all error responses have a consistent JSON body:
//
//	{"error": "message"}
//
// This replaces Echo's default handler which varies between text and JSON.
func jsonErrorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := err.Error()
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	}
	if !c.Response().Committed {
		if c.Request().Method == http.MethodHead {
			c.NoContent(code) //nolint:errcheck
		} else {
			c.JSON(code, map[string]string{"error": msg}) //nolint:errcheck
		}
	}
}
