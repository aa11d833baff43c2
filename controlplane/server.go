package controlplane

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/voxroom"
	"github.com/opd-ai/voxroom/events"
	"github.com/opd-ai/voxroom/limits"
)

const (
	writeTimeout = 5 * time.Second
	sendQueue    = 64
)

// ErrNilLibrary is returned by New without a library.
var ErrNilLibrary = errors.New("controlplane: nil library")

// Server exposes a library over HTTP and a websocket. Every engine event is
// pushed to all connected clients.
type Server struct {
	lib        *voxroom.Library
	dispatcher *Dispatcher
	echo       *echo.Echo
	upgrader   websocket.Upgrader
	log        *logrus.Entry

	mu      sync.Mutex
	clients map[string]*client
}

type client struct {
	id   string
	send chan any
}

// New creates a server for lib and subscribes it to lib's events.
func New(lib *voxroom.Library, log *logrus.Entry) (*Server, error) {
	if lib == nil {
		return nil, ErrNilLibrary
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		lib:        lib,
		dispatcher: NewDispatcher(lib, log),
		echo:       e,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		log:     log.WithField("component", "controlplane"),
		clients: make(map[string]*client),
	}
	s.registerRoutes()

	if err := lib.AddEventListener(s); err != nil {
		return nil, fmt.Errorf("subscribe to events: %w", err)
	}
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/ws", s.handleWebSocket)
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/api/layouts", s.handleLayouts)
	s.echo.GET("/api/license", s.handleLicense)
	s.echo.GET("/api/stats", s.handleStats)
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler { return s.echo }

// Dispatcher returns the command dispatcher used for websocket requests.
func (s *Server) Dispatcher() *Dispatcher { return s.dispatcher }

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	errc := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	s.log.WithFields(logrus.Fields{
		"function": "Run",
		"addr":     addr,
	}).Info("Control plane listening")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.echo.Shutdown(shutCtx)
}

// HealthResponse is the payload of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Rooms   int    `json:"rooms"`
	Clients int    `json:"clients"`
}

func (s *Server) handleHealth(c echo.Context) error {
	rooms, err := s.lib.RoomCount()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Rooms: rooms, Clients: s.ClientCount()})
}

func (s *Server) handleLayouts(c echo.Context) error {
	data, err := s.lib.LayoutsJSON()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return c.JSONBlob(http.StatusOK, []byte(data))
}

func (s *Server) handleLicense(c echo.Context) error {
	data, err := s.lib.LicenseInfo()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return c.JSONBlob(http.StatusOK, []byte(data))
}

func (s *Server) handleStats(c echo.Context) error {
	stats, err := s.lib.Stats()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("upgrade websocket: %w", err)
	}
	s.serveConn(conn)
	return nil
}

func (s *Server) serveConn(conn *websocket.Conn) {
	defer conn.Close()
	conn.SetReadLimit(limits.MaxCommand)

	cl := &client{id: uuid.NewString(), send: make(chan any, sendQueue)}
	s.mu.Lock()
	s.clients[cl.id] = cl
	s.mu.Unlock()

	log := s.log.WithFields(logrus.Fields{
		"function":  "serveConn",
		"client_id": cl.id,
	})
	log.Info("Client connected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for out := range cl.send {
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(out); err != nil {
				return
			}
		}
	}()

	defer func() {
		s.mu.Lock()
		delete(s.clients, cl.id)
		close(cl.send)
		s.mu.Unlock()
		<-done
		log.Info("Client disconnected")
	}()

	s.enqueue(cl, Notification{Type: TypeHello, ClientID: cl.id})

	for {
		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		s.enqueue(cl, s.dispatcher.Dispatch(cmd))
	}
}

// enqueue queues msg for cl without blocking. A client that falls behind
// loses messages.
func (s *Server) enqueue(cl *client, msg any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[cl.id]; !ok {
		return
	}
	select {
	case cl.send <- msg:
	default:
		s.log.WithFields(logrus.Fields{
			"function":  "enqueue",
			"client_id": cl.id,
		}).Warn("Client send queue full, message dropped")
	}
}

func (s *Server) broadcast(msg any) {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for _, cl := range s.clients {
		clients = append(clients, cl)
	}
	s.mu.Unlock()
	for _, cl := range clients {
		s.enqueue(cl, msg)
	}
}

// HandleEvent implements events.Listener.
func (s *Server) HandleEvent(e events.Event) {
	s.broadcast(Notification{Type: TypeEvent, Event: &e})
}

// SendCustom broadcasts an application message tagged with roomID.
func (s *Server) SendCustom(roomID int, message string) error {
	if err := limits.ValidateCustomMessage(message); err != nil {
		return fmt.Errorf("custom message for room %d: %w", roomID, err)
	}
	s.broadcast(Notification{Type: TypeCustom, RoomID: roomID, Message: message})
	return nil
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}
