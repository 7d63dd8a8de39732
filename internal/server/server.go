package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"cvd-cam-go/internal/config"
	"cvd-cam-go/internal/filter"
	"cvd-cam-go/internal/frame"
	"cvd-cam-go/internal/imageio"
	"cvd-cam-go/internal/processing"
	"cvd-cam-go/internal/types"
)

//go:embed web/*
var webFS embed.FS

// Hooks connect the server to the shared stream state owned by main.
type Hooks struct {
	// Status returns the payload of /status.
	Status func() map[string]any
	// Selection returns the filter applied to the shared stream.
	Selection func() string
	// Select changes the filter applied to the shared stream.
	Select func(name string) error
	// Source names where the shared stream comes from.
	Source string
}

type client struct {
	writeMu sync.Mutex
	// stream is set while the client wants the shared stream frames.
	stream atomic.Bool
}

type Server struct {
	upgrader   websocket.Upgrader
	clients    map[*websocket.Conn]*client
	mu         sync.Mutex
	cfg        config.AppConfig
	dispatcher *filter.Dispatcher
	stats      *processing.Stats
	hooks      Hooks
	log        logrus.FieldLogger

	latestMu sync.Mutex
	latest   []byte
}

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	pingEvery = (pongWait * 9) / 10
)

func New(cfg config.AppConfig, dispatcher *filter.Dispatcher, stats *processing.Stats, hooks Hooks, log logrus.FieldLogger) *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:    make(map[*websocket.Conn]*client),
		cfg:        cfg,
		dispatcher: dispatcher,
		stats:      stats,
		hooks:      hooks,
		log:        log,
	}
}

// Run serves HTTP until ctx is cancelled. Values received on messages are
// broadcast to every websocket client: []byte as a binary JPEG frame,
// anything else as JSON.
func (s *Server) Run(ctx context.Context, messages <-chan any) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              ":" + strconv.Itoa(s.cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	go s.broadcast(ctx, messages)

	err = httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Handler() (http.Handler, error) {
	sub, err := fs.Sub(webFS, "web")
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(sub)))
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/config", s.handleConfig)
	mux.HandleFunc("/filters", s.handleFilters)
	mux.HandleFunc("/status", s.handleStatus)
	return mux, nil
}

func (s *Server) configMessage(filterName string) types.ConfigMessage {
	return types.ConfigMessage{
		Type:        "config",
		Filters:     s.dispatcher.Names(),
		Filter:      filterName,
		Source:      s.hooks.Source,
		JPEGQuality: s.cfg.JPEGQuality,
	}
}

func (s *Server) streamSelection() string {
	if s.hooks.Selection != nil {
		return s.hooks.Selection()
	}
	return s.cfg.DefaultFilter
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn.SetReadLimit(s.cfg.MaxFrameBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	s.mu.Lock()
	c := &client{}
	s.clients[conn] = c
	s.mu.Unlock()
	writeMu := &c.writeMu

	log := s.log.WithField("client", conn.RemoteAddr().String())
	log.Debug("websocket client connected")

	selection := s.cfg.DefaultFilter
	_ = s.writeJSON(conn, writeMu, s.configMessage(selection))

	go func() {
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(pingEvery)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					if err := s.writeMessage(conn, writeMu, websocket.PingMessage, nil); err != nil {
						_ = conn.Close()
						return
					}
				}
			}
		}()
		defer close(done)
		defer s.removeClient(conn)
		frameID := 0
		for {
			messageType, payload, err := conn.ReadMessage()
			if err != nil {
				log.WithError(err).Debug("websocket client gone")
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))
			switch messageType {
			case websocket.BinaryMessage:
				reply, err := s.filterJPEG(selection, frameID, payload)
				frameID++
				if err != nil {
					log.WithError(err).WithField("filter", selection).Debug("frame rejected")
					_ = s.writeJSON(conn, writeMu, types.ErrorMessage{Type: "error", Error: err.Error()})
					continue
				}
				_ = s.writeMessage(conn, writeMu, websocket.BinaryMessage, reply)
			case websocket.TextMessage:
				var request types.ControlMessage
				if err := json.Unmarshal(payload, &request); err != nil {
					continue
				}
				switch request.Type {
				case "select_filter":
					if !s.dispatcher.Has(request.Filter) {
						_ = s.writeJSON(conn, writeMu, types.ErrorMessage{Type: "error", Error: (&filter.UnknownFilterError{Name: request.Filter}).Error()})
						continue
					}
					selection = request.Filter
					_ = s.writeJSON(conn, writeMu, types.FilterSelection{Type: "filter", Filter: selection})
				case "select_stream_filter":
					if s.hooks.Select == nil {
						continue
					}
					if err := s.hooks.Select(request.Filter); err != nil {
						_ = s.writeJSON(conn, writeMu, types.ErrorMessage{Type: "error", Error: err.Error()})
						continue
					}
					s.notifyAll(types.FilterSelection{Type: "stream_filter", Filter: request.Filter})
				case "filters_request":
					_ = s.writeJSON(conn, writeMu, s.configMessage(selection))
				case "subscribe_stream":
					c.stream.Store(true)
				case "unsubscribe_stream":
					c.stream.Store(false)
				case "snapshot_request":
					if latest := s.latestFrame(); latest != nil {
						_ = s.writeMessage(conn, writeMu, websocket.BinaryMessage, latest)
					}
				}
			}
		}
	}()
}

// filterJPEG decodes a browser frame, applies the named filter and encodes
// the result.
func (s *Server) filterJPEG(name string, frameID int, payload []byte) ([]byte, error) {
	img, err := imageio.DecodeBytes(payload, frame.RGB)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	out, err := processing.ProcessRawFrame(s.dispatcher, name, types.RawFrame{FrameID: frameID, Image: img})
	if err != nil {
		if s.stats != nil {
			s.stats.AddError(out.Filter)
		}
		return nil, err
	}
	if s.stats != nil {
		s.stats.Add(out.Filter, img.Width*img.Height, time.Since(start))
	}
	return imageio.EncodeJPEGBytes(out.Image, s.cfg.JPEGQuality)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	payload := map[string]any{
		"filters":        s.dispatcher.Names(),
		"default_filter": s.cfg.DefaultFilter,
		"stream_filter":  s.streamSelection(),
		"source":         s.hooks.Source,
		"jpeg_quality":   s.cfg.JPEGQuality,
		"port":           s.cfg.Port,
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) handleFilters(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.dispatcher.Names())
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	payload := map[string]any{}
	if s.hooks.Status != nil {
		payload = s.hooks.Status()
	}
	if s.stats != nil {
		payload["filters"] = s.stats.SnapshotCopy()
	}
	if metrics, ok := payload["metrics"].(map[string]any); ok {
		metrics["ws_clients"] = s.clientCount()
	} else {
		payload["ws_clients"] = s.clientCount()
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) broadcast(ctx context.Context, messages <-chan any) {
	for {
		select {
		case <-ctx.Done():
			return
		case message, ok := <-messages:
			if !ok {
				return
			}
			messageType := websocket.TextMessage
			var payload []byte
			if data, isFrame := message.([]byte); isFrame {
				messageType = websocket.BinaryMessage
				payload = data
				s.latestMu.Lock()
				s.latest = data
				s.latestMu.Unlock()
			} else {
				encoded, err := json.Marshal(message)
				if err != nil {
					continue
				}
				payload = encoded
			}
			s.sendAll(messageType, payload, messageType == websocket.BinaryMessage)
		}
	}
}

func (s *Server) notifyAll(message any) {
	payload, err := json.Marshal(message)
	if err != nil {
		return
	}
	s.sendAll(websocket.TextMessage, payload, false)
}

func (s *Server) sendAll(messageType int, payload []byte, streamOnly bool) {
	var stale []*websocket.Conn
	s.mu.Lock()
	for conn, c := range s.clients {
		if streamOnly && !c.stream.Load() {
			continue
		}
		if err := s.writeMessage(conn, &c.writeMu, messageType, payload); err != nil {
			stale = append(stale, conn)
		}
	}
	s.mu.Unlock()
	for _, conn := range stale {
		s.removeClient(conn)
	}
}

func (s *Server) latestFrame() []byte {
	s.latestMu.Lock()
	defer s.latestMu.Unlock()
	return s.latest
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	conn.Close()
}

func (s *Server) clientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) writeJSON(conn *websocket.Conn, writeMu *sync.Mutex, payload any) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(payload)
}

func (s *Server) writeMessage(conn *websocket.Conn, writeMu *sync.Mutex, messageType int, payload []byte) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(messageType, payload)
}
