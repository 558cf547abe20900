// Package broker serves an in-memory queue over HTTP so the back and front
// processes can run on separate hosts.
//
//	POST /queues/{queue}/messages        raw body      -> 202 {"id": "..."}
//	GET  /queues/{queue}/messages?max=N                -> 200 [Message...]
//	POST /queues/{queue}/ack             {"ids": [...]} -> 204
//	POST /queues/{queue}/nack            {"id": "..."} -> 204
//	GET  /queues/{queue}/watch           websocket, one text frame per send
//	GET  /queues                                       -> 200 [QueueStats...]
//	GET  /healthz                                      -> 200 ok
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/todobus/todobus/internal/bus"
)

const (
	maxBodyBytes = 1 << 20
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

// Server exposes a bus.Memory over HTTP.
type Server struct {
	queues   *bus.Memory
	upgrader websocket.Upgrader
	handler  http.Handler
}

func NewServer(queues *bus.Memory) *Server {
	s := &Server{
		queues: queues,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /queues/{queue}/messages", s.handleSend)
	mux.HandleFunc("GET /queues/{queue}/messages", s.handleReceive)
	mux.HandleFunc("POST /queues/{queue}/ack", s.handleAck)
	mux.HandleFunc("POST /queues/{queue}/nack", s.handleNack)
	mux.HandleFunc("GET /queues/{queue}/watch", s.handleWatch)
	mux.HandleFunc("GET /queues", s.handleStats)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok\n"))
	})
	s.handler = accessLog(mux)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe serves the broker on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	return ListenAndServe(ctx, addr, s)
}

// ListenAndServe serves h on addr until ctx is cancelled, then shuts down
// gracefully.
func ListenAndServe(ctx context.Context, addr string, h http.Handler) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return Serve(ctx, ln, h)
}

// Serve runs h on ln until ctx is cancelled. It returns ctx.Err() after a
// clean shutdown.
func Serve(ctx context.Context, ln net.Listener, h http.Handler) error {
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	slog.Info("http: listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http: shutdown", "err", err)
	}
	slog.Info("http: stopped", "addr", ln.Addr().String())
	return ctx.Err()
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}
	msg, err := s.queues.Enqueue(r.Context(), r.PathValue("queue"), body)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, idRequest{ID: msg.ID})
}

func (s *Server) handleReceive(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("max"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, errors.New("max must be a non-negative integer"))
			return
		}
		limit = n
	}
	msgs, err := s.queues.Receive(r.Context(), r.PathValue("queue"), limit)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

type ackRequest struct {
	IDs []string `json:"ids"`
}

type idRequest struct {
	ID string `json:"id"`
}

func (s *Server) handleAck(w http.ResponseWriter, r *http.Request) {
	var req ackRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.queues.Ack(r.Context(), r.PathValue("queue"), req.IDs...); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNack(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, errors.New("missing id"))
		return
	}
	if err := s.queues.Nack(r.Context(), r.PathValue("queue"), req.ID); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.queues.Stats())
}

// handleWatch pushes one text frame, the queue name, whenever the queue may
// have become non-empty. The client never sends data; its reads only detect
// the connection closing.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	queue := r.PathValue("queue")
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return // Upgrade already wrote the error response.
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wake, err := s.queues.Notify(ctx, queue)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()), time.Now().Add(writeTimeout))
		return
	}

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	slog.Debug("broker: watcher connected", "queue", queue, "remote", r.RemoteAddr)
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("broker: watcher gone", "queue", queue)
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		case _, ok := <-wake:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "broker closed"), time.Now().Add(writeTimeout))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(queue)); err != nil {
				return
			}
		}
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid json"))
		return false
	}
	return true
}

func statusFor(err error) int {
	if errors.Is(err, bus.ErrClosed) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("broker: write response", "err", err)
	}
}
