package front

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/todobus/todobus/internal/bus"
	"github.com/todobus/todobus/internal/schema"
)

//go:embed templates/todo.html
var templateFS embed.FS

var pageTmpl = template.Must(template.ParseFS(templateFS, "templates/todo.html"))

// maxContentBytes caps a submitted item.
const maxContentBytes = 4 << 10

// Refresher yields the current list.
type Refresher interface {
	Refresh(ctx context.Context) ([]schema.Item, error)
}

// Sender accepts a new item.
type Sender interface {
	Submit(ctx context.Context, content string) error
}

type page struct {
	Items []schema.Item
	Error string
}

// NewHandler serves the todo page:
//
//	GET  /        latest snapshot and the add form
//	POST /add     submit form field "content", then redirect to /
//	GET  /healthz liveness
func NewHandler(r Refresher, s Sender) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/" {
			http.NotFound(w, req)
			return
		}
		if req.Method != http.MethodGet && req.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		items, err := r.Refresh(req.Context())
		if err != nil {
			slog.Error("front: refresh failed", "err", err)
			render(w, statusFor(err), page{Items: []schema.Item{}, Error: "The todo list is unavailable right now."})
			return
		}
		render(w, http.StatusOK, page{Items: items})
	})

	mux.HandleFunc("/add", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		req.Body = http.MaxBytesReader(w, req.Body, maxContentBytes+1024)
		content := strings.TrimSpace(req.PostFormValue("content"))
		if content == "" {
			http.Error(w, "content is required", http.StatusBadRequest)
			return
		}
		if len(content) > maxContentBytes {
			http.Error(w, "content too long", http.StatusRequestEntityTooLarge)
			return
		}
		if err := s.Submit(req.Context(), content); err != nil {
			slog.Error("front: submit failed", "err", err)
			http.Error(w, "could not submit item", statusFor(err))
			return
		}
		http.Redirect(w, req, "/", http.StatusSeeOther)
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte("ok\n"))
	})

	return mux
}

func statusFor(err error) int {
	if errors.Is(err, bus.ErrTransport) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func render(w http.ResponseWriter, status int, p page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTmpl.Execute(w, p); err != nil {
		slog.Error("front: render failed", "err", err)
	}
}
