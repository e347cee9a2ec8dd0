// Package http serves a read-only inspection API over stored sessions.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aretw0/loom"
	"github.com/aretw0/loom/internal/logging"
	"github.com/aretw0/loom/internal/presentation/graph"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/linkable"
	"github.com/aretw0/loom/pkg/persistence"
	"github.com/aretw0/loom/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// APIVersion is the version of the routes below.
const APIVersion = "0.1.0"

// Server answers inspection requests from a persistence manager.
type Server struct {
	Sessions *persistence.Manager
	Metrics  http.Handler
	Logger   *slog.Logger

	// NewWorkspace builds the workspace a snapshot is restored into.
	NewWorkspace func() *loom.Workspace
}

// TreeNode is the JSON form of a session state tree item.
type TreeNode struct {
	Name     string      `json:"name"`
	Type     string      `json:"type,omitempty"`
	Value    any         `json:"value,omitempty"`
	Children []*TreeNode `json:"children,omitempty"`
}

// NewHandler creates the HTTP handler. metrics may be nil.
func NewHandler(sessions *persistence.Manager, metrics http.Handler, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		Sessions:     sessions,
		Metrics:      metrics,
		Logger:       logger,
		NewWorkspace: func() *loom.Workspace { return loom.New(loom.WithLogger(logger)) },
	}
	return s.Routes()
}

// Routes mounts the API on a chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics)
	}

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.ListSessions)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Get("/tree", s.GetTree)
			r.Get("/graph", s.GetGraph)
		})
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":         "loom-http",
		"version":     loom.Version,
		"api_version": APIVersion,
	})
}

// ListSessions handles the GET /sessions request.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Sessions.List(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, ids)
}

// GetSession handles the GET /sessions/{sessionID} request.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Sessions.Load(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// GetTree handles the GET /sessions/{sessionID}/tree request.
func (s *Server) GetTree(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.restore(w, r)
	if !ok {
		return
	}
	defer ws.Dispose()
	s.writeJSON(w, http.StatusOK, toTreeNode(ws.Manager(), ws.Tree()))
}

// GetGraph handles the GET /sessions/{sessionID}/graph request. The objects
// touched by the last undoable step are highlighted.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.restore(w, r)
	if !ok {
		return
	}
	defer ws.Dispose()

	var overlay *graph.GraphOverlay
	if undo := ws.Log().UndoHistory(); len(undo) > 0 {
		overlay = graph.OverlayFromDiff(undo[len(undo)-1].Forward)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(graph.GenerateMermaid(ws.Tree(), overlay)))
}

func (s *Server) restore(w http.ResponseWriter, r *http.Request) (*loom.Workspace, bool) {
	snap, err := s.Sessions.Load(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.fail(w, err)
		return nil, false
	}
	ws := s.NewWorkspace()
	if err := ws.Restore(snap); err != nil {
		ws.Dispose()
		s.fail(w, err)
		return nil, false
	}
	return ws, true
}

func toTreeNode(m *session.Manager, item *session.TreeItem) *TreeNode {
	node := &TreeNode{Name: item.Label, Type: linkable.TypeOf(item.Source)}
	if _, composite := item.Source.(session.Container); !composite {
		node.Value = m.GetSessionState(item.Source)
	}
	for _, child := range item.Children() {
		node.Children = append(node.Children, toTreeNode(m, child))
	}
	return node
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrSnapshotNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrUnsupportedVersion), errors.Is(err, domain.ErrEmptySessionID):
		status = http.StatusUnprocessableEntity
	default:
		s.Logger.Error("inspection request failed", "err", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("response encode failed", "err", err)
	}
}
