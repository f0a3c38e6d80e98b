package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/MimeLyc/stremio-sub-translator/internal/cache"
	"github.com/MimeLyc/stremio-sub-translator/internal/catalog"
	"github.com/MimeLyc/stremio-sub-translator/internal/coordinator"
)

// requester is the slice of the coordinator the server depends on.
type requester interface {
	Request(ctx context.Context, ref catalog.MediaRef, lang string) (coordinator.Artifact, error)
	List() []coordinator.JobView
}

type jobHistory interface {
	ListRecentJobs(ctx context.Context, limit int) ([]cache.JobRecord, error)
}

type ServerConfig struct {
	// BaseURL is the externally reachable address the manifest and
	// subtitle options embed in artifact URLs, without trailing slash.
	BaseURL string
	// TargetLanguages are the language codes the addon advertises and
	// accepts on the artifact route.
	TargetLanguages []string
	// Format is the extension used in advertised artifact URLs.
	Format string

	AddonID      string
	AddonName    string
	AddonVersion string
}

type Server struct {
	coord   requester
	history jobHistory
	cfg     ServerConfig

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

func WithJobHistory(history jobHistory) Option {
	return func(s *Server) {
		s.history = history
	}
}

func NewServer(coord requester, cfg ServerConfig, opts ...Option) *Server {
	if cfg.AddonID == "" {
		cfg.AddonID = "community.ai-sub-translator"
	}
	if cfg.AddonName == "" {
		cfg.AddonName = "AI Subtitle Translator"
	}
	if cfg.AddonVersion == "" {
		cfg.AddonVersion = "1.0.0"
	}
	if cfg.Format == "" {
		cfg.Format = "srt"
	}
	s := &Server{
		coord: coord,
		cfg:   cfg,
		mux:   http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return withCORS(s.mux)
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/manifest.json", s.handleManifest)
	s.mux.HandleFunc("/subtitles/", s.handleSubtitles)
	s.mux.HandleFunc("/translate/", s.handleArtifact)
	s.mux.HandleFunc("/api/jobs", s.handleJobs)
	s.mux.HandleFunc("/healthz", s.handleHealth)
}

// withCORS opens every route to browser playback clients. Stremio loads
// the manifest and subtitle tracks cross-origin.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
