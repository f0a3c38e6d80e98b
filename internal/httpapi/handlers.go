package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MimeLyc/stremio-sub-translator/internal/cache"
	"github.com/MimeLyc/stremio-sub-translator/internal/catalog"
	"github.com/MimeLyc/stremio-sub-translator/internal/coordinator"
	"github.com/MimeLyc/stremio-sub-translator/internal/language"
	"github.com/MimeLyc/stremio-sub-translator/internal/pipeline"
	"github.com/MimeLyc/stremio-sub-translator/internal/subtitle"
	"github.com/MimeLyc/stremio-sub-translator/pkg/log"
)

type manifestResponse struct {
	ID            string         `json:"id"`
	Version       string         `json:"version"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	Resources     []string       `json:"resources"`
	Types         []string       `json:"types"`
	IDPrefixes    []string       `json:"idPrefixes"`
	Catalogs      []any          `json:"catalogs"`
	BehaviorHints map[string]any `json:"behaviorHints,omitempty"`
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, manifestResponse{
		ID:          s.cfg.AddonID,
		Version:     s.cfg.AddonVersion,
		Name:        s.cfg.AddonName,
		Description: "On-demand AI-translated subtitles",
		Resources:   []string{"subtitles"},
		Types:       []string{"movie", "series"},
		IDPrefixes:  []string{"tt"},
		Catalogs:    []any{},
		BehaviorHints: map[string]any{
			"configurable": false,
		},
	})
}

type subtitleOption struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Lang     string `json:"lang"`
	LangName string `json:"langName"`
	Title    string `json:"title"`
}

type subtitlesResponse struct {
	Subtitles []subtitleOption `json:"subtitles"`
}

// handleSubtitles answers Stremio's subtitle discovery call
// (/subtitles/{type}/{id}[/{extra}].json) with one AI-translation
// option per configured target language. No translation work happens
// here; the advertised URLs point at the artifact route.
func (s *Server) handleSubtitles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/subtitles/")
	rest = strings.TrimSuffix(rest, ".json")
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		writeError(w, http.StatusBadRequest, "expected /subtitles/{type}/{id}.json")
		return
	}
	mediaType := parts[0]
	mediaID := parts[1]
	if decoded, err := url.PathUnescape(mediaID); err == nil {
		mediaID = decoded
	}

	options := make([]subtitleOption, 0, len(s.cfg.TargetLanguages))
	for _, lang := range s.cfg.TargetLanguages {
		name := language.Name(lang)
		options = append(options, subtitleOption{
			ID:       "translate_" + lang,
			URL:      s.artifactURL(mediaType, mediaID, lang),
			Lang:     lang,
			LangName: name + " (AI)",
			Title:    name + " - AI Translation",
		})
	}

	log.Debug("Subtitle discovery for %s/%s, offering %d option(s)", mediaType, mediaID, len(options))
	writeJSON(w, http.StatusOK, subtitlesResponse{Subtitles: options})
}

func (s *Server) artifactURL(mediaType, mediaID, lang string) string {
	return fmt.Sprintf("%s/translate/%s/%s/%s.%s",
		s.cfg.BaseURL, mediaType, url.PathEscape(mediaID), lang, s.cfg.Format)
}

// handleArtifact serves /translate/{type}/{id}/{lang}.{srt|vtt}. This
// is the synchronous endpoint: it blocks on the coordinator until the
// translated track exists and streams it back.
func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/translate/")
	parts := strings.Split(rest, "/")
	if len(parts) != 3 {
		writeError(w, http.StatusBadRequest, "expected /translate/{type}/{id}/{lang}.{srt|vtt}")
		return
	}
	mediaType := parts[0]
	mediaID := parts[1]
	if decoded, err := url.PathUnescape(mediaID); err == nil {
		mediaID = decoded
	}

	lang, format, ok := splitLangFile(parts[2])
	if !ok {
		writeError(w, http.StatusBadRequest, "subtitle file must end in .srt or .vtt")
		return
	}
	if !s.acceptsLanguage(lang) {
		writeError(w, http.StatusBadRequest, "unsupported target language: "+lang)
		return
	}

	ref := catalog.MediaRef{Type: mediaType, ID: mediaID}
	artifact, err := s.coord.Request(r.Context(), ref, lang)
	if err != nil {
		status := statusForError(err)
		log.Warn("Translation request %s lang=%s failed with %d: %v", ref, lang, status, err)
		writeError(w, status, err.Error())
		return
	}

	w.Header().Set("Content-Type", contentTypeFor(format))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(artifact.Data)
}

func splitLangFile(file string) (lang, format string, ok bool) {
	dot := strings.LastIndex(file, ".")
	if dot <= 0 {
		return "", "", false
	}
	lang, format = file[:dot], file[dot+1:]
	if format != subtitle.FormatSRT && format != subtitle.FormatVTT {
		return "", "", false
	}
	return lang, format, true
}

func (s *Server) acceptsLanguage(lang string) bool {
	if len(s.cfg.TargetLanguages) == 0 {
		return language.Known(lang)
	}
	for _, candidate := range s.cfg.TargetLanguages {
		if candidate == lang {
			return true
		}
	}
	return false
}

func contentTypeFor(format string) string {
	if format == subtitle.FormatVTT {
		return "text/vtt; charset=utf-8"
	}
	return "application/x-subrip; charset=utf-8"
}

func statusForError(err error) int {
	switch pipeline.KindOf(err) {
	case pipeline.ErrNotFound:
		return http.StatusNotFound
	case pipeline.ErrParse:
		return http.StatusUnprocessableEntity
	case pipeline.ErrTimeout:
		return http.StatusGatewayTimeout
	case pipeline.ErrUpstream, pipeline.ErrProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type jobsResponse struct {
	Active []coordinator.JobView `json:"active"`
	Recent []cache.JobRecord     `json:"recent"`
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resp := jobsResponse{Recent: []cache.JobRecord{}}
	resp.Active = s.coord.List()
	if s.history != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		records, err := s.history.ListRecentJobs(ctx, 50)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.Recent = records
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
