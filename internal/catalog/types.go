package catalog

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MediaRef names a piece of media exactly as supplied by the caller.
// For series the ID carries season/episode: "tt0903747:1:2".
type MediaRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

func (r MediaRef) String() string {
	return r.Type + "/" + r.ID
}

// imdbParts splits the ID into its imdb id and optional season/episode.
func (r MediaRef) imdbParts() (imdbID string, season, episode int) {
	parts := strings.Split(r.ID, ":")
	imdbID = parts[0]
	if len(parts) >= 3 {
		season, _ = strconv.Atoi(parts[1])
		episode, _ = strconv.Atoi(parts[2])
	}
	return
}

// Candidate is one subtitle search result from the catalog.
type Candidate struct {
	FileID        int64
	FileName      string
	Language      string
	DownloadCount int
	UploadedAt    time.Time
	ExactMatch    bool
}

// searchResponse mirrors the catalog's search payload.
type searchResponse struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			Language       string    `json:"language"`
			DownloadCount  int       `json:"download_count"`
			UploadDate     time.Time `json:"upload_date"`
			MovieHashMatch bool      `json:"moviehash_match"`
			Files          []struct {
				FileID   int64  `json:"file_id"`
				FileName string `json:"file_name"`
			} `json:"files"`
		} `json:"attributes"`
	} `json:"data"`
}

// downloadResponse mirrors the catalog's download-link payload.
type downloadResponse struct {
	Link      string `json:"link"`
	FileName  string `json:"file_name"`
	Remaining int    `json:"remaining"`
}

// ErrorResponse is a standard error body from the catalog API.
type ErrorResponse struct {
	Errors  []string `json:"errors"`
	Status  int      `json:"status"`
	Message string   `json:"message"`
}

func (r *ErrorResponse) Error() string {
	if r.Message != "" {
		return fmt.Sprintf("catalog error (status %d): %s", r.Status, r.Message)
	}
	if len(r.Errors) > 0 {
		return fmt.Sprintf("catalog error (status %d): %v", r.Status, r.Errors)
	}
	return fmt.Sprintf("catalog error (status %d): unknown error", r.Status)
}
