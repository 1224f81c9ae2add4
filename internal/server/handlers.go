package server

import (
	"embed"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"wbscraper/internal/worker"
	errs "wbscraper/pkg/errors"
	"wbscraper/pkg/models"
)

//go:embed static/index.html
var staticFiles embed.FS

// scrapeRequest is the body of POST /scrape. Keys follow the browser form.
type scrapeRequest struct {
	UserID       string   `json:"userId"`
	UserName     string   `json:"userName"`
	StartDate    string   `json:"startDate"`
	EndDate      string   `json:"endDate"`
	Keywords     keywords `json:"keywords"`
	MaxPages     int      `json:"maxPages"`
	RequestDelay *float64 `json:"requestDelay"`
}

// keywords accepts either a JSON list or a comma separated string
type keywords []string

func (k *keywords) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*k = list
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("keywords must be a list or a string")
	}
	*k = strings.Split(s, ",")
	return nil
}

// missingField names the first required field left empty
func (req *scrapeRequest) missingField() string {
	for _, f := range []struct{ name, value string }{
		{"userId", req.UserID},
		{"userName", req.UserName},
		{"startDate", req.StartDate},
		{"endDate", req.EndDate},
	} {
		if strings.TrimSpace(f.value) == "" {
			return f.name
		}
	}
	return ""
}

func (s *Server) params(req *scrapeRequest) models.Params {
	p := s.cfg.Defaults
	p.UserID = req.UserID
	p.UserName = req.UserName
	p.StartDate = req.StartDate
	p.EndDate = req.EndDate
	p.Keywords = req.Keywords
	if req.MaxPages > 0 {
		p.MaxPages = req.MaxPages
	}
	if req.RequestDelay != nil && *req.RequestDelay >= 0 {
		p.Delay = time.Duration(*req.RequestDelay * float64(time.Second))
	}
	return p
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if field := req.missingField(); field != "" {
		writeError(w, http.StatusBadRequest, "missing required field: "+field)
		return
	}

	params := s.params(&req)
	params.Normalize()
	if err := params.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := s.tasks.Create(params)
	err := s.pool.Submit(worker.Job{
		ID:     id,
		Params: params,
		Progress: func(percent int, status string) {
			s.tasks.Progress(id, percent, status)
		},
	})
	if err != nil {
		s.tasks.Remove(id)
		s.logger.WithError(err).Warn("Crawl task rejected")
		writeError(w, http.StatusServiceUnavailable, "could not start task: "+err.Error())
		return
	}

	s.logger.InfoWithFields("Crawl task queued", map[string]interface{}{
		"task_id": id,
		"user_id": params.UserID,
	})
	writeJSON(w, http.StatusAccepted, map[string]string{
		"task_id": id,
		"message": "task started, processing in the background",
	})
}

// progressResponse keeps the field names the browser polls for
type progressResponse struct {
	Task
	Completed bool `json:"completed"`
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tasks.Get(chi.URLParam(r, "taskID"))
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, progressResponse{Task: t, Completed: t.Completed()})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	path, err := s.resolveDownload(chi.URLParam(r, "*"))
	if err != nil {
		writeError(w, http.StatusForbidden, "file may not be downloaded")
		return
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}

var errOutsideOutput = errs.Validation("path escapes the output directory")

// resolveDownload maps a request path onto a file under the output
// directory. The path may be relative to the output directory, repeat its
// prefix, or be the absolute path a result reported.
func (s *Server) resolveDownload(name string) (string, error) {
	root, err := filepath.Abs(s.cfg.Defaults.OutputDir)
	if err != nil {
		return "", err
	}

	name = filepath.FromSlash(strings.TrimPrefix(name, "/"))
	if name == "" {
		return "", errOutsideOutput
	}

	sep := string(filepath.Separator)
	var full string
	if abs := filepath.Join(sep, name); strings.HasPrefix(abs, root+sep) {
		full = abs
	} else {
		cleaned := filepath.Clean(name)
		if prefix := filepath.Clean(s.cfg.Defaults.OutputDir) + sep; strings.HasPrefix(cleaned, prefix) {
			cleaned = strings.TrimPrefix(cleaned, prefix)
		}
		full = filepath.Join(root, cleaned)
	}

	rel, err := filepath.Rel(root, full)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+sep) {
		return "", errOutsideOutput
	}
	return full, nil
}

func (s *Server) handleAPITest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "wbscraper API is running",
		"version": Version,
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "index page missing")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
