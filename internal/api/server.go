// Package api serves the upload, match and download endpoints over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/seanblong/resumatch/internal/extract"
	"github.com/seanblong/resumatch/internal/match"
	"github.com/seanblong/resumatch/internal/scoring"
	"github.com/seanblong/resumatch/internal/store"
	"github.com/seanblong/resumatch/pkg/models"
)

// Matcher ranks candidates against a query.
type Matcher interface {
	Match(ctx context.Context, query models.Document, candidates []models.Document, threshold float64, weights *scoring.Weights) (models.Report, error)
}

// Server holds the session state behind the HTTP endpoints.
type Server struct {
	Store          store.DocumentStore
	Matcher        Matcher
	Threshold      float64
	MaxUploadBytes int64
}

const defaultMaxUpload = 20 << 20

// NewServer creates a Server. A non-positive maxUploadBytes uses 20 MB.
func NewServer(st store.DocumentStore, m Matcher, threshold float64, maxUploadBytes int64) *Server {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUpload
	}
	return &Server{Store: st, Matcher: m, Threshold: threshold, MaxUploadBytes: maxUploadBytes}
}

// Handler returns the routed endpoints wrapped with request logging.
func (s *Server) Handler(logger zerolog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /jd", s.handleJD)
	mux.HandleFunc("POST /resumes", s.handleUploadResumes)
	mux.HandleFunc("GET /resumes", s.handleListResumes)
	mux.HandleFunc("GET /match", s.handleMatch)
	mux.HandleFunc("GET /download/{name...}", s.handleDownload)
	mux.HandleFunc("POST /clear", s.handleClear)

	return hlog.NewHandler(logger)(
		hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
			logger.Info().Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Int("size", size).Dur("dur", dur).Msg("http")
		})(cors(mux)),
	)
}

// cors lets the browser frontend call the API from another origin.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "running", "service": "resumatch"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "OK"})
}

type jdResponse struct {
	Message string `json:"message"`
	Length  int    `json:"length"`
}

func (s *Server) handleJD(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.MaxUploadBytes)

	doc := models.StoredDocument{Name: "job-description.txt", ContentType: extract.TypePlain}
	switch mediaType(r) {
	case "application/json":
		var body struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, r, uploadStatus(err), "invalid JSON body")
			return
		}
		doc.Text = body.Text
	case "multipart/form-data":
		if err := r.ParseMultipartForm(s.MaxUploadBytes); err != nil {
			writeError(w, r, uploadStatus(err), "invalid form: "+err.Error())
			return
		}
		file, header, err := r.FormFile("file")
		if err == nil {
			defer file.Close()
			d, status, err := readUpload(file, header)
			if err != nil {
				writeError(w, r, status, err.Error())
				return
			}
			doc = d
		} else if !errors.Is(err, http.ErrMissingFile) {
			writeError(w, r, http.StatusBadRequest, "invalid file: "+err.Error())
			return
		} else {
			doc.Text = r.FormValue("text")
		}
	default:
		if err := r.ParseForm(); err != nil {
			writeError(w, r, uploadStatus(err), "invalid form: "+err.Error())
			return
		}
		doc.Text = r.FormValue("text")
	}

	if doc.Data == nil {
		if strings.TrimSpace(doc.Text) == "" {
			writeError(w, r, http.StatusBadRequest, "Provide either text or file")
			return
		}
		doc.Data = []byte(doc.Text)
	}
	doc.Text = strings.TrimSpace(doc.Text)
	if doc.Text == "" {
		writeError(w, r, http.StatusBadRequest, "Could not extract text from file")
		return
	}
	if err := s.Store.SetQuery(r.Context(), doc); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("store job description")
		writeError(w, r, http.StatusInternalServerError, "could not store job description")
		return
	}

	hlog.FromRequest(r).Info().Str("name", doc.Name).Int("length", utf8.RuneCountInString(doc.Text)).Msg("job description saved")
	writeJSON(w, r, http.StatusOK, jdResponse{Message: "JD saved", Length: utf8.RuneCountInString(doc.Text)})
}

type skippedFile struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

type uploadResponse struct {
	Message  string        `json:"message"`
	Count    int           `json:"count"`
	NewCount int           `json:"new_count"`
	Skipped  []skippedFile `json:"skipped"`
}

func (s *Server) handleUploadResumes(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.MaxUploadBytes); err != nil {
		writeError(w, r, uploadStatus(err), "invalid form: "+err.Error())
		return
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, r, http.StatusBadRequest, "No files provided")
		return
	}

	ctx := r.Context()
	logger := hlog.FromRequest(r)
	resp := uploadResponse{Skipped: []skippedFile{}}
	for _, fh := range headers {
		if _, exists, err := s.Store.Candidate(ctx, fh.Filename); err != nil {
			logger.Error().Err(err).Str("file", fh.Filename).Msg("lookup resume")
			writeError(w, r, http.StatusInternalServerError, "could not read stored resumes")
			return
		} else if exists {
			resp.Skipped = append(resp.Skipped, skippedFile{File: fh.Filename, Reason: "already uploaded"})
			continue
		}

		file, err := fh.Open()
		if err != nil {
			resp.Skipped = append(resp.Skipped, skippedFile{File: fh.Filename, Reason: err.Error()})
			continue
		}
		doc, _, err := readUpload(file, fh)
		file.Close()
		if err != nil {
			logger.Warn().Err(err).Str("file", fh.Filename).Msg("resume skipped")
			resp.Skipped = append(resp.Skipped, skippedFile{File: fh.Filename, Reason: err.Error()})
			continue
		}

		if err := s.Store.AddCandidate(ctx, doc); errors.Is(err, store.ErrDuplicate) {
			resp.Skipped = append(resp.Skipped, skippedFile{File: fh.Filename, Reason: "already uploaded"})
			continue
		} else if err != nil {
			logger.Error().Err(err).Str("file", fh.Filename).Msg("store resume")
			writeError(w, r, http.StatusInternalServerError, "could not store resume")
			return
		}
		resp.NewCount++
	}

	if resp.NewCount == 0 {
		writeError(w, r, http.StatusBadRequest, "Could not extract text from any resume or all files already uploaded")
		return
	}

	all, err := s.Store.Candidates(ctx)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "could not read stored resumes")
		return
	}
	resp.Count = len(all)
	resp.Message = fmt.Sprintf("%d new resume(s) added. Total: %d resumes", resp.NewCount, resp.Count)
	logger.Info().Int("new", resp.NewCount).Int("total", resp.Count).Int("skipped", len(resp.Skipped)).Msg("resumes uploaded")
	writeJSON(w, r, http.StatusOK, resp)
}

type resumeInfo struct {
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Length      int       `json:"length"`
	CreatedAt   time.Time `json:"created_at"`
}

func (s *Server) handleListResumes(w http.ResponseWriter, r *http.Request) {
	all, err := s.Store.Candidates(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "could not read stored resumes")
		return
	}
	out := make([]resumeInfo, 0, len(all))
	for _, d := range all {
		out = append(out, resumeInfo{
			Name:        d.Name,
			ContentType: d.ContentType,
			Length:      utf8.RuneCountInString(d.Text),
			CreatedAt:   d.CreatedAt,
		})
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"count": len(out), "resumes": out})
}

type selectedRow struct {
	File       string   `json:"file"`
	Semantic   float64  `json:"semantic"`
	Keywords   float64  `json:"keywords"`
	Skills     *float64 `json:"skills,omitempty"`
	Education  *float64 `json:"education,omitempty"`
	Experience *float64 `json:"experience,omitempty"`
	Final      float64  `json:"final"`
	Degraded   bool     `json:"degraded,omitempty"`
}

type matchResponse struct {
	Count     int                `json:"count"`
	Selected  []selectedRow      `json:"selected"`
	Excluded  []models.Exclusion `json:"excluded"`
	Threshold float64            `json:"threshold"`
	Degraded  bool               `json:"degraded"`
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	threshold := s.Threshold
	if v := r.URL.Query().Get("threshold"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(t) || math.IsInf(t, 0) {
			writeError(w, r, http.StatusBadRequest, "threshold must be a number")
			return
		}
		threshold = t
	}

	ctx := r.Context()
	jd, ok, err := s.Store.Query(ctx)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "could not read job description")
		return
	}
	if !ok || strings.TrimSpace(jd.Text) == "" {
		writeError(w, r, http.StatusBadRequest, "Upload JD first")
		return
	}
	stored, err := s.Store.Candidates(ctx)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "could not read stored resumes")
		return
	}
	if len(stored) == 0 {
		writeError(w, r, http.StatusBadRequest, "Upload resumes first")
		return
	}

	candidates := make([]models.Document, len(stored))
	for i, d := range stored {
		candidates[i] = d.Document()
	}

	report, err := s.Matcher.Match(ctx, jd.Document(), candidates, threshold, nil)
	switch {
	case errors.Is(err, match.ErrEmptyQuery):
		writeError(w, r, http.StatusBadRequest, "Upload JD first")
		return
	case errors.Is(err, match.ErrNoCandidates):
		writeError(w, r, http.StatusBadRequest, "Upload resumes first")
		return
	case errors.Is(err, context.Canceled):
		// Client went away; nobody is listening for a body.
		hlog.FromRequest(r).Info().Msg("match cancelled by client")
		return
	case err != nil:
		hlog.FromRequest(r).Error().Err(err).Msg("match failed")
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	resp := matchResponse{
		Count:     report.Count,
		Selected:  make([]selectedRow, 0, len(report.Results)),
		Excluded:  report.Excluded,
		Threshold: threshold,
		Degraded:  report.Degraded,
	}
	if resp.Excluded == nil {
		resp.Excluded = []models.Exclusion{}
	}
	for _, res := range report.Results {
		b := res.Breakdown
		resp.Selected = append(resp.Selected, selectedRow{
			File:       res.CandidateID,
			Semantic:   b.Semantic,
			Keywords:   b.Keywords,
			Skills:     b.Skills,
			Education:  b.Education,
			Experience: b.Experience,
			Final:      b.Final,
			Degraded:   res.Degraded,
		})
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	doc, ok, err := s.Store.Candidate(r.Context(), name)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "could not read stored resumes")
		return
	}
	if !ok {
		writeError(w, r, http.StatusNotFound, "File not found")
		return
	}
	if len(doc.Data) == 0 {
		writeError(w, r, http.StatusNotFound, "File data not available")
		return
	}

	ct := doc.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.Name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Data)))
	if _, err := w.Write(doc.Data); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("file", name).Msg("download interrupted")
	}
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.Clear(r.Context()); err != nil {
		writeError(w, r, http.StatusInternalServerError, "could not clear session")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"message": "All data cleared"})
}

// readUpload extracts the text of an uploaded file. The returned status is the
// HTTP code to answer with when err is not nil.
func readUpload(f multipart.File, fh *multipart.FileHeader) (models.StoredDocument, int, error) {
	data, err := io.ReadAll(f)
	if err != nil {
		return models.StoredDocument{}, http.StatusBadRequest, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	ct := extract.ContentType(fh.Filename, fh.Header.Get("Content-Type"))
	text, err := extract.Text(data, ct)
	if errors.Is(err, extract.ErrNoText) {
		return models.StoredDocument{}, http.StatusBadRequest, errors.New("Could not extract text from file")
	}
	if err != nil {
		return models.StoredDocument{}, http.StatusBadRequest, err
	}
	return models.StoredDocument{Name: fh.Filename, ContentType: ct, Text: text, Data: data}, http.StatusOK, nil
}

func uploadStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func mediaType(r *http.Request) string {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return ct
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, detail string) {
	writeJSON(w, r, status, map[string]string{"detail": detail})
}
