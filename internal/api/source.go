package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgallion1/plandag/internal/outline"
	"github.com/dgallion1/plandag/internal/parser"
	"github.com/dgallion1/plandag/internal/pipeline"
)

// source is one outline submission, whatever its transport.
type source struct {
	DocID    string
	Title    string
	Filename string
	Data     []byte
	Now      time.Time
}

// sourceJSON is the JSON request body for compile and document routes.
type sourceJSON struct {
	DocID    string `json:"doc_id"`
	Title    string `json:"title"`
	Filename string `json:"filename"`
	Text     string `json:"text"`
	Now      string `json:"now"`
}

type requestError struct {
	msg  string
	code int
}

func badRequest(format string, args ...any) *requestError {
	return &requestError{msg: fmt.Sprintf(format, args...), code: http.StatusBadRequest}
}

// readSource accepts a multipart "file" upload, a JSON body, or raw
// outline text. Metadata comes from form fields, JSON fields or the query
// string respectively.
func (s *Server) readSource(w http.ResponseWriter, r *http.Request) (*source, *requestError) {
	// Extra 1MB for form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var (
		src     *source
		nowText string
		rerr    *requestError
	)
	switch mediaType {
	case "multipart/form-data":
		src, rerr = s.readMultipart(r)
		nowText = r.FormValue("now")
	case "application/json":
		var body sourceJSON
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return nil, readError(err, "invalid JSON body")
		}
		src = &source{
			DocID:    body.DocID,
			Title:    body.Title,
			Filename: body.Filename,
			Data:     []byte(body.Text),
		}
		nowText = body.Now
	default:
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, readError(err, "failed to read body")
		}
		q := r.URL.Query()
		src = &source{
			DocID:    q.Get("doc_id"),
			Title:    q.Get("title"),
			Filename: q.Get("filename"),
			Data:     data,
		}
		nowText = q.Get("now")
	}
	if rerr != nil {
		return nil, rerr
	}

	if src.Filename == "" {
		src.Filename = pipeline.DefaultFilename
	}
	src.Filename = sanitizeFilename(src.Filename)
	if !parser.IsSupportedExtension(src.Filename) {
		return nil, badRequest("unsupported file type: %s", filepath.Ext(src.Filename))
	}
	if int64(len(src.Data)) > s.cfg.MaxUploadBytes {
		return nil, tooLarge(s.cfg.MaxUploadBytes)
	}

	now, err := outline.ParseNow(nowText)
	if err != nil {
		return nil, badRequest("%v", err)
	}
	src.Now = now
	return src, nil
}

func (s *Server) readMultipart(r *http.Request) (*source, *requestError) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, readError(err, "invalid multipart form")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, badRequest("file is required: %v", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return nil, &requestError{msg: "failed to read file", code: http.StatusInternalServerError}
	}
	return &source{
		DocID:    r.FormValue("doc_id"),
		Title:    r.FormValue("title"),
		Filename: header.Filename,
		Data:     data,
	}, nil
}

// readError maps body read failures, reporting oversized bodies as 413.
func readError(err error, msg string) *requestError {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return &requestError{msg: "request body too large", code: http.StatusRequestEntityTooLarge}
	}
	return badRequest("%s: %v", msg, err)
}

func tooLarge(limit int64) *requestError {
	return &requestError{
		msg:  fmt.Sprintf("file exceeds max size (%d bytes)", limit),
		code: http.StatusRequestEntityTooLarge,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeProblem(w http.ResponseWriter, code int, p *pipeline.Problem) {
	writeJSON(w, code, p)
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
