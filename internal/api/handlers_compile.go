package api

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/dgallion1/plandag/internal/outline"
	"github.com/dgallion1/plandag/internal/parser"
	"github.com/dgallion1/plandag/internal/pipeline"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// handleCompile compiles one outline synchronously. Outline errors are
// 422 with a problem body; a DAG is returned as JSON, or YAML with
// ?format=yaml.
func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	src, rerr := s.readSource(w, r)
	if rerr != nil {
		jsonError(w, rerr.msg, rerr.code)
		return
	}

	dag, problem := s.compile(src.Filename, src.Data, src.Now)
	if problem != nil {
		code := http.StatusUnprocessableEntity
		if problem.Kind == "parse" {
			code = http.StatusBadRequest
		}
		writeProblem(w, code, problem)
		return
	}
	writeDAG(w, r, dag)
}

type batchResult struct {
	Filename string            `json:"filename"`
	DAG      *outline.DAG      `json:"dag,omitempty"`
	Problem  *pipeline.Problem `json:"problem,omitempty"`
}

// handleBatchCompile compiles every multipart "files" part concurrently and
// reports per-file results in upload order.
func (s *Server) handleBatchCompile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*10+10*1024*1024)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		rerr := readError(err, "invalid multipart form")
		jsonError(w, rerr.msg, rerr.code)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}
	now, err := outline.ParseNow(r.FormValue("now"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	results := make([]batchResult, len(files))
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(max(1, s.cfg.WorkerCount))

	for i, fh := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			filename := sanitizeFilename(fh.Filename)
			res := batchResult{Filename: filename}
			defer func() { results[i] = res }()

			if !parser.IsSupportedExtension(filename) {
				res.Problem = &pipeline.Problem{Error: "unsupported file type", Kind: "parse"}
				return nil
			}
			f, err := fh.Open()
			if err != nil {
				res.Problem = pipeline.ProblemFrom(err, "parse")
				return nil
			}
			data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
			f.Close()
			if err != nil || int64(len(data)) > s.cfg.MaxUploadBytes {
				res.Problem = &pipeline.Problem{Error: "file too large or read error", Kind: "parse"}
				return nil
			}
			res.DAG, res.Problem = s.compile(filename, data, now)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		jsonError(w, "batch cancelled: "+err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// compile extracts outline text from data and compiles it.
func (s *Server) compile(filename string, data []byte, now time.Time) (*outline.DAG, *pipeline.Problem) {
	p, err := parser.ForFile(filename, parser.Options{FallbackPdftotext: s.cfg.PDFFallbackPdftotext})
	if err != nil {
		return nil, pipeline.ProblemFrom(err, "parse")
	}
	doc, err := p.Parse(bytes.NewReader(data), filename)
	if err != nil {
		return nil, pipeline.ProblemFrom(err, "parse")
	}
	dag, err := s.orchestrator.Compiler().Compile(doc.Text, now)
	if err != nil {
		return nil, pipeline.ProblemFrom(err, "compile")
	}
	return dag, nil
}

func writeDAG(w http.ResponseWriter, r *http.Request, dag *outline.DAG) {
	if r.URL.Query().Get("format") != "yaml" {
		writeJSON(w, http.StatusOK, dag)
		return
	}
	out, err := yaml.Marshal(dag)
	if err != nil {
		jsonError(w, "failed to encode yaml", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}
