package web

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strconv"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ginjaninja78/ledger-upload-reformatter/internal/converter"
	"github.com/ginjaninja78/ledger-upload-reformatter/internal/csvsink"
	"github.com/ginjaninja78/ledger-upload-reformatter/internal/record"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// defaultPreviewRows is the number of rows a preview shows without ?limit.
const defaultPreviewRows = 20

// defaultFormMemory bounds the in-memory part of a multipart form when no
// upload limit is configured.
const defaultFormMemory = 32 << 20

// LabelEntry is one row of the invoice type table.
type LabelEntry struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// PreviewResponse is the body of POST /api/v1/preview.
type PreviewResponse struct {
	FileName         string              `json:"file_name"`
	TotalRows        int                 `json:"total_rows"`
	Records          int                 `json:"records"`
	SourceHeaders    []string            `json:"source_headers"`
	Source           []map[string]string `json:"source"`
	ConvertedHeaders []string            `json:"converted_headers"`
	Converted        [][]string          `json:"converted"`
	ConvertedRows    []int               `json:"converted_rows"`
	Failures         []RowFailure        `json:"failures"`
}

func labelTable() []LabelEntry {
	codes := record.Codes()
	entries := make([]LabelEntry, 0, len(codes))
	for _, code := range codes {
		label, _ := record.Label(code)
		entries = append(entries, LabelEntry{Code: code, Label: label})
	}
	return entries
}

// requestLogger tags the server logger with the request ID.
func (s *Server) requestLogger(r *http.Request) zerolog.Logger {
	return s.logger.With().Str("request_id", chimiddleware.GetReqID(r.Context())).Logger()
}

// handleIndex renders the upload page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Labels        []LabelEntry
		SourceColumns []string
		TargetColumns []string
		MaxUploadMB   int64
	}{
		Labels:        labelTable(),
		SourceColumns: record.SourceColumns(),
		TargetColumns: record.Header(),
		MaxUploadMB:   s.httpCfg.MaxUploadBytes >> 20,
	}

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, data); err != nil {
		logger := s.requestLogger(r)
		logger.Error().Err(err).Msg("failed to render index")
		writeError(w, http.StatusInternalServerError, "internal server error", "")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// handleHealth returns 200 while the server is up.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleLabels returns the invoice type label table.
func (s *Server) handleLabels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, labelTable())
}

// readUpload reads the multipart "file" field into a dataset. On failure
// it writes the error response and returns ok=false.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (ds *record.Dataset, name string, ok bool) {
	maxSize := s.httpCfg.MaxUploadBytes
	formMemory := int64(defaultFormMemory)
	if maxSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxSize)
		formMemory = maxSize
	}

	if err := r.ParseMultipartForm(formMemory); err != nil {
		writeError(w, uploadStatus(err), "file too large or invalid form", err.Error())
		return nil, "", false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file provided", "")
		return nil, "", false
	}
	defer file.Close()

	s.metrics.UploadBytes.Observe(float64(header.Size))

	ds, err = converter.Load(header.Filename, file, s.csv)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable export", err.Error())
		return nil, "", false
	}

	return ds, header.Filename, true
}

func (s *Server) transformer(r *http.Request, policy record.Policy) *record.Transformer {
	return record.NewTransformer(
		record.WithPolicy(policy),
		record.WithWorkers(s.workers),
		record.WithLogger(s.requestLogger(r)),
		record.WithObserver(s.metrics),
	)
}

// handlePreview shows the first rows of the source and of the converted
// output. Failing rows are listed rather than rejecting the upload.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	ds, name, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	limit := parseIntQuery(r, "limit", defaultPreviewRows)

	res, err := converter.Transform(r.Context(), s.transformer(r, record.BestEffort), ds, s.metrics)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "conversion failed", err.Error())
		return
	}

	source := ds.Raw
	if limit > 0 && len(source) > limit {
		source = source[:limit]
	}
	converted, convertedRows := previewRecords(res, len(source))

	writeJSON(w, http.StatusOK, PreviewResponse{
		FileName:         name,
		TotalRows:        res.Total,
		Records:          len(res.Records),
		SourceHeaders:    ds.Headers,
		Source:           source,
		ConvertedHeaders: record.Header(),
		Converted:        converted,
		ConvertedRows:    convertedRows,
		Failures:         toRowFailures(res.Failures),
	})
}

// previewRecords returns the converted records of the first window source
// rows, with the 1-based source row each came from. Skipped rows leave a
// gap in the row numbers, so both sides of a preview cover the same rows.
func previewRecords(res *record.Result, window int) ([][]string, []int) {
	failed := make(map[int]bool, len(res.Failures))
	for _, f := range res.Failures {
		failed[f.Index] = true
	}

	converted := [][]string{}
	rows := []int{}
	next := 0
	for i := 0; i < window && i < res.Total && next < len(res.Records); i++ {
		if failed[i] {
			continue
		}
		converted = append(converted, res.Records[next].Values())
		rows = append(rows, i+1)
		next++
	}
	return converted, rows
}

// handleConvert returns the converted CSV. Fail-fast unless
// ?mode=best_effort, in which case skipped rows are counted in the
// X-Row-Errors header.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	policy, err := record.ParsePolicy(r.URL.Query().Get("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid mode", err.Error())
		return
	}

	ds, name, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	logger := s.requestLogger(r)

	res, err := converter.Transform(r.Context(), s.transformer(r, policy), ds, s.metrics)
	if err != nil {
		var rowErr *record.RowError
		if errors.As(err, &rowErr) {
			logger.Warn().Str("upload", name).Str("kind", rowErr.Kind()).Msg(rowErr.Error())
			writeRowErrors(w, []*record.RowError{rowErr})
			return
		}
		writeError(w, http.StatusInternalServerError, "conversion failed", err.Error())
		return
	}

	var buf bytes.Buffer
	if err := csvsink.Write(&buf, res.Records); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to write CSV", err.Error())
		return
	}

	logger.Info().
		Str("upload", name).
		Int("records", len(res.Records)).
		Int("row_errors", len(res.Failures)).
		Msg("converted upload")

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+csvsink.FileName+`"`)
	w.Header().Set("X-Row-Errors", strconv.Itoa(len(res.Failures)))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
