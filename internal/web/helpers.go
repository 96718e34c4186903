package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ginjaninja78/ledger-upload-reformatter/internal/record"
)

// ErrorResponse is the JSON body of every error answer.
type ErrorResponse struct {
	Error    string       `json:"error"`
	Message  string       `json:"message,omitempty"`
	Failures []RowFailure `json:"failures,omitempty"`
}

// RowFailure describes one failed derivation rule.
type RowFailure struct {
	Row     int    `json:"row"`
	Line    int    `json:"line,omitempty"`
	Column  string `json:"column"`
	Field   string `json:"field"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, ErrorResponse{
		Error:   message,
		Message: details,
	})
}

// writeRowErrors answers 422 with the failed rows.
func writeRowErrors(w http.ResponseWriter, failures []*record.RowError) {
	resp := ErrorResponse{
		Error:    "conversion failed",
		Failures: toRowFailures(failures),
	}
	if len(failures) > 0 {
		resp.Message = failures[0].Error()
	}
	writeJSON(w, http.StatusUnprocessableEntity, resp)
}

func toRowFailures(failures []*record.RowError) []RowFailure {
	out := make([]RowFailure, len(failures))
	for i, f := range failures {
		out[i] = RowFailure{
			Row:     f.Index + 1,
			Line:    f.Line,
			Column:  f.Column,
			Field:   f.Field,
			Kind:    f.Kind(),
			Message: f.Err.Error(),
		}
	}
	return out
}

// uploadStatus maps a form parsing error to an HTTP status.
func uploadStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return defaultValue
	}
	return i
}
