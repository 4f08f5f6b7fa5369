package clienttest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
)

type issueJSON struct {
	Loc  []any  `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type"`
}

func issue(msg, typ string, loc ...any) issueJSON {
	return issueJSON{Loc: loc, Msg: msg, Type: typ}
}

func jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

func validation(w http.ResponseWriter, issues ...issueJSON) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnprocessableEntity)
	_ = json.NewEncoder(w).Encode(map[string][]issueJSON{"detail": issues})
}

func requireQuery(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	if !r.URL.Query().Has(name) {
		validation(w, issue("field required", "value_error.missing", "query", name))
		return "", false
	}
	return r.URL.Query().Get(name), true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	data, _ := io.ReadAll(r.Body)
	if len(bytes.TrimSpace(data)) == 0 {
		validation(w, issue("field required", "value_error.missing", "body"))
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		validation(w, issue(err.Error(), "value_error.jsondecode", "body"))
		return false
	}
	return true
}

func decodeOptionalBody(w http.ResponseWriter, r *http.Request, v any) bool {
	data, _ := io.ReadAll(r.Body)
	if len(bytes.TrimSpace(data)) == 0 {
		return true
	}
	if err := json.Unmarshal(data, v); err != nil {
		validation(w, issue(err.Error(), "value_error.jsondecode", "body"))
		return false
	}
	return true
}
