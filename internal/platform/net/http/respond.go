package http

import (
	"encoding/json"
	stdhttp "net/http"
)

// Status is the body of the probe endpoints
type Status struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// JSON writes v as application/json with the given status
func JSON(w stdhttp.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
