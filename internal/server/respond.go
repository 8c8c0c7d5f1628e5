package server

import (
	"encoding/json"
	"net/http"

	"github.com/roach88/moon/internal/value"
)

type envelope struct {
	Status string      `json:"status"`
	Data   value.Value `json:"data,omitempty"`
	Error  *errorBody  `json:"error,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeData(w http.ResponseWriter, v value.Value) {
	if v == nil {
		v = value.Null{}
	}
	writeJSON(w, http.StatusOK, envelope{Status: "ok", Data: v})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, envelope{
		Status: "error",
		Error:  &errorBody{Code: code, Message: message},
	})
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(body)
}
