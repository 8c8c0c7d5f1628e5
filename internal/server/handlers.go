package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/roach88/moon/internal/engine"
	"github.com/roach88/moon/internal/store"
	"github.com/roach88/moon/internal/value"
)

const maxBodyBytes = 1 << 20

// errBadRequest marks client errors in request decoding.
var errBadRequest = errors.New("bad request")

type matchRequest struct {
	Left  *string         `json:"left"`
	Right json.RawMessage `json:"right"`
}

type execRequest struct {
	Expr json.RawMessage `json:"expr"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeData(w, value.String("ok"))
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Left == nil {
		s.fail(w, r, fmt.Errorf("%w: left is required", errBadRequest))
		return
	}
	right, err := decodeValue("right", req.Right)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	v, err := s.engine.Match(r.Context(), *req.Left, right)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, v)
}

func (s *Server) handleExec(w http.ResponseWriter, r *http.Request) {
	var req execRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	expr, err := decodeValue("expr", req.Expr)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	v, err := s.engine.Execute(r.Context(), expr)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, v)
}

// handleWatch answers with an ETag over the canonical value, so pollers
// can send If-None-Match and get 304 while nothing changed.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	v, err := s.engine.Watch(r.Context(), r.PathValue("key"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	digest, err := value.Digest(value.DomainWatch, v)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	etag := `"` + digest + `"`
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeData(w, v)
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	v, err := decodeValue("body", data)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	collection, err := s.engine.Insert(r.Context(), r.PathValue("collection"), r.PathValue("id"), v)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, value.String(collection))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := s.engine.Delete(r.Context(), r.PathValue("collection"), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, value.String(id))
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	collection, err := s.engine.Remove(r.Context(), r.PathValue("collection"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, value.String(collection))
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func decodeValue(field string, raw []byte) (value.Value, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: %s is required", errBadRequest, field)
	}
	v, err := value.Unmarshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errBadRequest, field, err)
	}
	return v, nil
}

// fail maps err to a status code and writes the error envelope.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"request_id", RequestID(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeError(w, status, code, err.Error())
}

func classify(err error) (int, string) {
	if code := engine.CodeOf(err); code != "" {
		if code == engine.ErrCodeUnknownCall {
			return http.StatusNotFound, string(code)
		}
		return http.StatusBadRequest, string(code)
	}
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "BAD_REQUEST"
	case errors.Is(err, store.ErrInvalidCollection):
		return http.StatusBadRequest, "INVALID_COLLECTION"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}
