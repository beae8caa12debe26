package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-runtime/internal/presence"
	"github.com/nerrad567/gray-logic-runtime/internal/rpc"
)

// actionRequest is the body of POST /components/{id}/actions/{action}.
type actionRequest struct {
	Value any `json:"value"`
}

// call runs a procedure and writes its result with status on success.
func (s *Server) call(w http.ResponseWriter, r *http.Request, method string, params json.RawMessage, status int) {
	result, err := s.procedures.Call(r.Context(), method, params)
	if s.observer != nil {
		s.observer(method, rpc.ErrorCode(err))
	}
	if err != nil {
		s.logger.Debug("procedure failed", "method", method, "error", err,
			"request_id", r.Context().Value(ctxKeyRequestID))
		writeCallError(w, err)
		return
	}
	writeJSON(w, status, result)
}

// readBody returns the request body, or nil for an empty body.
func readBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	if r.Body == nil {
		return nil, true
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "request body too large")
			return nil, false
		}
		writeBadRequest(w, "reading request body failed")
		return nil, false
	}
	if len(data) == 0 {
		return nil, true
	}
	return data, true
}

// mustParams encodes path-derived params. The values are plain strings and
// maps, which always encode.
func mustParams(v any) json.RawMessage {
	data, _ := json.Marshal(v) //nolint:errcheck // See doc comment
	return data
}

// skippedDetail explains a degraded status. Persisted components that fail
// to build are not fatal at startup: the runtime serves the rest and keeps
// their configs in the store so a fixed plugin restores them.
const skippedDetail = "persisted components could not be built; their configs are kept in the store and they are not running"

// handleHealth returns the runtime health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":           "ok",
		"version":          s.version,
		"instance":         s.instance,
		"bindings_enabled": s.runtime.BindingsEnabled(),
	}
	if s.presence != nil {
		resp["presence_available"] = s.presence.Available()
	}

	skipped, err := s.runtime.Skipped(r.Context())
	if err != nil {
		resp["status"] = "unavailable"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	if len(skipped) > 0 {
		resp["status"] = "degraded"
		resp["detail"] = skippedDetail
		resp["skipped_components"] = skipped
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRPC runs any registered procedure by name with the body as params.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	params, ok := readBody(w, r)
	if !ok {
		return
	}
	s.call(w, r, chi.URLParam(r, "method"), params, http.StatusOK)
}

func (s *Server) handleListComponents(w http.ResponseWriter, r *http.Request) {
	s.call(w, r, rpc.MethodComponentsList, nil, http.StatusOK)
}

func (s *Server) handleComponentStatus(w http.ResponseWriter, r *http.Request) {
	s.call(w, r, rpc.MethodComponentsStatus, nil, http.StatusOK)
}

func (s *Server) handleAddComponent(w http.ResponseWriter, r *http.Request) {
	params, ok := readBody(w, r)
	if !ok {
		return
	}
	s.call(w, r, rpc.MethodComponentsAdd, params, http.StatusCreated)
}

func (s *Server) handleRemoveComponent(w http.ResponseWriter, r *http.Request) {
	params := mustParams(rpc.ComponentRef{ID: chi.URLParam(r, "id")})
	s.call(w, r, rpc.MethodComponentsRemove, params, http.StatusOK)
}

func (s *Server) handleExecuteAction(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	var req actionRequest
	if body != nil {
		if err := json.Unmarshal(body, &req); err != nil {
			writeBadRequest(w, "invalid JSON body")
			return
		}
	}

	params := mustParams(rpc.ExecuteParams{
		ID:     chi.URLParam(r, "id"),
		Action: chi.URLParam(r, "action"),
		Value:  req.Value,
	})
	s.call(w, r, rpc.MethodComponentsExecute, params, http.StatusOK)
}

func (s *Server) handleListBindings(w http.ResponseWriter, r *http.Request) {
	s.call(w, r, rpc.MethodBindingsList, nil, http.StatusOK)
}

func (s *Server) handleBindingStatus(w http.ResponseWriter, r *http.Request) {
	s.call(w, r, rpc.MethodBindingsStatus, nil, http.StatusOK)
}

func (s *Server) handleAddBinding(w http.ResponseWriter, r *http.Request) {
	params, ok := readBody(w, r)
	if !ok {
		return
	}
	s.call(w, r, rpc.MethodBindingsAdd, params, http.StatusCreated)
}

func (s *Server) handleRemoveBinding(w http.ResponseWriter, r *http.Request) {
	params, ok := readBody(w, r)
	if !ok {
		return
	}
	s.call(w, r, rpc.MethodBindingsRemove, params, http.StatusOK)
}

func (s *Server) handleListPlugins(w http.ResponseWriter, r *http.Request) {
	s.call(w, r, rpc.MethodPluginsList, nil, http.StatusOK)
}

func (s *Server) handleSaveStore(w http.ResponseWriter, r *http.Request) {
	s.call(w, r, rpc.MethodStoreSave, nil, http.StatusOK)
}

// handleListInstances returns the runtime instances seen on the bus.
func (s *Server) handleListInstances(w http.ResponseWriter, _ *http.Request) {
	if s.presence == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"available": false,
			"instances": []presence.Peer{},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"available": s.presence.Available(),
		"instances": s.presence.Peers(),
	})
}

// handleInstanceRPC runs a procedure on the named instance. Calls for this
// instance run locally; others are forwarded over the bus.
func (s *Server) handleInstanceRPC(w http.ResponseWriter, r *http.Request) {
	params, ok := readBody(w, r)
	if !ok {
		return
	}
	instance := chi.URLParam(r, "instance")
	method := chi.URLParam(r, "method")

	if instance == s.instance {
		s.call(w, r, method, params, http.StatusOK)
		return
	}
	if s.remote == nil {
		writeError(w, http.StatusServiceUnavailable, rpc.CodeUnavailable, "remote calls need the MQTT bus")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), remoteCallTimeout)
	defer cancel()

	var in any
	if params != nil {
		in = params
	}
	var result json.RawMessage
	if err := s.remote.Call(ctx, instance, method, in, &result); err != nil {
		s.logger.Debug("remote procedure failed", "instance", instance, "method", method, "error", err,
			"request_id", r.Context().Value(ctxKeyRequestID))
		writeCallError(w, err)
		return
	}
	if result == nil {
		result = json.RawMessage("null")
	}
	writeJSON(w, http.StatusOK, result)
}
