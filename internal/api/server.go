// Package api is the HTTP transport over the runtime: it translates
// JSON wire payloads to runtime operations and formats the standard
// response envelope. No world logic lives here.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/geserver/server/internal/component"
	"github.com/geserver/server/internal/entity"
	"github.com/geserver/server/internal/runtime"
)

// Machine-readable error codes carried in the error envelope.
const (
	codeInvalidJSON     = "INVALID_JSON_REQUEST"
	codeValidation      = "VALIDATION_ERROR"
	codeNotFound        = "ENTITY_NOT_FOUND"
	codeAlreadyPresent  = "COMPONENT_ALREADY_PRESENT"
	codeLoadError       = "LOAD_ERROR"
	codeUnsupportedType = "UNSUPPORTED_COMPONENT_TYPE"
	codeInternal        = "INTERNAL_SERVER_ERROR"
)

// Server exposes the runtime's operations over HTTP.
type Server struct {
	rt  *runtime.Runtime
	log *zap.Logger
	mux *http.ServeMux
}

func New(rt *runtime.Runtime, log *zap.Logger) *Server {
	s := &Server{rt: rt, log: log, mux: http.NewServeMux()}
	s.mux.HandleFunc("/create_entity", s.handleCreateEntity)
	s.mux.HandleFunc("/remove_entity", s.handleRemoveEntity)
	s.mux.HandleFunc("/get_entity_components", s.handleGetEntity)
	s.mux.HandleFunc("/add_component_to_entity", s.handleAddComponent)
	s.mux.HandleFunc("/reset", s.handleReset)
	s.mux.HandleFunc("/status", s.handleStatus)
	return s
}

// Handler returns the route handler for mounting in an http.Server.
func (s *Server) Handler() http.Handler { return s.mux }

// ── Response envelope ─────────────────────────────────────────────

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (s *Server) success(w http.ResponseWriter, data any) {
	if data == nil {
		data = map[string]any{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "success",
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) failure(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"status":    "error",
		"error":     errorBody{Message: message, Code: code},
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// fail maps a runtime error onto the envelope and HTTP status.
func (s *Server) fail(w http.ResponseWriter, err error) {
	var verr *component.ValidationError
	var lerr *entity.LoadError
	switch {
	case errors.As(err, &verr):
		code := codeValidation
		if verr.Field == "type" {
			code = codeUnsupportedType
		}
		s.failure(w, http.StatusBadRequest, code, verr.Error())
	case errors.Is(err, entity.ErrNotFound):
		s.failure(w, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, entity.ErrAlreadyPresent):
		s.failure(w, http.StatusConflict, codeAlreadyPresent, err.Error())
	case errors.As(err, &lerr):
		s.failure(w, http.StatusUnprocessableEntity, codeLoadError, lerr.Error())
	default:
		s.log.Error("internal error", zap.Error(err))
		s.failure(w, http.StatusInternalServerError, codeInternal, "internal error")
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		s.failure(w, http.StatusBadRequest, codeInvalidJSON, "invalid JSON request")
		return false
	}
	return true
}

// ── Handlers ──────────────────────────────────────────────────────

type createEntityRequest struct {
	Name        string   `json:"name"`
	TargetScene string   `json:"targetScene"`
	Tags        []string `json:"tags"`
}

func (s *Server) handleCreateEntity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, r)
		return
	}
	var req createEntityRequest
	if !s.decode(w, r, &req) {
		return
	}
	id, err := s.rt.CreateEntity(req.Name, req.TargetScene, req.Tags)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.success(w, map[string]any{"entityId": id, "message": "Entity created"})
}

type entityIDRequest struct {
	EntityID int64 `json:"entityId"`
}

func (s *Server) handleRemoveEntity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		s.methodNotAllowed(w, r)
		return
	}
	var req entityIDRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.rt.RemoveEntity(entity.ID(req.EntityID)); err != nil {
		s.fail(w, err)
		return
	}
	s.success(w, map[string]any{"message": "Entity removed"})
}

func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, r)
		return
	}
	id, ok := s.entityIDFrom(w, r)
	if !ok {
		return
	}
	snap, err := s.rt.QueryEntity(id)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.success(w, map[string]any{
		"entityId":   id,
		"components": snapshotJSON(snap),
	})
}

// entityIDFrom accepts the id either as a JSON body or as the
// entityId query parameter.
func (s *Server) entityIDFrom(w http.ResponseWriter, r *http.Request) (entity.ID, bool) {
	if q := r.URL.Query().Get("entityId"); q != "" {
		n, err := strconv.ParseInt(q, 10, 64)
		if err != nil {
			s.failure(w, http.StatusBadRequest, codeValidation, "entityId must be an integer")
			return 0, false
		}
		return entity.ID(n), true
	}
	var req entityIDRequest
	if !s.decode(w, r, &req) {
		return 0, false
	}
	return entity.ID(req.EntityID), true
}

type addComponentRequest struct {
	EntityID int64          `json:"entityId"`
	Type     string         `json:"type"`
	Data     map[string]any `json:"data"`
}

func (s *Server) handleAddComponent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, r)
		return
	}
	var req addComponentRequest
	if !s.decode(w, r, &req) {
		return
	}
	value, err := s.rt.AttachComponent(entity.ID(req.EntityID), component.Kind(req.Type), req.Data)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.success(w, map[string]any{
		"entityId":  req.EntityID,
		"component": componentJSON(value),
		"message":   "Component added",
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, r)
		return
	}
	s.rt.ResetWorld()
	s.success(w, map[string]any{"message": "World reset"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, r)
		return
	}
	st := s.rt.Status()
	s.success(w, map[string]any{
		"startedAt": st.StartedAt.UTC().Format(time.RFC3339Nano),
		"uptimeMs":  st.Uptime.Milliseconds(),
		"ticks":     st.Ticks,
		"entities":  st.Entities,
	})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.failure(w, http.StatusMethodNotAllowed, codeValidation,
		"method "+r.Method+" not allowed for "+r.URL.Path)
}

// ── Wire shapes ───────────────────────────────────────────────────

func snapshotJSON(snap map[component.Kind]any) map[string]any {
	out := make(map[string]any, len(snap))
	for kind, v := range snap {
		out[string(kind)] = componentJSON(v)
	}
	return out
}

func componentJSON(v any) any {
	switch c := v.(type) {
	case component.CoreProperties:
		return map[string]any{
			"name":        c.Name,
			"tags":        c.Tags,
			"targetScene": c.TargetScene,
		}
	case component.Transform:
		return map[string]any{
			"position": [3]float64(c.Position),
			"scale":    [3]float64(c.Scale),
		}
	case component.Script:
		return map[string]any{"scriptPath": c.ScriptPath}
	case component.Renderer:
		return map[string]any{"filePath": c.FilePath, "handle": c.Handle}
	default:
		return v
	}
}
