// Package rest mounts composed resources onto a chi router. Routing stays
// thin: paths derive from the entity name, query input arrives as the JSON
// envelope the querylanguage package decodes, and handlers delegate to the
// resource's dispatch table. Anything the resource does not carry is simply
// not routed.
package rest

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/inflect"

	"github.com/crudox/crudox"
	"github.com/crudox/crudox/compose"
	"github.com/crudox/crudox/crud"
	"github.com/crudox/crudox/privacy"
	"github.com/crudox/crudox/querylanguage"
	"github.com/crudox/crudox/schema/field"
)

// envelope is the response body shape.
type envelope struct {
	Data     any                     `json:"data,omitempty"`
	PageInfo *querylanguage.PageInfo `json:"pageInfo,omitempty"`
	Error    *errorBody              `json:"error,omitempty"`
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Server mounts resources and serves them over HTTP.
type Server struct {
	mux *chi.Mux
	log *slog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the logger used for request failures.
func WithLogger(log *slog.Logger) ServerOption {
	return func(s *Server) { s.log = log }
}

// NewServer returns a server with no resources mounted.
func NewServer(opts ...ServerOption) *Server {
	s := &Server{mux: chi.NewRouter(), log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Path returns the route segment a resource is mounted under.
func Path(res *compose.Resource) string {
	return inflect.Dasherize(inflect.Pluralize(res.Service().Entity().Name))
}

// Mount routes the resource's enabled operations:
//
//	GET    /{path}              paginate (list when paginate is disabled)
//	GET    /{path}/{id}         get
//	POST   /{path}              create
//	PATCH  /{path}/{id}         update
//	DELETE /{path}/{id}         remove
//	POST   /{path}/query        paginate with the envelope in the body
//	POST   /{path}/grouped      groupedList
//	POST   /{path}/{id}/recover recover
//	DELETE /{path}/{id}/hard    hardRemove
func (s *Server) Mount(res *compose.Resource) {
	path := "/" + Path(res)
	h := &resourceHandler{res: res, log: s.log}
	s.mux.Route(path, func(r chi.Router) {
		if res.Enabled(compose.OpPaginate) {
			r.Get("/", h.query(compose.OpPaginate))
			r.Post("/query", h.queryBody(compose.OpPaginate))
		} else if res.Enabled(compose.OpList) {
			r.Get("/", h.query(compose.OpList))
			r.Post("/query", h.queryBody(compose.OpList))
		}
		if res.Enabled(compose.OpGroupedList) {
			r.Post("/grouped", h.queryBody(compose.OpGroupedList))
		}
		if res.Enabled(compose.OpGet) {
			r.Get("/{id}", h.byID(compose.OpGet))
		}
		if res.Enabled(compose.OpCreate) {
			r.Post("/", h.withInput(compose.OpCreate, false))
		}
		if res.Enabled(compose.OpUpdate) {
			r.Patch("/{id}", h.withInput(compose.OpUpdate, true))
		}
		switch {
		case res.Enabled(compose.OpSoftRemove):
			r.Delete("/{id}", h.byID(compose.OpSoftRemove))
		case res.Enabled(compose.OpRemove):
			r.Delete("/{id}", h.byID(compose.OpRemove))
		}
		if res.Enabled(compose.OpRecover) {
			r.Post("/{id}/recover", h.byID(compose.OpRecover))
		}
		if res.Enabled(compose.OpHardRemove) {
			r.Delete("/{id}/hard", h.byID(compose.OpHardRemove))
		}
	})
}

type resourceHandler struct {
	res *compose.Resource
	log *slog.Logger
}

// query serves a read operation with the envelope in the `q` parameter.
func (h *resourceHandler) query(op compose.Operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("q")
		if raw == "" {
			raw = "{}"
		}
		h.runQuery(w, r, op, []byte(raw))
	}
}

// queryBody serves a read operation with the envelope in the request body.
func (h *resourceHandler) queryBody(op compose.Operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if len(raw) == 0 {
			raw = []byte("{}")
		}
		h.runQuery(w, r, op, raw)
	}
}

func (h *resourceHandler) runQuery(w http.ResponseWriter, r *http.Request, op compose.Operation, raw []byte) {
	q, err := h.res.Schema().DecodeQueryJSON(raw)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result, err := h.res.Invoke(r.Context(), op, compose.Request{Query: q})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	records := result.Records
	if records == nil {
		records = []crud.Record{}
	}
	h.write(w, http.StatusOK, envelope{Data: records, PageInfo: result.PageInfo})
}

// byID serves a single-record operation addressed by primary key.
func (h *resourceHandler) byID(op compose.Operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := h.parseID(chi.URLParam(r, "id"))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		result, err := h.res.Invoke(r.Context(), op, compose.Request{ID: id})
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.write(w, http.StatusOK, envelope{Data: result.Record})
	}
}

// withInput serves create and update, the record in the request body.
func (h *resourceHandler) withInput(op compose.Operation, withID bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := compose.Request{}
		if withID {
			id, err := h.parseID(chi.URLParam(r, "id"))
			if err != nil {
				h.fail(w, r, err)
				return
			}
			req.ID = id
		}
		var input crud.Record
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&input); err != nil {
			h.fail(w, r, crudox.NewValidationError("body", err))
			return
		}
		req.Input = normalizeNumbers(input)
		result, err := h.res.Invoke(r.Context(), op, req)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		status := http.StatusOK
		if op == compose.OpCreate {
			status = http.StatusCreated
		}
		h.write(w, status, envelope{Data: result.Record})
	}
}

// parseID converts the path segment to the primary key's Go type.
func (h *resourceHandler) parseID(raw string) (any, error) {
	pk := h.res.Service().Entity().PrimaryKey()
	switch pk.Type {
	case field.TypeInt, field.TypeInt64:
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, crudox.NewValidationErrorf(pk.Name, "invalid identifier %q", raw)
		}
		return id, nil
	default:
		return raw, nil
	}
}

func (h *resourceHandler) write(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Warn("response encoding failed", "error", err)
	}
}

func (h *resourceHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind, status := classify(err)
	if status >= http.StatusInternalServerError {
		h.log.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	h.write(w, status, envelope{Error: &errorBody{Kind: kind, Message: err.Error()}})
}

func classify(err error) (kind string, status int) {
	switch {
	case privacy.IsDeny(err):
		return "forbidden", http.StatusForbidden
	case crudox.IsValidationError(err):
		return "validation", http.StatusBadRequest
	case crudox.IsNotFound(err):
		return "not_found", http.StatusNotFound
	case crudox.IsUnsupportedOperation(err):
		return "unsupported", http.StatusMethodNotAllowed
	case crudox.IsConstraintError(err):
		return "constraint", http.StatusConflict
	case errors.Is(err, crudox.ErrTxStarted):
		return "transaction", http.StatusConflict
	default:
		return "internal", http.StatusInternalServerError
	}
}

// normalizeNumbers converts json.Number values to int64 or float64 so the
// service's type checks see plain Go numbers.
func normalizeNumbers(rec crud.Record) crud.Record {
	for k, v := range rec {
		if n, ok := v.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				rec[k] = i
				continue
			}
			if f, err := n.Float64(); err == nil {
				rec[k] = f
			}
		}
	}
	return rec
}
