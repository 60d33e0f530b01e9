package handler

// REST endpoints. Every route is a thin adapter: path variables, query
// parameters and the JSON body are merged into wire.Args and the matching
// operation of the table runs.
//
//	GET    /api/v1/storages                      storage.list
//	POST   /api/v1/storages                      storage.create
//	GET    /api/v1/storages/{id}                 storage.get
//	PATCH  /api/v1/storages/{id}                 storage.update
//	DELETE /api/v1/storages/{id}                 storage.delete
//	POST   /api/v1/storages/{id}/move            storage.move
//	POST   /api/v1/storages/{id}/copy            storage.copy
//	GET    /api/v1/storages/{id}/exists          storage.exists
//	...    /api/v1/spaces, /api/v1/products      likewise
//	POST   /api/v1/spaces/{id}/products/move     product.move_all
//	GET    /api/v1/products/{id}/attributes      attribute.list
//	GET|PUT|DELETE /api/v1/products/{id}/attributes/{key}
//	GET    /api/v1/stats                         stats
//	GET    /api/v1/export?compression=zstd       Parquet snapshot

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/gorilla/mux"

	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/config"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/errors"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/export"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/logging"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/store"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/wire"
)

// =============================================================================
// REST Handler
// =============================================================================

// RESTHandler serves the HTTP API.
type RESTHandler struct {
	h         *Handler
	gw        store.Gateway
	maxBody   int64
	requestID atomic.Uint64
	router    *mux.Router
}

// NewRESTHandler creates the HTTP API on top of h. gw is read by the export
// endpoint.
func NewRESTHandler(h *Handler, gw store.Gateway) *RESTHandler {
	rh := &RESTHandler{
		h:       h,
		gw:      gw,
		maxBody: config.DefaultMaxRequestBody,
	}
	rh.router = rh.routes()
	return rh
}

// ServeHTTP implements http.Handler.
func (rh *RESTHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rh.router.ServeHTTP(w, r)
}

func (rh *RESTHandler) routes() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", rh.handleHealth).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(rh.authenticate)

	api.HandleFunc("/storages", rh.op("storage.list", http.StatusOK)).Methods("GET")
	api.HandleFunc("/storages", rh.op("storage.create", http.StatusCreated)).Methods("POST")
	api.HandleFunc("/storages/{id}", rh.op("storage.get", http.StatusOK)).Methods("GET")
	api.HandleFunc("/storages/{id}", rh.op("storage.update", http.StatusOK)).Methods("PATCH")
	api.HandleFunc("/storages/{id}", rh.op("storage.delete", http.StatusOK)).Methods("DELETE")
	api.HandleFunc("/storages/{id}/move", rh.op("storage.move", http.StatusOK)).Methods("POST")
	api.HandleFunc("/storages/{id}/copy", rh.op("storage.copy", http.StatusCreated)).Methods("POST")
	api.HandleFunc("/storages/{id}/exists", rh.op("storage.exists", http.StatusOK)).Methods("GET")

	api.HandleFunc("/spaces", rh.op("space.list", http.StatusOK)).Methods("GET")
	api.HandleFunc("/spaces", rh.op("space.create", http.StatusCreated)).Methods("POST")
	api.HandleFunc("/spaces/{id}", rh.op("space.get", http.StatusOK)).Methods("GET")
	api.HandleFunc("/spaces/{id}", rh.op("space.update", http.StatusOK)).Methods("PATCH")
	api.HandleFunc("/spaces/{id}", rh.op("space.delete", http.StatusOK)).Methods("DELETE")
	api.HandleFunc("/spaces/{id}/move", rh.op("space.move", http.StatusOK)).Methods("POST")
	api.HandleFunc("/spaces/{from_space_id}/products/move", rh.op("product.move_all", http.StatusOK)).Methods("POST")

	api.HandleFunc("/products", rh.op("product.list", http.StatusOK)).Methods("GET")
	api.HandleFunc("/products", rh.op("product.create", http.StatusCreated)).Methods("POST")
	api.HandleFunc("/products/{id}", rh.op("product.get", http.StatusOK)).Methods("GET")
	api.HandleFunc("/products/{id}", rh.op("product.update", http.StatusOK)).Methods("PATCH")
	api.HandleFunc("/products/{id}", rh.op("product.delete", http.StatusOK)).Methods("DELETE")
	api.HandleFunc("/products/{id}/move", rh.op("product.move", http.StatusOK)).Methods("POST")

	api.HandleFunc("/products/{product_id}/attributes", rh.op("attribute.list", http.StatusOK)).Methods("GET")
	api.HandleFunc("/products/{product_id}/attributes/{key}", rh.op("attribute.get", http.StatusOK)).Methods("GET")
	api.HandleFunc("/products/{product_id}/attributes/{key}", rh.op("attribute.set", http.StatusOK)).Methods("PUT")
	api.HandleFunc("/products/{product_id}/attributes/{key}", rh.op("attribute.delete", http.StatusOK)).Methods("DELETE")

	api.HandleFunc("/stats", rh.op("stats", http.StatusOK)).Methods("GET")
	api.HandleFunc("/export", rh.handleExport).Methods("GET")

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "no such endpoint", nil)
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})
	return router
}

// authenticate requires "Authorization: Bearer <token>" when tokens are
// configured.
func (rh *RESTHandler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sm := rh.h.SessionManager()
		if sm == nil || !sm.AuthRequired() {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			token = ""
		}
		if err := sm.Authenticate(nil, strings.TrimSpace(token)); err != nil {
			writeError(w, http.StatusUnauthorized, err.Error(), err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// op returns a handler that runs the named operation.
func (rh *RESTHandler) op(name string, okStatus int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		args, err := rh.args(w, r)
		if err != nil {
			writeError(w, errors.HTTPStatus(err), err.Error(), err)
			return
		}

		id := rh.requestID.Add(1)
		ctx := logging.ContextWithRequestID(r.Context(), id)
		ctx = logging.ContextWithRemote(ctx, r.RemoteAddr)

		result, err := rh.h.Call(ctx, nil, id, name, args)
		if err != nil {
			herr := ToHandlerError(err)
			status := errors.HTTPStatus(err)
			if status == http.StatusInternalServerError {
				logging.WithContext(ctx).Error("request failed", "error", err)
			}
			writeError(w, status, herr.Message, err)
			return
		}
		writeJSON(w, okStatus, result)
	}
}

// args merges, in increasing precedence, the JSON body, the query string
// and the path variables.
func (rh *RESTHandler) args(w http.ResponseWriter, r *http.Request) (wire.Args, error) {
	args := wire.Args{}

	if r.Body != nil && r.Method != http.MethodGet && r.Method != http.MethodDelete {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, rh.maxBody))
		if err != nil {
			return nil, errors.NewValidation("body", err.Error())
		}
		if len(bytes.TrimSpace(body)) > 0 {
			if err := json.Unmarshal(body, &args); err != nil {
				return nil, errors.NewValidation("body", "expected a JSON object")
			}
		}
	}

	for key, values := range r.URL.Query() {
		if len(values) == 0 {
			continue
		}
		args[key] = queryValue(key, values[len(values)-1])
	}

	for key, value := range mux.Vars(r) {
		args[key] = value
	}
	return args, nil
}

// Query parameters decoded before dispatch. Every other parameter stays a
// string, so ?name=2024 names a storage "2024".
var (
	numericQuery = map[string]bool{"depth": true, "size": true, "price": true}
	boolQuery    = map[string]bool{"clear_size": true, "clear_price": true}
)

// queryValue decodes the numeric and boolean parameters so that ?depth=2
// reads like the wire argument {"depth": 2}.
func queryValue(key, s string) any {
	switch {
	case numericQuery[key]:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case boolQuery[key]:
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return s
}

func (rh *RESTHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// handleExport streams a Parquet snapshot of all products.
func (rh *RESTHandler) handleExport(w http.ResponseWriter, r *http.Request) {
	opts := export.DefaultOptions()
	if c := r.URL.Query().Get("compression"); c != "" {
		ct, err := export.ParseCompressionType(c)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), err)
			return
		}
		opts.Compression = ct
	}

	rows, err := export.Collect(r.Context(), rh.gw)
	if err != nil {
		writeError(w, errors.HTTPStatus(err), err.Error(), err)
		return
	}

	var buf bytes.Buffer
	if _, err := export.Write(&buf, rows, opts); err != nil {
		logging.WithContext(r.Context()).Error("export failed", "error", err)
		writeError(w, http.StatusInternalServerError, "export failed", err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.apache.parquet")
	w.Header().Set("Content-Disposition", `attachment; filename="inventory.parquet"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

// =============================================================================
// Response Helpers
// =============================================================================

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	}
	if err != nil {
		resp.Code = errors.CodeName(GetErrorCode(err))
	}
	if status == http.StatusInternalServerError {
		resp.Message = "internal error"
	}
	writeJSON(w, status, resp)
}
