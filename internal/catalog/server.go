package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/invopop/jsonschema"

	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/categories"
	"github.com/sequeirajonathan/mav-collectibles-sub001/internal/config"
)

const maxBodyBytes = 64 << 10

type catalogService interface {
	Category(ctx context.Context, slug string, q Query) (*Response, error)
	Search(ctx context.Context, term string, q Query) (*Response, error)
	Product(ctx context.Context, id string) (*Item, error)
}

type categoryLister interface {
	Categories() []categories.Category
	Groups() []categories.Group
}

type server struct {
	svc          catalogService
	lister       categoryLister
	defaultGroup string
	strictStock  bool
	schema       *jsonschema.Schema
}

// NewHandler returns the storefront catalog endpoints.
func NewHandler(cfg config.CatalogConfig, svc catalogService, lister categoryLister) *server {
	group := cfg.DefaultGroup
	if group == "" {
		group = "general"
	}
	return &server{
		svc:          svc,
		lister:       lister,
		defaultGroup: group,
		strictStock:  cfg.StrictStockFilter,
		schema:       jsonschema.Reflect(&Response{}),
	}
}

func (s *server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /category/{slug}", s.handleCategory)
	mux.HandleFunc("POST /search", s.handleSearch)
	mux.HandleFunc("GET /product/{id}", s.handleProduct)
	mux.HandleFunc("GET /categories", s.handleCategories)
	mux.HandleFunc("GET /schema/catalog", s.handleSchema)
}

type categoryRequest struct {
	Cursor *string `json:"cursor"`
}

type searchRequest struct {
	Search string  `json:"search"`
	Cursor *string `json:"cursor"`
	Stock  string  `json:"stock"`
	Sort   string  `json:"sort"`
}

func (s *server) handleCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slug := r.PathValue("slug")

	var body categoryRequest
	if err := decodeBody(r, &body); err != nil {
		s.writeError(ctx, w, err, "slug", slug)
		return
	}
	params := r.URL.Query()
	stock, err := ParseStockFilter(params.Get("stock"), s.strictStock)
	if err != nil {
		s.writeError(ctx, w, err, "slug", slug)
		return
	}
	q := Query{
		Cursor: body.Cursor,
		Stock:  stock,
		Sort:   ParseSort(params.Get("sort")),
		Group:  s.group(ctx, params.Get("group")),
	}

	resp, err := s.svc.Category(ctx, slug, q)
	if err != nil {
		s.writeError(ctx, w, err, "slug", slug, "group", q.Group, "cursor", q.cursor())
		return
	}
	writeJSON(ctx, w, http.StatusOK, resp)
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body searchRequest
	if err := decodeBody(r, &body); err != nil {
		s.writeError(ctx, w, err)
		return
	}
	stock, err := ParseStockFilter(body.Stock, s.strictStock)
	if err != nil {
		s.writeError(ctx, w, err, "search", body.Search)
		return
	}
	q := Query{Cursor: body.Cursor, Stock: stock, Sort: ParseSort(body.Sort)}

	resp, err := s.svc.Search(ctx, body.Search, q)
	if err != nil {
		s.writeError(ctx, w, err, "search", body.Search, "cursor", q.cursor())
		return
	}
	writeJSON(ctx, w, http.StatusOK, resp)
}

func (s *server) handleProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	item, err := s.svc.Product(ctx, id)
	if errors.Is(err, ErrNotFound) {
		slog.InfoContext(ctx, "product not found", "id", id, "error", err)
		writeJSON(ctx, w, http.StatusNotFound, errorResponse{Error: "Product not found"})
		return
	}
	if err != nil {
		s.writeError(ctx, w, err, "id", id)
		return
	}
	writeJSON(ctx, w, http.StatusOK, item)
}

type categoriesResponse struct {
	Categories []categories.Category `json:"categories"`
	Groups     []categories.Group    `json:"groups"`
}

func (s *server) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, categoriesResponse{
		Categories: s.lister.Categories(),
		Groups:     s.lister.Groups(),
	})
}

func (s *server) handleSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, s.schema)
}

// group falls back to the default domain for missing or unknown values.
func (s *server) group(ctx context.Context, raw string) string {
	if raw == "" {
		return s.defaultGroup
	}
	if !categories.IsDomain(raw) {
		slog.WarnContext(ctx, "unknown category group, using default", "group", raw, "default", s.defaultGroup)
		return s.defaultGroup
	}
	return raw
}

// decodeBody reads an optional JSON body. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	err := dec.Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		// exactly one JSON value per body
		if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
			return newValidationError("body", "invalid JSON")
		}
		return nil
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return newValidationError(typeErr.Field, "must be a "+typeErr.Type.String())
	}
	return newValidationError("body", "invalid JSON")
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func (s *server) writeError(ctx context.Context, w http.ResponseWriter, err error, attrs ...any) {
	attrs = append(attrs, "error", err)

	var validation *ValidationError
	switch {
	case errors.Is(err, ErrNotFound):
		slog.InfoContext(ctx, "catalog lookup not found", attrs...)
		writeJSON(ctx, w, http.StatusNotFound, errorResponse{Error: "Invalid category or group slug"})
	case errors.As(err, &validation):
		slog.InfoContext(ctx, "rejecting catalog request", attrs...)
		writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "Invalid request", Fields: validation.Fields})
	default:
		slog.ErrorContext(ctx, "failed to load catalog", attrs...)
		writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "Failed to load catalog"})
	}
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(ctx, "failed to write response", "error", err)
	}
}
