package objects

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/crucible-ti/crucible/internal/access"
	"github.com/crucible-ti/crucible/internal/platform/httpx"
)

// Handler exposes the object API. All routes sit behind the api
// interface permission; per-type permissions are checked in the
// service so programmatic callers get the same enforcement.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	mw       access.Middleware
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, mw access.Middleware) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		mw:       mw,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Routes mounts the object endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.mw.Require(access.PermAPIInterface))

	r.Get("/types", h.listTypes)

	r.Route("/{objectType}", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Route("/{objectID}", func(r chi.Router) {
			r.Get("/", h.get)
			r.Put("/", h.update)
			r.Delete("/", h.delete)
			r.Post("/provenance", h.addProvenance)
			r.Get("/comments", h.comments)
			r.Post("/comments", h.addComment)
		})
	})

	return r
}

type typeView struct {
	Name    string `json:"name"`
	Display string `json:"display"`
}

func (h *Handler) listTypes(w http.ResponseWriter, r *http.Request) {
	specs := Types()
	views := make([]typeView, 0, len(specs))
	for _, spec := range specs {
		views = append(views, typeView{Name: spec.Name, Display: spec.Display})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"types": views})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	params := ListParams{
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	}
	result, err := h.service.List(r.Context(), chi.URLParam(r, "objectType"), params)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	obj, err := h.service.Get(r.Context(), chi.URLParam(r, "objectType"), chi.URLParam(r, "objectID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, obj)
}

type provenanceRequest struct {
	Group          string `json:"group" validate:"required,max=256"`
	Classification string `json:"classification" validate:"required,oneof=white green amber red"`
	Method         string `json:"method" validate:"max=256"`
	Reference      string `json:"reference" validate:"max=1024"`
}

func (p provenanceRequest) entry(analyst string) (access.ProvenanceEntry, error) {
	classification, err := access.ParseClassification(p.Classification)
	if err != nil {
		return access.ProvenanceEntry{}, err
	}
	return access.ProvenanceEntry{
		Group:          p.Group,
		Classification: classification,
		Method:         p.Method,
		Reference:      p.Reference,
		Analyst:        analyst,
	}, nil
}

type createRequest struct {
	Fields     map[string]any      `json:"fields" validate:"required"`
	Provenance []provenanceRequest `json:"provenance" validate:"required,min=1,dive"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !h.decode(w, r, &req) {
		return
	}
	entries := make([]access.ProvenanceEntry, 0, len(req.Provenance))
	for _, p := range req.Provenance {
		entry, err := p.entry(analyst(r))
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		entries = append(entries, entry)
	}
	obj, err := h.service.Create(r.Context(), chi.URLParam(r, "objectType"), req.Fields, entries)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, obj)
}

type updateRequest struct {
	Fields map[string]any `json:"fields" validate:"required"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if !h.decode(w, r, &req) {
		return
	}
	obj, err := h.service.Update(r.Context(), chi.URLParam(r, "objectType"), chi.URLParam(r, "objectID"), req.Fields)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, obj)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	err := h.service.Delete(r.Context(), chi.URLParam(r, "objectType"), chi.URLParam(r, "objectID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addProvenance(w http.ResponseWriter, r *http.Request) {
	var req provenanceRequest
	if !h.decode(w, r, &req) {
		return
	}
	entry, err := req.entry(analyst(r))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	obj, err := h.service.AddProvenance(r.Context(), chi.URLParam(r, "objectType"), chi.URLParam(r, "objectID"), entry)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, obj)
}

type commentRequest struct {
	Body string `json:"body" validate:"required,max=8192"`
}

func (h *Handler) addComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if !h.decode(w, r, &req) {
		return
	}
	comment, err := h.service.AddComment(r.Context(), chi.URLParam(r, "objectType"), chi.URLParam(r, "objectID"), req.Body)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, comment)
}

func (h *Handler) comments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.service.Comments(r.Context(), chi.URLParam(r, "objectType"), chi.URLParam(r, "objectID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"comments": comments})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnknownType):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrInvalidProvenance):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, access.ErrUnauthorized),
		errors.Is(err, access.ErrForbidden),
		errors.Is(err, access.ErrScopeResolution):
		httpx.RespondError(w, err)
	default:
		h.logger.Error("object request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func analyst(r *http.Request) string {
	if rc := access.FromContext(r.Context()); rc != nil {
		return rc.User.Username
	}
	return ""
}

func queryInt(r *http.Request, name string) int {
	value, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return value
}
