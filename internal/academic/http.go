package academic

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"academic-service/internal/auth"
	"academic-service/internal/httputil"
	"academic-service/internal/metrics"

	"github.com/go-chi/chi/v5"
)

// Fields a caller may select with ?fields=.
var responseParams = map[string]bool{
	paramName:        true,
	paramShortName:   true,
	paramDescription: true,
	paramStartDate:   true,
	paramEndDate:     true,
	paramStatus:      true,
}

type Handler struct {
	reads   ReadService
	writes  WriteService
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewHandler(reads ReadService, writes WriteService, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{
		reads:   reads,
		writes:  writes,
		logger:  logger,
		metrics: metrics,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Route("/academics", func(r chi.Router) {
		r.Get("/", h.ListAll)
		r.Post("/", h.Create)
		r.Get("/{id}", h.GetOne)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Post("/{id}", h.HandleCommand)
	})
}

func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	fields, err := parseFields(r)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "fetching all academic years")
	years, err := h.reads.ListAll(r.Context(), callerOf(r))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.metrics.RecordAcademicYearsListViewed(r.Context())

	out := make([]any, 0, len(years))
	for _, y := range years {
		out = append(out, selectFields(y, fields))
	}
	respond(w, r, http.StatusOK, out)
}

func (h *Handler) GetOne(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	fields, err := parseFields(r)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "fetching academic year", "id", id)
	year, err := h.reads.GetOne(r.Context(), callerOf(r), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.metrics.RecordAcademicYearViewed(r.Context())

	respond(w, r, http.StatusOK, selectFields(*year, fields))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.handleBodyError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "creating academic year")
	result, err := h.writes.Create(r.Context(), callerOf(r), body)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusCreated, result)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.handleBodyError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "updating academic year", "id", id)
	result, err := h.writes.Update(r.Context(), callerOf(r), id, body)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	h.logger.InfoContext(r.Context(), "deleting academic year", "id", id)
	result, err := h.writes.Delete(r.Context(), callerOf(r), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, result)
}

// HandleCommand dispatches POST /academics/{id}?command=activate|close.
func (h *Handler) HandleCommand(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	command := r.URL.Query().Get("command")
	h.logger.InfoContext(r.Context(), "academic year command", "id", id, "command", command)

	var (
		result *CommandResult
		err    error
	)
	switch {
	case isCommand(command, "activate"):
		result, err = h.writes.Activate(r.Context(), callerOf(r), id)
	case isCommand(command, "close"):
		result, err = h.writes.Close(r.Context(), callerOf(r), id)
	default:
		// Only "activate" is advertised, although "close" is accepted too.
		err = &UnrecognizedCommandError{Command: command, Supported: []string{"activate"}}
	}
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, result)
}

func isCommand(param, value string) bool {
	param = strings.TrimSpace(param)
	return param != "" && strings.EqualFold(param, value)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.logger.InfoContext(r.Context(), "invalid academic year id", "id", chi.URLParam(r, "id"))
		httputil.RespondWithErrorResponse(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid academic year ID",
			Code:  "error.msg.academic.year.id.invalid",
		})
		return 0, false
	}
	return id, true
}

func callerOf(r *http.Request) auth.Caller {
	caller, _ := auth.CallerFromContext(r.Context())
	return caller
}

func respond(w http.ResponseWriter, r *http.Request, code int, payload any) {
	if strings.EqualFold(r.URL.Query().Get("prettyPrint"), "true") {
		httputil.RespondWithIndentedJSON(w, code, payload)
		return
	}
	httputil.RespondWithJSON(w, code, payload)
}

// parseFields reads ?fields=a,b. A nil result selects every field.
func parseFields(r *http.Request) ([]string, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("fields"))
	if raw == "" {
		return nil, nil
	}

	var fields, unknown []string
	for _, f := range strings.Split(raw, ",") {
		f = strings.TrimSpace(f)
		switch {
		case f == "" || f == paramID:
		case responseParams[f]:
			fields = append(fields, f)
		default:
			unknown = append(unknown, f)
		}
	}
	if len(unknown) > 0 {
		return nil, newValidationError([]FieldError{{
			Parameter: "fields",
			Code:      "error.msg.parameter.unsupported",
			Message:   "Unsupported response fields: " + strings.Join(unknown, ", "),
			Value:     strings.Join(unknown, ","),
		}})
	}
	return fields, nil
}

// selectFields keeps id plus the requested fields of a view.
func selectFields(data AcademicYearData, fields []string) any {
	if fields == nil {
		return data
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return data
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(raw, &all); err != nil {
		return data
	}

	out := map[string]json.RawMessage{paramID: all[paramID]}
	for _, f := range fields {
		if v, ok := all[f]; ok {
			out[f] = v
		}
	}
	return out
}

func (h *Handler) handleBodyError(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		h.logger.WarnContext(r.Context(), "request body too large", "limit", maxErr.Limit)
		httputil.RespondWithError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	h.logger.WarnContext(r.Context(), "failed to read request body", "error", err)
	httputil.RespondWithError(w, http.StatusBadRequest, "invalid request body")
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	var (
		ve        *ValidationError
		notFound  *NotFoundError
		dateOrder *DateOrderError
		dup       *DuplicateError
		unknown   *UnrecognizedCommandError
	)
	switch {
	case errors.As(err, &ve):
		h.logger.InfoContext(ctx, "validation failed", "error", err)
		details := make([]httputil.ErrorDetail, 0, len(ve.Errors))
		for _, fe := range ve.Errors {
			details = append(details, httputil.ErrorDetail{
				Parameter: fe.Parameter,
				Code:      fe.Code,
				Message:   fe.Message,
				Value:     fe.Value,
			})
		}
		httputil.RespondWithErrorResponse(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error:  ve.Message,
			Code:   ve.Code,
			Errors: details,
		})
	case errors.As(err, &notFound):
		h.logger.InfoContext(ctx, "academic year not found", "id", notFound.ID)
		httputil.RespondWithErrorResponse(w, http.StatusNotFound, httputil.ErrorResponse{
			Error: notFound.Error(),
			Code:  notFound.Code(),
		})
	case errors.As(err, &dateOrder):
		h.logger.InfoContext(ctx, "date order violated", "start_date", dateOrder.StartDate, "end_date", dateOrder.EndDate)
		httputil.RespondWithErrorResponse(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: dateOrder.Error(),
			Code:  dateOrder.Code(),
			Errors: []httputil.ErrorDetail{
				{Parameter: paramStartDate, Code: dateOrder.Code(), Message: dateOrder.Error(), Value: dateOrder.StartDate},
				{Parameter: paramEndDate, Code: dateOrder.Code(), Message: dateOrder.Error(), Value: dateOrder.EndDate},
			},
		})
	case errors.As(err, &dup):
		h.logger.InfoContext(ctx, "duplicate academic year", "parameter", dup.Parameter, "value", dup.Value)
		httputil.RespondWithErrorResponse(w, http.StatusConflict, httputil.ErrorResponse{
			Error: dup.Error(),
			Code:  dup.Code(),
			Errors: []httputil.ErrorDetail{
				{Parameter: dup.Parameter, Code: dup.Code(), Message: dup.Error(), Value: dup.Value},
			},
		})
	case errors.Is(err, ErrDataIntegrity):
		httputil.RespondWithErrorResponse(w, http.StatusConflict, httputil.ErrorResponse{
			Error: "Unknown data integrity issue with resource.",
			Code:  "error.msg.academic.year.unknown.data.integrity.issue",
		})
	case errors.As(err, &unknown):
		h.logger.InfoContext(ctx, "unrecognized command", "command", unknown.Command)
		httputil.RespondWithErrorResponse(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: unknown.Error(),
			Code:  unknown.Code(),
			Errors: []httputil.ErrorDetail{
				{Parameter: "command", Code: unknown.Code(), Message: unknown.Error(), Value: unknown.Command},
			},
		})
	case errors.Is(err, auth.ErrUnauthenticated):
		httputil.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, auth.ErrForbidden):
		h.logger.WarnContext(ctx, "permission denied", "error", err)
		httputil.RespondWithErrorResponse(w, http.StatusForbidden, httputil.ErrorResponse{
			Error: err.Error(),
			Code:  "error.msg.not.authorized",
		})
	default:
		h.logger.ErrorContext(ctx, "internal error", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}
