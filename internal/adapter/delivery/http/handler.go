package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/linkpulse/internal/entity"
	"github.com/vadimbarashkov/linkpulse/internal/usecase"
)

func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "pong")
}

type linkUseCase interface {
	CreateLink(ctx context.Context, in usecase.CreateLinkInput) (*entity.ShortLink, error)
	CheckAvailability(ctx context.Context, alias string) (bool, error)
	Resolve(ctx context.Context, alias string, meta entity.RequestMeta) (*entity.ShortLink, error)
}

type reportUseCase interface {
	Dashboard(ctx context.Context, ownerID string) (*entity.Dashboard, error)
	LinkAnalytics(ctx context.Context, alias, requesterID string) (*entity.ShortLink, error)
}

func newValidator() *validator.Validate {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation("alias", func(fl validator.FieldLevel) bool {
		return entity.ValidAlias(fl.Field().String())
	})

	return validate
}

// decodeAndValidate decodes the JSON body into dst and validates it. It writes the
// error response and returns false when the request is not acceptable.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, validate *validator.Validate, dst any) bool {
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		if errors.Is(err, io.EOF) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, emptyRequestBodyResponse)
			return false
		}

		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, invalidRequestBodyResponse)
		return false
	}

	if err := validate.Struct(dst); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, validationErrorResponse(err))
		return false
	}

	return true
}

func serverError(w http.ResponseWriter, r *http.Request, err error) {
	httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))

	render.Status(r, http.StatusInternalServerError)
	render.JSON(w, r, serverErrorResponse)
}

func requestMeta(r *http.Request) entity.RequestMeta {
	return entity.RequestMeta{
		Header:     r.Header.Clone(),
		RemoteAddr: r.RemoteAddr,
	}
}

type linkHandler struct {
	useCase  linkUseCase
	validate *validator.Validate
}

func newLinkHandler(useCase linkUseCase, validate *validator.Validate) *linkHandler {
	return &linkHandler{
		useCase:  useCase,
		validate: validate,
	}
}

func (h *linkHandler) createLink(w http.ResponseWriter, r *http.Request) {
	var req createLinkRequest

	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	in := usecase.CreateLinkInput{
		TargetURL: req.TargetURL,
		Alias:     req.Alias,
		Title:     req.Title,
	}
	if owner := requesterFromContext(r.Context()); owner != "" {
		in.OwnerID = &owner
	}

	link, err := h.useCase.CreateLink(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, entity.ErrAliasExists):
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, aliasExistsResponse)
		case errors.Is(err, entity.ErrInvalidAlias):
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, invalidAliasResponse)
		default:
			serverError(w, r, err)
		}
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toLinkResponse(link))
}

func (h *linkHandler) checkAvailability(w http.ResponseWriter, r *http.Request) {
	alias := chi.URLParam(r, "alias")

	available, err := h.useCase.CheckAvailability(r.Context(), alias)
	if err != nil {
		if errors.Is(err, entity.ErrInvalidAlias) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, invalidAliasResponse)
			return
		}

		serverError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, availabilityResponse{Alias: alias, Available: available})
}

func (h *linkHandler) resolve(w http.ResponseWriter, r *http.Request) {
	var req redirectRequest

	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	link, err := h.useCase.Resolve(r.Context(), req.Alias, requestMeta(r))
	if err != nil {
		if errors.Is(err, entity.ErrLinkNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, redirectResponse{Error: linkNotFoundResponse.Message})
			return
		}

		httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, redirectResponse{Error: serverErrorResponse.Message})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, redirectResponse{Redirection: true, TargetURL: &link.TargetURL})
}

func (h *linkHandler) redirect(w http.ResponseWriter, r *http.Request) {
	alias := chi.URLParam(r, "alias")

	link, err := h.useCase.Resolve(r.Context(), alias, requestMeta(r))
	if err != nil {
		if errors.Is(err, entity.ErrLinkNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, linkNotFoundResponse)
			return
		}

		serverError(w, r, err)
		return
	}

	http.Redirect(w, r, link.TargetURL, http.StatusFound)
}

type reportHandler struct {
	useCase reportUseCase
}

func newReportHandler(useCase reportUseCase) *reportHandler {
	return &reportHandler{useCase: useCase}
}

func (h *reportHandler) dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.useCase.Dashboard(r.Context(), requesterFromContext(r.Context()))
	if err != nil {
		serverError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toDashboardResponse(d))
}

func (h *reportHandler) linkAnalytics(w http.ResponseWriter, r *http.Request) {
	alias := chi.URLParam(r, "alias")

	link, err := h.useCase.LinkAnalytics(r.Context(), alias, requesterFromContext(r.Context()))
	if err != nil {
		switch {
		case errors.Is(err, entity.ErrLinkNotFound):
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, linkNotFoundResponse)
		case errors.Is(err, entity.ErrForbidden):
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, forbiddenResponse)
		default:
			serverError(w, r, err)
		}
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toAnalyticsResponse(link))
}
