package http

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/linkpulse/internal/entity"
)

const statusError = "error"

// createLinkRequest represents a request to shorten a URL, optionally under a custom alias.
type createLinkRequest struct {
	TargetURL string `json:"target_url" validate:"required,url"`
	Alias     string `json:"alias" validate:"omitempty,alias"`
	Title     string `json:"title" validate:"omitempty,max=200"`
}

// linkResponse represents a created link.
type linkResponse struct {
	ID        int64     `json:"id"`
	Alias     string    `json:"alias"`
	TargetURL string    `json:"target_url"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

func toLinkResponse(l *entity.ShortLink) linkResponse {
	return linkResponse{
		ID:        l.ID,
		Alias:     l.Alias,
		TargetURL: l.TargetURL,
		Title:     l.Title,
		CreatedAt: l.CreatedAt,
	}
}

type availabilityResponse struct {
	Alias     string `json:"alias"`
	Available bool   `json:"available"`
}

type redirectRequest struct {
	Alias string `json:"alias" validate:"required"`
}

// redirectResponse tells a client where to send the visitor.
type redirectResponse struct {
	Redirection bool    `json:"redirection"`
	TargetURL   *string `json:"target_url"`
	Error       string  `json:"error,omitempty"`
}

type topURL struct {
	Alias  string `json:"alias"`
	Clicks int64  `json:"clicks"`
}

type overviewResponse struct {
	TotalShortURLs int      `json:"total_short_urls"`
	TotalRedirects int64    `json:"total_redirects"`
	TopURLs        []topURL `json:"top_urls"`
}

type tableRow struct {
	Alias     string    `json:"alias"`
	TargetURL string    `json:"target_url"`
	Title     string    `json:"title"`
	Clicks    int64     `json:"clicks"`
	CreatedAt time.Time `json:"created_at"`
}

// dashboardResponse represents the dashboard of the requester.
type dashboardResponse struct {
	Overview overviewResponse `json:"overview"`
	Table    []tableRow       `json:"table"`
}

func toDashboardResponse(d *entity.Dashboard) dashboardResponse {
	resp := dashboardResponse{
		Overview: overviewResponse{
			TotalShortURLs: d.Overview.TotalShortURLs,
			TotalRedirects: d.Overview.TotalRedirects,
			TopURLs:        make([]topURL, 0, len(d.Overview.TopLinks)),
		},
		Table: make([]tableRow, 0, len(d.Links)),
	}

	for _, t := range d.Overview.TopLinks {
		resp.Overview.TopURLs = append(resp.Overview.TopURLs, topURL{Alias: t.Alias, Clicks: t.Clicks})
	}

	for _, l := range d.Links {
		resp.Table = append(resp.Table, tableRow{
			Alias:     l.Alias,
			TargetURL: l.TargetURL,
			Title:     l.Title,
			Clicks:    l.Clicks,
			CreatedAt: l.CreatedAt,
		})
	}

	return resp
}

// analyticsResponse represents the full analytics of a single link.
type analyticsResponse struct {
	Alias     string           `json:"alias"`
	TargetURL string           `json:"target_url"`
	Title     string           `json:"title"`
	Clicks    entity.Clicks    `json:"clicks"`
	Analytics entity.Analytics `json:"analytics"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func toAnalyticsResponse(l *entity.ShortLink) analyticsResponse {
	return analyticsResponse{
		Alias:     l.Alias,
		TargetURL: l.TargetURL,
		Title:     l.Title,
		Clicks:    l.Clicks,
		Analytics: l.Analytics,
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}
}

// validationError represents an individual validation error.
type validationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// errorResponse represents a structured error response.
type errorResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Errors  []validationError `json:"errors,omitempty"`
}

// Predefined error responses for common scenarios.
var (
	emptyRequestBodyResponse = errorResponse{
		Status:  statusError,
		Message: "empty request body",
	}

	invalidRequestBodyResponse = errorResponse{
		Status:  statusError,
		Message: "invalid request body",
	}

	invalidAliasResponse = errorResponse{
		Status:  statusError,
		Message: "invalid alias",
	}

	aliasExistsResponse = errorResponse{
		Status:  statusError,
		Message: "alias already taken",
	}

	linkNotFoundResponse = errorResponse{
		Status:  statusError,
		Message: "link not found",
	}

	forbiddenResponse = errorResponse{
		Status:  statusError,
		Message: "access denied",
	}

	unauthorizedResponse = errorResponse{
		Status:  statusError,
		Message: "authentication required",
	}

	serverErrorResponse = errorResponse{
		Status:  statusError,
		Message: "server error occurred",
	}
)

// messageForTag returns a user-friendly message based on the validation tag.
func messageForTag(tag string) string {
	switch tag {
	case "required":
		return "this field is required"
	case "url":
		return "invalid url"
	case "alias":
		return "alias must be 3 to 30 letters, digits, dashes or underscores"
	case "max":
		return "value is too long"
	default:
		return "invalid value"
	}
}

// getValidationErrors processes validation errors and returns a list of validationError.
func getValidationErrors(err error) []validationError {
	var validationErrs []validationError

	errs, ok := err.(validator.ValidationErrors)
	if ok {
		for _, e := range errs {
			validationErrs = append(validationErrs, validationError{
				Field:   e.Field(),
				Message: messageForTag(e.Tag()),
			})
		}
	}

	return validationErrs
}

// validationErrorResponse constructs an errorResponse for validation errors.
func validationErrorResponse(err error) errorResponse {
	return errorResponse{
		Status:  statusError,
		Message: "validation error",
		Errors:  getValidationErrors(err),
	}
}
