package api

import (
	"net/http"

	"github.com/starford/gopher-mcp/internal/apperr"
	"github.com/starford/gopher-mcp/internal/models"
	"github.com/starford/gopher-mcp/internal/tofu"
)

// TrustRecord is one pinned certificate (aliased from the trust store).
type TrustRecord = tofu.Record

// TrustListResponse wraps the trust store listing.
type TrustListResponse struct {
	Records []TrustRecord `json:"records"`
	Total   int           `json:"total"`
}

// resultStatus maps a result onto an HTTP status. Protocol outcomes,
// including gemini 4x-6x, are successful exchanges and return 200.
func resultStatus(r models.Result) int {
	er, ok := r.(models.ErrorResult)
	if !ok {
		return http.StatusOK
	}
	switch er.Error.Category {
	case apperr.CategoryValidation:
		if er.Error.Code == apperr.CodeHostNotAllowed {
			return http.StatusForbidden
		}
		return http.StatusBadRequest
	case apperr.CategoryTransport:
		if er.Error.Code == apperr.CodeConnectTimeout || er.Error.Code == apperr.CodeReadTimeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusBadGateway
	}
}
