package handlers

import (
	"net/http"

	"moa-be/internal/models"

	"github.com/gin-gonic/gin"
)

// respondDomainError maps a domain error to an HTTP status and a
// machine-readable code. Invariant rejections are conflicts; validation
// failures are bad requests; provider trouble is a bad gateway.
func respondDomainError(c *gin.Context, err error) {
	code := models.MapErrorToCode(err)

	status := http.StatusInternalServerError
	switch code {
	case models.CodeCapacityExceeded, models.CodeRejoinBlocked,
		models.CodeInvalidRole, models.CodeInvalidTransition:
		status = http.StatusConflict
	case models.CodeNotFound:
		status = http.StatusNotFound
	case models.CodeMalformedCallback, models.CodeStageMissing, models.CodeNoCredential:
		status = http.StatusBadRequest
	case models.CodeProviderError:
		status = http.StatusBadGateway
	}

	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}
