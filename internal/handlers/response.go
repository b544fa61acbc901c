package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/joshua-takyi/humanfolio/internal/helpers"
	"github.com/joshua-takyi/humanfolio/internal/judge"
	"github.com/joshua-takyi/humanfolio/internal/middleware"
	"github.com/joshua-takyi/humanfolio/internal/models"
	"github.com/joshua-takyi/humanfolio/internal/reconciler"
	"github.com/joshua-takyi/humanfolio/internal/scoring"
	"github.com/joshua-takyi/humanfolio/internal/services"
)

// respondError maps service errors onto status codes. Anything unrecognised
// is attached to the context for the ErrorHandler middleware.
func respondError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		c.JSON(http.StatusBadRequest, models.ValidationResponse(validationFields(verrs)))
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse(err.Error()))
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, models.ErrorResponse(err.Error()))
	case errors.Is(err, services.ErrEmailNotFound), errors.Is(err, services.ErrWrongPassword):
		c.JSON(http.StatusUnauthorized, models.ErrorResponse(err.Error()))
	case errors.Is(err, services.ErrEmailTaken):
		c.JSON(http.StatusConflict, models.ErrorResponse(err.Error()))
	case errors.Is(err, services.ErrImageTooBig), errors.Is(err, helpers.ErrImageTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse(err.Error()))
	case errors.Is(err, scoring.ErrVoteOutOfRange),
		errors.Is(err, models.ErrUnknownPhase),
		errors.Is(err, models.ErrIncompleteStages),
		errors.Is(err, services.ErrSelfFollow),
		errors.Is(err, services.ErrBlankName),
		errors.Is(err, services.ErrNoEvidence),
		errors.Is(err, helpers.ErrUnsupportedImage),
		errors.Is(err, judge.ErrEmptyText):
		c.JSON(http.StatusBadRequest, models.ErrorResponse(err.Error()))
	case errors.Is(err, reconciler.ErrNotReady):
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse("still loading, try again shortly"))
	case errors.Is(err, services.ErrPersistFailed):
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, models.ErrorResponse("failed to save, try again"))
	case errors.Is(err, reconciler.ErrStopped):
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse("shutting down"))
	default:
		_ = c.Error(err)
	}
}

func validationFields(verrs validator.ValidationErrors) map[string]string {
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		name := fe.Field()
		if name == "" {
			name = "value"
		}
		if fe.Param() != "" {
			fields[name] = fmt.Sprintf("failed %s=%s", fe.Tag(), fe.Param())
		} else {
			fields[name] = "failed " + fe.Tag()
		}
	}
	return fields
}

// currentClaims aborts with 401 when the route was reached without claims.
func currentClaims(c *gin.Context) (*helpers.Claims, bool) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse("unauthorized"))
		return nil, false
	}
	return claims, true
}

// readyContext bounds how long a request may wait for the mirrors to load.
func readyContext(c *gin.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), timeout)
}

// readUpload reads the named multipart file, refusing anything over max
// bytes. A missing file yields nil and no error.
func readUpload(c *gin.Context, field string, max int) ([]byte, error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if fh.Size > int64(max) {
		return nil, services.ErrImageTooBig
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("opening upload: %w", err)
	}
	defer f.Close()
	return readLimited(f, max)
}

func readLimited(f multipart.File, max int) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(f, int64(max)+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if len(data) > max {
		return nil, services.ErrImageTooBig
	}
	return data, nil
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/")
}
