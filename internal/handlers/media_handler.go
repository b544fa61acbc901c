package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/humanfolio/internal/helpers"
	"github.com/joshua-takyi/humanfolio/internal/models"
	"github.com/joshua-takyi/humanfolio/internal/services"
)

// UploadImage stores the "image" form file and answers the reference it can
// be embedded by, either a data URI or a hosted URL.
func UploadImage(images *services.ImageService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isMultipart(c) {
			c.JSON(http.StatusBadRequest, models.ErrorResponse("expected a multipart form"))
			return
		}
		data, err := readUpload(c, "image", images.MaxUpload())
		if err != nil {
			respondError(c, err)
			return
		}
		if data == nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse("image file is required"))
			return
		}

		url, err := images.Upload(c.Request.Context(), data, c.DefaultPostForm("folder", helpers.EvidenceFolder))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, models.SuccessResponse(gin.H{"url": url}, "image stored"))
	}
}

func JudgeText(j *services.JudgeService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Text string `json:"text" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse("text is required"))
			return
		}
		verdict, err := j.Analyze(c.Request.Context(), req.Text)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(verdict, ""))
	}
}
