package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/humanfolio/internal/models"
	"github.com/joshua-takyi/humanfolio/internal/scoring"
	"github.com/joshua-takyi/humanfolio/internal/services"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// projectView is a project with its derived labels.
type projectView struct {
	models.Project
	Labels map[models.Phase]scoring.Label `json:"labels"`
	Badge  string                         `json:"badge"`
}

func newProjectView(p models.Project) projectView {
	labels := make(map[models.Phase]scoring.Label, len(models.Phases))
	for _, phase := range models.Phases {
		labels[phase] = scoring.StageLabel(p.Stages[phase].PeerRating)
	}
	return projectView{
		Project: p,
		Labels:  labels,
		Badge:   scoring.ProjectBadge(p.TotalHumanityScore),
	}
}

func ListProjects(p *services.ProjectService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageLimit)))
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, models.ErrorResponse("invalid limit parameter"))
			return
		}
		if limit > maxPageLimit {
			limit = maxPageLimit
		}
		offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
		if err != nil || offset < 0 {
			c.JSON(http.StatusBadRequest, models.ErrorResponse("invalid offset parameter"))
			return
		}

		projects := p.List(services.ListFilter{
			Tag:      c.Query("tag"),
			Query:    c.Query("q"),
			AuthorID: c.Query("author"),
		})
		total := len(projects)
		if offset > total {
			offset = total
		}
		end := offset + limit
		if end > total {
			end = total
		}
		c.JSON(http.StatusOK, models.ListResponse(projects[offset:end], total))
	}
}

func CreateProject(u *services.UserService, p *services.ProjectService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := currentClaims(c)
		if !ok {
			return
		}
		var in services.ProjectInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse("invalid request payload"))
			return
		}

		author, err := u.GetUser(claims.UserID)
		if err != nil {
			respondError(c, err)
			return
		}
		project, err := p.Create(c.Request.Context(), *author, in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, models.SuccessResponse(newProjectView(*project), "project published"))
	}
}

func GetProject(p *services.ProjectService) gin.HandlerFunc {
	return func(c *gin.Context) {
		project, err := p.Get(c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(newProjectView(*project), ""))
	}
}

func UpdateProject(p *services.ProjectService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := currentClaims(c)
		if !ok {
			return
		}
		var in services.ProjectInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse("invalid request payload"))
			return
		}

		project, err := p.Update(c.Request.Context(), claims.UserID, c.Param("id"), in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(newProjectView(*project), "project updated"))
	}
}

func DeleteProject(p *services.ProjectService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := currentClaims(c)
		if !ok {
			return
		}
		if err := p.Delete(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(nil, "project deleted"))
	}
}

func VoteStage(p *services.ProjectService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Vote *int `json:"vote" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse("vote is required"))
			return
		}

		project, err := p.Vote(c.Request.Context(), c.Param("id"), c.Param("phase"), *req.Vote)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(newProjectView(*project), "vote recorded"))
	}
}

// AddEvidence accepts either a JSON body with a link or a multipart form with
// an image file and/or a link field.
func AddEvidence(p *services.ProjectService, images *services.ImageService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := currentClaims(c)
		if !ok {
			return
		}

		var (
			link  string
			image []byte
			err   error
		)
		if isMultipart(c) {
			link = c.PostForm("link")
			image, err = readUpload(c, "image", images.MaxUpload())
			if err != nil {
				respondError(c, err)
				return
			}
		} else {
			var req struct {
				Link string `json:"link"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, models.ErrorResponse("invalid request payload"))
				return
			}
			link = req.Link
		}

		project, err := p.AddEvidence(c.Request.Context(), claims.UserID, c.Param("id"), c.Param("phase"), link, image)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(newProjectView(*project), "evidence added"))
	}
}
