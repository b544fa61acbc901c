package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/humanfolio/internal/helpers"
	"github.com/joshua-takyi/humanfolio/internal/middleware"
	"github.com/joshua-takyi/humanfolio/internal/models"
	"github.com/joshua-takyi/humanfolio/internal/services"
)

// AuthOptions configures the sign-up and login endpoints.
type AuthOptions struct {
	Tokens       *helpers.TokenIssuer
	ReadyTimeout time.Duration
	// SecureCookies marks the access token cookie Secure.
	SecureCookies bool
}

type authResponse struct {
	User      *models.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

func Signup(u *services.UserService, opts AuthOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in services.RegisterInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse("invalid request payload"))
			return
		}

		ctx, cancel := readyContext(c, opts.ReadyTimeout)
		defer cancel()
		user, err := u.Register(ctx, in)
		if err != nil {
			respondError(c, err)
			return
		}

		res, ok := issueSession(c, user, opts)
		if !ok {
			return
		}
		c.JSON(http.StatusCreated, models.SuccessResponse(res, "account created"))
	}
}

func Login(u *services.UserService, opts AuthOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email    string `json:"email" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse("invalid request payload"))
			return
		}

		ctx, cancel := readyContext(c, opts.ReadyTimeout)
		defer cancel()
		user, err := u.Login(ctx, req.Email, req.Password)
		if err != nil {
			respondError(c, err)
			return
		}

		res, ok := issueSession(c, user, opts)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(res, "logged in"))
	}
}

// issueSession signs a token for user and sets the access token cookie.
func issueSession(c *gin.Context, user *models.User, opts AuthOptions) (authResponse, bool) {
	token, expires, err := opts.Tokens.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		_ = c.Error(err)
		return authResponse{}, false
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(
		middleware.AccessTokenCookie,
		token,
		int(opts.Tokens.TTL().Seconds()),
		"/",
		"", // let Gin pick current domain
		opts.SecureCookies,
		true,
	)
	return authResponse{User: user, Token: token, ExpiresAt: expires}, true
}

func Logout(opts AuthOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.SetCookie(middleware.AccessTokenCookie, "", -1, "/", "", opts.SecureCookies, true)
		c.JSON(http.StatusOK, models.SuccessResponse(nil, "logged out successfully"))
	}
}
