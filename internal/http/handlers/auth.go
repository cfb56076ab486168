package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"loadmatch/internal/services"
)

// loginRequest accepts JSON or the OAuth2 password form (username carries the email).
type loginRequest struct {
	Email    string `json:"email" form:"username"`
	Password string `json:"password" form:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   string `json:"expires_at"`
	Role        string `json:"role"`
	UserID      int64  `json:"user_id"`
	User        any    `json:"user"`
}

func sessionResponse(s services.Session) tokenResponse {
	return tokenResponse{
		AccessToken: s.Token,
		TokenType:   s.TokenType,
		ExpiresAt:   s.ExpiresAt.UTC().Format(time.RFC3339),
		Role:        string(s.User.Role),
		UserID:      s.User.ID,
		User:        s.User,
	}
}

// POST /api/auth/signup
func (a API) Signup(c *gin.Context) {
	var in services.SignupInput
	if !BindJSONOrError(c, &in) {
		return
	}
	sess, err := a.Auth.Signup(c.Request.Context(), in)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sessionResponse(sess))
}

// POST /api/auth/token
func (a API) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "invalid payload", err.Error())
		return
	}
	sess, err := a.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse(sess))
}
