package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"loadmatch/internal/services"
)

// GET /api/users/me
func (a API) Me(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}
	u, err := a.Users.Me(c.Request.Context(), sub)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// PUT /api/users/me
func (a API) UpdateMe(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}
	var in services.UpdateProfileInput
	if !BindJSONOrError(c, &in) {
		return
	}
	u, err := a.Users.UpdateMe(c.Request.Context(), sub, in)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}
