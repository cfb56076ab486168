package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type verifyRequest struct {
	Verified *bool `json:"verified"`
}

// GET /api/admin/users
func (a API) AdminListUsers(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}
	users, err := a.Users.List(c.Request.Context(), sub)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": users})
}

// GET /api/admin/stats
func (a API) AdminStats(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}
	stats, err := a.Users.Stats(c.Request.Context(), sub)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// PUT /api/admin/users/:id/verify. An empty body verifies; {"verified":false} revokes.
func (a API) AdminVerifyUser(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	verified := true
	if c.Request.ContentLength > 0 {
		var req verifyRequest
		if !BindJSONOrError(c, &req) {
			return
		}
		if req.Verified != nil {
			verified = *req.Verified
		}
	}
	u, err := a.Users.Verify(c.Request.Context(), sub, id, verified)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// DELETE /api/admin/users/:id
func (a API) AdminDeleteUser(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := a.Users.Delete(c.Request.Context(), sub, id); err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user deleted", "id": id})
}
