package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (a API) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "loadmatch is running"})
}

func (a API) DBCheck(c *gin.Context) {
	if a.Store == nil {
		respondError(c, http.StatusServiceUnavailable, "store_unavailable", "store not connected", nil)
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := a.Store.Ping(ctx); err != nil {
		respondError(c, http.StatusServiceUnavailable, "store_unavailable", "store ping failed: "+err.Error(), nil)
		return
	}
	users, err := a.Store.Users().Count(ctx)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "store OK", "users_in_db": users})
}
