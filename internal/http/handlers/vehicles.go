package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"loadmatch/internal/services"
)

// POST /api/vehicles
func (a API) CreateVehicle(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}
	var in services.CreateVehicleInput
	if !BindJSONOrError(c, &in) {
		return
	}
	v, err := a.Vehicles.Create(c.Request.Context(), sub, in)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

// GET /api/vehicles
func (a API) ListVehicles(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}
	items, err := a.Vehicles.List(c.Request.Context(), sub)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// GET /api/vehicles/:id
func (a API) GetVehicle(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	v, err := a.Vehicles.Get(c.Request.Context(), sub, id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}
