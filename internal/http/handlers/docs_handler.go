package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GET /api/bookings/:id/confirmation returns the booking confirmation PDF (inline).
func (a API) BookingConfirmationPDF(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	pdfBytes, filename, err := a.Docs.GenerateConfirmation(c.Request.Context(), sub, id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.Header("Content-Disposition", `inline; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", pdfBytes)
}
