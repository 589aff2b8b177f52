package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jorenvermeersch/budget-api/internal/server/auth"
	"github.com/jorenvermeersch/budget-api/internal/server/models"
)

func sessionOf(c *gin.Context) (*models.Session, bool) {
	return auth.SessionFrom(c.Request.Context())
}

func (h *handler) login(c *gin.Context) {
	var req loginRequest
	if !h.bind(c, &req) {
		return
	}

	res, err := h.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, sessionResponse{Token: res.Token, User: toUserResponse(res.User)})
}
