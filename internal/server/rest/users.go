package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jorenvermeersch/budget-api/internal/server/services"
)

func (h *handler) register(c *gin.Context) {
	var req registerRequest
	if !h.bind(c, &req) {
		return
	}

	res, err := h.Auth.Register(c.Request.Context(), services.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, sessionResponse{Token: res.Token, User: toUserResponse(res.User)})
}

// requestReset answers 202 whether or not the email is known.
func (h *handler) requestReset(c *gin.Context) {
	var req requestResetRequest
	if !h.bind(c, &req) {
		return
	}

	if err := h.Reset.RequestReset(c.Request.Context(), req.Email); err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusAccepted)
}

func (h *handler) reset(c *gin.Context) {
	var req resetRequest
	if !h.bind(c, &req) {
		return
	}

	err := h.Reset.Reset(c.Request.Context(), services.ResetInput{
		Email:       req.Email,
		Token:       req.Token,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *handler) me(c *gin.Context) {
	session, _ := sessionOf(c)

	user, err := h.Users.Me(c.Request.Context(), session)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, toUserResponse(user))
}

func (h *handler) listUsers(c *gin.Context) {
	users, err := h.Users.List(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, mapList(users, toUserResponse))
}

func (h *handler) getUser(c *gin.Context) {
	var uri userURI
	if !h.bindURI(c, &uri) {
		return
	}
	session, _ := sessionOf(c)

	user, err := h.Users.GetByID(c.Request.Context(), session, uri.ID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, toUserResponse(user))
}

func (h *handler) deleteUser(c *gin.Context) {
	var uri userURI
	if !h.bindURI(c, &uri) {
		return
	}

	if err := h.Users.Delete(c.Request.Context(), uri.ID); err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}
