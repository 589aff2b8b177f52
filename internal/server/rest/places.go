package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *handler) listPlaces(c *gin.Context) {
	places, err := h.Places.List(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, mapList(places, toPlaceResponse))
}

func (h *handler) getPlace(c *gin.Context) {
	var uri idURI
	if !h.bindURI(c, &uri) {
		return
	}

	place, err := h.Places.GetByID(c.Request.Context(), uri.ID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, toPlaceResponse(place))
}

func (h *handler) createPlace(c *gin.Context) {
	var req placeRequest
	if !h.bind(c, &req) {
		return
	}

	place, err := h.Places.Create(c.Request.Context(), req.Name, req.Rating)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, toPlaceResponse(place))
}

func (h *handler) deletePlace(c *gin.Context) {
	var uri idURI
	if !h.bindURI(c, &uri) {
		return
	}

	if err := h.Places.Delete(c.Request.Context(), uri.ID); err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}
