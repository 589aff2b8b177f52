package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jorenvermeersch/budget-api/internal/server/services"
)

func (h *handler) listTransactions(c *gin.Context) {
	session, _ := sessionOf(c)

	txs, err := h.Transactions.List(c.Request.Context(), session)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, mapList(txs, toTransactionResponse))
}

func (h *handler) getTransaction(c *gin.Context) {
	var uri idURI
	if !h.bindURI(c, &uri) {
		return
	}
	session, _ := sessionOf(c)

	t, err := h.Transactions.GetByID(c.Request.Context(), session, uri.ID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, toTransactionResponse(t))
}

func (h *handler) createTransaction(c *gin.Context) {
	var req transactionRequest
	if !h.bind(c, &req) {
		return
	}
	session, _ := sessionOf(c)

	t, err := h.Transactions.Create(c.Request.Context(), session, services.TransactionInput{
		AmountCents: req.AmountCents,
		Date:        req.Date,
		PlaceID:     req.PlaceID,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, toTransactionResponse(t))
}

func (h *handler) deleteTransaction(c *gin.Context) {
	var uri idURI
	if !h.bindURI(c, &uri) {
		return
	}
	session, _ := sessionOf(c)

	if err := h.Transactions.Delete(c.Request.Context(), session, uri.ID); err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}
