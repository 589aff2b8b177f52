package rest

import (
	"time"

	"github.com/jorenvermeersch/budget-api/internal/server/models"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type registerRequest struct {
	FirstName string  `json:"firstName" binding:"max=255"`
	LastName  *string `json:"lastName" binding:"omitempty,max=255"`
	Email     string  `json:"email" binding:"required,email"`
	Password  string  `json:"password" binding:"required"`
}

type requestResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Token       string `json:"token" binding:"required,hexadecimal"`
	NewPassword string `json:"newPassword" binding:"required"`
}

type placeRequest struct {
	Name   string `json:"name" binding:"required,max=255"`
	Rating *int   `json:"rating" binding:"omitempty,gte=1,lte=5"`
}

type transactionRequest struct {
	AmountCents int64     `json:"amountCents" binding:"required"`
	Date        time.Time `json:"date" binding:"required"`
	PlaceID     int64     `json:"placeId" binding:"required,gt=0"`
}

type idURI struct {
	ID int64 `uri:"id" binding:"required,gt=0"`
}

type userURI struct {
	ID string `uri:"id" binding:"required,uuid"`
}

type userResponse struct {
	ID        string         `json:"id"`
	FirstName string         `json:"firstName"`
	LastName  *string        `json:"lastName,omitempty"`
	Email     string         `json:"email"`
	Roles     models.RoleSet `json:"roles"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Roles:     u.Roles,
	}
}

type sessionResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type placeResponse struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Rating *int   `json:"rating,omitempty"`
}

func toPlaceResponse(p *models.Place) placeResponse {
	return placeResponse{ID: p.ID, Name: p.Name, Rating: p.Rating}
}

type transactionResponse struct {
	ID          int64     `json:"id"`
	AmountCents int64     `json:"amountCents"`
	Date        time.Time `json:"date"`
	UserID      string    `json:"userId"`
	PlaceID     int64     `json:"placeId"`
}

func toTransactionResponse(t *models.Transaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		AmountCents: t.AmountCents,
		Date:        t.Date,
		UserID:      t.UserID,
		PlaceID:     t.PlaceID,
	}
}

type listResponse[T any] struct {
	Items []T `json:"items"`
}

func mapList[M any, R any](in []M, f func(M) R) listResponse[R] {
	out := make([]R, 0, len(in))
	for _, m := range in {
		out = append(out, f(m))
	}
	return listResponse[R]{Items: out}
}
