package models

import "time"

// Place is where money gets spent, e.g. a shop or a landlord.
type Place struct {
	ID     int64
	Name   string
	Rating *int
}

// Transaction is a single amount spent or received by a user at a place.
// Amounts are in cents; negative values are expenses.
type Transaction struct {
	ID          int64
	AmountCents int64
	Date        time.Time
	UserID      string
	PlaceID     int64
}
