package model

import "time"

// Book is one independent set of assets, transactions, prices and
// watchlist entries. Exactly one book is active per running instance.
type Book struct {
	BookID   int64     `json:"book_id"`
	Name     string    `json:"name"`
	DtCreate time.Time `json:"dt_create"`
}
