package models

// User is a dashboard operator allowed to read and write the store.
type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}
