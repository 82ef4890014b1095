package domain

import "time"

// User represents an operator account of the drying configuration tool.
type User struct {
	ID           int64     `json:"id"`
	Login        string    `json:"login"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Surname      string    `json:"surname"`
	Email        string    `json:"email"`
	AccessLevel  int       `json:"accessLevel"`
	DateCreate   time.Time `json:"dateCreate"`
	Icon         string    `json:"icon"`
}

// Registration carries the plaintext fields submitted by a new user.
type Registration struct {
	Login       string `json:"login"`
	Password    string `json:"password"`
	Name        string `json:"name"`
	Surname     string `json:"surname"`
	Email       string `json:"email"`
	AccessLevel int    `json:"accessLevel"`
	Icon        string `json:"icon"`
}
