package models

type UnknownUser struct {
	Login    *string `json:"login"`
	Password *string `json:"password"`
}

type User struct {
	ID      string
	Login   string
	Hash    string
	IsAdmin bool
}

// Caller describes the authenticated principal of a request as read from its token.
type Caller struct {
	UserID string
	Login  string
	Admin  bool
}
