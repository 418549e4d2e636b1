package auth

import (
	"github.com/uptrace/bun"
)

// User is an application user allowed to call the API.
type User struct {
	bun.BaseModel `bun:"table:m_appuser,alias:u"`

	ID           int64  `bun:"id,pk,autoincrement" json:"id"`
	Username     string `bun:"username,unique,notnull" json:"username"`
	PasswordHash string `bun:"password_hash,notnull" json:"-"`
	// Permissions is a comma separated list, e.g. "READ_ACADEMICYEAR,CREATE_ACADEMICYEAR".
	Permissions string `bun:"permissions,notnull" json:"-"`
	Enabled     bool   `bun:"enabled,notnull" json:"enabled"`
}

type UserView struct {
	ID          int64    `json:"id"`
	Username    string   `json:"username"`
	Permissions []string `json:"permissions"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string   `json:"accessToken"`
	TokenType   string   `json:"tokenType"`
	ExpiresIn   int64    `json:"expiresIn"`
	User        UserView `json:"user"`
}
