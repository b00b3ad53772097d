package models

import (
	"time"
)

const BearerPrefix = "Bearer "

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Token pair issued on login or refresh
// Access.Value is ready to use as Authorization header value ("Bearer <jwt>")
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}
