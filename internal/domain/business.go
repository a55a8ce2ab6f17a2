package domain

import "time"

type Business struct {
	ID         int64
	Name       string
	BrandRules string // free-form voice/brand guidance fed to the generator
	CreatedAt  time.Time
}

type Location struct {
	ID         int64
	BusinessID int64
	Name       string
	CreatedAt  time.Time
}

// Actor is the already-authenticated caller identity every entry point
// receives. Authn itself is external; the core only scopes queries to the
// actor's business.
type Actor struct {
	UserID     string
	BusinessID int64
}
