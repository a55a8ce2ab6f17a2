package domain

import "time"

type Platform string

const (
	PlatformGoogle      Platform = "google"
	PlatformFacebook    Platform = "facebook"
	PlatformYelp        Platform = "yelp"
	PlatformTripAdvisor Platform = "tripadvisor"
)

func (p Platform) Valid() bool {
	switch p {
	case PlatformGoogle, PlatformFacebook, PlatformYelp, PlatformTripAdvisor:
		return true
	}
	return false
}

// Account is the stored credential record for one (location, platform) pair.
// The settings flow writes it; adapters parse it into their own typed view.
type Account struct {
	LocationID         int64
	Platform           Platform
	AccessToken        string
	RefreshToken       string // empty when the platform never issued one
	ExpiresAt          *time.Time
	ExternalAccountID  string
	ExternalLocationID string
	Connected          bool
	UpdatedAt          time.Time
}

// Expired reports whether the access token is past its expiry.
// A nil ExpiresAt means the token does not expire.
func (a Account) Expired(now time.Time) bool {
	return a.ExpiresAt != nil && a.ExpiresAt.Before(now)
}

// ConnectedAccount pairs an account with the business that owns its location,
// as listed for a reconciliation run.
type ConnectedAccount struct {
	BusinessID int64
	Account    Account
}
