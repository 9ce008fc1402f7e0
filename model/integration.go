package model

import "time"

// Integration status values. RequiresReauth is persisted when a refresh token
// is revoked; the claimer will keep failing the organization's jobs with an
// auth error until a human reconnects the platform.
const (
	IntegrationStatusActive         = "active"
	IntegrationStatusInactive       = "inactive"
	IntegrationStatusRequiresReauth = "requires_reauth"
)

// Integration holds one organization's credential set for one provider.
// Exactly one integration per (organization, provider) carries priority=1 and
// status=active; the processor only ever loads that one.
type Integration struct {
	IntegrationID  string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Provider       string    `json:"provider"`
	AccessToken    string    `json:"-"`
	RefreshToken   string    `json:"-"`
	Status         string    `json:"status"`
	Priority       int       `json:"priority"`
	ExpiresAt      time.Time `json:"expires_at"`

	// Provider-specific identifiers; each provider reads its own.
	TenantID string `json:"tenant_id,omitempty"` // Xero
	RealmID  string `json:"realm_id,omitempty"`  // QuickBooks
	OrgID    string `json:"org_id,omitempty"`    // Zoho Books

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TokenExpiring reports whether the access token is expired or inside the
// refresh buffer ahead of expiry.
func (i *Integration) TokenExpiring(buffer time.Duration) bool {
	if i.ExpiresAt.IsZero() {
		return true
	}
	return time.Now().Add(buffer).After(i.ExpiresAt)
}
