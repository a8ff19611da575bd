// Package authz carries the organization context that controllers receive at
// construction. There is no ambient auth state: anything that needs to know
// the org, project, or tier gets an OrgContext handed to it.
package authz

import (
	"errors"

	"github.com/ignite/agency-portal/internal/config"
)

// ErrAccessRestricted is returned by route guards when the current user's
// org level does not permit the requested surface (e.g. billing).
var ErrAccessRestricted = errors.New("access restricted")

// OrgType values recognized by tier checks. The set is open on the server
// side; the client only branches on "agency".
const (
	OrgTypeAgency = "agency"
	OrgTypeClient = "client"
)

// Role values for the billing guard.
const (
	RoleOrgAdmin = "org_admin"
	RoleMember   = "member"
)

// OrgContext identifies who is operating the portal and on which project.
type OrgContext struct {
	OrgID     string
	OrgType   string
	ProjectID string
	UserEmail string
	Role      string
}

// FromConfig builds an OrgContext from loaded configuration. An absent role
// falls back to org admin so a bare local config keeps every surface open.
func FromConfig(cfg config.OrgConfig) OrgContext {
	role := cfg.Role
	if role == "" {
		role = RoleOrgAdmin
	}
	return OrgContext{
		OrgID:     cfg.OrgID,
		OrgType:   cfg.OrgType,
		ProjectID: cfg.ProjectID,
		UserEmail: cfg.UserEmail,
		Role:      role,
	}
}

// IsAgency reports whether agency-tier surfaces (proposals, audits) apply.
func (o OrgContext) IsAgency() bool {
	return o.OrgType == OrgTypeAgency
}

// GuardBilling returns ErrAccessRestricted unless the user may view billing.
// The guard runs before any billing call is issued.
func (o OrgContext) GuardBilling() error {
	if o.Role != RoleOrgAdmin {
		return ErrAccessRestricted
	}
	return nil
}
