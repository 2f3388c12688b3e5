// Package capability maps each role to a closed set of capabilities checked
// at the API boundary. The one authorization rule that lives in the core
// instead is the ledger's single-recipient acknowledgment check, which is a
// data invariant rather than an endpoint permission.
package capability

import "github.com/veritaslaw/custodia/pkg/models"

type Capability string

const (
	RegisterFiles          Capability = "register_files"
	TransferCustody        Capability = "transfer_custody"
	CloseFiles             Capability = "close_files"
	ManageDeadlines        Capability = "manage_deadlines"
	ViewAllFiles           Capability = "view_all_files"
	OverrideAcknowledgment Capability = "override_acknowledgment"
	RunAlertScan           Capability = "run_alert_scan"
	ViewBottleneckAnalysis Capability = "view_bottleneck_analysis"
)

var roleCapabilities = map[models.Role]map[Capability]struct{}{
	models.RolePartner: {
		RegisterFiles:          {},
		TransferCustody:        {},
		CloseFiles:             {},
		ManageDeadlines:        {},
		ViewAllFiles:           {},
		OverrideAcknowledgment: {},
		RunAlertScan:           {},
		ViewBottleneckAnalysis: {},
	},
	models.RoleAdvocate: {
		TransferCustody: {},
		ManageDeadlines: {},
	},
	models.RoleClerk: {
		TransferCustody: {},
	},
	models.RoleRegistrar: {
		RegisterFiles:          {},
		TransferCustody:        {},
		CloseFiles:             {},
		ManageDeadlines:        {},
		ViewAllFiles:           {},
		RunAlertScan:           {},
		ViewBottleneckAnalysis: {},
	},
}

// Has reports whether the role holds the capability.
func Has(role models.Role, c Capability) bool {
	caps, ok := roleCapabilities[role]
	if !ok {
		return false
	}
	_, ok = caps[c]
	return ok
}

// ActorHas reports whether the user holds the capability. A nil user holds
// nothing.
func ActorHas(u *models.User, c Capability) bool {
	if u == nil {
		return false
	}
	return Has(u.Role, c)
}
