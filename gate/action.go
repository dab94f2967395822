package gate

// Action describes the kind of operation a user wants to perform.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionList   Action = "list"
)

// Resource names used in permissions.
const (
	ResourceLead     = "lead"
	ResourceDevis    = "devis"
	ResourceChantier = "chantier"
	ResourceUser     = "user"
)

// businessResources are the records every role can read.
var businessResources = []string{ResourceLead, ResourceDevis, ResourceChantier}
