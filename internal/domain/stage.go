package domain

// StageType is a kind of project workflow step.
type StageType string

const (
	StageMeasurement  StageType = "measurement"
	StageDesign       StageType = "design"
	StageApproval     StageType = "approval"
	StageProcurement  StageType = "procurement"
	StageProduction   StageType = "production"
	StageInstallation StageType = "installation"
)

var StageTypes = []StageType{
	StageMeasurement,
	StageDesign,
	StageApproval,
	StageProcurement,
	StageProduction,
	StageInstallation,
}

func (s StageType) IsValid() bool {
	for _, known := range StageTypes {
		if s == known {
			return true
		}
	}
	return false
}

// StageAction is an operation on a stage of a given type.
type StageAction string

const (
	StageActionRead     StageAction = "read"
	StageActionWrite    StageAction = "write"
	StageActionDelete   StageAction = "delete"
	StageActionStart    StageAction = "start"
	StageActionComplete StageAction = "complete"
)

func (a StageAction) IsValid() bool {
	switch a {
	case StageActionRead, StageActionWrite, StageActionDelete, StageActionStart, StageActionComplete:
		return true
	}
	return false
}

// StagePermission is one cell row of the role x stage type matrix.
// Role holds a role code, not a role id.
type StagePermission struct {
	Role          string    `json:"role" validate:"required,max=64"`
	StageTypeCode StageType `json:"stage_type_code" validate:"required"`
	CanRead       bool      `json:"can_read"`
	CanWrite      bool      `json:"can_write"`
	CanDelete     bool      `json:"can_delete"`
	CanStart      bool      `json:"can_start"`
	CanComplete   bool      `json:"can_complete"`
}

// Allows maps a stage action onto its flag. Unknown actions are denied.
func (p StagePermission) Allows(action StageAction) bool {
	switch action {
	case StageActionRead:
		return p.CanRead
	case StageActionWrite:
		return p.CanWrite
	case StageActionDelete:
		return p.CanDelete
	case StageActionStart:
		return p.CanStart
	case StageActionComplete:
		return p.CanComplete
	}
	return false
}
