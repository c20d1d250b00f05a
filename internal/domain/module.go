package domain

// Module is a top-level functional area of the ERP (deals, warehouse, finance, ...).
type Module string

const (
	ModuleDashboard     Module = "dashboard"
	ModuleDeals         Module = "deals"
	ModuleProjects      Module = "projects"
	ModuleMeasurements  Module = "measurements"
	ModuleProduction    Module = "production"
	ModuleInstallations Module = "installations"
	ModuleWarehouse     Module = "warehouse"
	ModuleFinance       Module = "finance"
	ModuleTasks         Module = "tasks"
	ModuleDocuments     Module = "documents"
	ModuleAIChat        Module = "ai_chat"
	ModuleSettings      Module = "settings"
)

// Modules lists every known module in display order.
// Role creation, seeding and request validation all read from this list.
var Modules = []Module{
	ModuleDashboard,
	ModuleDeals,
	ModuleProjects,
	ModuleMeasurements,
	ModuleProduction,
	ModuleInstallations,
	ModuleWarehouse,
	ModuleFinance,
	ModuleTasks,
	ModuleDocuments,
	ModuleAIChat,
	ModuleSettings,
}

func (m Module) String() string {
	return string(m)
}

// IsValid reports whether m is a registered module.
func (m Module) IsValid() bool {
	for _, known := range Modules {
		if m == known {
			return true
		}
	}
	return false
}

// Action is an operation on a module.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

func (a Action) String() string {
	return string(a)
}

func (a Action) IsValid() bool {
	switch a {
	case ActionView, ActionCreate, ActionEdit, ActionDelete:
		return true
	}
	return false
}
