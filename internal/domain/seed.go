package domain

import "strings"

// Role codes of the built-in roles.
const (
	RoleCodeAdmin           = "admin"
	RoleCodeSalesManager    = "sales_manager"
	RoleCodeProjectManager  = "project_manager"
	RoleCodeEstimator       = "estimator"
	RoleCodeConstructor     = "constructor"
	RoleCodeFinancier       = "financier"
	RoleCodeWarehouseKeeper = "warehouse_keeper"
	RoleCodeMeasurer        = "measurer"
	RoleCodeInstaller       = "installer"

	// Stage-matrix-only roles; they have no module permission seed.
	RoleCodeProcurement = "procurement"
	RoleCodeProduction  = "production"
	RoleCodeClient      = "client"
)

// SeedRole is a built-in role with its literal module table.
type SeedRole struct {
	Code        string
	Name        string
	Description string
	IsSystem    bool
	Permissions map[Module]PermissionFlags
}

// Flags decodes a compact cell: v=view c=create e=edit d=delete a=view_all h=hide_prices.
// "-" (or any string without those letters) is the all-false tuple.
func Flags(cell string) PermissionFlags {
	return PermissionFlags{
		CanView:    strings.ContainsRune(cell, 'v'),
		CanCreate:  strings.ContainsRune(cell, 'c'),
		CanEdit:    strings.ContainsRune(cell, 'e'),
		CanDelete:  strings.ContainsRune(cell, 'd'),
		ViewAll:    strings.ContainsRune(cell, 'a'),
		HidePrices: strings.ContainsRune(cell, 'h'),
	}
}

func table(cells map[Module]string) map[Module]PermissionFlags {
	out := make(map[Module]PermissionFlags, len(Modules))
	for _, m := range Modules {
		out[m] = Flags(cells[m])
	}
	return out
}

// DefaultRoles returns the built-in roles and their module permission tables.
// Every table has a row for every registered module; unlisted modules are all-false.
func DefaultRoles() []SeedRole {
	adminCells := make(map[Module]string, len(Modules))
	for _, m := range Modules {
		adminCells[m] = "vceda"
	}

	return []SeedRole{
		{
			Code:        RoleCodeAdmin,
			Name:        "Администратор",
			Description: "Полный доступ ко всем модулям",
			IsSystem:    true,
			Permissions: table(adminCells),
		},
		{
			Code:        RoleCodeSalesManager,
			Name:        "Менеджер по продажам",
			Description: "Сделки, клиенты и первичные расчёты",
			Permissions: table(map[Module]string{
				ModuleDashboard:     "v",
				ModuleDeals:         "vce",
				ModuleProjects:      "v",
				ModuleMeasurements:  "vc",
				ModuleInstallations: "v",
				ModuleWarehouse:     "v",
				ModuleTasks:         "vce",
				ModuleDocuments:     "vce",
				ModuleAIChat:        "vc",
			}),
		},
		{
			Code:        RoleCodeProjectManager,
			Name:        "Руководитель проектов",
			Description: "Ведение проектов от замера до монтажа",
			Permissions: table(map[Module]string{
				ModuleDashboard:     "va",
				ModuleDeals:         "va",
				ModuleProjects:      "vcea",
				ModuleMeasurements:  "vcea",
				ModuleProduction:    "vcea",
				ModuleInstallations: "vcea",
				ModuleWarehouse:     "va",
				ModuleFinance:       "v",
				ModuleTasks:         "vceda",
				ModuleDocuments:     "vcea",
				ModuleAIChat:        "vc",
			}),
		},
		{
			Code:        RoleCodeEstimator,
			Name:        "Сметчик",
			Description: "Расчёт смет и спецификаций",
			Permissions: table(map[Module]string{
				ModuleDashboard:    "v",
				ModuleDeals:        "va",
				ModuleProjects:     "va",
				ModuleMeasurements: "va",
				ModuleProduction:   "v",
				ModuleWarehouse:    "va",
				ModuleTasks:        "vce",
				ModuleDocuments:    "vce",
				ModuleAIChat:       "vc",
			}),
		},
		{
			Code:        RoleCodeConstructor,
			Name:        "Конструктор",
			Description: "Проектирование изделий, без доступа к ценам",
			Permissions: table(map[Module]string{
				ModuleDashboard:     "v",
				ModuleDeals:         "vh",
				ModuleProjects:      "vh",
				ModuleMeasurements:  "v",
				ModuleProduction:    "vceh",
				ModuleInstallations: "v",
				ModuleWarehouse:     "vh",
				ModuleTasks:         "vce",
				ModuleDocuments:     "vce",
				ModuleAIChat:        "vc",
			}),
		},
		{
			Code:        RoleCodeFinancier,
			Name:        "Финансист",
			Description: "Платежи, бюджеты и отчётность",
			Permissions: table(map[Module]string{
				ModuleDashboard:  "va",
				ModuleDeals:      "va",
				ModuleProjects:   "va",
				ModuleProduction: "va",
				ModuleWarehouse:  "va",
				ModuleFinance:    "vceda",
				ModuleTasks:      "vce",
				ModuleDocuments:  "vcea",
			}),
		},
		{
			Code:        RoleCodeWarehouseKeeper,
			Name:        "Кладовщик",
			Description: "Приёмка, хранение и выдача материалов",
			Permissions: table(map[Module]string{
				ModuleDashboard:  "v",
				ModuleProjects:   "vh",
				ModuleProduction: "vh",
				ModuleWarehouse:  "vcea",
				ModuleTasks:      "vce",
				ModuleDocuments:  "v",
			}),
		},
		{
			Code:        RoleCodeMeasurer,
			Name:        "Замерщик",
			Description: "Выезды на замеры",
			Permissions: table(map[Module]string{
				ModuleDashboard:    "v",
				ModuleDeals:        "vh",
				ModuleProjects:     "vh",
				ModuleMeasurements: "vce",
				ModuleTasks:        "vce",
				ModuleDocuments:    "vch",
			}),
		},
		{
			Code:        RoleCodeInstaller,
			Name:        "Монтажник",
			Description: "Монтаж изделий у клиента",
			Permissions: table(map[Module]string{
				ModuleDashboard:     "v",
				ModuleProjects:      "vh",
				ModuleMeasurements:  "vh",
				ModuleProduction:    "vh",
				ModuleInstallations: "vce",
				ModuleWarehouse:     "vh",
				ModuleTasks:         "vce",
				ModuleDocuments:     "vh",
			}),
		},
	}
}

// DefaultStagePermissions returns the literal matrix restored by a reset.
// admin and project_manager hold everything; each specialist reads every stage type
// and writes/starts/completes only its own; client reads everything and writes on approval.
func DefaultStagePermissions() []StagePermission {
	specialists := map[string]StageType{
		RoleCodeMeasurer:    StageMeasurement,
		RoleCodeConstructor: StageDesign,
		RoleCodeProcurement: StageProcurement,
		RoleCodeProduction:  StageProduction,
		RoleCodeInstaller:   StageInstallation,
	}
	specialistOrder := []string{
		RoleCodeMeasurer,
		RoleCodeConstructor,
		RoleCodeProcurement,
		RoleCodeProduction,
		RoleCodeInstaller,
	}

	rows := make([]StagePermission, 0, 8*len(StageTypes))

	for _, role := range []string{RoleCodeAdmin, RoleCodeProjectManager} {
		for _, st := range StageTypes {
			rows = append(rows, StagePermission{
				Role: role, StageTypeCode: st,
				CanRead: true, CanWrite: true, CanDelete: true, CanStart: true, CanComplete: true,
			})
		}
	}

	for _, role := range specialistOrder {
		own := specialists[role]
		for _, st := range StageTypes {
			mine := st == own
			rows = append(rows, StagePermission{
				Role: role, StageTypeCode: st,
				CanRead: true, CanWrite: mine, CanStart: mine, CanComplete: mine,
			})
		}
	}

	for _, st := range StageTypes {
		rows = append(rows, StagePermission{
			Role: RoleCodeClient, StageTypeCode: st,
			CanRead: true, CanWrite: st == StageApproval,
		})
	}

	return rows
}
