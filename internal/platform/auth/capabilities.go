package auth

// AccessLevel is the 0..6 capability ladder a user sits on.
type AccessLevel int

const (
	LevelExternal        AccessLevel = 0
	LevelViewer          AccessLevel = 1
	LevelDataContributor AccessLevel = 2
	LevelDataAnalyst     AccessLevel = 3
	LevelProjectManager  AccessLevel = 4
	LevelPlatformManager AccessLevel = 5
	LevelSystemAdmin     AccessLevel = 6
)

// Valid reports whether the level is inside the ladder.
func (l AccessLevel) Valid() bool {
	return l >= LevelExternal && l <= LevelSystemAdmin
}

// Role returns the display role derived from the access level.
func (l AccessLevel) Role() string {
	switch {
	case l >= LevelSystemAdmin:
		return "SystemAdmin"
	case l >= LevelPlatformManager:
		return "PlatformManager"
	case l >= LevelProjectManager:
		return "ProjectManager"
	case l >= LevelDataAnalyst:
		return "DataAnalyst"
	case l >= LevelDataContributor:
		return "DataContributor"
	case l >= LevelViewer:
		return "Viewer"
	default:
		return "External"
	}
}

// Capability names a single permission on the platform.
type Capability string

const (
	CanViewCases           Capability = "view_cases"
	CanViewCohorts         Capability = "view_cohorts"
	CanViewProjects        Capability = "view_projects"
	CanViewUsers           Capability = "view_users"
	CanViewDatasets        Capability = "view_datasets"
	CanManageCases         Capability = "manage_cases"
	CanManageCohorts       Capability = "manage_cohorts"
	CanManageDatasets      Capability = "manage_datasets"
	CanImportData          Capability = "import_data"
	CanAnalyzeData         Capability = "analyze_data"
	CanExportData          Capability = "export_data"
	CanManageProjects      Capability = "manage_projects"
	CanAccessSensitiveData Capability = "access_sensitive_data"
	CanAuditLogs           Capability = "audit_logs"
	CanManageUsers         Capability = "manage_users"
	IsSystemAdmin          Capability = "system_admin"
)

// minLevel is the capability ladder: the lowest access level that holds each
// capability.
var minLevel = map[Capability]AccessLevel{
	CanViewCases:           LevelViewer,
	CanViewCohorts:         LevelViewer,
	CanViewProjects:        LevelViewer,
	CanViewUsers:           LevelViewer,
	CanViewDatasets:        LevelViewer,
	CanManageCases:         LevelDataContributor,
	CanManageCohorts:       LevelDataContributor,
	CanManageDatasets:      LevelDataContributor,
	CanImportData:          LevelDataContributor,
	CanAnalyzeData:         LevelDataAnalyst,
	CanExportData:          LevelDataAnalyst,
	CanManageProjects:      LevelProjectManager,
	CanAccessSensitiveData: LevelProjectManager,
	CanAuditLogs:           LevelPlatformManager,
	CanManageUsers:         LevelPlatformManager,
	IsSystemAdmin:          LevelSystemAdmin,
}

// Has reports whether the level grants the capability.
func (l AccessLevel) Has(cap Capability) bool {
	min, ok := minLevel[cap]
	if !ok {
		return false
	}
	return l >= min
}

// Capabilities returns the full capability set granted by the level.
func (l AccessLevel) Capabilities() map[Capability]bool {
	caps := make(map[Capability]bool, len(minLevel))
	for cap := range minLevel {
		caps[cap] = l.Has(cap)
	}
	return caps
}
