package auth

import "testing"

func TestRoleLadder(t *testing.T) {
	cases := []struct {
		level AccessLevel
		role  string
	}{
		{LevelExternal, "External"},
		{LevelViewer, "Viewer"},
		{LevelDataContributor, "DataContributor"},
		{LevelDataAnalyst, "DataAnalyst"},
		{LevelProjectManager, "ProjectManager"},
		{LevelPlatformManager, "PlatformManager"},
		{LevelSystemAdmin, "SystemAdmin"},
	}
	for _, tc := range cases {
		if got := tc.level.Role(); got != tc.role {
			t.Errorf("level %d: expected role %s, got %s", tc.level, tc.role, got)
		}
	}
}

func TestCapabilityLattice(t *testing.T) {
	// Every capability requiring level L must be denied to all levels below L.
	for cap, min := range minLevel {
		for l := LevelExternal; l <= LevelSystemAdmin; l++ {
			want := l >= min
			if got := l.Has(cap); got != want {
				t.Errorf("level %d capability %s: expected %v, got %v", l, cap, want, got)
			}
		}
	}
}

func TestCanManageProjectResource(t *testing.T) {
	contributor := Principal{AccessLevel: LevelDataContributor}
	analyst := Principal{AccessLevel: LevelDataAnalyst}
	viewer := Principal{AccessLevel: LevelViewer}

	if CanManageProjectResource(viewer, true) {
		t.Error("viewer must not manage cohorts even as a member")
	}
	if CanManageProjectResource(contributor, false) {
		t.Error("contributor without membership must not manage project resources")
	}
	if !CanManageProjectResource(contributor, true) {
		t.Error("contributor with membership must manage project resources")
	}
	if !CanManageProjectResource(analyst, false) {
		t.Error("analyst must manage project resources without membership")
	}
}

func TestCanAdministerProject(t *testing.T) {
	pm := Principal{AccessLevel: LevelProjectManager}
	platform := Principal{AccessLevel: LevelPlatformManager}

	if CanAdministerProject(pm, false) {
		t.Error("project manager must not administer projects they do not lead")
	}
	if !CanAdministerProject(pm, true) {
		t.Error("project manager must administer projects they lead")
	}
	if !CanAdministerProject(platform, false) {
		t.Error("platform manager must administer any project")
	}
}
