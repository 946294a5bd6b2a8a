package health

import "testing"

func TestActionFor_AvailableAlwaysProceeds(t *testing.T) {
	roles := []Role{RoleStore, RoleCache, RoleGeneration, RoleAuxiliary}

	for _, role := range roles {
		for _, c := range []Capability{Available, Degraded} {
			if got := ActionFor(role, c); got != ActionProceed {
				t.Errorf("ActionFor(%v, %v) = %v, want proceed", role, c, got)
			}
		}
	}
}

func TestActionFor_Unavailable(t *testing.T) {
	tests := []struct {
		role Role
		want Action
	}{
		{RoleStore, ActionFail},
		{RoleCache, ActionBypass},
		{RoleGeneration, ActionFallback},
		{RoleAuxiliary, ActionOmit},
	}

	for _, tt := range tests {
		if got := ActionFor(tt.role, Unavailable); got != tt.want {
			t.Errorf("ActionFor(%v, unavailable) = %v, want %v", tt.role, got, tt.want)
		}
	}
}
