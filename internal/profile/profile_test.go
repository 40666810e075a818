package profile

import "testing"

func TestResolve_known(t *testing.T) {
	r := NewRegistry(720)
	p := r.Resolve(1080)
	if p.Tier != 1080 || p.Resolution != "1920x1080" || p.VideoBitrate != "4500k" {
		t.Errorf("unexpected 1080 profile: %+v", p)
	}
}

func TestResolve_unknown_falls_back(t *testing.T) {
	r := NewRegistry(480)
	p := r.Resolve(9999)
	if p.Tier != 480 {
		t.Errorf("expected fallback to 480, got %d", p.Tier)
	}
}

func TestNewRegistry_bad_default(t *testing.T) {
	r := NewRegistry(123)
	if r.DefaultTier() != 720 {
		t.Errorf("expected default 720 for unknown configured tier, got %d", r.DefaultTier())
	}
}

func TestStepDown(t *testing.T) {
	r := NewRegistry(720)
	if tier, ok := r.StepDown(1080); !ok || tier != 720 {
		t.Errorf("StepDown(1080) = %d, %v", tier, ok)
	}
	if tier, ok := r.StepDown(480); ok || tier != 480 {
		t.Errorf("StepDown(480) = %d, %v; expected no lower tier", tier, ok)
	}
}

func TestStepUp(t *testing.T) {
	r := NewRegistry(720)
	if tier, ok := r.StepUp(480); !ok || tier != 720 {
		t.Errorf("StepUp(480) = %d, %v", tier, ok)
	}
	if tier, ok := r.StepUp(1080); ok || tier != 1080 {
		t.Errorf("StepUp(1080) = %d, %v; expected no higher tier", tier, ok)
	}
}

func TestTiers_ascending(t *testing.T) {
	r := NewRegistry(720)
	tiers := r.Tiers()
	for i := 1; i < len(tiers); i++ {
		if tiers[i-1] >= tiers[i] {
			t.Fatalf("tiers not ascending: %v", tiers)
		}
	}
}
