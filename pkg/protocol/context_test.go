package protocol

import "testing"

func TestContextFor(t *testing.T) {
	studio := ContextFor(ContextStudio)
	if !studio.Checkpoints || studio.SideEffects || studio.ScopeOptional {
		t.Errorf("studio spec = %+v", studio)
	}

	events := ContextFor(ContextEvents)
	if events.Checkpoints || !events.SideEffects {
		t.Errorf("events spec = %+v", events)
	}

	support := ContextFor(ContextSupport)
	if !support.ScopeOptional {
		t.Errorf("support spec = %+v", support)
	}
}

func TestContextForUnknownTag(t *testing.T) {
	spec := ContextFor("legal")
	if spec.Tag != "legal" {
		t.Errorf("Tag = %q, want legal", spec.Tag)
	}
	// Unknown contexts get the conservative default.
	if spec.Checkpoints || spec.SideEffects || spec.ScopeOptional {
		t.Errorf("unknown context spec not conservative: %+v", spec)
	}
}
