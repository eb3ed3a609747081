package protocol

// ContextSpec declares the capabilities of one assistant context. The revert
// coordinator branches on Checkpoints and SideEffects; the session manager
// enforces ScopeOptional.
type ContextSpec struct {
	Tag           string
	ScopeOptional bool // a global (site-less) agent is allowed
	Checkpoints   bool // the backend snapshots the document before mutating tasks
	SideEffects   bool // assistant turns may create external entities (e.g. calendar events)
}

// Known context tags.
const (
	ContextStudio  = "studio"  // visual site editor; document-checkpointed
	ContextEvents  = "events"  // event scheduling; creates calendar entities
	ContextSupport = "support" // general Q&A; no document, site optional
)

// contexts is the registry of built-in context specs.
var contexts = map[string]ContextSpec{
	ContextStudio:  {Tag: ContextStudio, Checkpoints: true},
	ContextEvents:  {Tag: ContextEvents, SideEffects: true},
	ContextSupport: {Tag: ContextSupport, ScopeOptional: true},
}

// ContextFor returns the spec for a context tag. Unknown tags get a
// conservative default: site-scoped, no checkpoints, no side effects.
func ContextFor(tag string) ContextSpec {
	if spec, ok := contexts[tag]; ok {
		return spec
	}
	return ContextSpec{Tag: tag}
}
