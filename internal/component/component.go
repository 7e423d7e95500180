// Package component declares the closed set of component kinds the
// world supports and the validation rules for their payloads.
package component

import "github.com/go-gl/mathgl/mgl64"

// Kind names a component type. The set is closed: the world knows
// exactly these four kinds and rejects everything else.
type Kind string

const (
	KindCoreProperties Kind = "coreProperties"
	KindTransform      Kind = "transform"
	KindScript         Kind = "script"
	KindRenderer       Kind = "renderer"
)

// Replaceable reports whether re-attaching the kind overwrites the
// previous value. Only Transform is last-write-wins; CoreProperties is
// immutable after creation, Script and Renderer are attach-once.
func (k Kind) Replaceable() bool {
	return k == KindTransform
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindCoreProperties, KindTransform, KindScript, KindRenderer:
		return true
	}
	return false
}

// CoreProperties is the mandatory identity component every entity
// carries from creation. Immutable after creation.
type CoreProperties struct {
	Name        string
	Tags        []string
	TargetScene string
}

// Clone returns a copy that shares no slice storage with the original.
func (c CoreProperties) Clone() CoreProperties {
	out := c
	out.Tags = make([]string, len(c.Tags))
	copy(out.Tags, c.Tags)
	return out
}

// Transform holds an entity's spatial placement. Rotation is a
// deferred field and is deliberately absent; payloads carrying one are
// rejected as unknown fields.
type Transform struct {
	Position mgl64.Vec3
	Scale    mgl64.Vec3
}

// Script references a behavior module attached to an entity.
type Script struct {
	ScriptPath string
}

// Renderer references a mesh asset attached to an entity. Handle is
// the resource handle issued by the render manager when the mesh was
// loaded.
type Renderer struct {
	FilePath string
	Handle   string
}
