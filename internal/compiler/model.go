package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/derive/internal/deppath"
	"github.com/roach88/derive/internal/ir"
)

// modelKeys are the sections a model declaration may contain.
var modelKeys = map[string]bool{
	"attrs":         true,
	"relationships": true,
	"computed":      true,
}

// CompileSource compiles CUE source holding a top-level `model:` struct.
// filename is only used for error positions.
func CompileSource(filename string, src []byte) ([]ir.ModelSpec, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	return CompileSchema(v)
}

// CompileSchema compiles every model under the value's `model:` field, in
// declaration order.
func CompileSchema(v cue.Value) ([]ir.ModelSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	modelsVal := v.LookupPath(cue.ParsePath("model"))
	if !modelsVal.Exists() {
		return nil, &CompileError{
			Field:   "model",
			Message: "no models declared",
			Pos:     v.Pos(),
		}
	}

	iter, err := modelsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var models []ir.ModelSpec
	for iter.Next() {
		spec, err := CompileModel(iter.Value())
		if err != nil {
			return nil, err
		}
		models = append(models, *spec)
	}
	return models, nil
}

// CompileModel parses a single model struct into a ModelSpec. The model name
// is taken from the value's last path selector:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`model: person: attrs: name: string`)
//	spec, err := CompileModel(v.LookupPath(cue.ParsePath("model.person")))
func CompileModel(v cue.Value) (*ir.ModelSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if v.IncompleteKind() != cue.StructKind {
		return nil, &CompileError{
			Field:   "model",
			Message: "model must be a struct",
			Pos:     v.Pos(),
		}
	}

	spec := &ir.ModelSpec{Name: selectorName(v)}

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		key := iter.Selector().Unquoted()
		if !modelKeys[key] {
			return nil, &CompileError{
				Field:   key,
				Message: "unknown model section (want attrs, relationships or computed)",
				Pos:     iter.Value().Pos(),
			}
		}
	}

	if spec.Attrs, err = parseAttrs(v); err != nil {
		return nil, err
	}
	if spec.Relationships, err = parseRelationships(v); err != nil {
		return nil, err
	}
	if spec.Computed, err = parseComputed(spec.Name, v); err != nil {
		return nil, err
	}

	return spec, nil
}

func parseAttrs(v cue.Value) ([]ir.AttrSpec, error) {
	var attrs []ir.AttrSpec

	attrsVal := v.LookupPath(cue.ParsePath("attrs"))
	if !attrsVal.Exists() {
		return attrs, nil
	}

	iter, err := attrsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		kind, err := extractAttrKind(iter.Value())
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, ir.AttrSpec{
			Name: iter.Selector().Unquoted(),
			Kind: kind,
		})
	}
	return attrs, nil
}

// parseRelationships reads entries of the form
//
//	group: {belongsTo: "group", inverse: "recipients"}
//
// An explicit empty inverse declares a one-sided edge.
func parseRelationships(v cue.Value) ([]ir.RelationshipSpec, error) {
	var rels []ir.RelationshipSpec

	relsVal := v.LookupPath(cue.ParsePath("relationships"))
	if !relsVal.Exists() {
		return rels, nil
	}

	iter, err := relsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Selector().Unquoted()
		relVal := iter.Value()
		field := "relationships." + name

		rel := ir.RelationshipSpec{Name: name}

		belongsTo := relVal.LookupPath(cue.ParsePath("belongsTo"))
		hasMany := relVal.LookupPath(cue.ParsePath("hasMany"))
		switch {
		case belongsTo.Exists() && hasMany.Exists():
			return nil, &CompileError{
				Field:   field,
				Message: "declare either belongsTo or hasMany, not both",
				Pos:     relVal.Pos(),
			}
		case belongsTo.Exists():
			rel.Kind = ir.BelongsTo
			if rel.Target, err = belongsTo.String(); err != nil {
				return nil, formatCUEError(err)
			}
		case hasMany.Exists():
			rel.Kind = ir.HasMany
			if rel.Target, err = hasMany.String(); err != nil {
				return nil, formatCUEError(err)
			}
		default:
			return nil, &CompileError{
				Field:   field,
				Message: "relationship needs a belongsTo or hasMany target",
				Pos:     relVal.Pos(),
			}
		}

		invVal := relVal.LookupPath(cue.ParsePath("inverse"))
		if invVal.Exists() {
			inv, err := invVal.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			if inv == "" {
				inv = ir.NoInverse
			}
			rel.Inverse = inv
		}

		rels = append(rels, rel)
	}
	return rels, nil
}

// parseComputed reads derived property declarations. fn defaults to
// "<model>.<property>".
func parseComputed(model string, v cue.Value) ([]ir.ComputedSpec, error) {
	var computed []ir.ComputedSpec

	compVal := v.LookupPath(cue.ParsePath("computed"))
	if !compVal.Exists() {
		return computed, nil
	}

	iter, err := compVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Selector().Unquoted()
		cv := iter.Value()
		field := "computed." + name

		c := ir.ComputedSpec{Name: name, Fn: model + "." + name}

		depsVal := cv.LookupPath(cue.ParsePath("dependsOn"))
		if !depsVal.Exists() {
			return nil, &CompileError{
				Field:   field + ".dependsOn",
				Message: "dependsOn is required",
				Pos:     cv.Pos(),
			}
		}
		depIter, err := depsVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for depIter.Next() {
			key, err := depIter.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			if _, err := deppath.Parse(key); err != nil {
				return nil, &CompileError{
					Field:   field + ".dependsOn",
					Message: err.Error(),
					Pos:     depIter.Value().Pos(),
				}
			}
			c.DependsOn = append(c.DependsOn, key)
		}

		fnVal := cv.LookupPath(cue.ParsePath("fn"))
		if fnVal.Exists() {
			if c.Fn, err = fnVal.String(); err != nil {
				return nil, formatCUEError(err)
			}
		}

		computed = append(computed, c)
	}
	return computed, nil
}

// extractAttrKind converts a CUE type to an attribute kind.
// Floats are forbidden: attribute values must round-trip through canonical
// JSON.
func extractAttrKind(v cue.Value) (ir.AttrKind, error) {
	if err := v.Err(); err != nil {
		return "", formatCUEError(err)
	}
	switch v.IncompleteKind() {
	case cue.StringKind:
		return ir.AttrString, nil
	case cue.IntKind:
		return ir.AttrInt, nil
	case cue.BoolKind:
		return ir.AttrBool, nil
	case cue.ListKind:
		return ir.AttrArray, nil
	case cue.StructKind:
		return ir.AttrObject, nil
	case cue.TopKind:
		return ir.AttrAny, nil
	case cue.FloatKind, cue.NumberKind:
		return "", &CompileError{
			Field:   "type",
			Message: "float types are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return "", &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

func selectorName(v cue.Value) string {
	sels := v.Path().Selectors()
	if len(sels) == 0 {
		return ""
	}
	last := sels[len(sels)-1]
	if last.LabelType() == cue.StringLabel {
		return last.Unquoted()
	}
	return last.String()
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Report the first error that carries a position.
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
