package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/derive/internal/deppath"
	"github.com/roach88/derive/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrEmptyName            = "E100" // model or field without a name
	ErrDuplicateModel       = "E101" // model declared twice
	ErrDuplicateField       = "E102" // field name reused across attrs/relationships/computed
	ErrInvalidAttrKind      = "E103" // attribute kind outside the IR kinds
	ErrUnknownTarget        = "E104" // relationship targets an undeclared model
	ErrInvalidInverse       = "E105" // inverse missing, misdirected or not reciprocal
	ErrInvalidDependencyKey = "E106" // dependency key does not parse
	ErrUnresolvedDependency = "E107" // dependency path does not resolve against the schema
	ErrUnknownFunction      = "E108" // compute function not registered
	ErrMissingFunction      = "E109" // computed property without a function name
	ErrDependencyCycle      = "E110" // derived properties depend on each other on one record
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks compiled models against each other.
// Returns all errors found (does not fail-fast). Omitted inverses are
// inferred before reciprocity is checked.
func Validate(models []ir.ModelSpec) []ValidationError {
	var errs []ValidationError

	models = InferInverses(models)
	idx := indexModels(models)

	seen := make(map[string]bool, len(models))
	for i := range models {
		m := &models[i]
		if strings.TrimSpace(m.Name) == "" {
			errs = append(errs, ValidationError{
				Field:   "model",
				Message: "model name is required",
				Code:    ErrEmptyName,
			})
			continue
		}
		if seen[m.Name] {
			errs = append(errs, ValidationError{
				Field:   m.Name,
				Message: "model declared twice",
				Code:    ErrDuplicateModel,
			})
			continue
		}
		seen[m.Name] = true

		errs = append(errs, validateFields(m)...)
		errs = append(errs, validateRelationships(m, idx)...)
		errs = append(errs, validateComputed(m, idx)...)
	}

	return errs
}

// InferInverses fills omitted inverses the way the record store does.
func InferInverses(models []ir.ModelSpec) []ir.ModelSpec {
	return ir.InferInverses(models)
}

// CheckFuncs reports computed properties whose function is not known.
func CheckFuncs(models []ir.ModelSpec, known func(name string) bool) []ValidationError {
	var errs []ValidationError
	for _, m := range models {
		for _, c := range m.Computed {
			field := m.Name + "." + c.Name
			if c.Fn == "" {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: "computed property has no fn",
					Code:    ErrMissingFunction,
				})
				continue
			}
			if !known(c.Fn) {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("compute function %q is not registered", c.Fn),
					Code:    ErrUnknownFunction,
				})
			}
		}
	}
	return errs
}

func validateFields(m *ir.ModelSpec) []ValidationError {
	var errs []ValidationError

	seen := make(map[string]bool)
	for _, name := range m.FieldNames() {
		field := m.Name + "." + name
		if strings.TrimSpace(name) == "" {
			errs = append(errs, ValidationError{
				Field:   m.Name,
				Message: "field name is required",
				Code:    ErrEmptyName,
			})
			continue
		}
		if seen[name] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "field declared twice",
				Code:    ErrDuplicateField,
			})
		}
		seen[name] = true
	}

	for _, a := range m.Attrs {
		if !isValidAttrKind(a.Kind) {
			errs = append(errs, ValidationError{
				Field:   m.Name + "." + a.Name,
				Message: fmt.Sprintf("invalid attribute kind %q", a.Kind),
				Code:    ErrInvalidAttrKind,
			})
		}
	}
	return errs
}

func validateRelationships(m *ir.ModelSpec, idx schemaIndex) []ValidationError {
	var errs []ValidationError

	for _, r := range m.Relationships {
		field := m.Name + "." + r.Name
		target, ok := idx[r.Target]
		if !ok {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("unknown target %q", r.Target),
				Code:    ErrUnknownTarget,
			})
			continue
		}
		if r.Inverse == ir.NoInverse || r.Inverse == "" {
			continue
		}
		inv, ok := target.Relationship(r.Inverse)
		switch {
		case !ok:
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("inverse %s.%s not declared", r.Target, r.Inverse),
				Code:    ErrInvalidInverse,
			})
		case inv.Target != m.Name:
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("inverse %s.%s points at %s", r.Target, r.Inverse, inv.Target),
				Code:    ErrInvalidInverse,
			})
		case inv.Inverse != r.Name:
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("inverse %s.%s is not reciprocal (pairs with %q)", r.Target, r.Inverse, inv.Inverse),
				Code:    ErrInvalidInverse,
			})
		}
	}
	return errs
}

func validateComputed(m *ir.ModelSpec, idx schemaIndex) []ValidationError {
	var errs []ValidationError

	for _, c := range m.Computed {
		for i, key := range c.DependsOn {
			field := fmt.Sprintf("%s.%s.dependsOn[%d]", m.Name, c.Name, i)
			paths, err := deppath.Parse(key)
			if err != nil {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: err.Error(),
					Code:    ErrInvalidDependencyKey,
				})
				continue
			}
			for _, p := range paths {
				if _, err := idx.resolvePath(m, p); err != nil {
					errs = append(errs, ValidationError{
						Field:   field,
						Message: fmt.Sprintf("%s: %v", p, err),
						Code:    ErrUnresolvedDependency,
					})
				}
			}
		}
	}
	return errs
}

func isValidAttrKind(k ir.AttrKind) bool {
	switch k {
	case ir.AttrString, ir.AttrInt, ir.AttrBool, ir.AttrArray, ir.AttrObject, ir.AttrAny:
		return true
	default:
		return false
	}
}
