package messaging

import (
	_ "embed"
	"fmt"

	"github.com/roach88/derive/internal/compiler"
	"github.com/roach88/derive/internal/engine"
	"github.com/roach88/derive/internal/ir"
	"github.com/roach88/derive/internal/record"
)

// Name identifies the bundle in scenarios and on the command line.
const Name = "messaging"

//go:embed schema.cue
var schemaCUE []byte

// Bundle pairs compiled models with the compute functions they name.
type Bundle struct {
	Name   string
	Models []ir.ModelSpec
	Funcs  engine.Funcs
}

// Load compiles the embedded schema and checks it against the functions.
func Load() (*Bundle, error) {
	models, err := compiler.CompileSource("messaging/schema.cue", schemaCUE)
	if err != nil {
		return nil, fmt.Errorf("compile messaging schema: %w", err)
	}
	b := &Bundle{Name: Name, Models: models, Funcs: Funcs()}
	if errs := b.Check(); len(errs) > 0 {
		return nil, fmt.Errorf("messaging schema: %w", errs[0])
	}
	return b, nil
}

// Schema returns the embedded CUE source.
func Schema() []byte {
	return schemaCUE
}

// Known reports whether fn is one of the bundle's compute functions.
func (b *Bundle) Known(fn string) bool {
	_, ok := b.Funcs[fn]
	return ok
}

// Check validates the models and their function references.
func (b *Bundle) Check() []compiler.ValidationError {
	errs := compiler.Validate(b.Models)
	return append(errs, compiler.CheckFuncs(b.Models, b.Known)...)
}

// NewEngine builds a fresh store over the bundle's models with an engine
// attached.
func (b *Bundle) NewEngine(storeOpts []record.Option, opts ...engine.EngineOption) (*engine.Engine, error) {
	s, err := record.NewStore(b.Models, storeOpts...)
	if err != nil {
		return nil, err
	}
	return engine.New(s, b.Funcs, opts...)
}

// NewStore loads the bundle and returns a store with an engine attached.
func NewStore(opts ...engine.EngineOption) (*record.Store, *engine.Engine, error) {
	b, err := Load()
	if err != nil {
		return nil, nil, err
	}
	e, err := b.NewEngine(nil, opts...)
	if err != nil {
		return nil, nil, err
	}
	return e.Store(), e, nil
}
