package validator

// The CUE schemas are the contract between the dataflow builder, the
// resolver and the rego checks. A field that changes name or type on
// either side fails here with the offending path instead of silently
// reaching a rule as undefined.

import (
	"embed"
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/pkg/errors"
)

//go:embed snapshot_schema.cue facts_schema.cue
var schemaFS embed.FS

// Validator checks JSON documents against one definition of an embedded
// schema file.
type Validator struct {
	ctx        *cue.Context
	schema     cue.Value
	definition string
}

// New creates a Validator for dataflow snapshots.
func New() (*Validator, error) {
	return load("snapshot_schema.cue", "#Snapshot")
}

// NewFactsValidator creates a validator for relational fact tables.
func NewFactsValidator() (*Validator, error) {
	return load("facts_schema.cue", "#FactTables")
}

func load(file, definition string) (*Validator, error) {
	ctx := cuecontext.New()

	schemaBytes, err := schemaFS.ReadFile(file)
	if err != nil {
		return nil, errors.Wrapf(err, "loading embedded schema %s", file)
	}

	schema := ctx.CompileBytes(schemaBytes, cue.Filename(file))
	if schema.Err() != nil {
		return nil, errors.Wrapf(schema.Err(), "compiling schema %s", file)
	}
	if def := schema.LookupPath(cue.ParsePath(definition)); def.Err() != nil {
		return nil, errors.Wrapf(def.Err(), "looking up %s definition", definition)
	}

	return &Validator{
		ctx:        ctx,
		schema:     schema,
		definition: definition,
	}, nil
}

// Validate marshals data to JSON and checks it against the schema.
func (v *Validator) Validate(data interface{}) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "marshaling data to JSON")
	}
	return v.ValidateJSON(jsonBytes)
}

// ValidateJSON validates JSON bytes directly against the schema.
func (v *Validator) ValidateJSON(jsonBytes []byte) error {
	unified, err := v.unify(jsonBytes)
	if err != nil {
		return err
	}
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return errors.Wrap(err, "schema validation failed")
	}
	return nil
}

// ValidationErrors returns every validation error for data, one message
// per failing path. It is nil when data is valid.
func (v *Validator) ValidationErrors(data interface{}) []string {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return []string{fmt.Sprintf("marshal error: %v", err)}
	}

	unified, err := v.unify(jsonBytes)
	if err != nil {
		return []string{err.Error()}
	}
	err = unified.Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}

	var errs []string
	for _, e := range cueerrors.Errors(err) {
		errs = append(errs, e.Error())
	}
	return errs
}

func (v *Validator) unify(jsonBytes []byte) (cue.Value, error) {
	dataValue := v.ctx.CompileBytes(jsonBytes)
	if dataValue.Err() != nil {
		return cue.Value{}, errors.Wrap(dataValue.Err(), "compiling JSON as CUE")
	}
	def := v.schema.LookupPath(cue.ParsePath(v.definition))
	return def.Unify(dataValue), nil
}
