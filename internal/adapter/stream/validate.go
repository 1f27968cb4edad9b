package stream

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"thoughtstream/internal/domain"
)

//go:embed envelope.schema.json
var envelopeSchema []byte

// Validator checks inbound frames against the envelope schema before decoding.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the embedded envelope schema.
func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("envelope.schema.json", bytes.NewReader(envelopeSchema)); err != nil {
		return nil, fmt.Errorf("add envelope schema: %w", err)
	}
	compiled, err := compiler.Compile("envelope.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile envelope schema: %w", err)
	}
	return &Validator{schema: compiled}, nil
}

// Decode validates one frame and decodes it. Failures wrap ErrInvalidFrame.
func (v *Validator) Decode(data []byte) (domain.Envelope, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return domain.Envelope{}, domain.NewDomainError("Validator.Decode", domain.ErrInvalidFrame, err.Error())
	}
	if err := v.schema.Validate(doc); err != nil {
		return domain.Envelope{}, domain.NewDomainError("Validator.Decode", domain.ErrInvalidFrame, err.Error())
	}

	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return domain.Envelope{}, domain.NewDomainError("Validator.Decode", domain.ErrInvalidFrame, err.Error())
	}
	return env, nil
}
