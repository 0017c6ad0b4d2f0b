package config

import (
	"sync"

	"github.com/grovetools/tunnelkeeper/schema"
)

var (
	schemaOnce      sync.Once
	schemaValidator *schema.Validator
	schemaErr       error
)

// SchemaValidator validates configuration against the generated JSON Schema.
type SchemaValidator struct {
	validator *schema.Validator
}

// NewSchemaValidator returns a validator for the Config schema. The schema is
// generated and compiled once per process.
func NewSchemaValidator() (*SchemaValidator, error) {
	schemaOnce.Do(func() {
		var data []byte
		data, schemaErr = GenerateSchema()
		if schemaErr != nil {
			return
		}
		schemaValidator, schemaErr = schema.NewValidator("tunnelkeeper.json", data)
	})
	if schemaErr != nil {
		return nil, schemaErr
	}
	return &SchemaValidator{validator: schemaValidator}, nil
}

// Validate validates configuration data against the schema.
func (v *SchemaValidator) Validate(configData interface{}) error {
	return v.validator.Validate(configData)
}
