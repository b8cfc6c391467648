package manifest

import (
	"encoding/json"
	"io"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/PhilosopherRex/snapper/internal/apperr"
)

// validateConfigDefaults validates cfg.Defaults against cfg.Schema when
// both are declared. This is a SPEC_FULL addition (spec.md names
// config.schema/config.defaults but never validates one against the
// other); see SPEC_FULL.md Domain Stack.
func validateConfigDefaults(cfg Config) error {
	if cfg.Schema == nil || cfg.Defaults == nil {
		return nil
	}
	sch, err := compileSchema(cfg.Schema)
	if err != nil {
		return apperr.Wrap(apperr.CodeInvalidManifest, "config.schema is not a valid JSON Schema", err)
	}
	if err := sch.Validate(toJSONValue(cfg.Defaults)); err != nil {
		return apperr.Wrap(apperr.CodeInvalidManifest, "config.defaults does not satisfy config.schema", err)
	}
	return nil
}

// ValidateConfig validates an arbitrary configuration value (e.g. any
// value an app passes to Facade.Persist, whatever its key or namespace)
// against a manifest's declared config.schema. Returns nil if no schema is
// declared — absence of a schema is not an error (spec: config.schema is
// optional).
func ValidateConfig(m *Manifest, value interface{}) error {
	if m.Config.Schema == nil {
		return nil
	}
	sch, err := compileSchema(m.Config.Schema)
	if err != nil {
		return apperr.Wrap(apperr.CodeInvalidManifest, "config.schema is not a valid JSON Schema", err)
	}
	if err := sch.Validate(toJSONValue(value)); err != nil {
		return apperr.Wrap(apperr.CodeInvalidManifest, "value does not satisfy config.schema", err)
	}
	return nil
}

func compileSchema(schema map[string]interface{}) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	const resource = "snapper://inline-config-schema.json"
	if err := c.AddResource(resource, bytesReader(raw)); err != nil {
		return nil, err
	}
	return c.Compile(resource)
}

// toJSONValue round-trips value through JSON so jsonschema validates the
// same plain-value representation (map[string]interface{}, []interface{},
// float64, ...) it expects, regardless of what concrete Go type the
// caller handed in.
func toJSONValue(value interface{}) interface{} {
	raw, err := json.Marshal(value)
	if err != nil {
		return value
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return value
	}
	return v
}

func bytesReader(b []byte) *jsonReaderCloser {
	return &jsonReaderCloser{data: b}
}

// jsonReaderCloser adapts a byte slice to io.Reader for jsonschema's
// AddResource, which is defined over io.Reader.
type jsonReaderCloser struct {
	data []byte
	pos  int
}

func (r *jsonReaderCloser) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}
