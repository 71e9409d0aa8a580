package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const maxBodyBytes = 64 << 10

const propertiesSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "properties": {
      "type":  {"type": "string"},
      "value": {"type": ["string", "null"]}
    },
    "required": ["type"],
    "additionalProperties": false
  }
}`

const claimSchema = `{
  "type": "object",
  "properties": {
    "type":  {"type": "string"},
    "value": {"type": "string"}
  },
  "required": ["type", "value"],
  "additionalProperties": false
}`

// bodySchemas holds the compiled request body schemas.
type bodySchemas struct {
	properties *jsonschema.Schema
	claim      *jsonschema.Schema
}

func compileBodySchemas() (*bodySchemas, error) {
	properties, err := compileSchema("properties.json", propertiesSchema)
	if err != nil {
		return nil, err
	}
	claim, err := compileSchema("claim.json", claimSchema)
	if err != nil {
		return nil, err
	}
	return &bodySchemas{properties: properties, claim: claim}, nil
}

func compileSchema(url, schemaJSON string) (*jsonschema.Schema, error) {
	parsed, err := jsonschema.UnmarshalJSON(strings.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", url, err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft7)
	if err := compiler.AddResource(url, parsed); err != nil {
		return nil, fmt.Errorf("add schema resource %s: %w", url, err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", url, err)
	}
	return schema, nil
}

// readBody reads at most maxBodyBytes of the request body.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, ErrBodyTooLarge
		}
		return nil, fmt.Errorf("read request body: %w", err)
	}
	return body, nil
}

// decodeValidated checks body against schema and then decodes it into out.
// The returned message is user facing; an empty message means success.
func decodeValidated(schema *jsonschema.Schema, body []byte, out any) string {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return "request body must be valid JSON"
	}
	if err := schema.Validate(doc); err != nil {
		return formatSchemaError(err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return "request body must be valid JSON"
	}
	return ""
}

func formatSchemaError(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}

	path := "$"
	var parts []string
	for _, part := range ve.InstanceLocation {
		if part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) > 0 {
		path = "$." + strings.Join(parts, ".")
	}

	msg := ve.Error()
	if len(msg) > 200 {
		msg = msg[:200] + "... (truncated)"
	}
	return fmt.Sprintf("validation failed at '%s': %s", path, msg)
}
