package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// SchemaID is the $id of the generated JSON Schema.
const SchemaID = "https://github.com/ormasoftchile/contractnet/schemas/system-v0.json"

// GenerateJSONSchema produces a JSON Schema Draft 2020-12 document from the
// contractnet/v0 System types.
func GenerateJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	s := r.Reflect(&System{})
	s.ID = SchemaID
	s.Title = "Contract network — contractnet/v0"
	s.Description = "Schema for contractnet/v0 system definition documents (Draft 2020-12)"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal system schema: %w", err)
	}
	return data, nil
}
