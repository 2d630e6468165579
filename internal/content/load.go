package content

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed data/catalog.yaml data/catalog.schema.json
var packFS embed.FS

type catalogDocument struct {
	Items   []ItemTemplate  `yaml:"items" json:"items"`
	Enemies []EnemyTemplate `yaml:"enemies" json:"enemies"`
	Nests   []SpawnNest     `yaml:"nests" json:"nests"`
}

// Load reads and validates a content pack from disk.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read content pack: %w", err)
	}
	return Parse(raw)
}

// Default returns the embedded content pack.
func Default() (*Catalog, error) {
	raw, err := packFS.ReadFile("data/catalog.yaml")
	if err != nil {
		return nil, fmt.Errorf("embedded content pack: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a YAML content pack, schema-checks it, and resolves
// cross-references (loot table item ids, nest template ids).
func Parse(raw []byte) (*Catalog, error) {
	if err := validateSchema(raw); err != nil {
		return nil, err
	}
	var doc catalogDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode content pack: %w", err)
	}
	return buildCatalog(doc)
}

func validateSchema(raw []byte) error {
	schemaBytes, err := packFS.ReadFile("data/catalog.schema.json")
	if err != nil {
		return fmt.Errorf("embedded catalog schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("catalog.schema.json", bytes.NewReader(schemaBytes)); err != nil {
		return fmt.Errorf("register catalog schema: %w", err)
	}
	schema, err := compiler.Compile("catalog.schema.json")
	if err != nil {
		return fmt.Errorf("compile catalog schema: %w", err)
	}

	// The schema library expects JSON-decoded values, so the YAML document
	// is round-tripped through encoding/json before validation.
	var yamlDoc any
	if err := yaml.Unmarshal(raw, &yamlDoc); err != nil {
		return fmt.Errorf("decode content pack: %w", err)
	}
	jsonBytes, err := json.Marshal(yamlDoc)
	if err != nil {
		return fmt.Errorf("normalize content pack: %w", err)
	}
	var jsonDoc any
	if err := json.Unmarshal(jsonBytes, &jsonDoc); err != nil {
		return fmt.Errorf("normalize content pack: %w", err)
	}
	if err := schema.Validate(jsonDoc); err != nil {
		return fmt.Errorf("content pack schema: %w", err)
	}
	return nil
}
