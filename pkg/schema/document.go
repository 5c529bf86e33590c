package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/fakexrm/fakexrm/pkg/ordering"
)

// Document describes entity types and their lookup attributes.
//
//	entities:
//	  contact:
//	    references:
//	      - attribute: parentcustomerid
//	        target: account
type Document struct {
	Entities map[string]EntityDefinition `yaml:"entities" json:"entities" validate:"required,dive,keys,required,endkeys"`
}

// EntityDefinition lists the outgoing references of one entity type.
type EntityDefinition struct {
	References []ReferenceDefinition `yaml:"references" json:"references,omitempty" validate:"dive"`
}

// ReferenceDefinition is a single lookup attribute.
type ReferenceDefinition struct {
	Attribute string `yaml:"attribute" json:"attribute" validate:"required"`
	Target    string `yaml:"target" json:"target" validate:"required"`
}

var validate = validator.New()

// Validate checks the document structure.
func (d *Document) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("invalid schema document: %w", err)
	}

	for _, name := range d.Names() {
		seen := make(map[string]bool)
		for _, ref := range d.Entities[name].References {
			if seen[ref.Attribute] {
				return fmt.Errorf("invalid schema document: entity %s declares attribute %s twice", name, ref.Attribute)
			}
			seen[ref.Attribute] = true
		}
	}

	return nil
}

// Names returns the declared entity names in sorted order.
func (d *Document) Names() []string {
	names := make([]string, 0, len(d.Entities))
	for name := range d.Entities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Types returns the declared entity names as type ids, sorted.
func (d *Document) Types() []ordering.TypeID {
	names := d.Names()
	ids := make([]ordering.TypeID, len(names))
	for i, name := range names {
		ids[i] = ordering.TypeID(name)
	}
	return ids
}

// Provider returns a static provider serving the document's references.
func (d *Document) Provider() *TableProvider {
	table := make(map[ordering.TypeID][]ordering.Reference, len(d.Entities))
	for name, def := range d.Entities {
		refs := make([]ordering.Reference, 0, len(def.References))
		for _, r := range def.References {
			refs = append(refs, ordering.Reference{
				Target:          ordering.TypeID(r.Target),
				Attribute:       r.Attribute,
				SelfReferencing: r.Target == name,
			})
		}
		table[ordering.TypeID(name)] = refs
	}
	return NewTableProvider(table)
}

// ParseYAML parses and validates a YAML schema document.
func ParseYAML(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML schema: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ParseCUE compiles, decodes, and validates a CUE schema document.
func ParseCUE(data []byte, filename string) (*Document, error) {
	val := cuecontext.New().CompileBytes(data, cue.Filename(filename))
	if err := val.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile CUE schema: %w", err)
	}

	if err := val.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("CUE schema is not concrete: %w", err)
	}

	var doc Document
	if err := val.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode CUE schema: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// LoadFile reads a schema document, choosing the parser by file extension.
// JSON files go through the YAML parser.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml", ".json":
		return ParseYAML(data)
	case ".cue":
		return ParseCUE(data, path)
	default:
		return nil, fmt.Errorf("unsupported schema file extension: %q", ext)
	}
}
