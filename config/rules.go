package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zoobzio/serde"
)

// ErrInvalidSchemaFile indicates a schema or rule set file that does not
// describe a usable schema.
var ErrInvalidSchemaFile = errors.New("invalid schema file")

// LoadRuleSet reads a YAML rule set:
//
//	domainRules:
//	  - name: encryptPII
//	    kind: TRANSFORM
//	    mode: WRITEREAD
//	    type: ENCRYPT
//	    tags: [PII]
func LoadRuleSet(path string) (*serde.RuleSet, error) {
	var rs serde.RuleSet
	if err := decodeFile(path, &rs); err != nil {
		return nil, err
	}
	if err := rs.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &rs, nil
}

// LoadSchema reads a YAML schema document: schemaType, schema (the
// definition text), and optional ruleSet and metadata.
func LoadSchema(path string) (*serde.Schema, error) {
	var s serde.Schema
	if err := decodeFile(path, &s); err != nil {
		return nil, err
	}
	if !serde.IsValidSchemaType(s.Type) {
		return nil, fmt.Errorf("%w: %s: schemaType %q", ErrInvalidSchemaFile, path, s.Type)
	}
	if s.Definition == "" {
		return nil, fmt.Errorf("%w: %s: empty schema", ErrInvalidSchemaFile, path)
	}
	if err := s.RuleSet.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &s, nil
}

// decodeFile strictly decodes one YAML document from path into out.
func decodeFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: %s is empty", ErrInvalidSchemaFile, path)
		}
		return fmt.Errorf("%w: %s: %v", ErrInvalidSchemaFile, path, err)
	}
	return nil
}
