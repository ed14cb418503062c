package serde

import (
	"fmt"
	"slices"
)

// Rule is a declarative policy entry attached to a schema. It names the
// executor type to run, the mode it fires in and the field tags it targets.
// Rules are immutable once attached to a schema.
type Rule struct {
	Name     string            `json:"name" yaml:"name"`
	Doc      string            `json:"doc,omitempty" yaml:"doc,omitempty"`
	Kind     RuleKind          `json:"kind" yaml:"kind"`
	Mode     RuleMode          `json:"mode" yaml:"mode"`
	Type     string            `json:"type" yaml:"type"`
	Tags     []string          `json:"tags,omitempty" yaml:"tags,omitempty"`
	Params   map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
	Disabled bool              `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// Param returns the named rule parameter, or fallback when unset.
func (r Rule) Param(name, fallback string) string {
	if v, ok := r.Params[name]; ok && v != "" {
		return v
	}
	return fallback
}

// Validate checks the rule's kind, mode and type.
func (r Rule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidRule)
	}
	if !IsValidRuleKind(r.Kind) {
		return fmt.Errorf("%w: rule %q has kind %q", ErrInvalidRule, r.Name, r.Kind)
	}
	if !IsValidRuleMode(r.Mode) {
		return fmt.Errorf("%w: rule %q has mode %q", ErrInvalidRule, r.Name, r.Mode)
	}
	if r.Type == "" {
		return fmt.Errorf("%w: rule %q has no type", ErrInvalidRule, r.Name)
	}
	return nil
}

// RuleSet holds the rules attached to a schema.
type RuleSet struct {
	MigrationRules []Rule `json:"migrationRules,omitempty" yaml:"migrationRules,omitempty"`
	DomainRules    []Rule `json:"domainRules,omitempty" yaml:"domainRules,omitempty"`
}

// Validate checks every rule in the set.
func (rs *RuleSet) Validate() error {
	if rs == nil {
		return nil
	}
	for _, r := range rs.MigrationRules {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	for _, r := range rs.DomainRules {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Metadata carries schema-level annotations. Tags maps a fully qualified
// field name to the tags declared for it.
type Metadata struct {
	Tags       map[string][]string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Properties map[string]string   `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// FieldTags returns the tags declared for a fully qualified field name.
func (m *Metadata) FieldTags(fullName string) []string {
	if m == nil {
		return nil
	}
	return m.Tags[fullName]
}

// Schema is a registered schema together with its rules and metadata.
// Definition holds the schema text; walkers parse it per format.
type Schema struct {
	ID         int        `json:"id,omitempty" yaml:"id,omitempty"`
	Type       SchemaType `json:"schemaType" yaml:"schemaType"`
	Definition string     `json:"schema" yaml:"schema"`
	RuleSet    *RuleSet   `json:"ruleSet,omitempty" yaml:"ruleSet,omitempty"`
	Metadata   *Metadata  `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// migrationRules returns the schema's migration rules, tolerating nil.
func (s *Schema) migrationRules() []Rule {
	if s == nil || s.RuleSet == nil {
		return nil
	}
	return s.RuleSet.MigrationRules
}

// domainRules returns the schema's domain rules, tolerating nil.
func (s *Schema) domainRules() []Rule {
	if s == nil || s.RuleSet == nil {
		return nil
	}
	return s.RuleSet.DomainRules
}

// Dek is a data encryption key in raw and KMS-wrapped form.
// Raw is only ever held in memory.
type Dek struct {
	Raw     []byte
	Wrapped []byte
}

// mergeTags returns the sorted union of two tag lists.
func mergeTags(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	slices.Sort(out)
	return slices.Compact(out)
}
