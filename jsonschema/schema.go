package jsonschema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	js "github.com/santhosh-tekuri/jsonschema/v6"
)

// resourceURL is the location documents are registered under for
// compilation.
const resourceURL = "mem://schema.json"

// Property is one declared object property.
type Property struct {
	Name string
	Node *Node
}

// Node is one schema in a parsed document. Properties keep the order they
// appear in the document.
type Node struct {
	doc *Document

	Pointer      string
	Types        []string
	Properties   []Property
	Items        *Node
	Additional   *Node
	Ref          string
	Alternatives []*Node
	Tags         []string

	// combinator is the first of oneOf, anyOf or allOf seen on the node.
	combinator string
}

// Document is a parsed JSON schema.
type Document struct {
	Root *Node

	generic any
	nodes   map[string]*Node

	mu       sync.Mutex
	compiler *js.Compiler
	compiled map[string]*js.Schema
}

// Parse parses a JSON schema definition.
func Parse(definition string) (*Document, error) {
	dec := json.NewDecoder(strings.NewReader(definition))
	dec.UseNumber()
	tree, err := decodeOrdered(dec)
	if err != nil {
		return nil, fmt.Errorf("parse json schema: %w", err)
	}
	generic, err := js.UnmarshalJSON(strings.NewReader(definition))
	if err != nil {
		return nil, fmt.Errorf("parse json schema: %w", err)
	}

	d := &Document{
		generic:  generic,
		nodes:    make(map[string]*Node),
		compiled: make(map[string]*js.Schema),
	}
	d.Root = d.build(tree, "")
	return d, nil
}

// Node returns the node at a JSON pointer, "" being the root.
func (d *Document) Node(pointer string) (*Node, bool) {
	n, ok := d.nodes[pointer]
	return n, ok
}

// Resolve returns the node a local $ref points at.
func (d *Document) Resolve(ref string) (*Node, error) {
	pointer, ok := strings.CutPrefix(ref, "#")
	if !ok {
		return nil, fmt.Errorf("unsupported $ref %q", ref)
	}
	n, ok := d.nodes[pointer]
	if !ok {
		return nil, fmt.Errorf("unresolved $ref %q", ref)
	}
	return n, nil
}

// Validate checks v against the schema at pointer. v may be any value
// that encodes to JSON.
func (d *Document) Validate(pointer string, v any) error {
	sch, err := d.compile(pointer)
	if err != nil {
		return err
	}
	inst, err := toInstance(v)
	if err != nil {
		return err
	}
	return sch.Validate(inst)
}

func (d *Document) compile(pointer string) (*js.Schema, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if sch, ok := d.compiled[pointer]; ok {
		return sch, nil
	}
	if d.compiler == nil {
		c := js.NewCompiler()
		if err := c.AddResource(resourceURL, d.generic); err != nil {
			return nil, fmt.Errorf("load json schema: %w", err)
		}
		d.compiler = c
	}
	sch, err := d.compiler.Compile(resourceURL + "#" + pointer)
	if err != nil {
		return nil, fmt.Errorf("compile json schema at %q: %w", pointer, err)
	}
	d.compiled[pointer] = sch
	return sch, nil
}

// toInstance converts v into the generic form the validator accepts.
func toInstance(v any) (any, error) {
	switch v.(type) {
	case nil, bool, string, json.Number, float64:
		return v, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return js.UnmarshalJSON(bytes.NewReader(data))
}

func (d *Document) build(tree any, pointer string) *Node {
	n := &Node{doc: d, Pointer: pointer}
	d.nodes[pointer] = n

	obj, ok := tree.(object)
	if !ok {
		return n
	}
	for _, m := range obj {
		at := pointer + "/" + escape(m.key)
		switch m.key {
		case "type":
			n.Types = stringsOf(m.value)
		case "properties":
			if props, ok := m.value.(object); ok {
				for _, p := range props {
					n.Properties = append(n.Properties, Property{
						Name: p.key,
						Node: d.build(p.value, at+"/"+escape(p.key)),
					})
				}
			}
		case "items":
			if _, ok := m.value.(object); ok {
				n.Items = d.build(m.value, at)
			}
		case "additionalProperties":
			if _, ok := m.value.(object); ok {
				n.Additional = d.build(m.value, at)
			}
		case "$ref":
			n.Ref, _ = m.value.(string)
		case "oneOf", "anyOf", "allOf":
			alts, ok := m.value.([]any)
			if !ok || n.combinator != "" {
				continue
			}
			n.combinator = m.key
			for i, alt := range alts {
				n.Alternatives = append(n.Alternatives, d.build(alt, at+"/"+strconv.Itoa(i)))
			}
		case "$defs", "definitions":
			if defs, ok := m.value.(object); ok {
				for _, def := range defs {
					d.build(def.value, at+"/"+escape(def.key))
				}
			}
		case TagsProp:
			n.Tags = stringsOf(m.value)
		}
	}
	return n
}

// primaryType returns the first declared type other than null.
func (n *Node) primaryType() string {
	for _, t := range n.Types {
		if t != "null" {
			return t
		}
	}
	if len(n.Types) > 0 {
		return "null"
	}
	return ""
}

func stringsOf(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// escape encodes a JSON pointer reference token.
func escape(token string) string {
	return strings.ReplaceAll(strings.ReplaceAll(token, "~", "~0"), "/", "~1")
}

// object is a JSON object with its members in document order.
type object []member

type member struct {
	key   string
	value any
}

// decodeOrdered reads one JSON value, keeping object member order.
func decodeOrdered(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch delim {
	case '{':
		var obj object
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected object key %v", keyTok)
			}
			value, err := decodeOrdered(dec)
			if err != nil {
				return nil, err
			}
			obj = append(obj, member{key: key, value: value})
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return obj, nil
	case '[':
		arr := []any{}
		for dec.More() {
			value, err := decodeOrdered(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, value)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return arr, nil
	}
	return nil, fmt.Errorf("unexpected delimiter %v", delim)
}
