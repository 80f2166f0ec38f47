package vocabulary

import (
	"fmt"
	"os"
	"sort"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/ils-migrator/pkg/errors"
)

// SequenceKey marks an explicit SequenceOf node in definition files.
const SequenceKey = "$each"

// Node is one level of a definitions tree: a Leaf, a Nested tree or a
// SequenceOf wrapper.
type Node interface {
	node()
}

// Leaf says that a value must be a key of vocabulary Type, looked up in
// Source.
type Leaf struct {
	Type   string
	Source Source
}

// Nested maps field names to the definitions of their values.
type Nested map[string]Node

// SequenceOf describes the elements of a list-valued field. A bare Leaf or
// Nested definition on a list field applies to every element as well, so
// SequenceOf is only needed to make that explicit.
type SequenceOf struct {
	Elem Node
}

func (Leaf) node()       {}
func (Nested) node()     {}
func (SequenceOf) node() {}

func (l Leaf) String() string {
	return fmt.Sprintf("{type: %s, source: %s}", l.Type, l.Source)
}

// DefinitionSet holds one definitions tree per record type.
type DefinitionSet map[string]Nested

// For returns the tree of rectype. Record types without definitions get an
// empty tree, which validates nothing.
func (d DefinitionSet) For(rectype string) Nested {
	if defs, ok := d[rectype]; ok {
		return defs
	}
	return Nested{}
}

// RecordTypes lists the record types with definitions, sorted.
func (d DefinitionSet) RecordTypes() []string {
	types := make([]string, 0, len(d))
	for t := range d {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// LoadDefinitions reads a YAML (or JSON) file mapping record types to their
// definitions trees.
func LoadDefinitions(path string) (DefinitionSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading definitions %s: %w", path, err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing definitions %s: %w", path, err)
	}
	set := make(DefinitionSet, len(raw))
	for rectype, tree := range raw {
		m, ok := tree.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("definitions for %s must be a mapping", rectype)
		}
		defs, err := ParseDefinitions(m)
		if err != nil {
			return nil, fmt.Errorf("definitions for %s: %w", rectype, err)
		}
		set[rectype] = defs
	}
	return set, nil
}

// ParseDefinitions converts a decoded JSON/YAML tree into a Nested
// definitions tree. A mapping with string "type" and "source" entries is a
// leaf; a mapping with a single SequenceKey entry is a SequenceOf; anything
// else is nested. Unknown sources are rejected here.
func ParseDefinitions(raw map[string]any) (Nested, error) {
	node, err := parseNode("", raw)
	if err != nil {
		return nil, err
	}
	nested, ok := node.(Nested)
	if !ok {
		return nil, apperrors.New(apperrors.ErrDefinitionMismatch, "top level definitions must be a nested tree")
	}
	return nested, nil
}

type leafFields struct {
	Type   string `mapstructure:"type"`
	Source string `mapstructure:"source"`
}

func parseNode(path string, raw any) (Node, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrDefinitionMismatch, "definition at %q must be a mapping, got %T", path, raw)
	}
	if isLeaf(m) {
		var fields leafFields
		if err := mapstructure.Decode(m, &fields); err != nil {
			return nil, fmt.Errorf("decoding leaf at %q: %w", path, err)
		}
		source, err := ParseSource(fields.Source)
		if err != nil {
			return nil, apperrors.Newf(apperrors.ErrUnknownSource, "Definition %v at %q is wrong, unknown source %s", m, path, fields.Source)
		}
		return Leaf{Type: fields.Type, Source: source}, nil
	}
	if elem, ok := m[SequenceKey]; ok && len(m) == 1 {
		inner, err := parseNode(path+"[]", elem)
		if err != nil {
			return nil, err
		}
		return SequenceOf{Elem: inner}, nil
	}
	nested := make(Nested, len(m))
	for field, child := range m {
		childPath := field
		if path != "" {
			childPath = path + "." + field
		}
		node, err := parseNode(childPath, child)
		if err != nil {
			return nil, err
		}
		nested[field] = node
	}
	return nested, nil
}

func isLeaf(m map[string]any) bool {
	t, hasType := m["type"].(string)
	_, hasSource := m["source"].(string)
	return hasType && hasSource && t != ""
}

// asNested returns the nested tree a mapping value is checked against.
func asNested(def Node) (Nested, bool) {
	switch d := def.(type) {
	case Nested:
		return d, true
	case SequenceOf:
		return asNested(d.Elem)
	default:
		return nil, false
	}
}

// asLeaf returns the leaf a scalar value is checked against.
func asLeaf(def Node) (Leaf, bool) {
	switch d := def.(type) {
	case Leaf:
		return d, true
	case SequenceOf:
		return asLeaf(d.Elem)
	default:
		return Leaf{}, false
	}
}
