package command

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// yamlDocument is the on-disk shape of a command table overlay.
type yamlDocument struct {
	Commands []yamlCommand `yaml:"commands"`
}

// yamlCommand is one overlay entry.
type yamlCommand struct {
	Zone      string            `yaml:"zone"`
	Attribute string            `yaml:"attribute"`
	Prefix    string            `yaml:"prefix"`
	Kind      string            `yaml:"kind"`
	Max       int               `yaml:"max,omitempty"`
	Values    map[string]string `yaml:"values,omitempty"`
	Sentinels []string          `yaml:"sentinels,omitempty"`
}

// ParseYAML parses a command table overlay document.
func ParseYAML(data []byte) ([]Command, error) {
	var doc yamlDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse command table: %w", err)
	}

	entries := make([]Command, 0, len(doc.Commands))
	for i, yc := range doc.Commands {
		kind, err := parseKind(yc.Kind)
		if err != nil {
			return nil, fmt.Errorf("command %d (%s.%s): %w", i, yc.Zone, yc.Attribute, err)
		}
		if yc.Zone == "" || yc.Attribute == "" {
			return nil, fmt.Errorf("command %d: zone and attribute are required", i)
		}
		entries = append(entries, Command{
			Zone:      Zone(yc.Zone),
			Attribute: Attribute(yc.Attribute),
			Prefix:    yc.Prefix,
			Kind:      kind,
			Max:       yc.Max,
			Values:    yc.Values,
			Sentinels: yc.Sentinels,
		})
	}
	return entries, nil
}

// MergeYAML layers overlay entries onto the table. Overlay entries replace
// built-in entries with the same (zone, attribute) key or the same prefix,
// so a vendor document can both extend and correct the defaults.
func (t *Table) MergeYAML(data []byte) error {
	entries, err := ParseYAML(data)
	if err != nil {
		return err
	}

	for i := range entries {
		c := &entries[i]
		if old, ok := t.byKey[Key{c.Zone, c.Attribute}]; ok {
			delete(t.byPrefix, old.Prefix)
			delete(t.byKey, Key{old.Zone, old.Attribute})
		}
		if old, ok := t.byPrefix[c.Prefix]; ok {
			delete(t.byKey, Key{old.Zone, old.Attribute})
			delete(t.byPrefix, old.Prefix)
		}
		if err := t.add(c); err != nil {
			return err
		}
	}
	return nil
}

// parseKind maps a YAML kind name onto a Kind.
func parseKind(s string) (Kind, error) {
	switch s {
	case "enum":
		return KindEnum, nil
	case "range":
		return KindRange, nil
	case "selector":
		return KindSelector, nil
	case "literal":
		return KindLiteral, nil
	default:
		return 0, fmt.Errorf("unknown kind %q", s)
	}
}
