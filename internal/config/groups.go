package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"price-threshold-alerts/internal/threshold"
)

// Shorthand sections whose kind is implied by their name.
var legacySections = map[string]threshold.Kind{
	"nft_collections": threshold.FloorPrice,
	"crypto_currency": threshold.SpotPrice,
	"price_feeds":     threshold.FeedPrice,
}

const groupsSection = "groups"

// LoadGroups reads the instrument groups from a YAML file.
func LoadGroups(path string) ([]threshold.Group, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return ParseGroups(raw)
}

// ParseGroups decodes the instrument groups of a YAML document in file
// order. Instrument keys keep their case.
func ParseGroups(raw []byte) ([]threshold.Group, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, invalid("parse groups: %v", err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, invalid("config root must be a mapping")
	}

	var groups []threshold.Group
	for i := 0; i+1 < len(root.Content); i += 2 {
		name, value := root.Content[i].Value, resolve(root.Content[i+1])
		if isNull(value) {
			continue
		}

		if kind, ok := legacySections[name]; ok {
			group, err := parseGroup(name, kind, value)
			if err != nil {
				return nil, err
			}
			groups = append(groups, group)
			continue
		}

		if name == groupsSection {
			parsed, err := parseGroupsSection(value)
			if err != nil {
				return nil, err
			}
			groups = append(groups, parsed...)
		}
	}
	return groups, nil
}

func parseGroupsSection(node *yaml.Node) ([]threshold.Group, error) {
	node = resolve(node)
	if node.Kind != yaml.MappingNode {
		return nil, invalid("groups must be a mapping of group name to definition")
	}

	var groups []threshold.Group
	for i := 0; i+1 < len(node.Content); i += 2 {
		name, def := node.Content[i].Value, resolve(node.Content[i+1])
		if def.Kind != yaml.MappingNode {
			return nil, invalid("groups.%s must be a mapping with kind and members", name)
		}

		var kindName string
		var members *yaml.Node
		for j := 0; j+1 < len(def.Content); j += 2 {
			switch def.Content[j].Value {
			case "kind":
				kindName = def.Content[j+1].Value
			case "members":
				members = resolve(def.Content[j+1])
			}
		}

		kind, err := threshold.ParseKind(kindName)
		if err != nil {
			return nil, invalid("groups.%s.kind: %v", name, err)
		}
		if members == nil || isNull(members) {
			groups = append(groups, threshold.Group{Name: name, Kind: kind})
			continue
		}

		group, err := parseGroup(groupsSection+"."+name+".members", kind, members)
		if err != nil {
			return nil, err
		}
		group.Name = name
		groups = append(groups, group)
	}
	return groups, nil
}

func parseGroup(path string, kind threshold.Kind, node *yaml.Node) (threshold.Group, error) {
	node = resolve(node)
	if node.Kind != yaml.MappingNode {
		return threshold.Group{}, invalid("%s must map instrument ids to [lower, upper]", path)
	}

	group := threshold.Group{Name: path, Kind: kind}
	seen := make(map[string]struct{}, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		instrument := node.Content[i].Value
		if instrument == "" {
			return threshold.Group{}, invalid("%s: empty instrument id", path)
		}
		if _, dup := seen[instrument]; dup {
			return threshold.Group{}, invalid("%s.%s: duplicate instrument", path, instrument)
		}
		seen[instrument] = struct{}{}

		bounds, err := parseBounds(node.Content[i+1])
		if err != nil {
			return threshold.Group{}, invalid("%s.%s: %v", path, instrument, err)
		}
		group.Members = append(group.Members, threshold.Member{Instrument: instrument, Bounds: bounds})
	}
	return group, nil
}

func parseBounds(node *yaml.Node) (threshold.Bounds, error) {
	node = resolve(node)
	if node.Kind != yaml.SequenceNode || len(node.Content) != 2 {
		return threshold.Bounds{}, fmt.Errorf("bounds must be a list of exactly two numbers")
	}
	var pair []float64
	if err := node.Decode(&pair); err != nil {
		return threshold.Bounds{}, fmt.Errorf("bounds must be numeric: %v", err)
	}
	for _, v := range pair {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return threshold.Bounds{}, fmt.Errorf("bounds must be finite")
		}
	}
	return threshold.NewBoundsFromFloat(pair[0], pair[1]), nil
}

// resolve follows anchors so aliased sections decode like inline ones.
func resolve(node *yaml.Node) *yaml.Node {
	for node != nil && node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}
	return node
}

func isNull(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.Tag == "!!null"
}
