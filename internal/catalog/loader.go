package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"voicecmd/internal/domain"
)

// Catalog files are YAML mappings keyed by intent name. Decoding goes through
// yaml.Node rather than a plain map so the document's declaration order
// survives; classification tie-breaking depends on it.

type intentEntry struct {
	Patterns []string          `yaml:"patterns"`
	Defaults map[string]string `yaml:"defaults"`
}

type commandEntry struct {
	CommandType string            `yaml:"command_type"`
	Parameters  map[string]string `yaml:"parameters"`
	Description string            `yaml:"description"`
}

// LoadIntents parses an intents catalog file.
func LoadIntents(path string) ([]domain.IntentDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read intents catalog: %w", err)
	}
	return ParseIntents(data)
}

// ParseIntents decodes intent definitions, preserving declaration order.
func ParseIntents(data []byte) ([]domain.IntentDefinition, error) {
	entries, err := mappingEntries(data)
	if err != nil {
		return nil, fmt.Errorf("intents catalog: %w", err)
	}

	out := make([]domain.IntentDefinition, 0, len(entries))
	for _, e := range entries {
		var entry intentEntry
		if err := e.value.Decode(&entry); err != nil {
			return nil, fmt.Errorf("intents catalog: intent %q: %w", e.name, err)
		}
		if len(entry.Patterns) == 0 {
			return nil, fmt.Errorf("intents catalog: intent %q has no patterns", e.name)
		}
		out = append(out, domain.IntentDefinition{
			Name:     e.name,
			Patterns: entry.Patterns,
			Defaults: entry.Defaults,
		})
	}
	return out, nil
}

// LoadCommands parses a commands catalog file.
func LoadCommands(path string) ([]domain.CommandDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read commands catalog: %w", err)
	}
	return ParseCommands(data)
}

// ParseCommands decodes command definitions.
func ParseCommands(data []byte) ([]domain.CommandDefinition, error) {
	entries, err := mappingEntries(data)
	if err != nil {
		return nil, fmt.Errorf("commands catalog: %w", err)
	}

	out := make([]domain.CommandDefinition, 0, len(entries))
	for _, e := range entries {
		var entry commandEntry
		if err := e.value.Decode(&entry); err != nil {
			return nil, fmt.Errorf("commands catalog: command %q: %w", e.name, err)
		}
		if strings.TrimSpace(entry.CommandType) == "" {
			return nil, fmt.Errorf("commands catalog: command %q has no command_type", e.name)
		}
		out = append(out, domain.CommandDefinition{
			Name:        e.name,
			CommandType: entry.CommandType,
			Parameters:  entry.Parameters,
			Description: entry.Description,
		})
	}
	return out, nil
}

// Load reads both catalog files, cross-checks them and returns a usable
// snapshot. Inconsistent catalogs are rejected here, before the pipeline
// ever sees them.
func Load(intentsPath, commandsPath string) (*Snapshot, error) {
	intents, err := LoadIntents(intentsPath)
	if err != nil {
		return nil, err
	}
	commands, err := LoadCommands(commandsPath)
	if err != nil {
		return nil, err
	}
	snap := NewSnapshot(intents, commands)
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("catalog consistency: %w", err)
	}
	return snap, nil
}

type mappingEntry struct {
	name  string
	value *yaml.Node
}

func mappingEntries(data []byte) ([]mappingEntry, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return nil, nil
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("expected a mapping of names to definitions")
	}

	entries := make([]mappingEntry, 0, len(doc.Content)/2)
	for i := 0; i+1 < len(doc.Content); i += 2 {
		name := strings.TrimSpace(doc.Content[i].Value)
		if name == "" {
			return nil, fmt.Errorf("entry %d has an empty name", i/2)
		}
		entries = append(entries, mappingEntry{name: name, value: doc.Content[i+1]})
	}
	return entries, nil
}
