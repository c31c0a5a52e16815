package catalog

import (
	"fmt"
	"sort"
	"strings"

	"voicecmd/internal/domain"
)

// Snapshot is one immutable view of both catalogs. Classification tie-breaks
// follow intent declaration order, so the intent list keeps the order the
// definitions were supplied in.
type Snapshot struct {
	intents  []domain.IntentDefinition
	byName   map[string]int
	commands map[string]domain.CommandDefinition
}

func NewSnapshot(intents []domain.IntentDefinition, commands []domain.CommandDefinition) *Snapshot {
	s := &Snapshot{
		intents:  make([]domain.IntentDefinition, 0, len(intents)),
		byName:   make(map[string]int, len(intents)),
		commands: make(map[string]domain.CommandDefinition, len(commands)),
	}
	for _, in := range intents {
		if _, dup := s.byName[in.Name]; dup {
			continue
		}
		s.byName[in.Name] = len(s.intents)
		s.intents = append(s.intents, in)
	}
	for _, cmd := range commands {
		s.commands[cmd.Name] = cmd
	}
	return s
}

// Intents returns the intent definitions in declaration order.
func (s *Snapshot) Intents() []domain.IntentDefinition {
	out := make([]domain.IntentDefinition, len(s.intents))
	copy(out, s.intents)
	return out
}

func (s *Snapshot) Intent(name string) (domain.IntentDefinition, bool) {
	idx, ok := s.byName[name]
	if !ok {
		return domain.IntentDefinition{}, false
	}
	return s.intents[idx], true
}

func (s *Snapshot) Command(name string) (domain.CommandDefinition, bool) {
	cmd, ok := s.commands[name]
	return cmd, ok
}

// CommandNames returns every command name, sorted.
func (s *Snapshot) CommandNames() []string {
	out := make([]string, 0, len(s.commands))
	for name := range s.commands {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (s *Snapshot) NumIntents() int  { return len(s.intents) }
func (s *Snapshot) NumCommands() int { return len(s.commands) }

// Validate cross-checks the two catalogs: every intent must have a same-named
// command definition and vice versa. A snapshot that fails this check must be
// rejected before it reaches the pipeline.
func (s *Snapshot) Validate() error {
	var missing []string
	for _, in := range s.intents {
		if _, ok := s.commands[in.Name]; !ok {
			missing = append(missing, in.Name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("intents without a command definition: %s", strings.Join(missing, ", "))
	}
	var orphaned []string
	for name := range s.commands {
		if _, ok := s.byName[name]; !ok {
			orphaned = append(orphaned, name)
		}
	}
	if len(orphaned) > 0 {
		sort.Strings(orphaned)
		return fmt.Errorf("command definitions without an intent: %s", strings.Join(orphaned, ", "))
	}
	return nil
}
