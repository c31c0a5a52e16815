package nlu

import (
	"testing"

	"voicecmd/internal/catalog"
	"voicecmd/internal/domain"
)

func TestExtract(t *testing.T) {
	intents := []domain.IntentDefinition{
		{Name: "set_mode", Patterns: []string{"set mode"}, Defaults: map[string]string{"mode": "manual", "night vision": "on"}},
		{Name: "adjust", Patterns: []string{"adjust speed"}, Defaults: map[string]string{"speed": "slow"}},
	}
	snap := catalog.NewSnapshot(intents, nil)
	e := NewExtractor()

	tests := []struct {
		name string
		text string
		want domain.EntityMap
	}{
		{name: "single keyword", text: "switch the mode please", want: domain.EntityMap{"mode": "manual"}},
		{name: "case insensitive", text: "MODE now", want: domain.EntityMap{"mode": "manual"}},
		{name: "punctuation at boundary", text: "change speed, quickly", want: domain.EntityMap{"speed": "slow"}},
		{name: "multi word key", text: "enable night vision", want: domain.EntityMap{"night vision": "on"}},
		{name: "no match is absent", text: "do something else", want: domain.EntityMap{}},
		{name: "multiple keys", text: "set mode and speed", want: domain.EntityMap{"mode": "manual", "speed": "slow"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Extract(tt.text, snap)
			if len(got) != len(tt.want) {
				t.Fatalf("Extract(%q)=%v, want %v", tt.text, got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Fatalf("Extract(%q)[%s]=%q, want %q", tt.text, k, got[k], v)
				}
			}
		})
	}
}

func TestExtractNeverEmitsPlaceholders(t *testing.T) {
	snap := catalog.NewSnapshot([]domain.IntentDefinition{
		{Name: "x", Patterns: []string{"x"}, Defaults: map[string]string{"target": "alpha"}},
	}, nil)

	got := NewExtractor().Extract("nothing relevant here", snap)
	if _, present := got["target"]; present {
		t.Fatalf("unmatched slot present in result: %v", got)
	}
}
