package verify

import (
	"reflect"
	"testing"

	"github.com/felixgeelhaar/tensordrill/internal/domain"
)

func TestSignificantWords(t *testing.T) {
	tests := []struct {
		name   string
		phrase string
		want   []string
	}{
		{"drops short and stop words", "output must match broadcast rules", []string{"broadcast", "rules"}},
		{"keeps domain words", "gradient accumulation preserved", []string{"gradient", "accumulation", "preserved"}},
		{"all generic", "must match output", nil},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := significantWords(tt.phrase); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("significantWords(%q) = %v; want %v", tt.phrase, got, tt.want)
			}
		})
	}
}

func TestMissingRequiredChecks(t *testing.T) {
	card := validCard()

	if missing := missingRequiredChecks(card); len(missing) != 0 {
		t.Errorf("missing = %v; want none for a well-anchored card", missing)
	}

	card.FidelityTarget.RequiredSemanticChecks = append(
		card.FidelityTarget.RequiredSemanticChecks, "gradient accumulation")
	missing := missingRequiredChecks(card)
	if len(missing) != 1 || missing[0] != "gradient accumulation" {
		t.Errorf("missing = %v; want [gradient accumulation]", missing)
	}
}

func TestMissingRequiredChecks_GenericRequirementNeedsVerbatimMatch(t *testing.T) {
	card := validCard()
	// "must match output" has no significant words, so only a verbatim
	// occurrence in the card text satisfies it.
	card.FidelityTarget.RequiredSemanticChecks = []string{"must match output"}

	if missing := missingRequiredChecks(card); len(missing) != 1 {
		t.Fatalf("missing = %v; want the generic requirement reported", missing)
	}

	card.ConceptDescription = "The result MUST MATCH OUTPUT of the builtin."
	if missing := missingRequiredChecks(card); len(missing) != 0 {
		t.Errorf("missing = %v; want verbatim occurrence to satisfy it", missing)
	}
}

func TestAnchorsTargetFramework(t *testing.T) {
	tests := []struct {
		name string
		goal string
		want bool
	}{
		{"pytorch mentioned", "Reproduce PyTorch softmax semantics", true},
		{"torch shorthand", "Mirror torch.cumsum along rows", true},
		{"no framework", "Normalize each row of the input", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := &domain.CardSpecification{Goal: tt.goal}
			if got := anchorsTargetFramework(card); got != tt.want {
				t.Errorf("anchorsTargetFramework(%q) = %v; want %v", tt.goal, got, tt.want)
			}
		})
	}
}
