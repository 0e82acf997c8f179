package verify

import (
	"regexp"
	"strings"

	"github.com/felixgeelhaar/tensordrill/internal/domain"
)

// targetFramework is the framework a card's goal is expected to anchor to.
const targetFramework = "pytorch"

// fidelityStopWords are generic verification vocabulary excluded when
// extracting significant words from a required semantic check.
var fidelityStopWords = map[string]bool{
	"match":         true,
	"matches":       true,
	"matching":      true,
	"deterministic": true,
	"semantic":      true,
	"semantics":     true,
	"oracle":        true,
	"hidden":        true,
	"visible":       true,
	"check":         true,
	"checks":        true,
	"verify":        true,
	"verified":      true,
	"against":       true,
	"output":        true,
	"outputs":       true,
	"reference":     true,
	"solution":      true,
	"exact":         true,
	"tolerance":     true,
	"property":      true,
	"within":        true,
	"should":        true,
	"must":          true,
}

var wordRe = regexp.MustCompile(`[a-z0-9_]+`)

// significantWords extracts the words of a requirement that carry domain
// meaning: length >= 5 and not generic verification vocabulary.
func significantWords(phrase string) []string {
	var words []string
	for _, word := range wordRe.FindAllString(strings.ToLower(phrase), -1) {
		if len(word) < 5 {
			continue
		}
		if fidelityStopWords[word] {
			continue
		}
		words = append(words, word)
	}
	return words
}

// fidelityCorpus builds the lower-cased text the card's required semantic
// checks are matched against: check descriptions, contract semantics, goal,
// learning objective and concept description.
func fidelityCorpus(card *domain.CardSpecification) string {
	var b strings.Builder
	for _, check := range card.PassCriteria.Checks {
		b.WriteString(check.Description)
		b.WriteString("\n")
	}
	b.WriteString(card.OutputContract.Semantics)
	b.WriteString("\n")
	b.WriteString(card.Goal)
	b.WriteString("\n")
	b.WriteString(card.LearningObjective)
	b.WriteString("\n")
	b.WriteString(card.ConceptDescription)
	return strings.ToLower(b.String())
}

// missingRequiredChecks returns the required semantic checks that are not
// represented anywhere in the card's fidelity corpus. A requirement is
// represented if at least one of its significant words appears in the corpus;
// a requirement with no significant words must appear verbatim.
func missingRequiredChecks(card *domain.CardSpecification) []string {
	corpus := fidelityCorpus(card)

	var missing []string
	for _, required := range card.FidelityTarget.RequiredSemanticChecks {
		words := significantWords(required)

		if len(words) == 0 {
			if !strings.Contains(corpus, strings.ToLower(strings.TrimSpace(required))) {
				missing = append(missing, required)
			}
			continue
		}

		represented := false
		for _, word := range words {
			if strings.Contains(corpus, word) {
				represented = true
				break
			}
		}
		if !represented {
			missing = append(missing, required)
		}
	}

	return missing
}

// anchorsTargetFramework reports whether the card's goal mentions the
// target framework.
func anchorsTargetFramework(card *domain.CardSpecification) bool {
	goal := strings.ToLower(card.Goal)
	return strings.Contains(goal, targetFramework) || strings.Contains(goal, "torch")
}
