package services

import (
	"strings"

	"github.com/dermatlas/backend/internal/infrastructure/clients/places"
)

// Rule order is a precision/recall tradeoff: the exclude list always wins to
// suppress known false-positive categories, strong terms accept immediately,
// and weak terms need corroborating medical context.
var (
	excludeTerms = []string{
		"dental", "dentist", "orthodontic", "oral surgery",
		"veterinary", "animal", "pet",
		"massage", "spa resort", "day spa", "nail salon",
	}

	coreTerms = []string{
		"dermatology", "dermatologist", "dermatologic", "derma",
	}

	relatedPhrases = []string{
		"skin clinic", "skin center", "skin doctor",
		"medical dermatology", "cosmetic dermatology",
		"laser dermatology", "aesthetic dermatology",
		"mohs surgery", "skin cancer",
	}

	medicalContextWords = []string{"medical", "clinic", "center"}

	retailTerms = []string{"beauty supply", "cosmetics store"}
)

// skinCareClinicType is the canonical upstream tag for this category
const skinCareClinicType = "skin_care_clinic"

// DermatologyClassifier decides whether a raw candidate is actually a
// dermatology clinic. Accept is pure: same candidate, same verdict.
type DermatologyClassifier struct{}

// NewDermatologyClassifier creates a new classifier
func NewDermatologyClassifier() *DermatologyClassifier {
	return &DermatologyClassifier{}
}

// Accept evaluates the ordered rule set; the first matching rule decides.
func (c *DermatologyClassifier) Accept(candidate *places.Place) bool {
	blob := candidateText(candidate)
	nameAndSite := strings.ToLower(candidate.Name() + " " + candidate.WebsiteURI)

	switch {
	case matchesExcludeTerm(blob):
		return false
	case hasSkinCareClinicType(candidate.Types):
		return true
	case matchesCoreTerm(blob):
		return true
	case matchesRelatedPhrase(nameAndSite):
		return true
	case hasWeakSignal(blob) && hasMedicalContext(candidate.Types, blob):
		return !looksLikeRetailStore(candidate.Types, blob)
	default:
		return false
	}
}

// candidateText combines name, website, and type tags into one lowercase blob
func candidateText(candidate *places.Place) string {
	parts := []string{candidate.Name(), candidate.WebsiteURI}
	parts = append(parts, candidate.Types...)
	return strings.ToLower(strings.Join(parts, " "))
}

func matchesExcludeTerm(blob string) bool {
	return containsAny(blob, excludeTerms)
}

func hasSkinCareClinicType(types []string) bool {
	for _, t := range types {
		if t == skinCareClinicType {
			return true
		}
	}
	return false
}

func matchesCoreTerm(blob string) bool {
	return containsAny(blob, coreTerms)
}

func matchesRelatedPhrase(nameAndSite string) bool {
	return containsAny(nameAndSite, relatedPhrases)
}

func hasWeakSignal(blob string) bool {
	return strings.Contains(blob, "derm") || strings.Contains(blob, "skin")
}

// hasMedicalContext requires a doctor/health type tag or generic medical
// wording before a weak signal is trusted.
func hasMedicalContext(types []string, blob string) bool {
	for _, t := range types {
		lt := strings.ToLower(t)
		if strings.Contains(lt, "doctor") || strings.Contains(lt, "health") {
			return true
		}
	}
	return containsAny(blob, medicalContextWords)
}

// looksLikeRetailStore suppresses shops that merely sell skin products
func looksLikeRetailStore(types []string, blob string) bool {
	for _, t := range types {
		if strings.Contains(strings.ToLower(t), "store") {
			return true
		}
	}
	return containsAny(blob, retailTerms)
}

func containsAny(s string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(s, term) {
			return true
		}
	}
	return false
}
