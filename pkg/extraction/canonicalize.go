package extraction

import (
	"strings"
	"unicode"
)

// entityTypeAliases maps common raw labels the LLM emits onto canonical
// node labels. Keys are lowercase.
var entityTypeAliases = map[string]string{
	"person":       "Person",
	"user":         "Person",
	"agent":        "Person",
	"org":          "Organization",
	"company":      "Organization",
	"organisation": "Organization",
	"organization": "Organization",
	"product":      "Product",
	"app":          "Product",
	"platform":     "Product",
	"service":      "Product",
	"place":        "Location",
	"city":         "Location",
	"country":      "Location",
	"location":     "Location",
	"topic":        "Topic",
	"subject":      "Topic",
	"hashtag":      "Topic",
}

// CanonicalizeEntityType resolves a raw extracted label against the
// ontology's canonical labels, then the alias table, and finally title-cases
// the raw label. Empty input canonicalizes to "Topic", the catch-all.
// The raw label still lands in source_entity_types; the canonical label is
// what names the node.
func (o *Ontology) CanonicalizeEntityType(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "Topic"
	}
	if o != nil {
		for _, label := range o.EntityTypes {
			if strings.EqualFold(label, raw) {
				return label
			}
		}
	}
	if canonical, ok := entityTypeAliases[strings.ToLower(raw)]; ok {
		return canonical
	}
	return titleCase(raw)
}

// CanonicalizeEntityType resolves a raw label against the default ontology.
func CanonicalizeEntityType(raw string) string {
	return DefaultOntology().CanonicalizeEntityType(raw)
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
