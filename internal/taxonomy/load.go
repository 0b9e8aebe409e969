package taxonomy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type fileFormat struct {
	Version       string            `yaml:"version"`
	Labels        []string          `yaml:"labels"`
	Fallback      string            `yaml:"fallback"`
	NotApplicable []string          `yaml:"not_applicable"`
	OtherCategory string            `yaml:"other_category"`
	Categories    map[string]string `yaml:"categories"`
	Synonyms      map[string]string `yaml:"synonyms"`
}

// LoadFile reads a reference data file in YAML format and builds a Table.
func LoadFile(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reference data: %w", err)
	}

	var f fileFormat
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse reference data: %w", err)
	}
	if len(f.Labels) == 0 {
		return nil, fmt.Errorf("reference data %s defines no labels", path)
	}

	t, err := New(f.Version, f.Labels, f.Fallback, f.NotApplicable, f.Categories, f.OtherCategory, f.Synonyms)
	if err != nil {
		return nil, fmt.Errorf("invalid reference data %s: %w", path, err)
	}
	return t, nil
}

// Default returns the built-in reference table for the Dutch news/magazine
// subscription deployment. It is used when no reference data file is
// configured and doubles as documentation of the expected file contents.
func Default() *Table {
	labels := []string{
		"pricing",
		"bezorging",
		"content_kwaliteit",
		"klantenservice",
		"app_ux",
		"aboflexibiliteit",
		"merkvertrouwen",
		"overige",
	}

	categories := map[string]string{
		"pricing":           "Price",
		"bezorging":         "Delivery",
		"content_kwaliteit": "Content",
		"klantenservice":    "Customer Service",
		"app_ux":            "User Experience",
		"aboflexibiliteit":  "Price",
		"merkvertrouwen":    "Content",
		"overige":           "Other",
	}

	synonyms := map[string]string{
		// Legacy English taxonomy, pre-NL migration.
		"delivery":                 "bezorging",
		"content_quality":          "content_kwaliteit",
		"customer_service":         "klantenservice",
		"subscription_flexibility": "aboflexibiliteit",
		"brand_trust":              "merkvertrouwen",
		"other":                    "overige",

		// Free-form labels older classifier runs produced.
		"bezorgtijd":            "bezorging",
		"levering":              "bezorging",
		"levertijd":             "bezorging",
		"verpakking":            "bezorging",
		"prijs":                 "pricing",
		"kosten":                "pricing",
		"tarief":                "pricing",
		"facturering":           "pricing",
		"abonnement":            "aboflexibiliteit",
		"opzeggen":              "aboflexibiliteit",
		"kwaliteit":             "content_kwaliteit",
		"inhoud":                "content_kwaliteit",
		"journalistiek":         "content_kwaliteit",
		"actualiteit":           "content_kwaliteit",
		"leesbaarheid":          "content_kwaliteit",
		"service":               "klantenservice",
		"support":               "klantenservice",
		"klantendienst":         "klantenservice",
		"klachtenafhandeling":   "klantenservice",
		"interface":             "app_ux",
		"navigatie":             "app_ux",
		"gebruiksvriendelijkheid": "app_ux",
		"website":               "app_ux",
		"betrouwbaarheid":       "merkvertrouwen",
		"objectiviteit":         "merkvertrouwen",
		"algemene tevredenheid": "overige",
		"overig":                "overige",
	}

	t, err := New("2025-09-nl", labels, "overige", []string{"n.v.t.", "nvt", "-"},
		categories, "Other", synonyms)
	if err != nil {
		// The built-in table is validated by tests; a failure here is a bug.
		panic(err)
	}
	return t
}
