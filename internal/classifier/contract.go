// Package classifier defines the request/response contract with the external
// text classifier and the enrichment pipeline that applies it to responses.
package classifier

import (
	"errors"
	"fmt"
	"strings"

	"github.com/godilite/nps-insights/internal/taxonomy"
)

var (
	ErrInvalidClassification = errors.New("classifier output failed schema validation")
	ErrClassifierUnavailable = errors.New("classifier unavailable")
)

// Request carries the comment and its context to the classifier.
type Request struct {
	SurveyType string
	NpsScore   int
	Title      string
	Comment    string
}

// Result is the validated classifier output for one response.
type Result struct {
	Themes      []string           `json:"themes"`
	ThemeScores map[string]float64 `json:"theme_scores"`
	Sentiment   *float64           `json:"sentiment"`
	Keywords    []string           `json:"keywords"`
	Language    string             `json:"language"`
}

// Fallback is the fixed result for comments that never reach the classifier:
// empty, whitespace-only, or a "not applicable" marker.
func Fallback(tab *taxonomy.Table) Result {
	return Result{
		Themes:      []string{tab.Fallback},
		ThemeScores: map[string]float64{tab.Fallback: 1},
		Sentiment:   nil,
		Keywords:    []string{},
		Language:    "nl",
	}
}

// Validate checks a classifier result against the contract: themes must be a
// non-empty subset of the taxonomy, every listed theme must have a score in
// [0,1], and sentiment must be null or within [-1,1].
func Validate(res Result, tab *taxonomy.Table) error {
	if len(res.Themes) == 0 {
		return fmt.Errorf("%w: no themes", ErrInvalidClassification)
	}
	for _, theme := range res.Themes {
		if !tab.IsCanonical(theme) {
			return fmt.Errorf("%w: theme %q outside taxonomy", ErrInvalidClassification, theme)
		}
		score, ok := res.ThemeScores[theme]
		if !ok {
			return fmt.Errorf("%w: missing score for theme %q", ErrInvalidClassification, theme)
		}
		if score < 0 || score > 1 {
			return fmt.Errorf("%w: score %v for theme %q outside [0,1]", ErrInvalidClassification, score, theme)
		}
	}
	if res.Sentiment != nil && (*res.Sentiment < -1 || *res.Sentiment > 1) {
		return fmt.Errorf("%w: sentiment %v outside [-1,1]", ErrInvalidClassification, *res.Sentiment)
	}
	return nil
}

// SystemPrompt is the fixed instruction for the Dutch reference deployment.
const SystemPrompt = `Je bent een NL-analist voor NPS-feedback van nieuws/magazine abonnementen.
Label Nederlandse opmerkingen volgens vaste thema's en geef sentiment.
Antwoord uitsluitend met geldige JSON, zonder extra tekst.`

// BuildUserPrompt renders the per-comment prompt, including the taxonomy and
// the exact output schema the classifier must produce.
func BuildUserPrompt(req Request, tab *taxonomy.Table) string {
	var sb strings.Builder

	surveyType := req.SurveyType
	if surveyType == "" {
		surveyType = "-"
	}
	title := req.Title
	if title == "" {
		title = "-"
	}

	fmt.Fprintf(&sb, "Context:\n")
	fmt.Fprintf(&sb, "- SurveyType: %s\n", surveyType)
	fmt.Fprintf(&sb, "- NPS: %d\n", req.NpsScore)
	fmt.Fprintf(&sb, "- Titel: %s\n", title)
	fmt.Fprintf(&sb, "- Opmerking: \"\"\"%s\"\"\"\n\n", req.Comment)

	fmt.Fprintf(&sb, "Taxonomie (kies uitsluitend uit deze labels):\n- %s\n\n", strings.Join(tab.Labels, ", "))

	sb.WriteString(`JSON schema (exact):
{
  "themes": ["<label>", ...],
  "theme_scores": {"<label>": <0..1>, ...},
  "sentiment": <float between -1 and 1 or null>,
  "keywords": ["...", "..."],
  "language": "nl"
}

Regels:
- Bij lege/n.v.t.-opmerking: themes=["` + tab.Fallback + `"], sentiment=null, keywords=[].
- Houd het beknopt en valide.`)

	return sb.String()
}

// CacheKey identifies one classification result. Reclassification only happens
// when the taxonomy version changes.
func CacheKey(responseID, taxonomyVersion string) string {
	return responseID + ":" + taxonomyVersion
}
