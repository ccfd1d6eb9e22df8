package summarizer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Digest is the validated sentiment and feature-request summary for one
// keyword. Field names are the wire contract shared with the prompt.
type Digest struct {
	OverallSummary      string  `json:"overallSummary"`
	TopPraise           string  `json:"topPraise"`
	TopPain             string  `json:"topPain"`
	TopIntensity        string  `json:"topIntensity"`
	TopRequestedFeature string  `json:"topRequestedFeature"`
	PraisePoints        []Point `json:"praisePoints"`
	PainPoints          []Point `json:"painPoints"`
	RequestedFeatures   []Point `json:"requestedFeatures"`

	// Variant picks the JSON shape. Basic digests marshal without the
	// feature fields; any other value marshals every field.
	Variant Variant `json:"-"`
}

type basicDigestJSON struct {
	OverallSummary string  `json:"overallSummary"`
	TopPraise      string  `json:"topPraise"`
	TopPain        string  `json:"topPain"`
	TopIntensity   string  `json:"topIntensity"`
	PraisePoints   []Point `json:"praisePoints"`
	PainPoints     []Point `json:"painPoints"`
}

// MarshalJSON emits exactly the fields the digest's schema requires, with
// empty lists as [] rather than null.
func (d Digest) MarshalJSON() ([]byte, error) {
	if d.Variant == VariantBasic {
		return json.Marshal(basicDigestJSON{
			OverallSummary: d.OverallSummary,
			TopPraise:      d.TopPraise,
			TopPain:        d.TopPain,
			TopIntensity:   d.TopIntensity,
			PraisePoints:   orEmpty(d.PraisePoints),
			PainPoints:     orEmpty(d.PainPoints),
		})
	}

	type digestJSON Digest
	out := digestJSON(d)
	out.PraisePoints = orEmpty(d.PraisePoints)
	out.PainPoints = orEmpty(d.PainPoints)
	out.RequestedFeatures = orEmpty(d.RequestedFeatures)
	return json.Marshal(out)
}

func orEmpty(ps []Point) []Point {
	if ps == nil {
		return []Point{}
	}
	return ps
}

// Point pairs a summarized insight with the verbatim comment it came from.
type Point struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// MaxPoints is the largest number of entries kept per list.
const MaxPoints = 5

// Variant selects the digest schema requested from and accepted back from
// the model.
type Variant string

const (
	// VariantBasic asks for the four headline strings with praise and pain lists.
	VariantBasic Variant = "basic"
	// VariantExtended also asks for requested features.
	VariantExtended Variant = "extended"
)

// VariantFromString parses a configured schema name.
func VariantFromString(s string) (Variant, error) {
	switch Variant(strings.ToLower(strings.TrimSpace(s))) {
	case VariantBasic:
		return VariantBasic, nil
	case VariantExtended:
		return VariantExtended, nil
	default:
		return "", fmt.Errorf("summarizer: unknown schema variant %q (supported: basic, extended)", s)
	}
}

// Summarizer turns a keyword and its comments into a Digest.
type Summarizer interface {
	Summarize(ctx context.Context, keyword string, comments []string) (*Digest, error)
}
