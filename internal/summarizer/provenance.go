package summarizer

import "strings"

// ProvenanceReport counts the points removed because their quote could not
// be found in the input comments.
type ProvenanceReport struct {
	PraiseDropped  int
	PainDropped    int
	FeatureDropped int
}

// Dropped returns the total number of removed points.
func (r ProvenanceReport) Dropped() int {
	return r.PraiseDropped + r.PainDropped + r.FeatureDropped
}

const quoteChars = "\"'“”‘’"

func normalizeQuote(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, quoteChars)
	return strings.TrimSpace(s)
}

// VerifyProvenance removes every point whose non-empty source is not a
// verbatim substring of one of comments. Points without a source are kept.
// The digest is modified in place.
func VerifyProvenance(d *Digest, comments []string) ProvenanceReport {
	found := func(source string) bool {
		q := normalizeQuote(source)
		if q == "" {
			return true
		}
		for _, c := range comments {
			if strings.Contains(c, q) {
				return true
			}
		}
		return false
	}

	keep := func(ps []Point) ([]Point, int) {
		if ps == nil {
			return nil, 0
		}
		kept := make([]Point, 0, len(ps))
		for _, p := range ps {
			if found(p.Source) {
				kept = append(kept, p)
			}
		}
		return kept, len(ps) - len(kept)
	}

	var r ProvenanceReport
	d.PraisePoints, r.PraiseDropped = keep(d.PraisePoints)
	d.PainPoints, r.PainDropped = keep(d.PainPoints)
	d.RequestedFeatures, r.FeatureDropped = keep(d.RequestedFeatures)
	return r
}
