package summarizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDigest() *Digest {
	return &Digest{
		OverallSummary:      "People like the noise cancelling but complain about battery life.",
		TopPraise:           "Noise cancelling",
		TopPain:             "Battery life",
		TopIntensity:        "This is the best purchase I made all year.",
		TopRequestedFeature: "Multipoint pairing",
		PraisePoints: []Point{
			{Text: "ANC is excellent", Source: "The ANC on these is unreal."},
			{Text: "Comfortable for long flights", Source: "Wore them on a 12 hour flight with no pain"},
		},
		PainPoints: []Point{
			{Text: "Battery degrades fast", Source: "Battery died after a month."},
		},
		RequestedFeatures: []Point{
			{Text: "Users want multipoint", Source: "Please just add multipoint already"},
		},
		Variant: VariantExtended,
	}
}

func basicDigest() *Digest {
	d := sampleDigest()
	d.TopRequestedFeature = ""
	d.RequestedFeatures = nil
	d.Variant = VariantBasic
	return d
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.MarshalIndent(v, "", "  ")
	require.NoError(t, err)
	return string(b)
}

func TestParseDigestRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		variant Variant
		digest  *Digest
		wrap    func(string) string
	}{
		{"extended plain", VariantExtended, sampleDigest(), func(s string) string { return s }},
		{"extended json fence", VariantExtended, sampleDigest(), func(s string) string { return "```json\n" + s + "\n```" }},
		{"basic plain", VariantBasic, basicDigest(), func(s string) string { return s }},
		{"basic bare fence", VariantBasic, basicDigest(), func(s string) string { return "```\n" + s + "\n```" }},
		{"basic padded fence", VariantBasic, basicDigest(), func(s string) string { return "\n  ```JSON\n" + s + "\n```  \n" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := tt.wrap(mustJSON(t, tt.digest))
			got, err := ParseDigest(raw, tt.variant)
			require.NoError(t, err)
			assert.Equal(t, tt.digest, got)
		})
	}
}

func TestParseDigestMalformed(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		variant Variant
	}{
		{"empty", "   ", VariantBasic},
		{"fence only", "```json\n```", VariantBasic},
		{"prose", "I'm sorry, I can't find enough feedback.", VariantBasic},
		{"truncated", `{"overallSummary": "x", "topPraise": `, VariantBasic},
		{"array", `[{"text": "x"}]`, VariantBasic},
		{"trailing data", `{"overallSummary":"a","topPraise":"b","topPain":"c","topIntensity":"d","praisePoints":[],"painPoints":[]} {"again": true}`, VariantBasic},
		{"missing field", `{"overallSummary":"a","topPraise":"b","topPain":"c","praisePoints":[],"painPoints":[]}`, VariantBasic},
		{"wrong type", `{"overallSummary":"a","topPraise":"b","topPain":"c","topIntensity":5,"praisePoints":[],"painPoints":[]}`, VariantBasic},
		{"point without text", `{"overallSummary":"a","topPraise":"b","topPain":"c","topIntensity":"d","praisePoints":[{"source":"q"}],"painPoints":[]}`, VariantBasic},
		{"points as strings", `{"overallSummary":"a","topPraise":"b","topPain":"c","topIntensity":"d","praisePoints":["nice"],"painPoints":[]}`, VariantBasic},
		{"extended missing features", `{"overallSummary":"a","topPraise":"b","topPain":"c","topIntensity":"d","praisePoints":[],"painPoints":[]}`, VariantExtended},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseDigest(tt.raw, tt.variant)
			require.Error(t, err)
			assert.Nil(t, d)
			assert.True(t, errors.Is(err, ErrMalformedDigest), "expected ErrMalformedDigest, got %v", err)

			var mde *MalformedDigestError
			assert.True(t, errors.As(err, &mde))
		})
	}
}

func TestParseDigestBasicIgnoresFeatureFields(t *testing.T) {
	got, err := ParseDigest(mustJSON(t, sampleDigest()), VariantBasic)
	require.NoError(t, err)
	assert.Equal(t, basicDigest(), got)

	out, err := json.Marshal(got)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "topRequestedFeature")
	assert.NotContains(t, string(out), "requestedFeatures")
}

func TestParseDigestTruncatesLongLists(t *testing.T) {
	d := basicDigest()
	d.PraisePoints = nil
	for i := 0; i < 8; i++ {
		d.PraisePoints = append(d.PraisePoints, Point{Text: fmt.Sprintf("p%d", i), Source: "q"})
	}

	got, err := ParseDigest(mustJSON(t, d), VariantBasic)
	require.NoError(t, err)
	require.Len(t, got.PraisePoints, MaxPoints)
	assert.Equal(t, "p0", got.PraisePoints[0].Text)
	assert.Equal(t, "p4", got.PraisePoints[4].Text)
}

func TestParseDigestEmptyListsStayNonNil(t *testing.T) {
	raw := `{"overallSummary":"a","topPraise":"b","topPain":"c","topIntensity":"d","praisePoints":[],"painPoints":[]}`
	got, err := ParseDigest(raw, VariantBasic)
	require.NoError(t, err)
	assert.NotNil(t, got.PraisePoints)
	assert.NotNil(t, got.PainPoints)

	out, err := json.Marshal(got)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"praisePoints":[]`)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence(`  {"a":1}  `))
	assert.Equal(t, "just some text", stripCodeFence("just some text"))
}

func TestDigestSchemaCompiles(t *testing.T) {
	for _, v := range []Variant{VariantBasic, VariantExtended} {
		s, err := DigestSchema(v)
		require.NoError(t, err)
		assert.NotNil(t, s)
	}
	_, err := DigestSchema(Variant("bogus"))
	assert.Error(t, err)
}

func TestExtendedDigestKeepsEmptyFeatureFields(t *testing.T) {
	raw := `{"overallSummary":"s","topPraise":"p","topPain":"q","topIntensity":"i","topRequestedFeature":"","praisePoints":[],"painPoints":[],"requestedFeatures":[]}`
	got, err := ParseDigest(raw, VariantExtended)
	require.NoError(t, err)

	out, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))

	again, err := ParseDigest(string(out), VariantExtended)
	require.NoError(t, err, "marshalled extended digest must satisfy its own schema")
	assert.Equal(t, got, again)
}

func TestExtendedDigestValidAfterProvenanceDrain(t *testing.T) {
	d, err := ParseDigest(mustJSON(t, sampleDigest()), VariantExtended)
	require.NoError(t, err)

	r := VerifyProvenance(d, []string{"The ANC on these is unreal."})
	require.Equal(t, 1, r.FeatureDropped)
	require.Empty(t, d.RequestedFeatures)

	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"requestedFeatures":[]`)
	assert.Contains(t, string(out), `"topRequestedFeature":"Multipoint pairing"`)

	_, err = ParseDigest(string(out), VariantExtended)
	assert.NoError(t, err)
}

func TestDigestWithoutVariantMarshalsEveryField(t *testing.T) {
	out, err := json.Marshal(&Digest{OverallSummary: "s"})
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(out, &fields))
	for _, key := range []string{"topRequestedFeature", "praisePoints", "painPoints", "requestedFeatures"} {
		assert.Contains(t, fields, key)
	}
	assert.Equal(t, []any{}, fields["requestedFeatures"])
}
