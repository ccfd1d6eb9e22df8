package summarizer

import (
	"fmt"
	"strings"
)

// SystemPrompt is the fixed system-role instruction.
const SystemPrompt = "You are a senior product designer acting as a product-feedback analyst. You analyze raw user feedback and report what people praise, what frustrates them, and what they ask for."

// Prompt is the pair of chat messages sent for one digest.
type Prompt struct {
	System string
	User   string
}

type schemaField struct {
	name string
	desc string
}

var headlineFields = []schemaField{
	{"overallSummary", "A 5-7 sentence summary of overall sentiment and themes."},
	{"topPraise", "The most commonly praised aspect or feature."},
	{"topPain", "The most common complaint or pain point."},
	{"topIntensity", "The strongest or most emotional opinion."},
}

var requestedFeatureField = schemaField{"topRequestedFeature", "The feature or change users ask for most often."}

type schemaList struct {
	name   string
	text   string
	source string
}

var praiseList = schemaList{
	name:   "praisePoints",
	text:   "Summarized insight (e.g. 'Users love the minimal design')",
	source: "A real quoted Reddit comment from the input that best illustrates this praise.",
}

var painList = schemaList{
	name:   "painPoints",
	text:   "Summarized issue (e.g. 'Shipping delays are a common frustration')",
	source: "A real quoted Reddit comment from the input that best illustrates this pain point.",
}

var featureList = schemaList{
	name:   "requestedFeatures",
	text:   "Summarized request (e.g. 'Users want a longer battery life')",
	source: "A real quoted Reddit comment from the input that asks for this feature.",
}

func variantShape(v Variant) ([]schemaField, []schemaList) {
	if v == VariantExtended {
		fields := append(append([]schemaField{}, headlineFields...), requestedFeatureField)
		return fields, []schemaList{praiseList, painList, featureList}
	}
	return headlineFields, []schemaList{praiseList, painList}
}

// BuildPrompt renders the instructions, output schema and comments for
// keyword. It is a pure function of its inputs. Comments are joined with a
// blank line; an empty slice leaves nothing after the "Comments:" header.
func BuildPrompt(keyword string, comments []string, variant Variant) Prompt {
	fields, lists := variantShape(variant)

	var sb strings.Builder
	fmt.Fprintf(&sb, "You're given a list of Reddit comments about %q. Your job is to extract real product feedback and summarize it into insights.\n\n", keyword)
	sb.WriteString("Return only valid JSON in the following format:\n")
	writeSchema(&sb, fields, lists)

	listNames := make([]string, len(lists))
	for i, l := range lists {
		listNames[i] = l.name
	}

	sb.WriteString("\nInstructions:\n")
	fmt.Fprintf(&sb, "- Include 3 to %d items in each of %s (or fewer if there aren't enough unique insights).\n", MaxPoints, joinAnd(listNames))
	sb.WriteString("- Every field shown above is required. Every value is a string, and every list item is an object with a \"text\" string and a \"source\" string.\n")
	sb.WriteString("- Each \"text\" should summarize the insight or feedback theme.\n")
	sb.WriteString("- Each \"source\" must be a direct, unedited quote from one of the actual Reddit comments provided. Do not paraphrase, truncate, reword, or synthesize.\n")
	sb.WriteString("- Do not invent or simulate quotes. Do not generate placeholder users or dialogue.\n")
	sb.WriteString("- Only select full and original comments from the provided input text.\n")
	sb.WriteString("- Do not include typographic quotation marks in the comment.\n")
	sb.WriteString("- If no appropriate quote exists for a point, omit that point entirely.\n\n")
	sb.WriteString("Return a valid JSON object only. No markdown, no commentary, no code fences.\n\n")
	sb.WriteString("Comments:\n")
	sb.WriteString(strings.Join(comments, "\n\n"))

	return Prompt{System: SystemPrompt, User: sb.String()}
}

func writeSchema(sb *strings.Builder, fields []schemaField, lists []schemaList) {
	sb.WriteString("{\n")
	total := len(fields) + len(lists)
	n := 0
	sep := func() string {
		n++
		if n < total {
			return ","
		}
		return ""
	}
	for _, f := range fields {
		fmt.Fprintf(sb, "  %q: %q%s\n", f.name, f.desc, sep())
	}
	for _, l := range lists {
		fmt.Fprintf(sb, "  %q: [\n    {\n      \"text\": %q,\n      \"source\": %q\n    }\n  ]%s\n", l.name, l.text, l.source, sep())
	}
	sb.WriteString("}\n")
}

func joinAnd(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	default:
		return strings.Join(items[:len(items)-1], ", ") + ", and " + items[len(items)-1]
	}
}
