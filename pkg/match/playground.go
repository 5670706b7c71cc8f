package match

import (
	"context"
	"sort"

	"github.com/kestrelfin/swiftpipe/pkg/docstore"
	"github.com/kestrelfin/swiftpipe/pkg/embed"
	"github.com/kestrelfin/swiftpipe/pkg/swiftmsg"
)

// PlaygroundResult ranks one candidate template for an ad hoc,
// non-persisting test run.
type PlaygroundResult struct {
	Template   docstore.Template
	Composite  float64
	Field      float64
	Structural float64
	Document   float64
}

// TestAgainstAllTemplates scores raw against every template of msgType
// without touching the message or document stores: a read-only
// playground for probing match quality before committing to a
// template set. Composite score is 0.5 field + 0.3 structural (tag
// overlap) + 0.2 document (embedding cosine).
func (m *Matcher) TestAgainstAllTemplates(ctx context.Context, raw, msgType string) ([]PlaygroundResult, error) {
	m.defaults()

	parsed := swiftmsg.Parse(raw)

	docVec, err := m.Embedder.Embed(ctx, raw)
	if err != nil {
		return nil, err
	}

	templates, err := m.Docs.FindTemplatesByType(ctx, msgType)
	if err != nil {
		return nil, err
	}

	results := make([]PlaygroundResult, 0, len(templates))
	for _, tpl := range templates {
		fieldScores, err := m.fieldConfidences(ctx, tpl, parsed)
		if err != nil {
			return nil, err
		}
		fieldMean := meanOf(fieldScores)

		structural := jaccardVariableFields(parsed.Fields, tpl.VariableFields)

		var document float64
		if vec, err := m.Vectors.Get(ctx, tpl.ID); err == nil {
			document = embed.Cosine(docVec, vec.Embedding)
		}

		composite := 0.5*fieldMean + 0.3*structural + 0.2*document
		results = append(results, PlaygroundResult{
			Template: tpl, Composite: composite, Field: fieldMean,
			Structural: structural, Document: document,
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Composite > results[j].Composite })
	return results, nil
}

func meanOf(scores map[string]float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var total float64
	for _, v := range scores {
		total += v
	}
	return total / float64(len(scores))
}

// jaccardVariableFields is the structural-similarity term: overlap of
// the message's present tags against the template's catalogued
// variable-field tags, counting only variable fields since fixed
// literal content is already captured by the field score.
func jaccardVariableFields(fields map[string]string, variableFields []docstore.VariableField) float64 {
	if len(variableFields) == 0 {
		return 0
	}

	variable := make(map[string]bool, len(variableFields))
	for _, vf := range variableFields {
		variable[vf.Tag] = true
	}

	var intersection, union int
	seen := make(map[string]bool, len(variable)+len(fields))
	for tag := range fields {
		seen[tag] = true
		if variable[tag] {
			intersection++
		}
	}
	for tag := range variable {
		seen[tag] = true
	}
	union = len(seen)

	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
