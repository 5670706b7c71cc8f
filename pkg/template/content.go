package template

import (
	"sort"

	"github.com/kestrelfin/swiftpipe/pkg/docstore"
	"github.com/kestrelfin/swiftpipe/pkg/swiftmsg"
)

// minAffixLen is the shortest common prefix/suffix worth keeping as a
// literal; shorter affixes are dropped in favor of a bare {VARIABLE}.
const minAffixLen = 2

// maxSampleValues caps how many sample values a VariableField keeps.
const maxSampleValues = 5

// synthesizeContent builds the template's literal content and
// variable-field catalogue from the surviving members' parsed fields.
func synthesizeContent(members []swiftmsg.ParsedMessage) (string, []docstore.VariableField) {
	tags := unionTags(members)

	var content string
	var fields []docstore.VariableField

	for _, tag := range tags {
		values := valuesForTag(members, tag)

		if allEqual(values) {
			content += ":" + tag + ":" + values[0] + "\n"
			continue
		}

		prefix, suffix := commonAffix(values)
		if len(prefix) < minAffixLen {
			prefix = ""
		}
		if len(suffix) < minAffixLen {
			suffix = ""
		}
		content += ":" + tag + ":" + prefix + "{VARIABLE}" + suffix + "\n"

		fields = append(fields, docstore.VariableField{
			Tag:          tag,
			FieldName:    tag,
			Type:         classifyFieldType(values),
			SampleValues: sampleUpTo(values, maxSampleValues),
			Required:     len(values) == len(members),
		})
	}

	return content, fields
}

func unionTags(members []swiftmsg.ParsedMessage) []string {
	seen := make(map[string]bool)
	var tags []string
	for _, m := range members {
		for tag := range m.Fields {
			if !seen[tag] {
				seen[tag] = true
				tags = append(tags, tag)
			}
		}
	}
	sort.Strings(tags)
	return tags
}

func valuesForTag(members []swiftmsg.ParsedMessage, tag string) []string {
	var values []string
	for _, m := range members {
		if v, ok := m.Fields[tag]; ok {
			values = append(values, v)
		}
	}
	return values
}

func allEqual(values []string) bool {
	if len(values) == 0 {
		return true
	}
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}

// commonAffix returns the longest common prefix and suffix shared by
// every value, without overlap between the two.
func commonAffix(values []string) (prefix, suffix string) {
	if len(values) == 0 {
		return "", ""
	}

	prefix = longestCommonPrefix(values)
	suffix = longestCommonSuffix(values)

	shortest := len(values[0])
	for _, v := range values {
		if len(v) < shortest {
			shortest = len(v)
		}
	}
	if len(prefix)+len(suffix) > shortest {
		suffix = suffix[len(prefix)+len(suffix)-shortest:]
	}

	return prefix, suffix
}

func longestCommonPrefix(values []string) string {
	prefix := values[0]
	for _, v := range values[1:] {
		i := 0
		for i < len(prefix) && i < len(v) && prefix[i] == v[i] {
			i++
		}
		prefix = prefix[:i]
		if prefix == "" {
			break
		}
	}
	return prefix
}

func longestCommonSuffix(values []string) string {
	suffix := values[0]
	for _, v := range values[1:] {
		i := 0
		for i < len(suffix) && i < len(v) &&
			suffix[len(suffix)-1-i] == v[len(v)-1-i] {
			i++
		}
		suffix = suffix[len(suffix)-i:]
		if suffix == "" {
			break
		}
	}
	return suffix
}

func sampleUpTo(values []string, max int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
		if len(out) >= max {
			break
		}
	}
	return out
}
