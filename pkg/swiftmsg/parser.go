// Package swiftmsg parses raw SWIFT MT7xx message text into tag/value
// fields and header-envelope party identifiers.
package swiftmsg

import (
	"regexp"
	"strings"
)

// tagLine matches a SWIFT field tag anchored to the start of a line:
// two digits plus an optional trailing uppercase letter, e.g. :20:,
// :32B:, :59:. Anchoring to start-of-line (rather than a bare
// lookahead to "\n:") means a value containing a substring that looks
// like another tag mid-line is never mistaken for a new field.
var tagLine = regexp.MustCompile(`(?m)^:(\d{2}[A-Z]?):`)

// headerParty matches the first two BIC8 identifiers inside a SWIFT
// header envelope ({1:...}{2:...}). A BIC8's bank code (4 letters) and
// country code (2 letters) are always letters, but its location code
// (last 2 characters) routinely mixes letters and digits (e.g.
// BANKUS33, BANKGB22), so only the trailing pair allows digits. This
// shape also lets the lazy prefix skip past the numeric service/message
// type bytes that precede the BIC in each block without matching them.
var headerParty = regexp.MustCompile(`\{[12]:[A-Z0-9]*?([A-Z]{6}[A-Z0-9]{2})`)

// UnknownParty is substituted when a header party cannot be found.
const UnknownParty = "UNKNOWN"

// ParsedMessage is the result of Parse. Order records the tags in the
// order they first appeared, since Fields is unordered.
type ParsedMessage struct {
	Fields     map[string]string
	Order      []string
	SenderID   string
	ReceiverID string
}

// Parse extracts tag/value fields and sender/receiver ids from a raw
// SWIFT message. It never fails: malformed input yields an empty
// field map and UnknownParty ids.
func Parse(raw string) ParsedMessage {
	fields, order := parseFields(raw)
	return ParsedMessage{
		Fields:     fields,
		Order:      order,
		SenderID:   headerPartyAt(raw, 0),
		ReceiverID: headerPartyAt(raw, 1),
	}
}

func parseFields(raw string) (map[string]string, []string) {
	fields := make(map[string]string)
	var order []string

	locs := tagLine.FindAllStringSubmatchIndex(raw, -1)
	if locs == nil {
		return fields, order
	}

	for i, loc := range locs {
		tag := raw[loc[2]:loc[3]]
		valueStart := loc[1]

		valueEnd := len(raw)
		if i+1 < len(locs) {
			valueEnd = locs[i+1][0]
		}

		value := strings.TrimRight(raw[valueStart:valueEnd], " \t\r\n")
		value = strings.TrimPrefix(value, "\n")

		if _, seen := fields[tag]; !seen {
			order = append(order, tag)
		}
		fields[tag] = value
	}

	return fields, order
}

// headerPartyAt returns the nth (0-indexed) 8-character uppercase
// identifier found across the {1:...}{2:...} header blocks, or
// UnknownParty if fewer than n+1 exist.
func headerPartyAt(raw string, n int) string {
	matches := headerParty.FindAllStringSubmatch(raw, -1)
	if len(matches) <= n {
		return UnknownParty
	}
	return matches[n][1]
}

// Reassemble renders fields back into ":TAG:VALUE\n" form in the
// given tag order, for the field-parse round-trip property.
func Reassemble(order []string, fields map[string]string) string {
	var b strings.Builder
	for _, tag := range order {
		value, ok := fields[tag]
		if !ok {
			continue
		}
		b.WriteString(":")
		b.WriteString(tag)
		b.WriteString(":")
		b.WriteString(value)
		b.WriteString("\n")
	}
	return b.String()
}
