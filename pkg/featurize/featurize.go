// Package featurize derives a fixed-dimension structural feature
// vector from a parsed SWIFT message: tag presence, content shape of
// a few critical tags, and a party-id hash smear.
package featurize

import (
	"hash/fnv"
	"unicode"

	"github.com/kestrelfin/swiftpipe/pkg/swiftmsg"
)

const partyBuckets = 10

// Dimension is the fixed width of the structural feature vector:
// one presence bit per well-known tag, three content-shape floats per
// critical tag, and 10+10 party-hash floats.
var Dimension = len(wellKnownTags) + len(criticalTags)*3 + partyBuckets*2

// Featurize produces the structural feature vector for a parsed
// message. It is pure CPU, performs no I/O, and is safe to call from
// any goroutine.
func Featurize(msg swiftmsg.ParsedMessage) []float64 {
	vec := make([]float64, 0, Dimension)

	for _, tag := range wellKnownTags {
		if _, ok := msg.Fields[tag]; ok {
			vec = append(vec, 1.0)
		} else {
			vec = append(vec, 0.0)
		}
	}

	for _, tag := range criticalTags {
		vec = append(vec, contentShape(msg.Fields[tag])...)
	}

	vec = append(vec, partyHashSmear(msg.SenderID)...)
	vec = append(vec, partyHashSmear(msg.ReceiverID)...)

	return vec
}

func contentShape(value string) []float64 {
	if value == "" {
		return []float64{0, 0.5, 0}
	}

	prefix := value
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(prefix))
	prefixFeature := float64(h.Sum32()%100) / 100.0

	var alpha, digit int
	for _, r := range value {
		switch {
		case unicode.IsLetter(r):
			alpha++
		case unicode.IsDigit(r):
			digit++
		}
	}

	typeIndicator := 0.5
	if alpha+digit > 0 {
		typeIndicator = float64(alpha) / float64(alpha+digit)
	}

	lengthFeature := float64(len(value)) / 100.0
	if lengthFeature > 1 {
		lengthFeature = 1
	}

	return []float64{prefixFeature, typeIndicator, lengthFeature}
}

// partyHashSmear produces partyBuckets floats in {0,...,7}/7, one per
// disjoint 3-bit window of id's 32-bit FNV hash, so structurally
// similar routing identifiers land near each other.
func partyHashSmear(id string) []float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	sum := h.Sum32()

	out := make([]float64, partyBuckets)
	for i := 0; i < partyBuckets; i++ {
		// rotate the hash left by 3 more bits per bucket so each bucket
		// reads its own, non-overlapping 3-bit window.
		rotated := (sum << uint(i*3)) | (sum >> uint(32-i*3%32))
		bucket := rotated % 8
		out[i] = float64(bucket) / 7.0
	}
	return out
}
