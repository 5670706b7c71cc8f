package featurize

import (
	"testing"

	"github.com/kestrelfin/swiftpipe/pkg/swiftmsg"
	"github.com/stretchr/testify/assert"
)

func TestFeaturize_FixedDimension(t *testing.T) {
	a := Featurize(swiftmsg.Parse(":20:LC1\n:32B:USD100,00\n"))
	b := Featurize(swiftmsg.Parse(":20:LC2\n:32B:USD200,00\n:59:BENE\n"))

	assert.Len(t, a, Dimension)
	assert.Len(t, b, Dimension)
}

func TestFeaturize_AbsentTagIsZero(t *testing.T) {
	msg := swiftmsg.Parse(":20:LC1\n")
	vec := Featurize(msg)

	idx := -1
	for i, tag := range wellKnownTags {
		if tag == "59" {
			idx = i
			break
		}
	}
	assert.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, 0.0, vec[idx])
}

func TestFeaturize_PresentTagSetsBit(t *testing.T) {
	msg := swiftmsg.Parse(":20:LC1\n")
	vec := Featurize(msg)

	idx := -1
	for i, tag := range wellKnownTags {
		if tag == "20" {
			idx = i
			break
		}
	}
	assert.Equal(t, 1.0, vec[idx])
}

func TestFeaturize_Deterministic(t *testing.T) {
	raw := ":20:LC1\n:32B:USD100,00\n"
	a := Featurize(swiftmsg.Parse(raw))
	b := Featurize(swiftmsg.Parse(raw))
	assert.Equal(t, a, b)
}

func TestFeaturize_DifferentPartiesDifferentSmear(t *testing.T) {
	a := Featurize(swiftmsg.ParsedMessage{SenderID: "BANKBEBB", ReceiverID: "BANKUS33"})
	b := Featurize(swiftmsg.ParsedMessage{SenderID: "BANKDEFF", ReceiverID: "BANKGB22"})
	assert.NotEqual(t, a, b)
}
