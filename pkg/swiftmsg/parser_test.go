package swiftmsg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Basic(t *testing.T) {
	raw := "{1:F01BANKBEBBAXXX0000000000}{2:I700BANKUS33XXXXN}\n:20:LC123\n:32B:USD100000,00\n:59:BENE\n"

	msg := Parse(raw)

	assert.Equal(t, "LC123", msg.Fields["20"])
	assert.Equal(t, "USD100000,00", msg.Fields["32B"])
	assert.Equal(t, "BENE", msg.Fields["59"])
	assert.Equal(t, "BANKBEBB", msg.SenderID)
	assert.Equal(t, "BANKUS33", msg.ReceiverID)
}

func TestParse_MissingHeader_DefaultsUnknown(t *testing.T) {
	msg := Parse(":20:LC123\n")
	assert.Equal(t, UnknownParty, msg.SenderID)
	assert.Equal(t, UnknownParty, msg.ReceiverID)
}

func TestParse_Malformed_NeverFails(t *testing.T) {
	msg := Parse("this is not a swift message at all")
	assert.Empty(t, msg.Fields)
	assert.Equal(t, UnknownParty, msg.SenderID)
}

func TestParse_MultilineValuePreserved(t *testing.T) {
	raw := ":45A:line one\nline two\nline three\n:20:LC1\n"
	msg := Parse(raw)
	require.Contains(t, msg.Fields, "45A")
	assert.Equal(t, "line one\nline two\nline three", msg.Fields["45A"])
}

func TestParse_ValueLookingLikeTagNeverSplitsMidLine(t *testing.T) {
	// A value that contains ":99:" mid-line (not at line start) must
	// stay attached to its own tag, since tags are start-of-line anchored.
	raw := ":20:see reference :99: inline\n:32B:USD1,00\n"
	msg := Parse(raw)
	assert.Equal(t, "see reference :99: inline", msg.Fields["20"])
	assert.Equal(t, "USD1,00", msg.Fields["32B"])
	_, has99 := msg.Fields["99"]
	assert.False(t, has99)
}

func TestFieldParseRoundTrip(t *testing.T) {
	raws := []string{
		":20:LC123\n:32B:USD100000,00\n:59:BENE\n",
		":20:LC1\n:45A:multi\nline\nvalue\n:71B:OUR\n",
	}

	for _, raw := range raws {
		first := Parse(raw)
		reassembled := Reassemble(first.Order, first.Fields)
		second := Parse(reassembled)
		assert.Equal(t, first.Fields, second.Fields)
	}
}
