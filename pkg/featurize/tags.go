package featurize

// wellKnownTags is the fixed, ordered list of SWIFT MT7xx tags whose
// presence is tracked by the structural feature vector. Order is
// significant: it fixes the presence-bit layout.
var wellKnownTags = []string{
	"13E", "15A", "15B", "15C", "15D", "19", "20", "21", "22A", "22D",
	"23", "23B", "23E", "26E", "27", "30", "31C", "31D", "31E", "32A",
	"32B", "33B", "34B", "39A", "39B", "39C", "40A", "40E", "41A", "41D",
	"42A", "42C", "42M", "42P", "43P", "43T", "44A", "44B", "44C", "44D",
	"44E", "44F", "45A", "45B", "46A", "46B", "47A", "47B", "48", "49",
	"50", "50K", "51A", "52A", "52D", "53A", "57A", "58A", "59", "71B",
	"71D", "72Z",
}

// criticalTags is the subset that gets content-shape features in
// addition to a presence bit.
var criticalTags = []string{"20", "32B", "50K", "59", "71B", "45A"}
