package template

import (
	"math"
	"sort"
)

// filterOutliers applies the IQR and sigma rules on structural-vector
// similarity and keeps their intersection, falling back to whichever
// single rule is looser (and finally to the unfiltered set) rather
// than ever shrinking the survivor set below MinClusterSize.
func filterOutliers(members []string, byID map[string]candidate) []string {
	if len(members) <= MinClusterSize {
		return members
	}

	meanSim := make(map[string]float64, len(members))
	for _, id := range members {
		meanSim[id] = meanSimilarityToOthers(id, members, byID)
	}

	iqrKeep := iqrRule(members, meanSim)

	centroid := structuralCentroid(members, byID)
	sigmaKeep := sigmaRule(members, byID, centroid)

	intersection := intersect(iqrKeep, sigmaKeep)
	if len(intersection) >= MinClusterSize {
		return intersection
	}

	if len(iqrKeep) >= len(sigmaKeep) && len(iqrKeep) >= MinClusterSize {
		return iqrKeep
	}
	if len(sigmaKeep) >= MinClusterSize {
		return sigmaKeep
	}

	return members
}

func meanSimilarityToOthers(id string, members []string, byID map[string]candidate) float64 {
	var total float64
	var count int
	for _, other := range members {
		if other == id {
			continue
		}
		total += cosine64(byID[id].structural, byID[other].structural)
		count++
	}
	if count == 0 {
		return 1
	}
	return total / float64(count)
}

func iqrRule(members []string, meanSim map[string]float64) []string {
	sims := make([]float64, len(members))
	for i, id := range members {
		sims[i] = meanSim[id]
	}
	sorted := append([]float64(nil), sims...)
	sort.Float64s(sorted)

	q25 := percentile(sorted, 25)
	q75 := percentile(sorted, 75)
	iqr := q75 - q25

	lo := q25 - 1.5*iqr
	hi := q75 + 1.5*iqr

	var keep []string
	for _, id := range members {
		if meanSim[id] >= lo && meanSim[id] <= hi {
			keep = append(keep, id)
		}
	}
	return keep
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func structuralCentroid(members []string, byID map[string]candidate) []float64 {
	dim := len(byID[members[0]].structural)
	centroid := make([]float64, dim)
	for _, id := range members {
		v := byID[id].structural
		for i := 0; i < dim && i < len(v); i++ {
			centroid[i] += v[i]
		}
	}
	for i := range centroid {
		centroid[i] /= float64(len(members))
	}
	return centroid
}

func sigmaRule(members []string, byID map[string]candidate, centroid []float64) []string {
	sims := make(map[string]float64, len(members))
	var sum, sumSq float64
	for _, id := range members {
		sim := cosine64(byID[id].structural, centroid)
		sims[id] = sim
		sum += sim
		sumSq += sim * sim
	}

	n := float64(len(members))
	mean := sum / n
	variance := sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	sigma := math.Sqrt(variance)

	lo := mean - 2*sigma
	hi := mean + 2*sigma

	var keep []string
	for _, id := range members {
		if sims[id] >= lo && sims[id] <= hi {
			keep = append(keep, id)
		}
	}
	return keep
}

func intersect(a, b []string) []string {
	set := make(map[string]bool, len(b))
	for _, id := range b {
		set[id] = true
	}
	var out []string
	for _, id := range a {
		if set[id] {
			out = append(out, id)
		}
	}
	return out
}
