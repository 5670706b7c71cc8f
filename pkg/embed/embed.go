// Package embed provides text-to-vector embedding, an LRU cache
// wrapper, and the similarity helpers built on top of it.
package embed

import (
	"context"
	"math"
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Dimension is the embedding width used throughout this module.
const Dimension = 384

// Embedder maps text to a unit-normalized vector of Dimension floats.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// HashProjectionEmbedder is the deterministic fallback used when no
// sentence-transformer model is available: a word-hash-seeded
// sinusoidal projection. It is end-to-end deterministic and testable,
// but its similarity magnitudes are not expected to match a real
// model's — callers must not depend on them lining up.
type HashProjectionEmbedder struct {
	dim int
}

// NewHashProjectionEmbedder returns a fallback embedder of the given
// dimension.
func NewHashProjectionEmbedder(dim int) *HashProjectionEmbedder {
	return &HashProjectionEmbedder{dim: dim}
}

// Embed returns the zero vector for empty text, otherwise a unit
// vector built from per-word hash seeds projected through sinusoids.
func (h *HashProjectionEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dim)

	words := strings.Fields(text)
	if len(words) == 0 {
		return vec, nil
	}

	for _, word := range words {
		seed := wordSeed(word)
		for i := range vec {
			seed = seed*1664525 + 1013904223
			phase := float64(seed) / float64(1<<32) * 2 * math.Pi
			vec[i] += float32(math.Sin(phase + float64(i)))
		}
	}

	normalize(vec)
	return vec, nil
}

// Dimensions returns the embedding width.
func (h *HashProjectionEmbedder) Dimensions() int { return h.dim }

func wordSeed(word string) uint32 {
	var h uint32 = 2166136261
	for _, c := range word {
		h = (h ^ uint32(c)) * 16777619
	}
	return h
}

func normalize(vec []float32) {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		return
	}
	norm := math.Sqrt(sumSq)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
}

// Cosine computes cosine similarity, returning 0 for mismatched
// lengths or zero-magnitude vectors.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Centroid returns the L2-normalized mean of vs; nil (a zero-length,
// zero-magnitude vector) for an empty input.
func Centroid(vs [][]float32) []float32 {
	if len(vs) == 0 {
		return nil
	}

	dim := len(vs[0])
	sum := make([]float64, dim)
	for _, v := range vs {
		for i := 0; i < dim && i < len(v); i++ {
			sum[i] += float64(v[i])
		}
	}

	out := make([]float32, dim)
	for i, s := range sum {
		out[i] = float32(s / float64(len(vs)))
	}
	normalize(out)
	return out
}

var placeholderPattern = regexp.MustCompile(`\{[^}]*\}|\[[^\]]*\]|<[^>]*>|\$\{[^}]*\}|\d{4,}`)

// stripPlaceholders removes variable placeholders ({X}, [X], <X>,
// ${X}) and long digit runs, yielding the fixed-content part of a
// template value.
func stripPlaceholders(s string) string {
	return strings.TrimSpace(placeholderPattern.ReplaceAllString(s, ""))
}

// textSim is 1 - normalized levenshtein distance on lowercased
// trimmed strings.
func textSim(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))

	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}

	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(maxLen)
}

// FieldSimilarity compares a template field value to a message field
// value, blending semantic and lexical similarity. templateVal with
// no fixed content (pure placeholder) returns 0.95.
func FieldSimilarity(ctx context.Context, e Embedder, templateVal, msgVal string) (float64, error) {
	fixed := stripPlaceholders(templateVal)
	if fixed == "" {
		return 0.95, nil
	}

	ev, err := e.Embed(ctx, fixed)
	if err != nil {
		return 0, err
	}
	mv, err := e.Embed(ctx, msgVal)
	if err != nil {
		return 0, err
	}

	score := 0.6*Cosine(ev, mv) + 0.4*textSim(fixed, msgVal)
	return clamp01(score), nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
