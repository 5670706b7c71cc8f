// Package template groups clustered messages per trading pair into
// recurring templates with synthesized content and variable-field
// catalogues.
package template

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"time"

	"github.com/kestrelfin/swiftpipe/internal/idgen"
	"github.com/kestrelfin/swiftpipe/internal/logging"
	"github.com/kestrelfin/swiftpipe/internal/storeerr"
	"github.com/kestrelfin/swiftpipe/pkg/cluster"
	"github.com/kestrelfin/swiftpipe/pkg/docstore"
	"github.com/kestrelfin/swiftpipe/pkg/embed"
	"github.com/kestrelfin/swiftpipe/pkg/featurize"
	"github.com/kestrelfin/swiftpipe/pkg/swiftmsg"
	"github.com/kestrelfin/swiftpipe/pkg/vectorstore"
)

const (
	// MinClusterSize is the smallest cluster that can become a
	// template, and the floor the outlier filter must never shrink
	// below.
	MinClusterSize = 3
	// MaxTemplatesPerPair caps how many templates one (type, pair)
	// partition can produce per extraction run.
	MaxTemplatesPerPair = 3
	// HighVolumeThreshold is the size at which the quality score's
	// volume term saturates.
	HighVolumeThreshold = 10
)

// Extractor runs the clustering + template-synthesis pipeline.
type Extractor struct {
	Docs       *docstore.Store
	Vectors    *vectorstore.Store
	ClusterCfg cluster.Config
	Logger     logging.Logger
}

// Summary reports what one Extract run produced.
type Summary struct {
	TotalMessages  int
	ClustersCreated int
	Templates      []docstore.Template
}

// Extract runs the algorithm over every EMBEDDED message: partition
// by (type, pair), cluster hybrid feature vectors, rank and filter
// clusters, synthesize and persist templates.
func (e *Extractor) Extract(ctx context.Context) (*Summary, error) {
	if e.Logger == nil {
		e.Logger = logging.Nop()
	}

	messages, err := e.Docs.FindMessagesByStatus(ctx, docstore.StatusEmbedded)
	if err != nil {
		return nil, err
	}

	summary := &Summary{TotalMessages: len(messages)}

	partitions := partitionMessages(messages)
	for _, part := range partitions {
		templates, clustersCreated, err := e.extractPartition(ctx, part)
		if err != nil {
			e.Logger.Warn("partition extraction failed", "type", part.msgType, "pair", part.pairKey, "error", err.Error())
			continue
		}
		summary.Templates = append(summary.Templates, templates...)
		summary.ClustersCreated += clustersCreated
	}

	return summary, nil
}

type partition struct {
	msgType string
	pairKey string
	members []docstore.Message
}

func partitionMessages(messages []docstore.Message) []partition {
	index := make(map[string]int)
	var out []partition

	for _, m := range messages {
		key := m.Type + "|" + m.SenderID + ":" + m.ReceiverID
		if i, ok := index[key]; ok {
			out[i].members = append(out[i].members, m)
			continue
		}
		index[key] = len(out)
		out = append(out, partition{msgType: m.Type, pairKey: m.SenderID + ":" + m.ReceiverID, members: []docstore.Message{m}})
	}

	return out
}

type candidate struct {
	messageID string
	structural []float64
	semantic   []float32
	message    docstore.Message
}

func (e *Extractor) extractPartition(ctx context.Context, part partition) ([]docstore.Template, int, error) {
	candidates := make([]candidate, 0, len(part.members))
	var leftEmbedded []docstore.Message

	for _, m := range part.members {
		vec, err := e.Vectors.Get(ctx, m.ID)
		if err != nil {
			leftEmbedded = append(leftEmbedded, m)
			continue
		}
		parsed := swiftmsg.ParsedMessage{Fields: m.Fields, SenderID: m.SenderID, ReceiverID: m.ReceiverID}
		candidates = append(candidates, candidate{
			messageID:  m.ID,
			structural: featurize.Featurize(parsed),
			semantic:   vec.Embedding,
			message:    m,
		})
	}

	if len(candidates) == 0 {
		return nil, 0, nil
	}

	idToHybrid := make(map[string][]float64, len(candidates))
	byID := make(map[string]candidate, len(candidates))
	for _, c := range candidates {
		idToHybrid[c.messageID] = append(append([]float64{}, c.structural...), toFloat64Vec(c.semantic)...)
		byID[c.messageID] = c
	}

	clusters := cluster.Cluster(idToHybrid, e.ClusterCfg)

	ranked := rankClusters(clusters, idToHybrid, len(candidates))

	var templates []docstore.Template
	clustersCreated := 0

	for i, rc := range ranked {
		if i >= MaxTemplatesPerPair {
			break
		}
		if len(rc.members) < MinClusterSize {
			continue
		}

		survivors := filterOutliers(rc.members, byID)
		if len(survivors) < MinClusterSize {
			continue
		}

		tpl, centroid, err := e.buildTemplate(part, survivors, byID)
		if err != nil {
			e.Logger.Warn("template build failed", "error", err.Error())
			continue
		}

		if err := e.persistTemplate(ctx, tpl, centroid, survivors); err != nil {
			e.Logger.Warn("template persist failed", "error", err.Error())
			continue
		}

		templates = append(templates, tpl)
		clustersCreated++
	}

	return templates, clustersCreated, nil
}

func toFloat64Vec(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}

type rankedCluster struct {
	members []string
	score   float64
}

func rankClusters(clusters map[int][]string, idToHybrid map[string][]float64, partitionSize int) []rankedCluster {
	var out []rankedCluster

	for _, members := range clusters {
		cohesion := meanPairwiseCosineHybrid(members, idToHybrid)
		size := float64(len(members)) / float64(partitionSize)
		score := 0.6*size + 0.4*cohesion
		out = append(out, rankedCluster{members: members, score: score})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return len(out[i].members) > len(out[j].members)
	})

	return out
}

func meanPairwiseCosineHybrid(ids []string, idToHybrid map[string][]float64) float64 {
	if len(ids) < 2 {
		return 1
	}

	var total float64
	var count int
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			total += cosine64(idToHybrid[ids[i]], idToHybrid[ids[j]])
			count++
		}
	}
	if count == 0 {
		return 1
	}
	return total / float64(count)
}

func cosine64(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

var amountPattern = regexp.MustCompile(`\d+[.,]\d{2}`)
var datePattern = regexp.MustCompile(`^(\d{2}[/-]\d{2}[/-]\d{4}|\d{8})$`)
var numericPattern = regexp.MustCompile(`^\d+$`)
var codePattern = regexp.MustCompile(`^[A-Z0-9]+$`)

func classifyFieldType(values []string) docstore.VariableFieldType {
	if allMatch(values, amountPattern) {
		return docstore.FieldAmount
	}
	if allMatch(values, datePattern) {
		return docstore.FieldDate
	}
	if allMatch(values, numericPattern) {
		return docstore.FieldNumeric
	}
	if allMatch(values, codePattern) {
		return docstore.FieldCode
	}
	if allAlphaNumeric(values) {
		return docstore.FieldAlphaNumeric
	}
	return docstore.FieldText
}

func allMatch(values []string, re *regexp.Regexp) bool {
	if len(values) == 0 {
		return false
	}
	for _, v := range values {
		if !re.MatchString(v) {
			return false
		}
	}
	return true
}

func allAlphaNumeric(values []string) bool {
	re := regexp.MustCompile(`^[A-Za-z0-9]+$`)
	return allMatch(values, re)
}

func qualityScore(size int, confidence float64, fieldCount int) float64 {
	volume := math.Min(1, math.Log10(float64(size+1))/math.Log10(float64(HighVolumeThreshold+1)))
	fields := math.Min(1, float64(fieldCount)/10.0)
	return 0.5*volume + 0.3*confidence + 0.2*fields
}

func (e *Extractor) buildTemplate(part partition, survivorIDs []string, byID map[string]candidate) (docstore.Template, []float32, error) {
	var semanticVecs [][]float32
	var parsedMessages []swiftmsg.ParsedMessage
	for _, id := range survivorIDs {
		c := byID[id]
		semanticVecs = append(semanticVecs, c.semantic)
		parsedMessages = append(parsedMessages, swiftmsg.ParsedMessage{Fields: c.message.Fields})
	}

	content, variableFields := synthesizeContent(parsedMessages)

	confidence := meanPairwiseCosineFloat32(semanticVecs)
	centroid := embed.Centroid(semanticVecs)

	tpl := docstore.Template{
		ID:              idgen.New(),
		Type:            part.msgType,
		BuyerID:         byID[survivorIDs[0]].message.SenderID,
		SellerID:        byID[survivorIDs[0]].message.ReceiverID,
		TemplateContent: content,
		VariableFields:  variableFields,
		ClusterID:       idgen.New(),
		MessageCount:    len(survivorIDs),
		Confidence:      confidence,
		CreatedAt:       time.Now(),
	}
	tpl.Description = qualityDescription(qualityScore(len(survivorIDs), confidence, len(variableFields)))

	return tpl, centroid, nil
}

func meanPairwiseCosineFloat32(vs [][]float32) float64 {
	if len(vs) < 2 {
		return 1
	}
	var total float64
	var count int
	for i := 0; i < len(vs); i++ {
		for j := i + 1; j < len(vs); j++ {
			total += embed.Cosine(vs[i], vs[j])
			count++
		}
	}
	if count == 0 {
		return 1
	}
	return total / float64(count)
}

func qualityDescription(score float64) string {
	return fmt.Sprintf("quality score %.3f", score)
}

func (e *Extractor) persistTemplate(ctx context.Context, tpl docstore.Template, centroid []float32, survivorIDs []string) error {
	if err := e.Docs.SaveTemplate(ctx, tpl); err != nil {
		return err
	}

	if embed.Cosine(centroid, centroid) != 0 {
		if err := e.Vectors.Put(ctx, vectorstore.Vector{
			ID:        tpl.ID,
			DocType:   vectorstore.DocTypeTemplate,
			Embedding: centroid,
			ClusterID: tpl.ClusterID,
			Preview:   tpl.TemplateContent,
		}); err != nil && err != storeerr.ErrZeroVector {
			return err
		}
	}

	for _, id := range survivorIDs {
		msg, err := e.Docs.FindMessageByID(ctx, id)
		if err != nil {
			continue
		}
		msg.ClusterID = tpl.ClusterID
		msg.TemplateID = tpl.ID
		msg.Status = docstore.StatusClustered
		if err := e.Docs.SaveMessage(ctx, *msg); err != nil {
			return err
		}
	}

	return nil
}
