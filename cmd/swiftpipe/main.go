package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/kestrelfin/swiftpipe/internal/config"
	"github.com/kestrelfin/swiftpipe/internal/logging"
	"github.com/kestrelfin/swiftpipe/pkg/cluster"
	"github.com/kestrelfin/swiftpipe/pkg/docstore"
	"github.com/kestrelfin/swiftpipe/pkg/embed"
	"github.com/kestrelfin/swiftpipe/pkg/match"
	"github.com/kestrelfin/swiftpipe/pkg/pipeline"
	"github.com/kestrelfin/swiftpipe/pkg/template"
	"github.com/kestrelfin/swiftpipe/pkg/vectorstore"
)

var (
	docPath    string
	vectorPath string
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "swiftpipe",
	Short: "SWIFT MT7xx template-mining pipeline",
	Long:  `Ingests SWIFT MT7xx messages, clusters them into recurring templates, and matches new messages against those templates.`,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Ingest one or more raw SWIFT message files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		msgType, _ := cmd.Flags().GetString("type")

		p, closeFn, err := buildPipeline()
		if err != nil {
			return err
		}
		defer closeFn()

		var raws []string
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			raws = append(raws, string(data))
		}

		ctx := context.Background()
		ids, err := p.IngestBatch(ctx, msgType, raws)
		if err != nil {
			return fmt.Errorf("ingest: %w", err)
		}

		if err := p.EmbedBatch(ctx, ids); err != nil {
			return fmt.Errorf("embed: %w", err)
		}

		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Run template extraction over all embedded messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, closeFn, err := buildPipeline()
		if err != nil {
			return err
		}
		defer closeFn()

		summary, err := p.ExtractTemplates(context.Background())
		if err != nil {
			return fmt.Errorf("extract: %w", err)
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			data, _ := json.MarshalIndent(summary, "", "  ")
			fmt.Println(string(data))
			return nil
		}

		fmt.Printf("messages seen: %d\n", summary.TotalMessages)
		fmt.Printf("clusters created: %d\n", summary.ClustersCreated)
		fmt.Printf("templates produced: %d\n", len(summary.Templates))
		return nil
	},
}

var matchCmd = &cobra.Command{
	Use:   "match <messageId>...",
	Short: "Match messages against existing templates",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, closeFn, err := buildPipeline()
		if err != nil {
			return err
		}
		defer closeFn()

		results, err := p.MatchBatch(context.Background(), args)
		if err != nil {
			return fmt.Errorf("match: %w", err)
		}

		for i, r := range results {
			if r == nil {
				fmt.Printf("%s: error\n", args[i])
				continue
			}
			if r.RequiresManualReview {
				fmt.Printf("%s: requires manual review (confidence %.3f)\n", args[i], r.MatchConfidence)
				continue
			}
			fmt.Printf("%s: matched template %s (confidence %.3f)\n", args[i], r.Transaction.TemplateID, r.MatchConfidence)
		}
		return nil
	},
}

var reanalyzeCmd = &cobra.Command{
	Use:   "reanalyze <messageId>",
	Short: "Re-run matching on a message that already has a transaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, closeFn, err := buildPipeline()
		if err != nil {
			return err
		}
		defer closeFn()

		result, err := p.Matcher.Reanalyze(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("reanalyze: %w", err)
		}

		if result.Transaction == nil {
			fmt.Println("requires manual review")
			return nil
		}
		fmt.Printf("reanalyzed: status=%s confidence=%.3f\n", result.Transaction.Status, result.MatchConfidence)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print message counts by status",
	RunE: func(cmd *cobra.Command, args []string) error {
		docs, err := docstore.Open(context.Background(), docPath)
		if err != nil {
			return fmt.Errorf("open document store: %w", err)
		}
		defer docs.Close()

		ctx := context.Background()
		statuses := []docstore.MessageStatus{
			docstore.StatusNew, docstore.StatusEmbedded, docstore.StatusClustered,
			docstore.StatusTemplateMatched, docstore.StatusProcessed, docstore.StatusError,
		}
		for _, status := range statuses {
			count, err := docs.CountMessagesByStatus(ctx, status)
			if err != nil {
				return err
			}
			fmt.Printf("messages[%s]: %d\n", status, count)
		}
		return nil
	},
}

// buildPipeline opens both stores and wires a pipeline using the
// current configuration, returning a teardown func that releases
// every handle it acquired regardless of which command exits.
func buildPipeline() (*pipeline.Pipeline, func(), error) {
	effectiveConfigPath := configPath
	if _, err := os.Stat(effectiveConfigPath); err != nil {
		effectiveConfigPath = ""
	}

	cfgStore, err := config.NewStore(effectiveConfigPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	cfg := cfgStore.Current()

	logger := logging.Nop()
	if verbose {
		logger = logging.NewStd()
	}

	ctx := context.Background()

	docs, err := docstore.Open(ctx, docPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open document store: %w", err)
	}

	vecs, err := vectorstore.Open(ctx, vectorPath)
	if err != nil {
		docs.Close()
		return nil, nil, fmt.Errorf("open vector store: %w", err)
	}

	embedder := embed.NewCachedEmbedder(embed.NewHashProjectionEmbedder(cfg.Embeddings.Dimension), cfg.Embeddings.CacheSize)

	clusterCfg := cluster.Config{
		MaxIterations:        cfg.Clustering.MaxIterations,
		MinClusters:          cfg.Clustering.MinClusters,
		MaxClusters:          cfg.Clustering.MaxClusters,
		ConvergenceThreshold: cfg.Clustering.ConvergenceThreshold,
	}
	extractor := &template.Extractor{Docs: docs, Vectors: vecs, ClusterCfg: clusterCfg, Logger: logger}
	matcher := &match.Matcher{
		Docs: docs, Vectors: vecs, Embedder: embedder,
		SimilarityThreshold: cfg.Similarity.Threshold, AutoApproveThreshold: cfg.Similarity.AutoApproveThreshold,
		Logger: logger,
	}

	p := pipeline.New(docs, vecs, embedder, extractor, matcher, logger)

	closeFn := func() {
		vecs.Close()
		docs.Close()
	}

	return p, closeFn, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&docPath, "doc-store", "swiftpipe-docs.db", "document store database path")
	rootCmd.PersistentFlags().StringVar(&vectorPath, "vector-store", "swiftpipe-vectors.db", "vector store database path")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "swiftpipe.yaml", "configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")

	ingestCmd.Flags().String("type", "MT700", "SWIFT message type")
	extractCmd.Flags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(ingestCmd, extractCmd, matchCmd, reanalyzeCmd, statsCmd)
}
