// Package config loads and hot-reloads the runtime-tunable parameters
// for clustering, embeddings, similarity, and template extraction.
package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Clustering holds the K-means++ hyperparameters for pkg/cluster.
type Clustering struct {
	MaxIterations        int
	MinClusters          int
	MaxClusters          int
	ConvergenceThreshold float64
}

// Embeddings holds the embedding-provider parameters for pkg/embed.
type Embeddings struct {
	ModelName string
	Dimension int
	CacheSize int
}

// Similarity holds the matcher thresholds for pkg/match.
type Similarity struct {
	Threshold           float64
	AutoApproveThreshold float64
}

// Template holds template-extraction thresholds for pkg/template.
type Template struct {
	MinMessagesForTemplate int
	AutoGenerate           bool
}

// Config is the full set of recognized runtime configuration keys.
type Config struct {
	Clustering Clustering
	Embeddings Embeddings
	Similarity Similarity
	Template   Template
}

// DefaultConfig returns the defaults named in the configuration-keys
// table: clustering.*, embeddings.*, similarity.*, template.*.
func DefaultConfig() Config {
	return Config{
		Clustering: Clustering{
			MaxIterations:        100,
			MinClusters:          2,
			MaxClusters:          10,
			ConvergenceThreshold: 0.001,
		},
		Embeddings: Embeddings{
			ModelName: "",
			Dimension: 384,
			CacheSize: 10000,
		},
		Similarity: Similarity{
			Threshold:            0.85,
			AutoApproveThreshold: 0.95,
		},
		Template: Template{
			MinMessagesForTemplate: 3,
			AutoGenerate:           true,
		},
	}
}

// Store holds the live configuration, invalidating any cached
// snapshot when viper reports a change on disk.
type Store struct {
	mu  sync.RWMutex
	cur Config
	v   *viper.Viper
}

// NewStore builds a Store seeded with defaults, then merges in any
// values found in the given config file. path may be empty, in which
// case defaults apply and no file is watched.
func NewStore(path string) (*Store, error) {
	s := &Store{cur: DefaultConfig(), v: viper.New()}
	s.bindDefaults()

	if path != "" {
		s.v.SetConfigFile(path)
		if err := s.v.ReadInConfig(); err != nil {
			return nil, err
		}
		s.reload()
		s.v.OnConfigChange(func(fsnotify.Event) { s.reload() })
		s.v.WatchConfig()
	}

	return s, nil
}

func (s *Store) bindDefaults() {
	d := DefaultConfig()
	s.v.SetDefault("clustering.maxIterations", d.Clustering.MaxIterations)
	s.v.SetDefault("clustering.minClusters", d.Clustering.MinClusters)
	s.v.SetDefault("clustering.maxClusters", d.Clustering.MaxClusters)
	s.v.SetDefault("clustering.convergenceThreshold", d.Clustering.ConvergenceThreshold)
	s.v.SetDefault("embeddings.modelName", d.Embeddings.ModelName)
	s.v.SetDefault("embeddings.dimension", d.Embeddings.Dimension)
	s.v.SetDefault("embeddings.cacheSize", d.Embeddings.CacheSize)
	s.v.SetDefault("similarity.threshold", d.Similarity.Threshold)
	s.v.SetDefault("similarity.autoApproveThreshold", d.Similarity.AutoApproveThreshold)
	s.v.SetDefault("template.minMessagesForTemplate", d.Template.MinMessagesForTemplate)
	s.v.SetDefault("template.autoGenerate", d.Template.AutoGenerate)
}

func (s *Store) reload() {
	cfg := Config{
		Clustering: Clustering{
			MaxIterations:        s.v.GetInt("clustering.maxIterations"),
			MinClusters:          s.v.GetInt("clustering.minClusters"),
			MaxClusters:          s.v.GetInt("clustering.maxClusters"),
			ConvergenceThreshold: s.v.GetFloat64("clustering.convergenceThreshold"),
		},
		Embeddings: Embeddings{
			ModelName: s.v.GetString("embeddings.modelName"),
			Dimension: s.v.GetInt("embeddings.dimension"),
			CacheSize: s.v.GetInt("embeddings.cacheSize"),
		},
		Similarity: Similarity{
			Threshold:            s.v.GetFloat64("similarity.threshold"),
			AutoApproveThreshold: s.v.GetFloat64("similarity.autoApproveThreshold"),
		},
		Template: Template{
			MinMessagesForTemplate: s.v.GetInt("template.minMessagesForTemplate"),
			AutoGenerate:           s.v.GetBool("template.autoGenerate"),
		},
	}

	s.mu.Lock()
	s.cur = cfg
	s.mu.Unlock()
}

// Current returns the latest configuration snapshot.
func (s *Store) Current() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}
