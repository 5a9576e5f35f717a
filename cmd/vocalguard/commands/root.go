package commands

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/naveensanjula975/VocalGuard/pkg/detect"
	"github.com/naveensanjula975/VocalGuard/pkg/ensemble"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOut    bool
)

var rootCmd = &cobra.Command{
	Use:   "vocalguard",
	Short: "Audio deepfake detection pipeline",
	Long: `vocalguard - audio deepfake detection from the command line.

Classifies audio files as real or synthetic speech using a pretrained
primary model, a feature-vector model, and an attention transformer with
explainability output.

Examples:
  # Classify a file with the primary model
  vocalguard detect sample.wav

  # Blend both models and show attention statistics
  vocalguard ensemble sample.wav

  # Inspect the embedding cache
  vocalguard cache stats`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print results as JSON")
}

func initLogging() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// fileConfig is the YAML shape of --config.
type fileConfig struct {
	ModelDir       string          `yaml:"model_dir"`
	CacheDir       string          `yaml:"cache_dir"`
	HistoryDir     string          `yaml:"history_dir"`
	Labels         []string        `yaml:"labels"`
	FakeLabel      string          `yaml:"fake_label"`
	Threshold      float64         `yaml:"threshold"`
	Ensemble       ensemble.Config `yaml:"ensemble"`
	TimeoutSeconds int             `yaml:"timeout_seconds"`
	MaxAudioBytes  int64           `yaml:"max_audio_bytes"`
}

// newService builds the pipeline service from the config file. Without a
// config file the service runs on defaults, looking for models in the
// "models" directory.
func newService() (*detect.Service, error) {
	cfg := detect.Config{
		ModelDir: "models",
		Logger:   slog.Default(),
	}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		if fc.ModelDir != "" {
			cfg.ModelDir = fc.ModelDir
		}
		cfg.CacheDir = fc.CacheDir
		cfg.HistoryDir = fc.HistoryDir
		cfg.Labels = fc.Labels
		cfg.FakeLabel = fc.FakeLabel
		cfg.Threshold = fc.Threshold
		cfg.Ensemble = fc.Ensemble
		cfg.MaxAudioBytes = fc.MaxAudioBytes
		if fc.TimeoutSeconds > 0 {
			cfg.Timeout = time.Duration(fc.TimeoutSeconds) * time.Second
		}
	}

	return detect.NewService(cfg), nil
}
