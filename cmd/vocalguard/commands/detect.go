package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/naveensanjula975/VocalGuard/pkg/detect"
)

var (
	userID         string
	storeResults   bool
	useTransformer bool
)

var detectCmd = &cobra.Command{
	Use:   "detect <file>",
	Short: "Classify an audio file with the primary model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDetect(args[0], func(svc *detect.Service, opts detect.Options) *detect.Report {
			return svc.Detect(cmd.Context(), args[0], opts)
		})
	},
}

var standardCmd = &cobra.Command{
	Use:   "standard <file>",
	Short: "Classify an audio file with the feature-vector model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDetect(args[0], func(svc *detect.Service, opts detect.Options) *detect.Report {
			return svc.DetectStandard(cmd.Context(), args[0], opts)
		})
	},
}

var ensembleCmd = &cobra.Command{
	Use:   "ensemble <file>",
	Short: "Classify with both models and blend the verdicts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDetect(args[0], func(svc *detect.Service, opts detect.Options) *detect.Report {
			opts.UseTransformer = &useTransformer
			return svc.DetectEnsemble(cmd.Context(), args[0], opts)
		})
	},
}

var attentionCmd = &cobra.Command{
	Use:   "attention <file>",
	Short: "Print the attention analysis for an audio file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		analysis, err := svc.AttentionAnalysis(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if jsonOut {
			return printJSON(analysis)
		}
		fmt.Printf("layers: %d  heads: %d  sequence length: %d\n",
			analysis.NumLayers, analysis.NumHeads, analysis.SeqLen)
		for _, layer := range analysis.Layers {
			fmt.Printf("layer %d: attention max %.4f min %.4f\n",
				layer.Layer, layer.Max, layer.Min)
		}
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{detectCmd, standardCmd, ensembleCmd} {
		cmd.Flags().StringVar(&userID, "user", "", "user ID for stored records")
		cmd.Flags().BoolVar(&storeResults, "store", false, "persist the result to history")
	}
	ensembleCmd.Flags().BoolVar(&useTransformer, "transformer", true,
		"run the attention model; false reports the primary verdict alone")
	rootCmd.AddCommand(detectCmd, standardCmd, ensembleCmd, attentionCmd)
}

func runDetect(path string, fn func(*detect.Service, detect.Options) *detect.Report) error {
	svc, err := newService()
	if err != nil {
		return err
	}
	defer svc.Close()

	report := fn(svc, detect.Options{UserID: userID, Store: storeResults})

	if jsonOut {
		return printJSON(report)
	}
	printReport(report)
	return nil
}

func printReport(r *detect.Report) {
	if r.Error != "" {
		fmt.Printf("%s: detection failed: %s\n", r.Filename, r.Error)
		return
	}
	fmt.Printf("%s: %s (confidence %.4f, model %s, %.0f ms)\n",
		r.Filename, r.Label, r.Confidence, r.ModelUsed, r.ProcessingTimeMS)
	for model, conf := range r.ModelConfidences {
		fmt.Printf("  %s: %.4f\n", model, conf)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
