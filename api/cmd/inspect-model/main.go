package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pkm2-predict/api/internal/app"
	"pkm2-predict/api/internal/features"
	"pkm2-predict/api/internal/predict"
	"pkm2-predict/api/internal/predict/ensemble"
)

const defaultModel = "pipeline_voting.json"

type report struct {
	Path         string   `json:"path" yaml:"path"`
	Voting       string   `json:"voting" yaml:"voting"`
	Classes      []any    `json:"classes" yaml:"classes"`
	Estimators   int      `json:"estimators" yaml:"estimators"`
	NFeatures    int      `json:"n_features" yaml:"n_features"`
	FeatureNames []string `json:"feature_names,omitempty" yaml:"feature_names,omitempty"`
	SchemaError  string   `json:"schema_error,omitempty" yaml:"schema_error,omitempty"`
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		output string
		check  bool
	)
	cmd := &cobra.Command{
		Use:   "inspect-model [path]",
		Short: "Print the feature schema of a voting classifier artifact",
		Long: `Loads a model artifact and prints the feature names it was trained on.
Relative paths are resolved next to the executable, like the server does.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := defaultModel
			if len(args) == 1 {
				path = args[0]
			}
			return inspect(cmd.OutOrStdout(), path, output, check)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json or yaml")
	cmd.Flags().BoolVar(&check, "check", false, "fail when the columns differ from the required descriptors")
	return cmd
}

func inspect(w io.Writer, path, output string, check bool) error {
	resolved, err := predict.ResolvePath(path)
	if err != nil {
		return err
	}
	m, err := ensemble.Load(resolved)
	if err != nil {
		return err
	}

	r := report{
		Path:         resolved,
		Voting:       m.Voting(),
		Classes:      m.Classes(),
		Estimators:   m.NEstimators(),
		NFeatures:    m.NFeatures(),
		FeatureNames: m.FeatureNames(),
	}
	schemaErr := app.CheckSchema(m, features.Required)
	if schemaErr != nil {
		r.SchemaError = schemaErr.Error()
	}

	switch output {
	case "text":
		writeText(w, r)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return err
		}
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown output format %q", output)
	}

	if check && schemaErr != nil {
		return schemaErr
	}
	return nil
}

func writeText(w io.Writer, r report) {
	fmt.Fprintf(w, "model:      %s\n", r.Path)
	fmt.Fprintf(w, "voting:     %s (%d estimators)\n", r.Voting, r.Estimators)
	fmt.Fprintf(w, "classes:    %v\n", r.Classes)
	if len(r.FeatureNames) == 0 {
		fmt.Fprintf(w, "n_features: %d\n", r.NFeatures)
		fmt.Fprintln(w, "feature names are not stored in this artifact; export it from a DataFrame to keep them")
	} else {
		fmt.Fprintf(w, "features (%d):\n", len(r.FeatureNames))
		for i, name := range r.FeatureNames {
			fmt.Fprintf(w, "  %2d  %s\n", i, name)
		}
	}
	if r.SchemaError != "" {
		fmt.Fprintln(w, "schema:     "+strings.TrimSpace(r.SchemaError))
	} else {
		fmt.Fprintln(w, "schema:     matches required descriptors")
	}
}
