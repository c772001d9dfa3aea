package main

import (
	"context"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jnsofini/auto-scorecard/internal/artifact"
	"github.com/jnsofini/auto-scorecard/internal/fetcher"
	"github.com/jnsofini/auto-scorecard/internal/frame"
	"github.com/jnsofini/auto-scorecard/internal/scorecard"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a file of customers with a fitted model",
	Long: `Reads a features file (.parquet, .csv or .xlsx), scores every row with
the model and writes id, score and probability to a CSV file.

Examples:
  scorecard score --input data/X_test.parquet --output scores.csv
  scorecard score --model data/pipeline/model.json --input applicants.csv --id cust_id`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		modelPath, _ := cmd.Flags().GetString("model")
		if modelPath != "" {
			cfg.Server.ModelPath = modelPath
		}
		if err := cfg.Validate("score"); err != nil {
			return err
		}

		input, _ := cmd.Flags().GetString("input")
		output, _ := cmd.Flags().GetString("output")
		idColumn, _ := cmd.Flags().GetString("id")
		return scoreFile(ctx, cfg.Server.ModelPath, input, output, idColumn)
	},
}

func init() {
	f := scoreCmd.Flags()
	f.String("model", "", "model file (overrides server.model_path)")
	f.String("input", "", "features file to score")
	f.String("output", "scores.csv", "output CSV path")
	f.String("id", "", "column holding the row id (default: row number)")
	_ = scoreCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(scoreCmd)
}

func scoreFile(ctx context.Context, modelPath, input, output, idColumn string) error {
	m, err := scorecard.Load(modelPath)
	if err != nil {
		return err
	}
	f, err := fetcher.LoadFrame(ctx, input)
	if err != nil {
		return err
	}

	var ids []string
	if idColumn != "" {
		c, ok := f.Column(idColumn)
		if !ok {
			return &frame.SchemaError{Feature: idColumn, Reason: "id column missing from input"}
		}
		ids = columnStrings(c)
	}

	scores, err := m.Score(f)
	if err != nil {
		return eris.Wrap(err, "score")
	}
	probs, err := m.PredictProba(f)
	if err != nil {
		return eris.Wrap(err, "score: probabilities")
	}
	if err := artifact.WriteCSV(output, artifact.ScoresTable(ids, scores, probs)); err != nil {
		return err
	}

	zap.L().Info("score: wrote scores",
		zap.String("model", modelPath),
		zap.String("input", input),
		zap.String("output", output),
		zap.Int("rows", len(scores)),
	)
	return nil
}

func columnStrings(c *frame.Column) []string {
	out := make([]string, c.Len())
	for i := range out {
		if c.Kind == frame.Categorical {
			out[i] = c.Cat[i]
			continue
		}
		out[i] = strconv.FormatFloat(c.Num[i], 'f', -1, 64)
	}
	return out
}
