package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jnsofini/auto-scorecard/internal/config"
	"github.com/jnsofini/auto-scorecard/internal/fetcher"
	"github.com/jnsofini/auto-scorecard/internal/model"
	"github.com/jnsofini/auto-scorecard/internal/pipeline"
)

var fitCmd = &cobra.Command{
	Use:   "fit",
	Short: "Run the full scorecard pipeline",
	Long: `Loads X and y, drops zero-variance features, bins every feature,
clusters the WoE columns, eliminates features by cross-validated AUC and fits
the scorecard on the survivors. Artifacts are written to output.dir.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if x, _ := cmd.Flags().GetString("x"); x != "" {
			cfg.Data.XTrain = x
		}
		if y, _ := cmd.Flags().GetString("y"); y != "" {
			cfg.Data.YTrain = y
		}
		if out, _ := cmd.Flags().GetString("output"); out != "" {
			cfg.Output.Dir = out
		}

		res, err := runFit(ctx, cfg)
		if err != nil {
			return err
		}
		printFitSummary(os.Stdout, res)
		return nil
	},
}

func init() {
	fitCmd.Flags().String("x", "", "features file (overrides data.x_train)")
	fitCmd.Flags().String("y", "", "target file (overrides data.y_train)")
	fitCmd.Flags().String("output", "", "artifact directory (overrides output.dir)")
	rootCmd.AddCommand(fitCmd)
}

// dataPath resolves a data file against data.dir unless it is absolute or
// already exists as given.
func dataPath(dir, name string) string {
	if dir == "" || filepath.IsAbs(name) {
		return name
	}
	if _, err := os.Stat(name); err == nil {
		return name
	}
	return filepath.Join(dir, name)
}

func runFit(ctx context.Context, c *config.Config) (*pipeline.Result, error) {
	if err := c.Validate("fit"); err != nil {
		return nil, err
	}

	xPath := dataPath(c.Data.Dir, c.Data.XTrain)
	yPath := dataPath(c.Data.Dir, c.Data.YTrain)

	f, err := fetcher.LoadFrame(ctx, xPath)
	if err != nil {
		return nil, err
	}
	target, err := fetcher.LoadTarget(ctx, yPath, fetcher.TargetOptions{
		Column:        c.Data.Target,
		PositiveLabel: c.Data.PositiveLabel,
	})
	if err != nil {
		return nil, err
	}

	sc := c.Scorecard()
	st := openRegistry(ctx, c.Store)
	if st != nil {
		defer st.Close() //nolint:errcheck
	}

	p := pipeline.New(sc, c.Output, st)
	return p.Run(ctx, model.RunInput{
		XTrain:     xPath,
		YTrain:     yPath,
		ConfigHash: pipeline.ConfigHash(sc),
	}, f, target)
}

func printFitSummary(out io.Writer, res *pipeline.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if res.RunID != "" {
		_, _ = fmt.Fprintf(w, "Run:\t%s\n", res.RunID)
	}
	_, _ = fmt.Fprintf(w, "Clusters:\t%d\n", res.Reduction.NumClusters)
	_, _ = fmt.Fprintf(w, "Selected:\t%v\n", res.Reduction.Selected)
	if res.Reduction.Elimination != nil {
		_, _ = fmt.Fprintf(w, "CV AUC:\t%.4f\n", res.Reduction.Elimination.BestScore)
	}
	_, _ = fmt.Fprintf(w, "Base points:\t%d\n", res.Model.BasePoints)
	for _, p := range res.Artifacts {
		_, _ = fmt.Fprintf(w, "Wrote:\t%s\n", p)
	}
	_ = w.Flush()
}
