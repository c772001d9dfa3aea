package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jnsofini/auto-scorecard/internal/scorecard"
	"github.com/jnsofini/auto-scorecard/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the fitted scorecard over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		m, err := scorecard.Load(cfg.Server.ModelPath)
		if err != nil {
			return err
		}

		svc := server.NewModelService(m, cfg.Server.ModelName, cfg.Server.ModelVersion, logPrediction)
		h := server.NewHandler(svc, server.NewLimiter(cfg.Server.RateLimit, cfg.Server.Burst))

		zap.L().Info("starting server",
			zap.Int("port", cfg.Server.Port),
			zap.String("model", cfg.Server.ModelPath),
			zap.Strings("features", m.Names()),
		)
		return server.ListenAndServe(ctx, fmt.Sprintf(":%d", cfg.Server.Port), h)
	},
}

func logPrediction(pe server.PredictionEvent) {
	zap.L().Info("prediction",
		zap.String("model", pe.Model),
		zap.String("version", pe.Version),
		zap.Any("cust_id", pe.Prediction.CustID),
		zap.Int("cust_score", pe.Prediction.CustScore),
	)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
