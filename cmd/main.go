package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aldentec/ATSMap-sub000/internal/api"
	"github.com/Aldentec/ATSMap-sub000/internal/config"
	"github.com/Aldentec/ATSMap-sub000/internal/metrics"
	"github.com/Aldentec/ATSMap-sub000/internal/scoring"
	"github.com/Aldentec/ATSMap-sub000/internal/store"
	"github.com/Aldentec/ATSMap-sub000/internal/telemetry"
	"github.com/Aldentec/ATSMap-sub000/internal/trip"
)

var (
	configPath string
	dbPath     string
	cfg        config.Config
	logger     *slog.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "perf-monitor",
		Short: "Driving Performance Monitor - telemetry-driven driving score and trip history",
		Long: `A companion tool that consumes truck-simulator telemetry, computes a live
driving-performance score across smoothness, speed compliance, safety, and
vehicle condition, and records detected trips in a local SQLite history.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			if dbPath != "" {
				cfg.DBPath = dbPath
			}
			logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
			metrics.Init()
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to SQLite trip database (overrides config)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(replayCmd())
	rootCmd.AddCommand(tripsCmd())
	rootCmd.AddCommand(statsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// serveCmd starts the REST API server and websocket stream.
func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the scoring service and REST API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				cfg.ListenAddr = addr
			}

			st, err := store.New(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer st.Close()

			engine := scoring.NewEngine(cfg.Scoring, logger)
			detector := trip.New(engine, st, logger, cfg.Trip)
			hub := api.NewHub(engine, logger)
			server := api.NewServer(engine, detector, st, hub, logger)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			go hub.Run(ctx)

			httpServer := &http.Server{
				Addr:    cfg.ListenAddr,
				Handler: server.Router(),
			}

			go func() {
				<-ctx.Done()
				// Ending the trip before shutdown persists the session in
				// progress.
				if t := detector.Shutdown(); t != nil {
					logger.Info("trip closed on shutdown",
						slog.Float64("distance_miles", t.DistanceMiles))
				}
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				httpServer.Shutdown(shutdownCtx)
			}()

			fmt.Printf("🚚 Driving Performance Monitor\n")
			fmt.Printf("   Listening on http://localhost%s\n", cfg.ListenAddr)
			fmt.Printf("   Database: %s\n\n", cfg.DBPath)
			fmt.Println("Available endpoints:")
			fmt.Println("  GET  /health")
			fmt.Println("  GET  /api/v1/score/snapshot")
			fmt.Println("  GET  /api/v1/score/breakdown")
			fmt.Println("  GET  /api/v1/score/tooltip/{metric}")
			fmt.Println("  POST /api/v1/score/reset")
			fmt.Println("  POST /api/v1/telemetry")
			fmt.Println("  GET  /api/v1/trips")
			fmt.Println("  GET  /api/v1/trips/stats")
			fmt.Println("  GET  /api/v1/trips/export")
			fmt.Println("  GET  /ws")
			fmt.Println("  GET  /metrics")
			fmt.Println()

			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (overrides config)")
	return cmd
}

// replayCmd scores a recorded telemetry capture.
func replayCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "replay [file...]",
		Short: "Replay recorded telemetry captures through the scoring engine",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.New(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer st.Close()

			engine := scoring.NewEngine(cfg.Scoring, logger)
			detector := trip.New(engine, st, logger, cfg.Trip)
			p := telemetry.NewParser(format, logger)

			totalSamples := 0
			for _, file := range args {
				fmt.Printf("Processing %s...\n", file)
				start := time.Now()

				samples, err := p.ParseFile(file)
				if err != nil {
					fmt.Printf("  Error: %v\n", err)
					continue
				}

				for i := range samples {
					engine.UpdateFromSample(&samples[i])
					detector.Observe(&samples[i])
				}

				elapsed := time.Since(start)
				fmt.Printf("  ✓ Scored %d samples in %v\n", len(samples), elapsed)
				totalSamples += len(samples)
			}

			if t := detector.Shutdown(); t != nil {
				fmt.Printf("\nTrip recorded: %.1f mi, %.1f min, grade %s\n",
					t.DistanceMiles, t.DurationMinutes, t.OverallGrade)
			}

			snapshot := engine.GetCurrentSnapshot()
			fmt.Printf("\n📊 Final Session Scores (%d samples)\n", totalSamples)
			fmt.Println("====================================")
			fmt.Printf("  Smoothness:        %.1f\n", snapshot.Smoothness)
			fmt.Printf("  Speed Compliance:  %.1f%% (%s)\n", snapshot.SpeedCompliance, snapshot.ComplianceGrade)
			fmt.Printf("  Safety:            %.1f\n", snapshot.Safety)
			fmt.Printf("  Vehicle Condition: %.1f\n", snapshot.VehicleCondition)
			fmt.Printf("  Estimated MPG:     %.1f\n", snapshot.EstimatedMPG)
			fmt.Printf("  Overall:           %.1f (%s)\n", snapshot.Overall, snapshot.OverallGrade)

			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "csv", "Capture format (csv, json, jsonl)")
	return cmd
}

// tripsCmd manages the trip history.
func tripsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trips",
		Short: "Trip history commands",
	}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent trips",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.New(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer st.Close()

			trips, err := st.GetRecentTrips(limit)
			if err != nil {
				return fmt.Errorf("error listing trips: %w", err)
			}

			if len(trips) == 0 {
				fmt.Println("No trips recorded yet.")
				return nil
			}

			fmt.Printf("%-5s %-20s %-10s %-10s %-10s %-6s\n",
				"ID", "Start", "Dur (min)", "Dist (mi)", "Fuel (L)", "Grade")
			fmt.Println(strings.Repeat("-", 68))
			for _, t := range trips {
				fmt.Printf("%-5d %-20s %-10.1f %-10.1f %-10.1f %-6s\n",
					t.ID, t.StartTime.Format("2006-01-02 15:04"),
					t.DurationMinutes, t.DistanceMiles, t.FuelConsumed, t.OverallGrade)
			}
			return nil
		},
	}
	listCmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum trips to list")

	var exportFormat, exportOut string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export the trip history",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.New(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer st.Close()

			trips, err := st.GetAllTrips()
			if err != nil {
				return fmt.Errorf("error loading trips: %w", err)
			}

			switch exportFormat {
			case "csv":
				out := os.Stdout
				if exportOut != "" {
					f, err := os.Create(exportOut)
					if err != nil {
						return fmt.Errorf("error creating output file: %w", err)
					}
					defer f.Close()
					out = f
				}
				if err := store.WriteCSV(out, trips); err != nil {
					return fmt.Errorf("export error: %w", err)
				}
			case "xlsx":
				if exportOut == "" {
					exportOut = "trips.xlsx"
				}
				data, err := store.BuildXLSX(trips)
				if err != nil {
					return fmt.Errorf("export error: %w", err)
				}
				if err := os.WriteFile(exportOut, data, 0o644); err != nil {
					return fmt.Errorf("error writing output file: %w", err)
				}
			default:
				return fmt.Errorf("unsupported format: %s", exportFormat)
			}

			if exportOut != "" {
				fmt.Printf("✓ Exported %d trips to %s\n", len(trips), exportOut)
			}
			return nil
		},
	}
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "Export format (csv, xlsx)")
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "Output file (stdout for csv if omitted)")

	var reportOut string
	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Generate a PDF driving-performance report",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.New(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer st.Close()

			stats, err := st.GetStatistics()
			if err != nil {
				return fmt.Errorf("error computing statistics: %w", err)
			}
			trips, err := st.GetAllTrips()
			if err != nil {
				return fmt.Errorf("error loading trips: %w", err)
			}

			data, err := store.BuildReportPDF(stats, trips)
			if err != nil {
				return fmt.Errorf("report error: %w", err)
			}
			if err := os.WriteFile(reportOut, data, 0o644); err != nil {
				return fmt.Errorf("error writing report: %w", err)
			}

			fmt.Printf("✓ Report written to %s (%d trips)\n", reportOut, len(trips))
			return nil
		},
	}
	reportCmd.Flags().StringVarP(&reportOut, "output", "o", "report.pdf", "Output PDF file")

	cmd.AddCommand(listCmd, exportCmd, reportCmd)
	return cmd
}

// statsCmd shows aggregate trip statistics.
func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate trip statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.New(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer st.Close()

			stats, err := st.GetStatistics()
			if err != nil {
				return fmt.Errorf("error getting stats: %w", err)
			}

			fmt.Println("📊 Trip History Statistics")
			fmt.Println("==========================")
			fmt.Printf("  Total Trips:        %d\n", stats.TotalTrips)
			fmt.Printf("  Total Distance:     %.1f mi\n", stats.TotalDistanceMiles)
			fmt.Printf("  Total Duration:     %.1f min\n", stats.TotalDurationMinutes)
			fmt.Printf("  Total Fuel:         %.1f L\n", stats.TotalFuelConsumed)
			fmt.Printf("  Avg Smoothness:     %.1f\n", stats.AvgSmoothness)
			fmt.Printf("  Avg Fuel Economy:   %.1f MPG\n", stats.AvgFuelEfficiencyMPG)
			fmt.Printf("  Avg Compliance:     %.1f%%\n", stats.AvgSpeedCompliance)
			fmt.Printf("  Avg Safety:         %.1f\n", stats.AvgSafety)
			fmt.Printf("  Best Grade:         %s\n", stats.BestGrade)
			fmt.Printf("  Worst Grade:        %s\n", stats.WorstGrade)
			fmt.Printf("  Database:           %s\n", cfg.DBPath)

			return nil
		},
	}
}
