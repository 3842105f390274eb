package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/engine"
	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/kubernetes"
	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/loadgen"
	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/logs"
	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/models"
	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/monitor"
	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/portforward"
	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/prometheus"
	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/report"
	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/scenario"
	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/storage"
	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/tui"
)

var (
	scenarioPath string
	kubeContext  string
	debug        bool
	outputFormat string
	watchRun     bool
	noArchive    bool
)

// exitErr is the code for configuration and infrastructure failures.
// Pass, fail and aborted runs carry their codes on the verdict.
const exitErr = 2

// exitCode is set by a completed run; RunE errors map to exitErr.
var exitCode int

var rootCmd = &cobra.Command{
	Use:   "hpa-verify",
	Short: "Verify autoscaling behavior under synthetic load",
	Long: `hpa-verify drives CPU or HTTP load against a service, watches the
horizontal pod autoscaler react, and judges the recorded replica series
against the scenario's thresholds and deadlines.

The exit code reports the outcome for CI:
  0  the autoscaler met every expectation
  1  at least one expectation was violated
  2  the scenario never ran (bad config, unreachable cluster)
  3  the run was aborted before adjudication finished

Example:
  hpa-verify --config scenario.json
  hpa-verify --config scenario.json --watch
  hpa-verify --config scenario.json --output json > report.json`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVerification(cmd.Context())
	},
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitErr
	}
	return exitCode
}

func runVerification(parent context.Context) error {
	format := strings.ToLower(outputFormat)
	if format != "text" && format != "json" {
		return fmt.Errorf("unknown output format %q (want text or json)", outputFormat)
	}

	if watchRun {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to resolve home directory: %w", err)
		}
		if _, err := logs.SetupFileOnly(debug, filepath.Join(home, ".hpa-verify", "logs")); err != nil {
			return err
		}
	} else {
		logs.Setup(debug)
	}

	cfg, err := scenario.Load(scenarioPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid scenario: %w", err)
	}
	for _, line := range strings.Split(strings.TrimRight(cfg.Summary(), "\n"), "\n") {
		log.Debug().Msg(line)
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := kubernetes.NewClient(kubeContext)
	if err != nil {
		return err
	}

	phases := cfg.LoadPhases()

	if cfg.PortForward.Enabled {
		fw := portforward.New(portforward.Config{
			Namespace:   cfg.Target.Namespace,
			Service:     cfg.PortForward.Service,
			LocalPort:   cfg.PortForward.LocalPort,
			RemotePort:  cfg.PortForward.RemotePort,
			KubeContext: kubeContext,
		})
		if err := fw.Start(ctx); err != nil {
			return fmt.Errorf("port-forward failed: %w", err)
		}
		defer fw.Stop()
		phases = resolveEndpoints(phases, fw.URL())
	}

	generators := map[models.LoadKind]loadgen.Generator{
		models.LoadCPU:  loadgen.NewCPUGenerator(client, loadgen.DefaultCPUGeneratorConfig(cfg.Target.Namespace)),
		models.LoadHTTP: loadgen.NewHTTPGenerator(loadgen.DefaultHTTPGeneratorConfig()),
	}

	runID := uuid.NewString()
	driver := engine.New(client, generators, engine.Config{
		RunID:       runID,
		Target:      cfg.TargetSelector(),
		Expectation: cfg.ScalingExpectation(),
		Phases:      phases,
		Sustain:     time.Duration(cfg.Sustain),
		Observer: monitor.ObserverConfig{
			Interval: time.Duration(cfg.Observer.Interval),
		},
		BoundsGrace: time.Duration(cfg.BoundsGrace),
	})

	if !noArchive && !cfg.Archive.Disabled {
		store, err := storage.NewStore(&storage.ArchiveConfig{
			Enabled: true,
			DBPath:  cfg.Archive.Path,
			MaxAge:  time.Duration(cfg.Archive.MaxAge),
		})
		if err != nil {
			log.Warn().Err(err).Msg("run archive unavailable; continuing without it")
		} else {
			defer store.Close()
			driver.SetArchive(store)
		}
	}

	if cfg.Prometheus.URL != "" {
		enricher, err := prometheus.NewClient(cfg.Prometheus.URL, cfg.Prometheus.Query)
		if err != nil {
			return fmt.Errorf("prometheus enrichment failed: %w", err)
		}
		driver.SetEnricher(enricher)
	}

	var rep models.RunReport
	if watchRun {
		rep, err = runWatched(ctx, driver, cfg.TargetSelector().String(), runID)
	} else {
		rep, err = driver.Run(ctx)
	}
	if err != nil {
		return err
	}

	return emitReport(rep, format)
}

// runWatched runs the driver behind the live terminal view. Quitting
// the view cancels the run; the driver tears down and reports aborted.
func runWatched(ctx context.Context, driver *engine.Driver, target, runID string) (models.RunReport, error) {
	events := make(chan engine.Event, 256)
	driver.SetEvents(events)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type runResult struct {
		report models.RunReport
		err    error
	}
	done := make(chan runResult, 1)
	go func() {
		rep, err := driver.Run(runCtx)
		close(events)
		done <- runResult{rep, err}
	}()

	p := tea.NewProgram(tui.NewWatch(target, runID, events, cancel), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return models.RunReport{}, fmt.Errorf("watch view failed: %w", err)
	}

	res := <-done
	return res.report, res.err
}

// resolveEndpoints anchors relative HTTP endpoints on the tunnel URL so
// scenarios can target ClusterIP services without hardcoding a local
// port.
func resolveEndpoints(phases []models.LoadPhase, base string) []models.LoadPhase {
	for i, p := range phases {
		if p.Kind == models.LoadHTTP && strings.HasPrefix(p.Endpoint, "/") {
			phases[i].Endpoint = base + p.Endpoint
			log.Info().
				Str("phase", p.Name).
				Str("endpoint", phases[i].Endpoint).
				Msg("endpoint resolved through port-forward")
		}
	}
	return phases
}

// emitReport writes the report to stdout and records the exit code.
func emitReport(rep models.RunReport, format string) error {
	if format == "json" {
		if err := report.WriteJSON(os.Stdout, rep); err != nil {
			return err
		}
	} else {
		fmt.Println(report.Render(rep))
	}

	exitCode = rep.Verdict.ExitCode()
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&kubeContext, "context", "",
		"kubeconfig context to use (default: current context)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text",
		"report format: text or json")

	rootCmd.Flags().StringVarP(&scenarioPath, "config", "c", "",
		"path to the scenario file (required)")
	rootCmd.Flags().BoolVar(&watchRun, "watch", false,
		"render the run live in the terminal")
	rootCmd.Flags().BoolVar(&noArchive, "no-archive", false,
		"skip writing the report to the run archive")
	_ = rootCmd.MarkFlagRequired("config")
}
