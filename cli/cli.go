// Package cli builds the image-to-video command line.
//
//	image-to-video serve                 # HTTP API, queue worker, metrics
//	image-to-video generate a.png b.png  # one run in-process, no infrastructure
//	image-to-video stages                # print the stage catalog
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"ImageToVideo-server/config"
	"ImageToVideo-server/logging"
	"ImageToVideo-server/metrics"
	"ImageToVideo-server/models"
	"ImageToVideo-server/pipeline"
	"ImageToVideo-server/routers"
	"ImageToVideo-server/routers/api"
	"ImageToVideo-server/service"
)

type rootOptions struct {
	configFile string
	envFile    string
}

func BuildCLI() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "image-to-video",
		Short:         "Image-to-video generation service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", config.DefaultConfigPath, "config file path")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the config")

	rootCmd.AddCommand(buildServeCommand(opts))
	rootCmd.AddCommand(buildGenerateCommand(opts))
	rootCmd.AddCommand(buildStagesCommand())
	return rootCmd
}

// Execute runs the CLI against os.Args.
func Execute() {
	if err := BuildCLI().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the dotenv file and the config. When required is false a
// missing config file yields the defaults.
func (o *rootOptions) loadConfig(required bool) (*config.Config, error) {
	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}
	cfg, err := config.Load(o.configFile)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return config.Default(), nil
		}
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func buildServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the background run processor",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(true)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	if _, err := logging.Init(os.Stderr, cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}

	db, err := models.InitDB(cfg.MySQL.DSN)
	if err != nil {
		return err
	}
	runs := models.NewRunRepository(db)

	store, err := service.NewMinIOStore(cfg.MinIO)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	catalog := pipeline.DefaultCatalog()
	gateway := service.NewGateway(cfg, store, collector)
	orch := pipeline.NewOrchestrator(gateway, catalog, cfg.Pipeline.StageInterval)
	orch.Metrics = collector

	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password}
	queue := service.NewQueue(redisOpt)
	defer queue.Close()

	worker, err := service.NewProcessor(runs, store, orch).Start(redisOpt, cfg.Worker.Concurrency)
	if err != nil {
		return err
	}
	defer worker.Shutdown()

	handler := &api.Handler{
		Gateway: gateway,
		Catalog: catalog,
		Runs:    runs,
		Images:  store,
		Queue:   queue,
	}
	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           routers.InitRouter(handler, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "addr", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Received shutdown signal, stopping gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type generateOptions struct {
	style      string
	mood       string
	duration   int
	aspect     string
	depth      bool
	shake      bool
	soundtrack string
	narration  string
	interval   time.Duration
	latency    time.Duration
}

func buildGenerateCommand(opts *rootOptions) *cobra.Command {
	def := models.DefaultVideoConfig()
	g := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate IMAGE...",
		Short: "Run one generation in-process and print the result",
		Long: `Runs the full pipeline locally: the stage timeline is streamed to stdout
and the generated video is printed as JSON. Without a provider credential
the local preview is used.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(false)
			if err != nil {
				return err
			}
			if _, err := logging.Init(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format); err != nil {
				return err
			}
			if cmd.Flags().Changed("interval") {
				cfg.Pipeline.StageInterval = g.interval
			}
			if cmd.Flags().Changed("latency") {
				cfg.Pipeline.MockLatency = g.latency
			}
			return generate(cmd.Context(), cmd.OutOrStdout(), cfg, g.videoConfig(), args)
		},
	}

	f := cmd.Flags()
	f.StringVar(&g.style, "style", string(def.Style), "cinematic, animated, minimalistic, surreal or documentary")
	f.StringVar(&g.mood, "mood", string(def.Mood), "dramatic, upbeat, relaxing or mysterious")
	f.IntVar(&g.duration, "duration", def.Duration, "clip length in seconds (5-60)")
	f.StringVar(&g.aspect, "aspect", string(def.AspectRatio), "16:9, 9:16, 1:1 or 21:9")
	f.BoolVar(&g.depth, "depth", def.AddDepth, "add parallax depth")
	f.BoolVar(&g.shake, "shake", def.AddCameraShake, "add handheld camera shake")
	f.StringVar(&g.soundtrack, "soundtrack", string(def.Soundtrack), "orchestral, ambient, electronic or narrative")
	f.StringVar(&g.narration, "narration", "", "narration prompt")
	f.DurationVar(&g.interval, "interval", config.DefaultStageInterval, "pause between simulated stages")
	f.DurationVar(&g.latency, "latency", config.DefaultMockLatency, "simulated render time of the local preview")
	return cmd
}

func (g *generateOptions) videoConfig() models.VideoConfig {
	return models.VideoConfig{
		Style:           models.Style(g.style),
		Mood:            models.Mood(g.mood),
		Duration:        g.duration,
		AspectRatio:     models.AspectRatio(g.aspect),
		AddDepth:        g.depth,
		AddCameraShake:  g.shake,
		Soundtrack:      models.Soundtrack(g.soundtrack),
		NarrationPrompt: g.narration,
	}.Normalize()
}

func generate(ctx context.Context, out io.Writer, cfg *config.Config, vc models.VideoConfig, paths []string) error {
	images, err := readImages(paths)
	if err != nil {
		return err
	}

	catalog := pipeline.DefaultCatalog()
	orch := pipeline.NewOrchestrator(service.NewGateway(cfg, nil, nil), catalog, cfg.Pipeline.StageInterval)
	state := pipeline.NewRunState(catalog)

	// observers run under the state lock, in order; print only the new lines
	printed := 0
	state.Subscribe(func(snap models.RunSnapshot) {
		for _, line := range snap.ActivityLog[printed:] {
			fmt.Fprintln(out, line)
		}
		printed = len(snap.ActivityLog)
	})

	video, err := orch.Run(ctx, state, pipeline.Request{Images: images, Config: vc})
	if err != nil {
		if errors.Is(err, pipeline.ErrGenerationFailed) {
			return errors.New(pipeline.MessageGenerationFailed)
		}
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{"video": video})
}

func readImages(paths []string) ([]models.ImageAsset, error) {
	images := make([]models.ImageAsset, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read image: %w", err)
		}
		name := filepath.Base(p)
		images = append(images, models.ImageAsset{
			Name:        name,
			ContentType: service.ContentTypeFor(name),
			Data:        data,
		})
	}
	return images, nil
}

func buildStagesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stages",
		Short: "Print the pipeline stage catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for i, s := range pipeline.DefaultCatalog().Stages() {
				fmt.Fprintf(out, "%d. %-11s %s (~%d min)\n", i+1, s.ID, s.Title, s.EstimatedMinutes)
				if s.Description != "" {
					fmt.Fprintf(out, "   %s\n", strings.TrimSpace(s.Description))
				}
			}
			return nil
		},
	}
}
