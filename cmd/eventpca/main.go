package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/eventpca/internal/api"
	"github.com/banshee-data/eventpca/internal/config"
	"github.com/banshee-data/eventpca/internal/events"
	"github.com/banshee-data/eventpca/internal/freqdetect"
	"github.com/banshee-data/eventpca/internal/monitoring"
	"github.com/banshee-data/eventpca/internal/render"
	"github.com/banshee-data/eventpca/internal/series"
	"github.com/banshee-data/eventpca/internal/store"
	"github.com/banshee-data/eventpca/internal/version"
)

var (
	configPath    = flag.String("config", "", "Pipeline config file (.json, .yaml or .yml)")
	batches       = flag.Int("batches", 0, "Synthetic batches to generate (0 uses config)")
	batchSize     = flag.Int("batch-size", 0, "Samples per synthetic batch (0 uses config)")
	sliceCount    = flag.Int("slice-count", 0, "Re-batch into fixed-count slices (0 uses config)")
	sliceInterval = flag.Duration("slice-interval", 0, "Re-batch into fixed time windows (0 uses config)")
	pipelined     = flag.Int("pipelined", -1, "Fetch/compute queue depth; 0 runs sequentially (-1 uses config)")
	pngPath       = flag.String("png", "", "Write centroid and orientation plots to this PNG file")
	htmlPath      = flag.String("html", "", "Write the interactive 3D chart to this HTML file")
	dbPath        = flag.String("db", "", "Save the run to this SQLite database")
	label         = flag.String("label", "", "Label stored with the run")
	listen        = flag.String("listen", "", "Serve the API, live feed and /debug/ routes on this address, e.g. :8080")
	freq          = flag.Bool("freq", false, "Run the blink frequency detectors over the stream")
	debug         = flag.Bool("debug", false, "Log every batch summary")
	showVersion   = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	monitoring.SetDebug(*debug)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	applyFlags(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("eventpca: %v", err)
	}
}

func loadConfig(path string) (*config.PipelineConfig, error) {
	if path == "" {
		return config.EmptyPipelineConfig(), nil
	}
	return config.LoadPipelineConfig(path)
}

// applyFlags overrides config values with any flags set on the command line.
func applyFlags(cfg *config.PipelineConfig) {
	if *batches > 0 {
		cfg.SyntheticBatches = ptr(*batches)
	}
	if *batchSize > 0 {
		cfg.SyntheticBatchSize = ptr(*batchSize)
	}
	if *sliceCount > 0 {
		cfg.SliceMode, cfg.SliceCount = ptr(config.SliceCount), ptr(*sliceCount)
	}
	if *sliceInterval > 0 {
		cfg.SliceMode, cfg.SliceInterval = ptr(config.SliceTime), ptr(sliceInterval.String())
	}
	if *pipelined >= 0 {
		cfg.PipelineDepth = ptr(*pipelined)
	}
	if *dbPath != "" {
		cfg.DBPath = ptr(*dbPath)
	}
}

func ptr[T any](v T) *T { return &v }

// buildSource creates the synthetic source and wraps it in the configured
// slicer.
func buildSource(cfg *config.PipelineConfig) (events.Source, error) {
	var src events.Source = events.NewSyntheticSource(cfg.SyntheticConfig())
	switch cfg.GetSliceMode() {
	case config.SliceCount:
		return events.NewCountSlicer(src, cfg.GetSliceCount())
	case config.SliceTime:
		return events.NewIntervalSlicer(src, cfg.GetSliceInterval().Microseconds())
	default:
		return src, nil
	}
}

func run(ctx context.Context, cfg *config.PipelineConfig) error {
	src, err := buildSource(cfg)
	if err != nil {
		return err
	}

	var bank *freqdetect.Bank
	if *freq {
		syn := cfg.SyntheticConfig()
		if bank, err = cfg.DetectorBank(syn.Width, syn.Height); err != nil {
			return err
		}
		src = events.Tap(src, bank.Accept)
	}

	var st *store.Store
	if *dbPath != "" || *listen != "" {
		if st, err = store.Open(cfg.GetDBPath()); err != nil {
			return err
		}
		defer st.Close()
	}

	chart := render.ChartOptions{Stride: cfg.GetPlotStride(), VectorLength: cfg.GetVectorLength()}
	var hub *render.Hub
	var srv *http.Server
	if *listen != "" {
		hub = render.NewHub(0)
		srv = &http.Server{Addr: *listen, Handler: api.NewServer(st, hub, chart).ServeMux()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("failed to start server: %v", err)
			}
		}()
		log.Printf("serving on %s", *listen)
	}

	opts := series.Options{PollInterval: cfg.GetPollInterval()}
	if hub != nil {
		opts.Observer = hub.Publish
	}
	acc := series.NewAccumulator(opts)

	var sr *series.Series
	if depth := cfg.GetPipelineDepth(); depth > 0 {
		sr, err = acc.RunPipelined(ctx, src, depth)
	} else {
		sr, err = acc.Run(ctx, src)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		log.Printf("interrupted after %d batches", sr.Len())
	}
	if hub != nil {
		hub.PublishDone(sr.Len(), sr.SampleCount())
	}

	if bank != nil {
		for _, d := range bank.Detections() {
			log.Printf("%.0f Hz: %d pixels", d.TargetHz, len(d.Pixels))
		}
	}

	if err := writeOutputs(sr, chart); err != nil {
		return err
	}

	if st != nil && sr.Len() > 0 {
		id, err := st.SaveRun(context.Background(), sr, *label)
		if err != nil {
			return err
		}
		log.Printf("saved run %s to %s", id, cfg.GetDBPath())
	}

	if srv != nil {
		<-ctx.Done()
		log.Println("shutting down HTTP server...")
		hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			_ = srv.Close()
		}
	}
	return nil
}

func writeOutputs(sr *series.Series, chart render.ChartOptions) error {
	if sr.Len() == 0 {
		if *pngPath != "" || *htmlPath != "" {
			log.Printf("no batches accumulated, skipping plots")
		}
		return nil
	}
	if *pngPath != "" {
		if err := render.WritePNG(sr, *pngPath); err != nil {
			return err
		}
		log.Printf("wrote %s", *pngPath)
	}
	if *htmlPath != "" {
		f, err := os.Create(*htmlPath)
		if err != nil {
			return fmt.Errorf("create chart file: %w", err)
		}
		if err := render.RenderHTML(sr, f, chart); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		log.Printf("wrote %s", *htmlPath)
	}
	return nil
}
