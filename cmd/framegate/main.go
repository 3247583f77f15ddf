package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/framegate/framegate/internal/core/frame"
	"github.com/framegate/framegate/internal/core/observability/log"
	"github.com/framegate/framegate/internal/core/pipeline"
	"github.com/framegate/framegate/internal/core/system"
	"github.com/framegate/framegate/internal/server"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML config, defaults apply when empty")
		host       = flag.String("host", "127.0.0.1", "stats server listen host")
		port       = flag.Int("port", 8750, "stats server listen port")
		demoFPS    = flag.Int("demo-fps", 25, "synthetic feed rate")
	)
	flag.Parse()

	cfg := pipeline.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = pipeline.LoadConfig(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, "config:", err)
			os.Exit(1)
		}
	}

	lg := log.New(cfg.Logging)
	defer func() { _ = lg.Sync() }()

	var gpu system.Sampler = system.Noop{}
	if nv, err := system.NewNVMLSampler(lg); err == nil {
		gpu = nv
		defer nv.Close()
	} else {
		lg.Info("gpu sampling unavailable", log.Error(err))
	}
	sampler := system.NewHostSampler(gpu, lg)

	pipe, err := pipeline.New(cfg, sampler, lg)
	if err != nil {
		lg.Error("pipeline init failed", log.Error(err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pipe.Start(ctx)

	statsSrv := server.NewStatsServer(server.Config{
		Host:          *host,
		Port:          *port,
		StatsInterval: time.Second,
	}, pipe, lg)
	if err := statsSrv.Start(ctx); err != nil {
		lg.Error("stats server start failed", log.Error(err))
		os.Exit(1)
	}

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	go runDemoFeed(ctx, pipe, *demoFPS, lg)

	<-stopCh
	cancel()
	if err := statsSrv.Stop(); err != nil {
		lg.Warn("stats server stop", log.Error(err))
	}
	if err := pipe.Stop(); err != nil {
		lg.Warn("pipeline stop", log.Error(err))
	}
	stats := pipe.Stats()
	lg.Info("session finished",
		log.String("session", stats.SessionID),
		log.Uint64("frames", stats.Counters.TotalFrames),
		log.Float64("admission_rate", stats.AdmissionRate),
	)
}

// runDemoFeed drives the pipeline with a synthetic camera: long static
// stretches interleaved with bursts of motion, so admission and strategy
// adaptation are visible on the stats feed without real video input.
func runDemoFeed(ctx context.Context, pipe *pipeline.Pipeline, fps int, lg log.Log) {
	if fps <= 0 {
		fps = 25
	}
	const (
		w, h      = 320, 240
		blockSize = 48
		phaseLen  = 200
	)
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	detect := func(ctx context.Context, f *frame.Frame) (any, error) {
		// Stand-in for a real inference call.
		time.Sleep(2 * time.Millisecond)
		return f.Seq, nil
	}

	var seq uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		seq++

		var f *frame.Frame
		if (seq/phaseLen)%2 == 0 {
			f = frame.Uniform(seq, w, h, 96)
		} else {
			step := int(seq%phaseLen) * 4
			f = frame.MovingBlock(seq, w, h, blockSize, step%(w-blockSize), (step/2)%(h-blockSize))
		}

		if _, info := pipe.ProcessFrame(ctx, f, false, detect); info.DetectFailed {
			lg.Warn("detection failed", log.Uint64("seq", seq), log.String("error", info.DetectError))
		}
	}
}
