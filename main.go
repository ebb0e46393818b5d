package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/llehouerou/framesync/internal/config"
	"github.com/llehouerou/framesync/internal/errmsg"
	"github.com/llehouerou/framesync/internal/frametime"
	"github.com/llehouerou/framesync/internal/mediasync"
	"github.com/llehouerou/framesync/internal/metrics"
	"github.com/llehouerou/framesync/internal/orchestrator"
	"github.com/llehouerou/framesync/internal/player"
	"github.com/llehouerou/framesync/internal/stderr"
	"github.com/llehouerou/framesync/internal/telemetry"
	"github.com/llehouerou/framesync/internal/timecode"
	"github.com/llehouerou/framesync/internal/timeline"
)

type options struct {
	configFile  string
	audioFile   string
	framesDir   string
	logFile     string
	logLevel    string
	metricsAddr string
	telemetry   bool
}

func parseFlags() (options, string, error) {
	var o options
	pflag.StringVarP(&o.configFile, "config", "c", "", "config file (default: XDG config dir, then ./framesync.toml)")
	pflag.StringVar(&o.audioFile, "audio", "", "separate audio file kept on the same frames")
	pflag.StringVar(&o.framesDir, "frames", "", "directory of pre-rendered frames carrying the timecode")
	pflag.StringVar(&o.logFile, "log-file", "", "log file (default: XDG state dir)")
	pflag.StringVar(&o.logLevel, "level", "", "log level (overrides config)")
	pflag.StringVar(&o.metricsAddr, "metrics-addr", "", "Prometheus listen address (overrides config)")
	pflag.BoolVar(&o.telemetry, "telemetry", false, "record tick reports (overrides config)")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <media file>\n", filepath.Base(os.Args[0]))
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if pflag.NArg() != 1 {
		pflag.Usage()
		return o, "", errors.New("expected exactly one media file")
	}
	return o, pflag.Arg(0), nil
}

func setupLogger(path, level string) (*log.Logger, *os.File, error) {
	if path == "" {
		var err error
		if path, err = xdg.StateFile(filepath.Join("framesync", "framesync.log")); err != nil {
			return nil, nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}

	logger := log.New()
	logger.SetOutput(f)
	logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	logger.SetLevel(log.InfoLevel)
	if level != "" {
		lvl, err := log.ParseLevel(level)
		if err != nil {
			f.Close()
			return nil, nil, err
		}
		logger.SetLevel(lvl)
	}
	return logger, f, nil
}

// app owns everything the demo opens, closed in reverse order.
type app struct {
	log     *log.Logger
	cfg     *config.Config
	ctrl    *mediasync.Controller
	audio   *mediasync.Controller
	video   *player.Player
	track   *player.Player
	tl      *timeline.Timeline
	orch    *orchestrator.Orchestrator
	store   *telemetry.Store
	server  *http.Server
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

func newApp(ctx context.Context, o options, mediaPath string, logger *log.Logger) (*app, error) {
	a := &app{log: logger}

	cfg, err := loadConfig(o.configFile)
	if err != nil {
		return nil, errors.New(errmsg.Format(errmsg.OpConfigLoad, err))
	}
	a.cfg = cfg
	if o.logLevel == "" && cfg.LogLevel != "" {
		if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
			logger.SetLevel(lvl)
		}
	}
	syncCfg := cfg.GetSyncConfig()

	var m *metrics.Metrics
	addr := o.metricsAddr
	if addr == "" {
		addr = cfg.Metrics.Addr
	}
	if addr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.New(reg)
		a.serveMetrics(addr, reg)
	}

	a.video = player.New(mediaPath)
	a.closers = append(a.closers, a.video.Close)

	ctrlOpts := []mediasync.Option{mediasync.WithLogger(logger.WithField("element", "video"))}
	if m != nil {
		ctrlOpts = append(ctrlOpts, mediasync.WithObserver(m))
	}

	if o.audioFile != "" {
		a.track = player.New(o.audioFile)
		a.closers = append(a.closers, a.track.Close)
		a.audio = mediasync.New(a.track, syncCfg, mediasync.WithLogger(logger.WithField("element", "audio")))
		a.closers = append(a.closers, a.audio.Destroy)
		if err := a.audio.Load(ctx); err != nil {
			a.Close()
			return nil, errors.New(errmsg.FormatWith(errmsg.OpAudioLoad, o.audioFile, err))
		}
		ctrlOpts = append(ctrlOpts, mediasync.WithAudioTrack(mediasync.NewTrack(a.audio)))
	}

	reader, err := a.timecodeReader(o.framesDir, syncCfg.Framerate)
	if err != nil {
		a.Close()
		return nil, errors.New(errmsg.Format(errmsg.OpTimecodeRead, err))
	}
	if reader != nil {
		ctrlOpts = append(ctrlOpts, mediasync.WithTimecode(reader))
	}

	a.ctrl = mediasync.New(a.video, syncCfg, ctrlOpts...)
	a.closers = append(a.closers, a.ctrl.Destroy)
	if err := a.ctrl.Load(ctx); err != nil {
		a.Close()
		return nil, errors.New(errmsg.FormatWith(errmsg.OpMediaLoad, mediaPath, err))
	}

	clip, err := cfg.GetClip(a.ctrl.Duration())
	if err != nil {
		a.Close()
		return nil, errors.New(errmsg.Format(errmsg.OpInitialize, err))
	}
	a.tl = timeline.New(clip.End)

	orchOpts := []orchestrator.Option{orchestrator.WithLogger(logger)}
	if m != nil {
		orchOpts = append(orchOpts, orchestrator.WithRecorder(m))
	}
	if o.telemetry || cfg.Telemetry.Enabled {
		store, err := telemetry.Open(cfg.Telemetry.Path)
		if err != nil {
			a.Close()
			return nil, errors.New(errmsg.Format(errmsg.OpTelemetryOpen, err))
		}
		store.SetLogger(logger)
		a.store = store
		a.closers = append(a.closers, func() {
			if err := store.Close(); err != nil {
				logger.WithError(err).Warn("closing telemetry store")
			}
		})
		if _, err := store.StartSession(mediaPath, syncCfg.Framerate); err != nil {
			a.Close()
			return nil, errors.New(errmsg.Format(errmsg.OpTelemetryRecord, err))
		}
		orchOpts = append(orchOpts, orchestrator.WithRecorder(store))
	}

	a.orch = orchestrator.New(a.ctrl, a.tl, clip, orchOpts...)
	a.closers = append(a.closers, a.orch.Close)
	return a, nil
}

// timecodeReader returns nil when no timecode is configured.
func (a *app) timecodeReader(dir string, framerate float64) (timecode.FrameReader, error) {
	settings, enabled, err := a.cfg.GetTimecodeSettings()
	if !enabled || dir == "" {
		return nil, nil //nolint:nilnil // no timecode is a valid setup
	}
	if err != nil {
		return nil, err
	}
	source := timecode.NewDirSource(dir, "", func() int {
		return frametime.SecondsToFrameNumber(a.video.CurrentTime(), framerate, true, 0)
	})
	sampler, err := timecode.NewImageSampler(source, settings, a.cfg.AssetSize(), a.cfg.DisplaySize())
	if err != nil {
		return nil, err
	}
	return sampler, nil
}

func (a *app) serveMetrics(addr string, reg *prometheus.Registry) {
	a.server = &http.Server{
		Addr:              addr,
		Handler:           metrics.NewRouter(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.log.WithField("addr", addr).Info("metrics listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error(errmsg.FormatWith(errmsg.OpMetricsServe, addr, err))
		}
	}()
	a.closers = append(a.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = a.server.Shutdown(ctx)
	})
}

func main() {
	o, mediaPath, err := parseFlags()
	if err != nil {
		os.Exit(2)
	}

	logger, logFile, err := setupLogger(o.logFile, o.logLevel)
	if err != nil {
		fmt.Printf("Error initializing: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	capture, err := stderr.Start(logger)
	if err != nil {
		logger.WithError(err).Warn("stderr capture unavailable")
	}

	a, err := newApp(context.Background(), o, mediaPath, logger)
	if err != nil {
		if capture != nil {
			capture.Stop()
		}
		fmt.Printf("Error initializing: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(newModel(a), tea.WithAltScreen())
	_, err = p.Run()
	a.Close()
	if capture != nil {
		capture.Stop()
	}
	if err != nil {
		fmt.Printf("Error running program: %v\n", err)
		os.Exit(1)
	}
}
