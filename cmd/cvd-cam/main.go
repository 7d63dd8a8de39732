package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"cvd-cam-go/internal/config"
	"cvd-cam-go/internal/filter"
	"cvd-cam-go/internal/imageio"
	"cvd-cam-go/internal/ingest"
	"cvd-cam-go/internal/processing"
	"cvd-cam-go/internal/server"
	"cvd-cam-go/internal/simulator"
	"cvd-cam-go/internal/types"
)

type metrics struct {
	rawMessages     atomic.Uint64
	frameMessages   atomic.Uint64
	metaMessages    atomic.Uint64
	framesProcessed atomic.Uint64
	framesRejected  atomic.Uint64
	framesBroadcast atomic.Uint64
	framesDropped   atomic.Uint64
	encodeErrors    atomic.Uint64
	processCount    atomic.Uint64
	processNanos    atomic.Uint64
}

func (m *metrics) snapshot() map[string]any {
	return map[string]any{
		"raw_messages_total":     m.rawMessages.Load(),
		"frame_messages_total":   m.frameMessages.Load(),
		"meta_messages_total":    m.metaMessages.Load(),
		"frames_processed_total": m.framesProcessed.Load(),
		"frames_rejected_total":  m.framesRejected.Load(),
		"frames_broadcast_total": m.framesBroadcast.Load(),
		"frames_dropped_total":   m.framesDropped.Load(),
		"encode_errors_total":    m.encodeErrors.Load(),
		"process_total":          m.processCount.Load(),
		"process_nanos_total":    m.processNanos.Load(),
	}
}

func main() {
	defaults := config.Default()
	var (
		configPath     = flag.String("config", "", "Optional TOML config file; explicit flags override it")
		port           = flag.Int("port", defaults.Port, "HTTP port for the web UI")
		endpoint       = flag.String("endpoint", defaults.Endpoint, "ZMQ endpoint of the capture process")
		workers        = flag.Int("workers", defaults.Workers, "Number of processing workers")
		debug          = flag.Bool("debug", defaults.Debug, "Run with simulated frames and verbose logging")
		debugFPS       = flag.Float64("debug-fps", defaults.DebugFPS, "Simulated frame rate")
		debugWidth     = flag.Int("debug-width", defaults.DebugWidth, "Simulated frame width")
		debugHeight    = flag.Int("debug-height", defaults.DebugHeight, "Simulated frame height")
		defaultFilter  = flag.String("filter", defaults.DefaultFilter, "Initial filter")
		jpegQuality    = flag.Int("jpeg-quality", defaults.JPEGQuality, "JPEG quality of frames sent to browsers")
		maxFrameBytes  = flag.Int64("max-frame-bytes", defaults.MaxFrameBytes, "Largest websocket frame accepted from a browser")
		ingestLogEvery = flag.Int("ingest-log-every", defaults.IngestLogEvery, "Log every Nth ingest error")
		ingestFallback = flag.Bool("ingest-fallback", defaults.IngestFallback, "Fall back to simulator when ingest fails")
		statsInterval  = flag.Duration("stats-interval", defaults.StatsInterval, "Interval between stats log lines")
	)
	flag.Parse()

	log := initLogger(*debug)

	cfg := defaults
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.WithError(err).Fatal("failed to load config")
		}
		cfg = loaded
	}
	explicit := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
	override := func(name string, apply func()) {
		if *configPath == "" || explicit[name] {
			apply()
		}
	}
	override("port", func() { cfg.Port = *port })
	override("endpoint", func() { cfg.Endpoint = *endpoint })
	override("workers", func() { cfg.Workers = *workers })
	override("debug", func() { cfg.Debug = *debug })
	override("debug-fps", func() { cfg.DebugFPS = *debugFPS })
	override("debug-width", func() { cfg.DebugWidth = *debugWidth })
	override("debug-height", func() { cfg.DebugHeight = *debugHeight })
	override("filter", func() { cfg.DefaultFilter = *defaultFilter })
	override("jpeg-quality", func() { cfg.JPEGQuality = *jpegQuality })
	override("max-frame-bytes", func() { cfg.MaxFrameBytes = *maxFrameBytes })
	override("ingest-log-every", func() { cfg.IngestLogEvery = *ingestLogEvery })
	override("ingest-fallback", func() { cfg.IngestFallback = *ingestFallback })
	override("stats-interval", func() { cfg.StatsInterval = *statsInterval })
	if cfg.Debug && !*debug {
		log.SetLevel(logrus.DebugLevel)
	}

	dispatcher := filter.NewDispatcher()
	if err := cfg.Validate(dispatcher.Has); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The stream selection belongs to the shell; workers read it fresh for
	// every frame and pass it to the dispatcher explicitly.
	var selectionMu sync.RWMutex
	streamFilter := cfg.DefaultFilter
	getSelection := func() string {
		selectionMu.RLock()
		defer selectionMu.RUnlock()
		return streamFilter
	}
	setSelection := func(name string) error {
		if !dispatcher.Has(name) {
			return &filter.UnknownFilterError{Name: name}
		}
		selectionMu.Lock()
		streamFilter = name
		selectionMu.Unlock()
		log.WithField("filter", name).Info("stream filter changed")
		return nil
	}

	source := "zmq"
	var rawMessages <-chan types.RawMessage
	if cfg.Debug {
		source = "simulator"
		rawMessages = simulator.Stream(ctx, cfg.DebugWidth, cfg.DebugHeight, cfg.DebugFPS)
	} else {
		out := make(chan types.RawMessage, 16)
		rawMessages = out
		go func() {
			defer close(out)
			var ingestCh <-chan types.RawMessage
			var ingestCancel context.CancelFunc
			startIngest := func() {
				if ingestCancel != nil {
					ingestCancel()
				}
				ingestCtx, cancel := context.WithCancel(ctx)
				ingestCancel = cancel
				frames, err := ingest.Stream(ingestCtx, cfg.Endpoint, cfg.IngestLogEvery, log)
				if err != nil {
					if !cfg.IngestFallback {
						log.WithError(err).Fatal("failed to start ingest")
					}
					log.WithError(err).Warn("failed to start ingest; falling back to simulator")
					ingestCh = simulator.Stream(ingestCtx, cfg.DebugWidth, cfg.DebugHeight, cfg.DebugFPS)
					return
				}
				ingestCh = frames
			}
			startIngest()
			for {
				select {
				case <-ctx.Done():
					if ingestCancel != nil {
						ingestCancel()
					}
					return
				case msg, ok := <-ingestCh:
					if !ok {
						if ctx.Err() != nil {
							return
						}
						startIngest()
						continue
					}
					select {
					case <-ctx.Done():
						return
					case out <- msg:
					}
				}
			}
		}()
	}

	log.WithFields(logrus.Fields{
		"port":   cfg.Port,
		"source": source,
		"filter": cfg.DefaultFilter,
	}).Infof("Starting web UI at http://localhost:%d", cfg.Port)

	var m metrics
	stats := processing.NewStats()
	incoming := make(chan types.RawFrame, 16)
	uiMessages := make(chan any, 16)
	var statusMu sync.Mutex
	status := map[string]any{
		"source":      source,
		"stream":      "idle",
		"last_frame":  "",
		"last_ingest": "",
	}

	go func() {
		defer close(incoming)
		for msg := range rawMessages {
			m.rawMessages.Add(1)
			statusMu.Lock()
			status["last_ingest"] = time.Now().Format(time.RFC3339)
			statusMu.Unlock()
			if msg.Type != "frame" {
				m.metaMessages.Add(1)
				log.WithFields(logrus.Fields(msg.Meta)).WithField("type", msg.Type).Info("capture metadata")
				continue
			}
			m.frameMessages.Add(1)
			select {
			case <-ctx.Done():
				return
			case incoming <- msg.Image:
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go func() {
			defer wg.Done()
			for raw := range incoming {
				selection := getSelection()
				start := time.Now()
				out, err := processing.ProcessRawFrame(dispatcher, selection, raw)
				elapsed := time.Since(start)
				m.processCount.Add(1)
				m.processNanos.Add(uint64(elapsed.Nanoseconds()))
				if err != nil {
					m.framesRejected.Add(1)
					stats.AddError(out.Filter)
					log.WithError(err).WithFields(logrus.Fields{
						"frame_id": raw.FrameID,
						"filter":   out.Filter,
					}).Debug("frame rejected")
					continue
				}
				m.framesProcessed.Add(1)
				stats.Add(out.Filter, out.Image.Width*out.Image.Height, elapsed)
				statusMu.Lock()
				status["stream"] = "receiving"
				status["last_frame"] = time.Now().Format(time.RFC3339)
				statusMu.Unlock()

				encoded, err := imageio.EncodeJPEGBytes(out.Image, cfg.JPEGQuality)
				if err != nil {
					m.encodeErrors.Add(1)
					log.WithError(err).Warn("jpeg encode failed")
					continue
				}
				select {
				case uiMessages <- encoded:
					m.framesBroadcast.Add(1)
				default:
					m.framesDropped.Add(1)
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(uiMessages)
	}()

	go func() {
		ticker := time.NewTicker(cfg.StatsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snapshot := m.snapshot()
				decodeCount, _ := ingest.DecodeTiming()
				log.WithFields(logrus.Fields{
					"raw":             snapshot["raw_messages_total"],
					"frames":          snapshot["frame_messages_total"],
					"processed":       snapshot["frames_processed_total"],
					"dropped":         snapshot["frames_dropped_total"],
					"decoded":         decodeCount,
					"decode_failures": ingest.DecodeFailures(),
					"filter":          getSelection(),
				}).Info("pipeline stats")
			}
		}
	}()

	statusFn := func() map[string]any {
		statusMu.Lock()
		defer statusMu.Unlock()
		payload := map[string]any{}
		for k, v := range status {
			payload[k] = v
		}
		payload["stream_filter"] = getSelection()
		metricsPayload := m.snapshot()
		metricsPayload["ingest_decode_failures_total"] = ingest.DecodeFailures()
		decodeCount, decodeNanos := ingest.DecodeTiming()
		metricsPayload["ingest_decode_total"] = decodeCount
		metricsPayload["ingest_decode_nanos_total"] = decodeNanos
		payload["metrics"] = metricsPayload
		return payload
	}

	srv := server.New(cfg, dispatcher, stats, server.Hooks{
		Status:    statusFn,
		Selection: getSelection,
		Select:    setSelection,
		Source:    source,
	}, log)
	if err := srv.Run(ctx, uiMessages); err != nil {
		log.WithError(err).Error("server stopped")
	}
	log.Info("shutting down")
}

func initLogger(debug bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if debug {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
		return logger
	}
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return logger
}
