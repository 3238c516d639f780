package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"net/url"
	"os"
	"reflect"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/aukilabs/stagekit/featureflag"
	stagehttp "github.com/aukilabs/stagekit/http"
	"github.com/aukilabs/stagekit/models"
	"github.com/aukilabs/stagekit/modules"
	"github.com/aukilabs/stagekit/modules/batch"
	"github.com/aukilabs/stagekit/modules/clip"
	"github.com/aukilabs/stagekit/modules/snap"
	"github.com/aukilabs/stagekit/modules/validate"
	"github.com/aukilabs/stagekit/smoketest"
	swebsocket "github.com/aukilabs/stagekit/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

var (
	// The stagekit version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "stagekit_info",
		Help:        "Stagekit information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string        `cli:""        env:"STAGEKIT_ADDR"                 help:"Listening address for editor connections."`
	AdminAddr          string        `cli:""        env:"STAGEKIT_ADMIN_ADDR"           help:"Admin listening address."`
	PublicEndpoint     string        `cli:""        env:"STAGEKIT_PUBLIC_ENDPOINT"      help:"The public endpoint where this server is reachable."`
	LogLevel           string        `cli:""        env:"STAGEKIT_LOG_LEVEL"            help:"Log level (debug|info|warning|error)."`
	LogIndent          bool          `cli:""        env:"STAGEKIT_LOG_INDENT"           help:"Indent logs."`
	AppKeys            []string      `cli:""        env:"STAGEKIT_APP_KEYS"             help:"Comma separated app keys allowed to connect. Empty allows every app."`
	ClientIdleTimeout  time.Duration `cli:",hidden" env:"STAGEKIT_CLIENT_IDLE_TIMEOUT"  help:"Time until an idle editor will be disconnected."`
	LogSummaryInterval time.Duration `cli:",hidden" env:"STAGEKIT_LOG_SUMMARY_INTERVAL" help:"The duration between each log summary by connection."`
	Snap               snapConfig    `cli:""        env:"-"                             help:"Snapping configuration."`
	Stage              stageConfig   `cli:""        env:"-"                             help:"Stage configuration."`
	Events             eventsConfig  `cli:",hidden" env:"-"                             help:"Event pusher configuration."`
	FeatureFlags       []string      `cli:",hidden" env:"STAGEKIT_FEATURE_FLAGS"        help:"Comma separated feature flags"`
	Version            bool          `cli:""        env:"-"                             help:"Show version."`
	Help               bool          `cli:""        env:"-"                             help:"Show help."`
}

type snapConfig struct {
	GridSize       float64 `cli:"" env:"STAGEKIT_SNAP_GRID_SIZE"        help:"The size of grid cells."`
	SnapToGrid     bool    `cli:"" env:"STAGEKIT_SNAP_TO_GRID"          help:"Snap to the grid before snapping to geometry."`
	Distance       float64 `cli:"" env:"STAGEKIT_SNAP_DISTANCE"         help:"The distance under which a point is snapped to geometry."`
	SnapToVertices bool    `cli:"" env:"STAGEKIT_SNAP_TO_VERTICES"      help:"Snap to vertices."`
	SnapToEdges    bool    `cli:"" env:"STAGEKIT_SNAP_TO_EDGES"         help:"Snap to edges."`
	SnapToFaces    bool    `cli:"" env:"STAGEKIT_SNAP_TO_FACES"         help:"Snap to faces."`
}

type stageConfig struct {
	DefaultClipWidth  float64 `cli:""        env:"STAGEKIT_STAGE_DEFAULT_CLIP_WIDTH"     help:"The clip width of stages opened without one."`
	AssetRoot         string  `cli:""        env:"STAGEKIT_STAGE_ASSET_ROOT"             help:"The directory where asset bundles are looked up. Empty skips missing asset checks."`
	MaxObjectsPerClip int     `cli:",hidden" env:"STAGEKIT_STAGE_MAX_OBJECTS_PER_CLIP"   help:"The number of objects above which a clip is reported."`
	MaxTriangles      int     `cli:",hidden" env:"STAGEKIT_STAGE_MAX_TRIANGLES"          help:"The number of triangles above which an object is reported."`
	MaxBodySize       int64   `cli:",hidden" env:"STAGEKIT_STAGE_MAX_BODY_SIZE"          help:"The maximum size of stage documents sent over HTTP."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"STAGEKIT_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed. Empty disables events."`
	FlushInterval time.Duration `cli:",hidden" env:"STAGEKIT_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"STAGEKIT_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"STAGEKIT_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	snapDefaults := snap.DefaultConfig()

	conf := config{
		Addr:               ":4000",
		AdminAddr:          ":18190",
		PublicEndpoint:     "http://localhost:4000",
		LogLevel:           logs.InfoLevel.String(),
		ClientIdleTimeout:  time.Minute * 5,
		LogSummaryInterval: time.Minute,
		Snap: snapConfig{
			GridSize:       snapDefaults.GridSize,
			SnapToGrid:     snapDefaults.SnapToGrid,
			Distance:       snapDefaults.SnapDistance,
			SnapToVertices: snapDefaults.SnapToVertices,
			SnapToEdges:    snapDefaults.SnapToEdges,
			SnapToFaces:    snapDefaults.SnapToFaces,
		},
		Stage: stageConfig{
			DefaultClipWidth:  models.DefaultClipWidth,
			MaxObjectsPerClip: 100,
			MaxTriangles:      1000,
			MaxBodySize:       8 << 20,
		},
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts the stagekit server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     metrics.HTTPTransport(http.DefaultTransport),
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "stagekit",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	featureFlags := featureflag.New(conf.FeatureFlags)
	if unknown := featureFlags.Unknown(); len(unknown) != 0 {
		logs.WithTag("feature_flags", unknown).
			Warn(errors.New("unknown feature flags"))
	}

	snapConf := snap.Config{
		GridSize:       conf.Snap.GridSize,
		SnapToGrid:     conf.Snap.SnapToGrid,
		SnapDistance:   conf.Snap.Distance,
		SnapToVertices: conf.Snap.SnapToVertices,
		SnapToEdges:    conf.Snap.SnapToEdges,
		SnapToFaces:    conf.Snap.SnapToFaces,
	}

	validation := validate.Options{
		MaxObjectsPerClip: conf.Stage.MaxObjectsPerClip,
		MaxTriangles:      conf.Stage.MaxTriangles,
	}
	if conf.Stage.AssetRoot != "" {
		validation.AssetExists = validate.DirAssetExists(conf.Stage.AssetRoot)
	}

	stages := stagehttp.StageHandler{
		Validation: validation,
		Snap: &snap.Module{
			Config:       snapConf,
			FeatureFlags: featureFlags,
		},
		FeatureFlags: featureFlags,
		MaxBodySize:  conf.Stage.MaxBodySize,
	}

	readinessCheck := func() bool {
		return ctx.Err() == nil
	}

	var service http.ServeMux
	service.Handle("/health", stagehttp.HandleWithCORS(http.HandlerFunc(stagehttp.HandleHealthCheck)))
	service.Handle("/ready", stagehttp.HandleWithCORS(http.HandlerFunc(stagehttp.HandleReadyCheck(readinessCheck))))
	service.Handle("/version", stagehttp.HandleWithCORS(http.HandlerFunc(stagehttp.HandleVersion(version))))
	service.Handle("/stages/validate", stagehttp.HandleWithCORS(http.HandlerFunc(
		stagehttp.VerifyAppKeyHandler(conf.AppKeys, stages.HandleValidate))))
	service.Handle("/stages/fix", stagehttp.HandleWithCORS(http.HandlerFunc(
		stagehttp.VerifyAppKeyHandler(conf.AppKeys, stages.HandleFix))))
	service.Handle("/snap", stagehttp.HandleWithCORS(http.HandlerFunc(
		stagehttp.VerifyAppKeyHandler(conf.AppKeys, stages.HandleSnap))))

	service.HandleFunc("/smoke-test", stagehttp.VerifyAppKeyHandler(conf.AppKeys, smoketest.HandleSmokeTest(ctx, smoketest.Options{
		Endpoint:  conf.PublicEndpoint,
		UserAgent: fmt.Sprintf("Stagekit %s", version),
		SendResult: func(ctx context.Context, res smoketest.Results) error {
			logs.WithTag("from_endpoint", res.FromEndpoint).
				WithTag("to_endpoint", res.ToEndpoint).
				WithTag("success", res.Success).
				WithTag("latency_ms", res.LatencyMilliSec).
				WithTag("error", res.Error).
				Info("smoke test done")
			return nil
		},
	})))

	sessions := models.SessionStore{}

	service.Handle("/", stagehttp.HandleWithCORS(websocket.Server{
		Handshake: stagehttp.VerifyAppKey(conf.AppKeys),
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			var rh swebsocket.Handler = &swebsocket.RealtimeHandler{
				ClientIdleTimeout: conf.ClientIdleTimeout,
				DefaultClipWidth:  conf.Stage.DefaultClipWidth,
				Sessions:          &sessions,
				Modules: []modules.Module{
					&clip.Module{},
					&snap.Module{
						Config:       snapConf,
						FeatureFlags: featureFlags,
					},
					&validate.Module{
						Options:      validation,
						FeatureFlags: featureFlags,
					},
					&batch.Module{
						GridSize: conf.Snap.GridSize,
					},
				},
				FeatureFlags: featureFlags,
			}
			h := swebsocket.HandlerWithLogs(rh, conf.LogSummaryInterval)
			h = swebsocket.HandlerWithMetrics(h, conf.PublicEndpoint)
			defer h.Close()

			swebsocket.Handle(ctx, conn, h)
		},
	}))

	service.Handle("/ping", websocket.Server{
		Handler: func(ws *websocket.Conn) {
			defer ws.Close()
			io.Copy(ws, ws)
		},
	})

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", stagehttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))
	admin.HandleFunc("/ready", stagehttp.HandleReadyCheck(readinessCheck))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("endpoint", conf.PublicEndpoint).
		WithTag("feature_flags", conf.FeatureFlags).
		Info("starting stagekit server")

	stagehttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
			stagehttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)
}

func validateConfig(conf config) error {
	if _, err := url.ParseRequestURI(conf.PublicEndpoint); err != nil {
		return errors.New("invalid public endpoint").Wrap(err)
	}

	if conf.Snap.GridSize <= 0 {
		return errors.New("snap grid size must be positive").
			WithTag("grid_size", conf.Snap.GridSize)
	}

	if conf.Snap.Distance < 0 {
		return errors.New("snap distance can't be negative").
			WithTag("snap_distance", conf.Snap.Distance)
	}

	if conf.Stage.DefaultClipWidth <= 0 {
		return errors.New("default clip width must be positive").
			WithTag("default_clip_width", conf.Stage.DefaultClipWidth)
	}

	return nil
}
