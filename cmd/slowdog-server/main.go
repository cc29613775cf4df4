package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edirooss/slowdog/internal/config"
	"github.com/edirooss/slowdog/internal/http/handler"
	mw "github.com/edirooss/slowdog/internal/http/middleware"
	"github.com/edirooss/slowdog/internal/infrastructure/timer"
	"github.com/edirooss/slowdog/internal/redis"
	"github.com/edirooss/slowdog/internal/sink"
	"github.com/edirooss/slowdog/internal/watchdog"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var configPath = flag.String("config", "slowdog-server.yaml", "path to the YAML config file")

func init() {
	// Handle version display
	handleVersion()
}

func main() {
	// Read env
	isDev := os.Getenv("ENV") == "dev"

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Create Zap logger
	log := buildLogger()
	defer log.Sync()
	log = log.Named("main")

	// Create Gin router
	if !isDev {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = zap.NewStdLog(log.Named("gin")).Writer() // Configure Gin's logger to use Zap
	r := gin.New()

	// Watchdog and its sinks
	tm := timer.New(log, timer.Options{Workers: cfg.Workers})
	sinks, store := buildSinks(log, cfg)
	wd := watchdog.New(log, watchdog.Options{
		Enabled:       cfg.IsEnabled(),
		Interval:      cfg.Interval(),
		IncludeLocals: cfg.IncludeLocals,
		Exempt:        cfg.ExemptNames,
	}, tm, sinks...)

	// Apply Gin middlewares
	{
		r.Use(gin.Recovery()) // Recovery first (outermost)
		r.Use(mw.RequestID()) // Attach request ID for tracing; early in the chain so reports carry it

		if isDev { // Enable CORS for local dev
			r.Use(cors.New(cors.Config{
				AllowOrigins:  []string{"http://localhost:5173", "http://localhost:3000", "http://127.0.0.1:3000"},
				AllowMethods:  []string{"GET", "OPTIONS"},
				AllowHeaders:  []string{"X-Request-ID", "Content-Type"},
				ExposeHeaders: []string{"X-Request-ID", "X-Total-Count"},
				MaxAge:        12 * time.Hour,
			}))
		} else { // Behind Nginx + TLS
			r.SetTrustedProxies([]string{"127.0.0.1"})
			r.Use(secure.New(secure.Config{
				SSLProxyHeaders: map[string]string{
					"X-Forwarded-Proto": "https",
				},
			}))
		}

		r.Use(accessLog(log.Named("access")))
		r.Use(mw.Watchdog(wd)) // Innermost, so it watches the handler itself
	}

	// Register route handlers
	{
		r.GET("/api/ping", handler.Ping)

		reportshndlr := handler.NewReportsHandler(log, store)
		r.GET("/api/watchdog/reports", reportshndlr.List)
		r.GET("/api/watchdog/reports/:id", reportshndlr.Get)

		if isDev {
			r.GET("/api/debug/sleep", handler.NewDebugHandler(log).Sleep)
		}
	}

	httpsrv := &http.Server{
		Addr:              cfg.ListenAddr + ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 2 * time.Second,  // kills header-drip Slowloris
		ReadTimeout:       10 * time.Second, // full request read (incl. body)
		WriteTimeout:      cfg.Interval() + 5*time.Minute,
		IdleTimeout:       60 * time.Second, // keep-alive cap
		MaxHeaderBytes:    1 << 20,          // 1MB cap
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpsrv.Shutdown(shutdownCtx); err != nil {
			log.Warn("graceful shutdown failed", zap.Error(err))
		}
	}()

	log.Info("running HTTP server",
		zap.String("addr", httpsrv.Addr),
		zap.Bool("watchdog", wd.Enabled()),
		zap.Duration("interval", cfg.Interval()),
	)
	if err := httpsrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server failed", zap.Error(err))
	}
	tm.Stop()
	log.Info("server closed")
}

// handleVersion prints build metadata and exits when -v/--version is provided.
func handleVersion() {
	v := flag.Bool("v", false, "print version and exit")
	flag.BoolVar(v, "version", false, "print version and exit")
	flag.Parse()

	if *v {
		fmt.Printf("slowdog %s (commit %s, built %s)\n", config.Version, config.GitCommit, config.BuildDate)
		os.Exit(0)
	}
}

// buildSinks returns the sinks cfg enables and the store the reports API
// reads from: the shared Redis list when configured, else the in-memory ring.
func buildSinks(log *zap.Logger, cfg *config.Config) ([]watchdog.Sink, handler.ReportStore) {
	reports := sink.NewMemorySink()
	sinks := []watchdog.Sink{reports}
	var store handler.ReportStore = reports

	if cfg.OutputDirectory != "" {
		sinks = append(sinks, sink.NewFileSink(log, afero.NewOsFs(), cfg.OutputDirectory))
	}
	if cfg.EmailEnabled() {
		sinks = append(sinks, sink.NewEmailSink(log, sink.EmailOptions{
			Addr:      cfg.SMTPAddress,
			Username:  cfg.SMTPUsername,
			Password:  cfg.SMTPPassword,
			From:      cfg.EmailFrom,
			To:        cfg.EmailRecipients(),
			PerMinute: cfg.EmailRatePerMinute,
		}))
	}
	if cfg.LoggerName != "" {
		sinks = append(sinks, sink.NewLogSink(log, cfg.LoggerName, cfg.Level()))
	}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(context.Background(), cfg.RedisAddr, cfg.RedisDB, log)
		repo := redis.NewReportRepository(log, rdb.Client, cfg.RedisKey, cfg.RedisMaxReports)
		sinks = append(sinks, sink.NewRedisSink(repo))
		store = sink.NewRedisReports(log, repo)
	}

	names := make([]string, 0, len(sinks))
	for _, s := range sinks {
		names = append(names, s.Name())
	}
	log.Info("report sinks configured", zap.Strings("sinks", names))
	return sinks, store
}

// accessLog is a Gin middleware that records HTTP request/response details with Zap after handling.
func accessLog(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		// errors.Join returns nil if there are none
		var errs []error
		for _, ge := range c.Errors {
			if ge.Err != nil {
				errs = append(errs, ge.Err)
			}
		}
		joinedErr := errors.Join(errs...)

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.String("request_id", mw.GetRequestID(c)),
			zap.String("client_ip", c.ClientIP()),
			zap.Duration("latency", latency),
		}
		if joinedErr != nil {
			fields = append(fields, zap.Error(joinedErr))
		}

		switch {
		case status >= 500:
			log.Error("request", fields...)
		case status >= 400:
			log.Warn("request", fields...)
		default:
			log.Debug("request", fields...)
		}
	}
}

// helpers

func buildLogger() *zap.Logger {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	logConfig.Level.SetLevel(zap.DebugLevel)
	return zap.Must(logConfig.Build())
}
