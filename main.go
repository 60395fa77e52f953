package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/CaitMS/Web-Exploration-Engine/config"
	"github.com/CaitMS/Web-Exploration-Engine/internal/aws_s3"
	"github.com/CaitMS/Web-Exploration-Engine/internal/broker"
	"github.com/CaitMS/Web-Exploration-Engine/internal/browser"
	cacheClient "github.com/CaitMS/Web-Exploration-Engine/internal/cache"
	"github.com/CaitMS/Web-Exploration-Engine/internal/dispatcher"
	"github.com/CaitMS/Web-Exploration-Engine/internal/extractor"
	"github.com/CaitMS/Web-Exploration-Engine/internal/metrics"
	"github.com/CaitMS/Web-Exploration-Engine/internal/model"
	"github.com/CaitMS/Web-Exploration-Engine/internal/persistence"
	"github.com/CaitMS/Web-Exploration-Engine/internal/pipeline"
	"github.com/CaitMS/Web-Exploration-Engine/internal/proxy"
	"github.com/CaitMS/Web-Exploration-Engine/internal/server"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/lmittmann/tint"
)

var (
	cfg     *config.Config
	log     *slog.Logger
	db      *sql.DB
	reports aws_s3.ReportStorage
	cache   cacheClient.JobStore
	jobRepo persistence.OutcomeStorage
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg = config.MustLoad()
	log = setupLogger()
	metrics.Init()
	if cfg.DbSettings.Enabled {
		db = setupDatabase()
		defer closeDatabase()
		jobRepo = persistence.NewJobRepository(db, log)
	}
	if cfg.S3Settings.Enabled {
		reports = aws_s3.NewS3BucketClient(cfg.S3Settings, log)
	}
	cache = cacheClient.NewJobStore(cfg.CacheSettings, log)
	defer cache.Close()

	proxies := proxy.NewPool(cfg.ProxySettings)
	browsers := browser.NewChromeManager(cfg.BrowserSettings, proxies, log)
	orchestrator := pipeline.NewOrchestrator(extractor.NewSet(cfg.ExtractorSettings, log), browsers, log)
	owner := uuid.NewString()
	log.Info("starting application on port "+cfg.Port, slog.String("service", cfg.ServiceName), slog.String("env", cfg.Env),
		slog.String("owner", owner))

	deliveryChan := make(chan *broker.Delivery, cfg.WorkerSettings.QueueSize)
	eventChan := make(chan *model.JobEvent, cfg.WorkerSettings.QueueSize)
	panicChan := make(chan struct{}, cfg.WorkerSettings.MaxWorkers)

	kafkaWg := &sync.WaitGroup{}
	consumer := broker.NewKafkaConsumer(deliveryChan, cfg.KafkaSettings.Consumer, log, kafkaWg)
	kafkaWg.Add(1)
	go consumer.Run(ctx)

	producerWg := &sync.WaitGroup{}
	producerWg.Add(1)
	go broker.NewKafkaProducer(eventChan, cfg.KafkaSettings.Producer, log, producerWg).Run()

	dispatch := &dispatcher.Dispatcher{
		Store:    cache,
		Pipeline: orchestrator,
		Reports:  reports,
		Outcomes: jobRepo,
		Events:   eventChan,
		Cfg:      cfg.WorkerSettings,
		Version:  cfg.Version,
		Owner:    owner,
		Log:      log,
	}
	workerWg := &sync.WaitGroup{}
	dispatchWorker := &dispatcher.Worker{
		InputChan:  deliveryChan,
		PanicChan:  panicChan,
		Dispatcher: dispatch,
		Log:        log,
		Wg:         workerWg,
	}
	// Jobs keep running after the shutdown signal so in-flight work reaches a terminal state.
	jobCtx := context.Background()
	for i := 0; i < cfg.WorkerSettings.MaxWorkers; i++ {
		workerWg.Add(1)
		go dispatchWorker.Run(jobCtx)
	}
	// Restart workers if they panic.
	go func() {
		for range panicChan {
			workerWg.Add(1)
			go dispatchWorker.Run(jobCtx)
			time.Sleep(cfg.WorkerSettings.RestartWait) // avoid polluting logs if something unrecoverable happened
		}
	}()

	publisher := broker.NewTaskPublisher(cfg.KafkaSettings.Producer, log)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.NewServer(cache, publisher, log).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed.", slog.String("err", err.Error()))
			stop()
		}
	}()

	// Graceful shutdown.
	// 1. Stop the HTTP server and the Kafka consumer. The consumer closes deliveryChan
	// 2. Wait till all Workers processed all deliveries. Close eventChan
	// 3. Wait till Producer writes all events to kafka
	// 4. Close the reader, the publisher, the database and the job store
	<-ctx.Done()
	log.Info("stopping server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop http server.", slog.String("err", err.Error()))
	}
	kafkaWg.Wait()
	workerWg.Wait()
	close(eventChan)
	log.Info("close eventChan.")
	close(panicChan)
	log.Info("close panicChan.")
	producerWg.Wait()
	consumer.Close()
	publisher.Close()
}

func setupLogger() *slog.Logger {
	resolvedLogLevel := func() slog.Level {
		envLogLevel := strings.ToLower(cfg.LogLevel)
		switch envLogLevel {
		case "info":
			return slog.LevelInfo
		case "error":
			return slog.LevelError
		default:
			return slog.LevelDebug
		}
	}

	replaceAttrs := func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == slog.SourceKey {
			source := a.Value.Any().(*slog.Source)
			source.File = filepath.Base(source.File)
		}
		return a
	}

	var logger *slog.Logger
	if strings.ToLower(cfg.LogType) == "json" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			AddSource:   true,
			Level:       resolvedLogLevel(),
			ReplaceAttr: replaceAttrs}))
	} else {
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			AddSource:   true,
			Level:       resolvedLogLevel(),
			ReplaceAttr: replaceAttrs,
			NoColor:     false}))
	}

	slog.SetDefault(logger)
	logger.Debug("debug messages are enabled.")

	return logger
}

func setupDatabase() *sql.DB {
	log.Info("connecting to the database...")
	sqlCfg := mysql.Config{
		User:                 cfg.DbSettings.User,
		Passwd:               cfg.DbSettings.Password,
		Net:                  "tcp",
		Addr:                 fmt.Sprintf("%s:%s", cfg.DbSettings.Host, cfg.DbSettings.Port),
		DBName:               cfg.DbSettings.Name,
		AllowNativePasswords: true,
		ParseTime:            true,
	}
	database, err := sql.Open("mysql", sqlCfg.FormatDSN())
	if err != nil {
		log.Error("failed to establish database connection.", slog.String("err", err.Error()))
		os.Exit(1)
	}
	database.SetConnMaxLifetime(cfg.DbSettings.ConnMaxLifetime)
	database.SetMaxOpenConns(cfg.DbSettings.MaxOpenConns)
	database.SetMaxIdleConns(cfg.DbSettings.MaxIdleConns)

	maxRetry := 6
	for i := 1; i <= maxRetry; i++ {
		log.Info("ping the database.", slog.String("attempt", fmt.Sprintf("%d/%d", i, maxRetry)))
		pingErr := database.Ping()
		if pingErr != nil {
			log.Error("not responding.", slog.String("err", pingErr.Error()))
			if i == maxRetry {
				log.Error("failed to establish database connection.")
				os.Exit(1)
			}
			log.Info(fmt.Sprintf("wait %d seconds", 5*i))
			time.Sleep(time.Duration(5*i) * time.Second)
		} else {
			break
		}
	}
	log.Info("connected to the database!")

	return database
}

func closeDatabase() {
	log.Info("closing database connection.")
	err := db.Close()
	if err != nil {
		log.Error("failed to close database connection.", slog.String("err", err.Error()))
	}
}
