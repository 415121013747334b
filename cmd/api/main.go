package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/geotone-app/geotone/internal/auth"
	"github.com/geotone-app/geotone/internal/callback"
	"github.com/geotone-app/geotone/internal/catalog"
	"github.com/geotone-app/geotone/internal/config"
	"github.com/geotone-app/geotone/internal/database"
	"github.com/geotone-app/geotone/internal/handlers"
	"github.com/geotone-app/geotone/internal/kafka"
	"github.com/geotone-app/geotone/internal/llm"
	"github.com/geotone-app/geotone/internal/orchestrator"
	"github.com/geotone-app/geotone/internal/progress"
	"github.com/geotone-app/geotone/internal/prompt"
	"github.com/geotone-app/geotone/internal/provider"
	"github.com/geotone-app/geotone/internal/services"
	"github.com/geotone-app/geotone/internal/staging"
	"github.com/geotone-app/geotone/internal/storage"
	"github.com/geotone-app/geotone/internal/synth"
	"github.com/geotone-app/geotone/migrations"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().Msg("Starting GeoTone API")

	cfg := config.Load()

	var genRepo *database.GenerationRepository
	if cfg.DatabaseURL != "" {
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()

		if err := migrations.Run(db.DB); err != nil {
			log.Fatal().Err(err).Msg("Failed to run migrations")
		}
		genRepo = database.NewGenerationRepository(db)
	} else {
		log.Info().Msg("DATABASE_URL not set, generation history is in-memory only")
	}

	var kafkaProducer *kafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		kafkaProducer = kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicEvents)
		defer kafkaProducer.Close()
	}

	var storageClient *storage.Client
	if cfg.S3Bucket != "" {
		storageClient, err = storage.NewClient(
			cfg.S3Endpoint, cfg.S3Region, cfg.S3Bucket,
			cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3UseSSL, cfg.S3PublicURL,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize storage client")
		}
	}

	cat, err := catalog.Load(cfg.DatasetPath)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.DatasetPath).Msg("Landmark catalog unavailable")
		cat = nil
	}

	llmClient := llm.NewClient(cfg.GeminiAPIKey, cfg.GeminiModelText, cfg.GeminiModelTrivia, cfg.GeminiAPIEndpoint)
	enricher := prompt.NewEnricher(llmClient, cfg.MaxPromptLen)

	area, err := staging.NewArea(cfg.StagingDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.StagingDir).Msg("Failed to create staging area")
	}

	engine := synth.NewEngine()
	local := provider.NewLocal(engine, cfg.ChunkSec, cfg.OutputDir)

	var chain []provider.Provider
	if cfg.BridgeURL != "" {
		chain = append(chain, provider.NewBridge(cfg.BridgeURL, cfg.ProviderTimeout, cfg.OutputDir))
	}
	if cfg.RemoteEndpoint != "" {
		chain = append(chain, provider.NewRemote(provider.RemoteConfig{
			Endpoint:    cfg.RemoteEndpoint,
			APIKey:      cfg.RemoteAPIKey,
			CallbackURL: cfg.CallbackURL,
			PromptLimit: cfg.RemotePromptLimit,
			WaitWindow:  cfg.RemoteWaitWindow,
			PollEvery:   cfg.RemotePollEvery,
			HTTPTimeout: cfg.ProviderTimeout,
			OutDir:      cfg.OutputDir,
		}, area))
	}
	chain = append(chain, local)
	orch := orchestrator.New(chain, local, cfg.MaxDurationSec)

	broker := progress.NewBroker()
	genService := services.NewGenerationService(
		enricher, orch, llmClient, cat, genRepo,
		storageClient, kafkaProducer, broker, cfg.MaxDurationSec,
	)

	receiver := callback.NewReceiver(area, cfg.CallbackToken, cfg.ProviderTimeout)
	h := handlers.NewHandler(genService, cat, broker)
	authService := auth.NewService(cfg.APIKeyHash)

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods("GET")
	r.HandleFunc("/suno_callback", receiver.Handle).Methods("POST")

	api := r.PathPrefix("/v1").Subrouter()
	api.Use(authService.Middleware)
	api.HandleFunc("/soundscapes", h.CreateSoundscape).Methods("POST")
	api.HandleFunc("/soundscapes", h.ListSoundscapes).Methods("GET")
	api.HandleFunc("/soundscapes/{id}", h.GetSoundscape).Methods("GET")
	api.HandleFunc("/soundscapes/{id}/audio", h.GetSoundscapeAudio).Methods("GET")
	api.HandleFunc("/landmarks", h.ListLandmarks).Methods("GET")
	api.HandleFunc("/generations/{id}/events", h.GenerationEvents).Methods("GET")

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
		// No WriteTimeout: generation requests block until the provider
		// chain resolves, which can take the full remote wait window.
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down API...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}
	log.Info().Msg("API exited")
}
