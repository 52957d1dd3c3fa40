package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/hirevox/hirevox/config"
	"github.com/hirevox/hirevox/internal/api/handlers"
	"github.com/hirevox/hirevox/internal/api/middleware"
	"github.com/hirevox/hirevox/internal/api/routes"
	"github.com/hirevox/hirevox/internal/cache"
	"github.com/hirevox/hirevox/internal/logger"
	"github.com/hirevox/hirevox/internal/media"
	"github.com/hirevox/hirevox/internal/models"
	"github.com/hirevox/hirevox/internal/providers/avatar"
	"github.com/hirevox/hirevox/internal/providers/llm"
	"github.com/hirevox/hirevox/internal/providers/stt"
	"github.com/hirevox/hirevox/internal/providers/tts"
	"github.com/hirevox/hirevox/internal/queue"
	mongorepo "github.com/hirevox/hirevox/internal/repositories/mongo"
	pgrepo "github.com/hirevox/hirevox/internal/repositories/postgres"
	"github.com/hirevox/hirevox/internal/services"
	"github.com/hirevox/hirevox/internal/storage"
	"github.com/hirevox/hirevox/internal/workers"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	l := logger.New()

	// Init PostgreSQL (source of truth for sessions/questions)
	if err := config.InitPostgres(); err != nil {
		log.Fatalf("PostgreSQL init error: %v", err)
	}
	if err := config.PostgresDB.AutoMigrate(&models.InterviewSession{}, &models.InterviewQuestion{}); err != nil {
		log.Fatalf("PostgreSQL migrate error: %v", err)
	}
	l.Info("PostgreSQL connected")

	// Init Redis (asynq backend, cache, status pub/sub)
	if err := config.InitRedis(); err != nil {
		log.Fatalf("Redis init error: %v", err)
	}
	l.Info("Redis connected")

	// Init MongoDB (turn-log archive; optional)
	var turnRepo mongorepo.TurnRepository
	if err := config.InitMongo(); err != nil {
		l.WithError(err).Warn("MongoDB unavailable, turn logs disabled")
	} else {
		if err := config.EnsureMongoIndexes(); err != nil {
			log.Fatalf("MongoDB index error: %v", err)
		}
		turnRepo = mongorepo.NewTurnRepo(config.MongoDatabase())
		l.Info("MongoDB connected")
	}

	sessionRepo := pgrepo.NewSessionRepo(config.PostgresDB)
	questionRepo := pgrepo.NewQuestionRepo(config.PostgresDB)

	// Media storage: GCS when a bucket is configured, local dir otherwise.
	var uploader storage.Uploader
	if bucket := os.Getenv("GCS_BUCKET"); bucket != "" {
		gcs, err := storage.NewGCSUploader(ctx, bucket)
		if err != nil {
			log.Fatalf("GCS init error: %v", err)
		}
		uploader = gcs
	} else {
		local, err := storage.NewLocalUploader(envOr("MEDIA_DIR", "media"), os.Getenv("MEDIA_BASE_URL"))
		if err != nil {
			log.Fatalf("local media dir error: %v", err)
		}
		uploader = local
		l.Warn("GCS_BUCKET not set, media goes to local storage")
	}

	// Speech chain: real backend first when configured, simulator always
	// last so question media can be produced with no vendor at all.
	var speechChain []tts.Provider
	if os.Getenv("TTS_BACKEND") == "google" {
		g, err := tts.NewGoogleTTS(ctx, uploader, os.Getenv("TTS_LANGUAGE"))
		if err != nil {
			l.WithError(err).Warn("Google TTS unavailable")
		} else {
			speechChain = append(speechChain, g)
		}
	}
	sim, err := tts.NewSimTTS(os.Getenv("TTS_SIM_DIR"))
	if err != nil {
		log.Fatalf("sim TTS init error: %v", err)
	}
	speechChain = append(speechChain, sim)

	// Video chain: rendering service first, static fallback clip last.
	var videoChain []avatar.Renderer
	if endpoint := os.Getenv("AVATAR_RENDER_URL"); endpoint != "" {
		videoChain = append(videoChain, avatar.NewHTTPRenderer(endpoint, os.Getenv("AVATAR_RENDER_KEY")))
	}
	videoChain = append(videoChain, &avatar.StaticRenderer{URL: os.Getenv("FALLBACK_VIDEO_URL")})

	synth := media.NewSynthesizer(speechChain, videoChain, l)
	pipeline := media.NewPipeline(sessionRepo, questionRepo, synth, l)

	// Media job queue with inline fallback.
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: config.RedisAddr()})
	defer asynqClient.Close()

	dispatcher := queue.NewDispatcher(
		queue.Mode(envOr("MEDIA_QUEUE_MODE", string(queue.ModeQueue))),
		asynqClient,
		func(ctx context.Context, sessionID string, missingOnly bool) error {
			_, err := pipeline.ProcessSession(ctx, sessionID, missingOnly)
			return err
		},
		l,
	)

	mediaWorker := workers.NewMediaWorker(pipeline, l)
	asynqSrv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: config.RedisAddr()},
		asynq.Config{
			Concurrency: 5,
			Queues: map[string]int{
				"media":   2,
				"default": 1,
			},
			RetryDelayFunc: queue.RetryDelay,
		},
	)
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeGenerateMedia, mediaWorker.HandleGenerateMediaTask)
	go func() {
		if err := asynqSrv.Run(mux); err != nil {
			l.WithError(err).Error("asynq server stopped")
		}
	}()

	// Question/reply generation.
	var generator llm.Provider
	if project := os.Getenv("VERTEX_PROJECT_ID"); project != "" {
		g, err := llm.NewVertexGemini(ctx, project, envOr("VERTEX_LOCATION", "us-central1"), os.Getenv("VERTEX_MODEL"))
		if err != nil {
			l.WithError(err).Warn("Vertex LLM unavailable, using fallback question set; voice turns disabled")
		} else {
			generator = g
			defer g.Close()
		}
	} else {
		l.Warn("VERTEX_PROJECT_ID not set, using fallback question set; voice turns disabled")
	}

	// Speech recognition.
	var recognizer stt.Provider
	if g, err := stt.NewGoogleSpeech(ctx, os.Getenv("STT_LANGUAGE")); err != nil {
		l.WithError(err).Warn("Google Speech unavailable, voice turns limited to text")
	} else {
		recognizer = g
		defer g.Close()
	}

	redisCache := cache.NewRedisCache(config.RedisClient)
	interviewSvc := services.NewInterviewService(sessionRepo, questionRepo, generator, dispatcher, redisCache, l)

	turnStore := services.NewTurnStore(30 * time.Minute)
	turnStore.StartSweeper(0)
	defer turnStore.Close()

	voiceSvc := services.NewVoiceService(
		turnStore,
		recognizer,
		generator,
		synth,
		interviewSvc,
		turnRepo,
		config.RedisClient,
		services.TTSMode(envOr("TTS_MODE", string(services.TTSModeClient))),
		l,
	)

	// Start Gin server
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(l))

	routes.RegisterRoutes(r, routes.Deps{
		Interview: handlers.NewInterviewHandler(interviewSvc),
		Voice:     handlers.NewVoiceHandler(voiceSvc, interviewSvc, turnRepo),
		WS:        handlers.NewWSHandler(voiceSvc, interviewSvc),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
