package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/guardbot/internal/adapters"
	"github.com/iamwavecut/guardbot/internal/adapters/classifier"
	"github.com/iamwavecut/guardbot/internal/adapters/classifier/gemini"
	"github.com/iamwavecut/guardbot/internal/adapters/classifier/local"
	"github.com/iamwavecut/guardbot/internal/adapters/classifier/openai"
	"github.com/iamwavecut/guardbot/internal/bot"
	"github.com/iamwavecut/guardbot/internal/config"
	"github.com/iamwavecut/guardbot/internal/db/sqlite"
	"github.com/iamwavecut/guardbot/internal/infra"
	"github.com/iamwavecut/guardbot/internal/infrastructure/telegram"
	"github.com/iamwavecut/guardbot/internal/lifecycle"
	"github.com/iamwavecut/guardbot/internal/media"
	"github.com/iamwavecut/guardbot/internal/moderation"
	"github.com/iamwavecut/guardbot/internal/observability"
)

func main() {
	log.SetFormatter(&config.GbFormatter{})
	log.SetOutput(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatalln("cant load config")
	}
	log.SetLevel(log.Level(cfg.LogLevel))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := observability.Init(ctx, cfg.MetricsAddr); err != nil {
		log.WithError(err).Fatalln("cant initialize observability")
	}

	botAPI, err := api.NewBotAPI(cfg.TelegramAPIToken)
	if err != nil {
		log.WithError(err).Errorln("cant initialize bot api")
		time.Sleep(1 * time.Second)
		log.Fatalln("exiting")
	}
	if log.Level(cfg.LogLevel) == log.TraceLevel {
		botAPI.Debug = true
	}
	defer botAPI.StopReceivingUpdates()

	dbClient := sqlite.NewSQLiteClient("guardbot.db")
	defer func() {
		if err := dbClient.Close(); err != nil {
			log.WithError(err).Errorln("cant close db")
		}
	}()

	service := bot.NewService(botAPI, dbClient)
	ops := telegram.NewOperations(botAPI)

	contentClassifier := newClassifier(cfg)

	screen := moderation.NewKeywordScreen(nil, nil)
	inspector := moderation.NewInspector(screen, contentClassifier, ops, media.NewFFmpegExtractor(), moderation.InspectorConfig{
		MinClassifiableTextLen: cfg.Moderation.MinClassifiableTextLen,
		MaxVideoFrames:         cfg.Moderation.MaxVideoFrames,
	})

	policyConfig := moderation.DefaultPolicyConfig()
	policyConfig.GracePoints = cfg.Moderation.GracePoints
	policy := moderation.NewPolicyEngine(dbClient, policyConfig)

	reports := moderation.NewReportService(dbClient, ops)
	summary := moderation.NewDailySummary(dbClient, ops, cfg.Reports.SummaryInterval, cfg.Reports.SummaryWindow)

	enforcer := moderation.NewEnforcer(ops, dbClient, reports, moderation.EnforcerConfig{
		OwnerID:      cfg.Moderation.OwnerID,
		HighSeverity: cfg.Moderation.HighSeverity,
	})

	moderator := moderation.NewModerator(
		moderation.NewProcessingGuard(),
		inspector,
		policy,
		enforcer,
		dbClient,
		moderation.ModeratorConfig{
			HighSeverity:    cfg.Moderation.HighSeverity,
			DefaultLanguage: cfg.DefaultLanguage,
		},
	)
	admin := moderation.NewAdminService(dbClient)

	runtime := lifecycle.NewRuntime(summary)
	if err := runtime.Start(ctx); err != nil {
		log.WithError(err).Fatalln("cant start components")
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if err := runtime.Stop(stopCtx); err != nil {
			log.WithError(err).Errorln("cant stop components")
		}
	}()

	updateProcessor := bot.NewUpdateProcessor(service, moderator, admin, reports, ops, cfg.Moderation.OwnerID)

	updateConfig := api.NewUpdate(0)
	updateConfig.Timeout = 60
	updateChan, errorChan := bot.GetUpdatesChans(ctx, botAPI, updateConfig)

	infra.GoRecoverable(-1, "process_updates", func() {
		for {
			select {
			case err := <-errorChan:
				log.WithError(err).Fatalln("bot api get updates error")
			case update := <-updateChan:
				go func() {
					if err := updateProcessor.Process(ctx, &update); err != nil {
						log.WithError(err).Errorln("cant process update")
					}
				}()
			case <-ctx.Done():
				return
			}
		}
	})

	<-ctx.Done()
	log.WithError(ctx.Err()).Errorln("no more updates")
}

func newClassifier(cfg config.Config) adapters.ContentClassifier {
	entry := log.WithField("object", "ContentClassifier")

	var backend classifier.Backend
	switch cfg.Classifier.Provider {
	case "gemini":
		backend = gemini.NewGemini(cfg.Classifier.APIKey, cfg.Classifier.Model, entry)
	case "local":
		var err error
		backend, err = local.NewLocal(cfg.Classifier.ModelsDir, cfg.Classifier.Model, entry)
		if err != nil {
			log.WithError(err).Fatalln("cant load local classifier")
		}
	default:
		backend = openai.NewOpenAI(cfg.Classifier.APIKey, cfg.Classifier.Model, cfg.Classifier.BaseURL, entry)
	}

	resilientConfig := classifier.DefaultResilientConfig()
	resilientConfig.Timeout = cfg.Classifier.Timeout
	resilientConfig.MaxRetries = cfg.Classifier.MaxRetries
	return classifier.NewResilient(backend, resilientConfig, entry)
}
