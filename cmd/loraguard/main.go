package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Lora-Technologies/LoraGuard/internal/api"
	"github.com/Lora-Technologies/LoraGuard/internal/appeals"
	"github.com/Lora-Technologies/LoraGuard/internal/classifier"
	"github.com/Lora-Technologies/LoraGuard/internal/config"
	"github.com/Lora-Technologies/LoraGuard/internal/db/sqlite"
	"github.com/Lora-Technologies/LoraGuard/internal/decay"
	"github.com/Lora-Technologies/LoraGuard/internal/escalation"
	"github.com/Lora-Technologies/LoraGuard/internal/filters"
	"github.com/Lora-Technologies/LoraGuard/internal/guard"
	"github.com/Lora-Technologies/LoraGuard/internal/infra"
	"github.com/Lora-Technologies/LoraGuard/internal/lifecycle"
	"github.com/Lora-Technologies/LoraGuard/internal/observability"
	"github.com/Lora-Technologies/LoraGuard/internal/punishments"
	"github.com/Lora-Technologies/LoraGuard/internal/reports"
)

func main() {
	log.SetFormatter(&config.LGFormatter{})
	log.SetOutput(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatalln("cant load config")
	}
	log.SetLevel(log.Level(cfg.LogLevel))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := sqlite.NewSQLiteClient(ctx, infra.GetWorkDir(), cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatalln("cant open store")
	}
	defer store.Close()

	muteIndex := punishments.NewMuteIndex(store)
	punisher := punishments.NewManager(store, muteIndex, punishments.NewLogNotifier())

	engine, err := escalation.NewEngine(store, punisher, cfg.Escalation)
	if err != nil {
		log.WithError(err).Fatalln("cant parse escalation rules")
	}

	pipeline := guard.NewService(
		cfg,
		classifier.NewClient(cfg.API, cfg.Breaker),
		classifier.NewResultCache(cfg.Cache),
		filters.NewManager(cfg.Filters),
		engine,
		punisher,
		guard.NewRegistry(),
	)

	appealService := appeals.NewService(store, punisher, cfg.Appeals)
	reportService := reports.NewService(store, guard.NewCooldowns(cfg.Reports.Cooldown))

	runtime := lifecycle.NewRuntime()
	runtime.Register("mute_index", muteIndex)
	runtime.Register("punishments", punisher)
	runtime.Register("decay", decay.NewTask(store, cfg.Decay))
	runtime.Register("metrics", observability.NewServer(cfg.MetricsAddr))
	runtime.Register("api", api.NewServer(cfg.ListenAddr, pipeline, punisher, appealService, reportService, store))

	if err := runtime.Start(ctx); err != nil {
		log.WithError(err).Fatalln("cant start runtime")
	}
	log.Infoln("loraguard is up")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Infoln("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := runtime.Stop(shutdownCtx); err != nil {
		log.WithError(err).Errorln("unclean shutdown")
	}
}
