package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/app"
	"github.com/vladislavdragonenkov/shopcore/internal/version"
)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(level log.Level) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(level)
}

func main() {
	showVersion := flag.Bool("version", false, "print build information and exit")
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String())
		return
	}

	setupLogger(log.InfoLevel)

	// Локальный .env не обязателен; переменные окружения процесса имеют приоритет.
	_ = godotenv.Load()

	cfg, err := app.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("некорректная конфигурация")
	}
	setupLogger(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(fields(cfg)).Info("запускаем shop-engine")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("shop-engine остановлен")
}

func fields(cfg app.Config) log.Fields {
	return log.Fields{
		"version":      version.GetVersion(),
		"commit":       version.GetCommit(),
		"build_date":   version.GetDate(),
		"grpc_addr":    cfg.GRPCAddr,
		"http_addr":    cfg.MetricsAddr,
		"storage":      cfg.StorageDriver,
		"notification": cfg.NotificationTransport,
		"kafka":        len(cfg.KafkaBrokers) > 0,
	}
}
