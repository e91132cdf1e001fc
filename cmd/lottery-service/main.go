// cmd/lottery-service/main.go
package main

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"lucky/internal/pkg/bootstrap"
	"lucky/internal/pkg/httpclient"
	"lucky/internal/pkg/logger"
	"lucky/internal/pkg/mq"
	"lucky/internal/pkg/redis"
	"lucky/internal/service/lottery/application"
	"lucky/internal/service/lottery/infrastructure"
	"lucky/internal/service/lottery/infrastructure/adapter"
	"lucky/internal/service/lottery/interfaces"
)

const serviceName = "lottery-service"

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	var cleanup []func()

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			cfg := bootstrap.GetCurrentConfig()

			var (
				db          *gorm.DB
				redisClient *redis.Client
			)
			// 数据库与缓存的初始化互不依赖，并行连起来
			g, _ := errgroup.WithContext(context.Background())
			g.Go(func() error {
				var err error
				db, err = infrastructure.NewDB(infrastructure.MySQLConfig{
					Addr:     cfg.Infra.MySQL.Addr,
					User:     cfg.Infra.MySQL.User,
					Password: cfg.Infra.MySQL.Password,
					Database: cfg.Infra.MySQL.Database,
				})
				return err
			})
			g.Go(func() error {
				var err error
				redisClient, err = redis.NewClient(strings.Join(cfg.Infra.Redis.Addrs, ","))
				return err
			})
			if err := g.Wait(); err != nil {
				logger.Log().Fatal().Err(err).Msg("failed to initialize storage")
			}
			cleanup = append(cleanup, func() { _ = redisClient.Close() })

			idemStore, err := adapter.NewIdempotencyRedisAdapter(redisClient, cfg.Lottery.ResultCacheTTL)
			if err != nil {
				logger.Log().Fatal().Err(err).Msg("failed to initialize idempotency store")
			}
			pressure, err := adapter.NewPressureRedisAdapter(redisClient, cfg.Lottery.PressureWindow)
			if err != nil {
				logger.Log().Fatal().Err(err).Msg("failed to initialize pressure gauge")
			}
			ruleEngine, err := adapter.NewCELRuleAdapter()
			if err != nil {
				logger.Log().Fatal().Err(err).Msg("failed to initialize rule engine")
			}

			tracer := otel.Tracer(serviceName)
			ledger := adapter.NewLedgerHTTPAdapter(httpclient.NewClient(tracer), cfg.Infra.Ledger.BaseURL)

			resultWriter := mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.DrawResultTopic)
			cleanup = append(cleanup, func() { _ = resultWriter.Close() })
			notifier := adapter.NewNotifierKafkaAdapter(resultWriter)

			service := application.NewLotteryService(
				infrastructure.NewGormUnitOfWork(db),
				ledger,
				idemStore,
				notifier,
				ruleEngine,
				pressure,
				tracer,
			)

			interfaces.NewLotteryHandler(service).RegisterRoutes(appCtx.Mux)
		},
		OnShutdown: func(ctx context.Context) {
			for i := len(cleanup) - 1; i >= 0; i-- {
				cleanup[i]()
			}
		},
	})
}
