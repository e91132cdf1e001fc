// cmd/debt-settler/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"lucky/internal/pkg/bootstrap"
	"lucky/internal/pkg/logger"
	"lucky/internal/pkg/mq"
	"lucky/internal/service/lottery/application"
	"lucky/internal/service/lottery/domain"
	"lucky/internal/service/lottery/infrastructure"
	"lucky/internal/tracing"
	"lucky/internal/zookeeper"
)

const serviceName = "debt-settler"

// clearCommand 是运营侧投递的核销指令
// 补货/补预算完成后按笔发出，settler 串行消费并落库
type clearCommand struct {
	Kind       string `json:"kind"` // inventory | budget
	DebtID     string `json:"debtId"`
	CampaignID int64  `json:"campaignId"`
	Amount     int64  `json:"amount"`
}

// Settler 消费核销指令并执行欠账核销
// 同一活动的核销通过 ZooKeeper 分布式锁与其他 settler 实例互斥
type Settler struct {
	service *application.LotteryService
	reader  *kafka.Reader
	zkConn  *zookeeper.Conn
}

func main() {
	logger.Init(serviceName)
	if err := bootstrap.InitConfig(); err != nil {
		logger.Log().Fatal().Err(err).Msg("failed to load config")
	}
	cfg := bootstrap.GetCurrentConfig()

	tp, err := tracing.InitTracerProvider(serviceName, cfg.Infra.Jaeger.Endpoint, cfg.Infra.Jaeger.SampleRatio)
	if err != nil {
		logger.Log().Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	db, err := infrastructure.NewDB(infrastructure.MySQLConfig{
		Addr:     cfg.Infra.MySQL.Addr,
		User:     cfg.Infra.MySQL.User,
		Password: cfg.Infra.MySQL.Password,
		Database: cfg.Infra.MySQL.Database,
	})
	if err != nil {
		logger.Log().Fatal().Err(err).Msg("failed to connect mysql")
	}

	zkConn, err := zookeeper.NewConn(strings.Join(cfg.Infra.Zookeeper.Addrs, ","), cfg.Infra.Zookeeper.SessionTimeout)
	if err != nil {
		logger.Log().Fatal().Err(err).Msg("failed to connect zookeeper")
	}

	reader := mq.NewKafkaReader(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.DebtCommandTopic, serviceName+"-group")

	// 核销路径只经过工作单元与链路追踪，抽奖侧的出站端口在这里用不到
	service := application.NewLotteryService(
		infrastructure.NewGormUnitOfWork(db),
		nil, nil, nil, nil, nil,
		otel.Tracer(serviceName),
	)

	settler := &Settler{service: service, reader: reader, zkConn: zkConn}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Log().Info().Str("topic", cfg.Infra.Kafka.DebtCommandTopic).Msg("debt settler started")
	settler.run(ctx)

	shutdownCtx := context.Background()
	if err := reader.Close(); err != nil {
		logger.Log().Error().Err(err).Msg("error closing kafka reader")
	}
	zkConn.Close()
	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.Log().Error().Err(err).Msg("error shutting down tracer provider")
	}
	logger.Log().Info().Msg("debt settler stopped")
}

// run 是消费主循环，ctx 取消后退出
func (s *Settler) run(ctx context.Context) {
	for {
		msg, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Log().Error().Err(err).Msg("could not read message, retrying")
			continue
		}

		msgCtx := mq.ExtractTraceContext(ctx, msg)
		if err := s.handle(msgCtx, msg.Value); err != nil {
			// 业务性失败（重复核销、金额非法）记日志后照常提交位点，指令不重放
			logger.Ctx(msgCtx).Error().Err(err).
				Str("payload", string(msg.Value)).
				Msg("failed to settle debt command")
		}

		if err := s.reader.CommitMessages(ctx, msg); err != nil {
			logger.Ctx(msgCtx).Error().Err(err).Msg("failed to commit messages")
		}
	}
}

// handle 处理一条核销指令：取活动级分布式锁后执行核销
func (s *Settler) handle(ctx context.Context, payload []byte) error {
	var cmd clearCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return errors.Wrap(err, "malformed clear command")
	}

	lock, err := zookeeper.NewDistributedLock(s.zkConn, fmt.Sprintf("campaign-%d", cmd.CampaignID))
	if err != nil {
		return errors.Wrap(err, "create campaign lock")
	}
	if err := lock.Lock(); err != nil {
		return errors.Wrap(err, "acquire campaign lock")
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("failed to release campaign lock")
		}
	}()

	resp, err := s.service.ClearDebt(ctx, &application.ClearDebtRequest{
		Kind:   cmd.Kind,
		DebtID: cmd.DebtID,
		Amount: cmd.Amount,
	})
	if err != nil {
		// 指令重放落在已核销的欠账上是常态，降噪处理
		if errors.Is(err, domain.ErrDebtAlreadyWrittenOff) {
			logger.Ctx(ctx).Info().Str("debt_id", cmd.DebtID).Msg("debt already written off, skipping")
			return nil
		}
		return err
	}

	logger.Ctx(ctx).Info().
		Str("debt_id", resp.DebtID).
		Int64("outstanding", resp.Outstanding).
		Str("status", resp.Status).
		Msg("debt settled")
	return nil
}
