// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"lucky/internal/pkg/logger"
	"lucky/internal/pkg/nacos"

	"github.com/nacos-group/nacos-sdk-go/v2/clients/config_client"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"
)

// Config 是整个服务的静态配置，从本地 YAML 文件加载，
// 并可选地由 Nacos 配置中心覆盖与热更新。
type Config struct {
	Service struct {
		Name string `yaml:"name"`
		Port int    `yaml:"port"`
	} `yaml:"service"`

	Infra struct {
		MySQL struct {
			Addr     string `yaml:"addr"`
			User     string `yaml:"user"`
			Password string `yaml:"password"`
			Database string `yaml:"database"`
		} `yaml:"mysql"`

		Redis struct {
			Addrs []string `yaml:"addrs"`
		} `yaml:"redis"`

		Kafka struct {
			Brokers          []string `yaml:"brokers"`
			DrawResultTopic  string   `yaml:"draw_result_topic"`
			DebtCommandTopic string   `yaml:"debt_command_topic"`
		} `yaml:"kafka"`

		Zookeeper struct {
			Addrs          []string      `yaml:"addrs"`
			SessionTimeout time.Duration `yaml:"session_timeout"`
		} `yaml:"zookeeper"`

		Jaeger struct {
			Endpoint    string  `yaml:"endpoint"`
			SampleRatio float64 `yaml:"sample_ratio"`
		} `yaml:"jaeger"`

		Nacos struct {
			ServerAddrs string `yaml:"server_addrs"`
			Namespace   string `yaml:"namespace"`
			Group       string `yaml:"group"`
			DataId      string `yaml:"data_id"`
		} `yaml:"nacos"`

		Ledger struct {
			BaseURL string        `yaml:"base_url"`
			Timeout time.Duration `yaml:"timeout"`
		} `yaml:"ledger"`
	} `yaml:"infra"`

	Lottery struct {
		MaxBatchSize   int           `yaml:"max_batch_size"`
		PressureWindow time.Duration `yaml:"pressure_window"`
		ResultCacheTTL time.Duration `yaml:"result_cache_ttl"`
	} `yaml:"lottery"`
}

var currentConfig atomic.Value // *Config

var nacosConfigClient config_client.IConfigClient

// GetCurrentConfig 返回当前生效的配置快照。热更新后返回新的快照，
// 调用方不应缓存返回值跨越长生命周期。
func GetCurrentConfig() *Config {
	if cfg, ok := currentConfig.Load().(*Config); ok {
		return cfg
	}
	return defaultConfig()
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.Service.Name = "lottery-service"
	cfg.Service.Port = 8080
	cfg.Infra.MySQL.Addr = "localhost:3306"
	cfg.Infra.MySQL.User = "root"
	cfg.Infra.MySQL.Database = "lucky"
	cfg.Infra.Redis.Addrs = []string{"localhost:6379"}
	cfg.Infra.Kafka.Brokers = []string{"localhost:9092"}
	cfg.Infra.Kafka.DrawResultTopic = "lottery.draw.results"
	cfg.Infra.Kafka.DebtCommandTopic = "lottery.debt.commands"
	cfg.Infra.Zookeeper.Addrs = []string{"localhost:2181"}
	cfg.Infra.Zookeeper.SessionTimeout = 5 * time.Second
	cfg.Infra.Jaeger.Endpoint = "http://localhost:14268/api/traces"
	cfg.Infra.Jaeger.SampleRatio = 1.0
	cfg.Infra.Nacos.Group = "DEFAULT_GROUP"
	cfg.Infra.Ledger.BaseURL = "http://localhost:8090"
	cfg.Infra.Ledger.Timeout = 3 * time.Second
	cfg.Lottery.MaxBatchSize = 10
	cfg.Lottery.PressureWindow = 5 * time.Minute
	cfg.Lottery.ResultCacheTTL = 24 * time.Hour
	return cfg
}

// InitConfig 加载配置：先读本地文件（CONFIG_FILE 环境变量，默认 config.yaml），
// 再尝试接入 Nacos 配置中心做覆盖与监听。本地文件不存在时使用内置默认值。
func InitConfig() error {
	cfg := defaultConfig()

	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	currentConfig.Store(cfg)

	if cfg.Infra.Nacos.ServerAddrs != "" && cfg.Infra.Nacos.DataId != "" {
		if err := watchNacosConfig(cfg); err != nil {
			// 配置中心不可用不阻塞启动，本地配置兜底
			logger.Log().Warn().Err(err).Msg("nacos config center unavailable, using local config")
		}
	}
	return nil
}

// watchNacosConfig 从配置中心拉取一次全量配置，并注册监听实现热更新。
func watchNacosConfig(base *Config) error {
	serverConfigs, err := nacos.ParseServerConfigs(base.Infra.Nacos.ServerAddrs)
	if err != nil {
		return err
	}
	clientConfig := nacos.NewClientConfig(base.Infra.Nacos.Namespace)

	configClient, err := nacos.NewConfigClient(serverConfigs, &clientConfig)
	if err != nil {
		return err
	}
	nacosConfigClient = configClient

	group := base.Infra.Nacos.Group
	if group == "" {
		group = "DEFAULT_GROUP"
	}

	content, err := configClient.GetConfig(vo.ConfigParam{
		DataId: base.Infra.Nacos.DataId,
		Group:  group,
	})
	if err == nil && content != "" {
		applyRemoteConfig(content)
	}

	return configClient.ListenConfig(vo.ConfigParam{
		DataId: base.Infra.Nacos.DataId,
		Group:  group,
		OnChange: func(namespace, group, dataId, data string) {
			applyRemoteConfig(data)
		},
	})
}

// applyRemoteConfig 在当前配置快照的副本上叠加远端内容，再原子替换。
func applyRemoteConfig(content string) {
	snapshot := *GetCurrentConfig()
	if err := yaml.Unmarshal([]byte(content), &snapshot); err != nil {
		logger.Log().Error().Err(err).Msg("failed to parse remote config, keeping current")
		return
	}
	currentConfig.Store(&snapshot)
	logger.Log().Info().Msg("config reloaded from nacos")
}
