package interfaces

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 抽奖核心指标
// draws_total 按档位与决策来源拆分；downgrade 与 debt 单独计数，
// 运营靠这两条曲线判断奖池配置是否健康
var (
	drawsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lucky",
		Subsystem: "lottery",
		Name:      "draws_total",
		Help:      "Total number of completed draws by tier and decision source.",
	}, []string{"tier", "source"})

	drawFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lucky",
		Subsystem: "lottery",
		Name:      "draw_failures_total",
		Help:      "Total number of failed draws by reason.",
	}, []string{"reason"})

	downgradesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lucky",
		Subsystem: "lottery",
		Name:      "downgrades_total",
		Help:      "Total number of draws that landed below the rolled tier.",
	})

	debtsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lucky",
		Subsystem: "lottery",
		Name:      "debts_created_total",
		Help:      "Total number of debt records created during awards.",
	}, []string{"kind"})

	debtsClearedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lucky",
		Subsystem: "lottery",
		Name:      "debts_cleared_total",
		Help:      "Total number of debt clear operations.",
	}, []string{"kind"})

	drawDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "lucky",
		Subsystem: "lottery",
		Name:      "draw_duration_seconds",
		Help:      "End-to-end draw latency.",
		Buckets:   prometheus.DefBuckets,
	})
)
