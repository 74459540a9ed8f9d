package settlement

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики подсистемы расчета сделок
// ============================================================
//
// Использование:
// - Grafana дашборды для визуализации
// - Alertmanager для алертов на рост ошибок планировщика

// TradesSettled - количество рассчитанных сделок по исходам
var TradesSettled = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "binaryoptions",
		Subsystem: "settlement",
		Name:      "trades_settled_total",
		Help:      "Total number of settled trades",
	},
	[]string{"result"}, // win, loss, draw
)

// SettleLatency - длительность расчета одной сделки (транзакция целиком)
var SettleLatency = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "binaryoptions",
		Subsystem: "settlement",
		Name:      "settle_latency_ms",
		Help:      "Time to settle a single trade in milliseconds",
		Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	},
)

// DueTrades - размер очереди просроченных сделок на последнем тике
var DueTrades = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "binaryoptions",
		Subsystem: "settlement",
		Name:      "due_trades",
		Help:      "Number of due trades seen by the last scheduler cycle",
	},
)

// SchedulerCycles - количество выполненных циклов планировщика
var SchedulerCycles = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "binaryoptions",
		Subsystem: "settlement",
		Name:      "scheduler_cycles_total",
		Help:      "Total number of scheduler cycles executed",
	},
)

// SchedulerErrors - количество ошибок расчета (выборка и отдельные сделки)
var SchedulerErrors = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "binaryoptions",
		Subsystem: "settlement",
		Name:      "scheduler_errors_total",
		Help:      "Total number of settlement errors",
	},
)

// TradesOpened - количество открытых сделок по направлениям
var TradesOpened = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "binaryoptions",
		Subsystem: "trading",
		Name:      "trades_opened_total",
		Help:      "Total number of opened trades",
	},
	[]string{"direction"}, // call, put
)

// ObserveSettlement записывает исход и длительность расчета сделки
func ObserveSettlement(result string, d time.Duration) {
	TradesSettled.WithLabelValues(result).Inc()
	SettleLatency.Observe(float64(d.Milliseconds()))
}

// RecordTradeOpened записывает открытие новой сделки
func RecordTradeOpened(direction string) {
	TradesOpened.WithLabelValues(direction).Inc()
}
