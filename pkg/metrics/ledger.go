package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics counts stock and order activity.
type LedgerMetrics struct {
	movements        *prometheus.CounterVec
	rejections       *prometheus.CounterVec
	reservations     *prometheus.CounterVec
	transitions      *prometheus.CounterVec
	numberRetries    *prometheus.CounterVec
	reconcileFailure prometheus.Counter
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer. A nil
// registerer yields a no-op recorder.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	m := &LedgerMetrics{
		movements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stock_movements_total",
			Help: "Ledger movements applied, by reason.",
		}, []string{"reason"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stock_rejections_total",
			Help: "Stock operations rejected, by operation and error code.",
		}, []string{"operation", "code"}),
		reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stock_reservation_units_total",
			Help: "Units reserved or released.",
		}, []string{"direction"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_transitions_total",
			Help: "Order status transitions, by order type and target status.",
		}, []string{"order_type", "to"}),
		numberRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_number_retries_total",
			Help: "Order number allocations retried after a collision.",
		}, []string{"order_type"}),
		reconcileFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stock_reconciliation_mismatches_total",
			Help: "Stock items whose balance diverged from the transaction log.",
		}),
	}
	reg.MustRegister(m.movements, m.rejections, m.reservations, m.transitions, m.numberRetries, m.reconcileFailure)
	return m
}

func (m *LedgerMetrics) IncMovement(reason string) {
	if m == nil || m.movements == nil {
		return
	}
	m.movements.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *LedgerMetrics) IncRejection(operation, code string) {
	if m == nil || m.rejections == nil {
		return
	}
	m.rejections.WithLabelValues(normalizeLabel(operation), normalizeLabel(code)).Inc()
}

// AddReserved records reserved units; negative qty counts as released.
func (m *LedgerMetrics) AddReserved(qty int) {
	if m == nil || m.reservations == nil || qty == 0 {
		return
	}
	direction := "reserve"
	if qty < 0 {
		direction, qty = "release", -qty
	}
	m.reservations.WithLabelValues(direction).Add(float64(qty))
}

func (m *LedgerMetrics) IncTransition(orderType, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(orderType), normalizeLabel(to)).Inc()
}

func (m *LedgerMetrics) IncNumberRetry(orderType string) {
	if m == nil || m.numberRetries == nil {
		return
	}
	m.numberRetries.WithLabelValues(normalizeLabel(orderType)).Inc()
}

func (m *LedgerMetrics) IncReconcileMismatch() {
	if m == nil || m.reconcileFailure == nil {
		return
	}
	m.reconcileFailure.Inc()
}
