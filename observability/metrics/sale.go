package metrics

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type SaleMetrics struct {
	purchases       *prometheus.CounterVec
	unitsMinted     *prometheus.CounterVec
	grossCollected  prometheus.Counter
	discountGranted prometheus.Counter
	rewardsPaid     *prometheus.CounterVec
	currentPhase    prometheus.Gauge
	withdrawals     *prometheus.CounterVec
	treasuryBalance prometheus.Gauge
}

var (
	saleOnce     sync.Once
	saleRegistry *SaleMetrics
)

// Sale returns the lazily-initialised metrics registry for the sale and
// treasury pipelines.
func Sale() *SaleMetrics {
	saleOnce.Do(func() {
		saleRegistry = &SaleMetrics{
			purchases: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "mintvault_sale_purchases_total",
				Help: "Count of settled purchases by class and code kind.",
			}, []string{"class", "code_kind"}),
			unitsMinted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "mintvault_sale_units_minted_total",
				Help: "Inventory units minted by class.",
			}, []string{"class"}),
			grossCollected: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "mintvault_sale_gross_collected_total",
				Help: "Cumulative gross value of settled purchases in base units.",
			}),
			discountGranted: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "mintvault_sale_discount_granted_total",
				Help: "Cumulative discount value granted through codes in base units.",
			}),
			rewardsPaid: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "mintvault_sale_rewards_paid_total",
				Help: "Cumulative revenue shares disbursed by role.",
			}, []string{"role"}),
			currentPhase: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "mintvault_sale_current_phase",
				Help: "Identifier of the active sale phase.",
			}),
			withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "mintvault_treasury_withdrawals_total",
				Help: "Withdrawal lifecycle transitions by outcome.",
			}, []string{"outcome"}),
			treasuryBalance: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "mintvault_treasury_balance",
				Help: "Current treasury balance in base units.",
			}),
		}
		prometheus.MustRegister(
			saleRegistry.purchases,
			saleRegistry.unitsMinted,
			saleRegistry.grossCollected,
			saleRegistry.discountGranted,
			saleRegistry.rewardsPaid,
			saleRegistry.currentPhase,
			saleRegistry.withdrawals,
			saleRegistry.treasuryBalance,
		)
	})
	return saleRegistry
}

// ObservePurchase records one settled purchase.
func (m *SaleMetrics) ObservePurchase(class, codeKind string, quantity uint64, gross *big.Int) {
	if m == nil {
		return
	}
	if codeKind == "" {
		codeKind = "none"
	}
	m.purchases.WithLabelValues(class, codeKind).Inc()
	m.unitsMinted.WithLabelValues(class).Add(float64(quantity))
	if gross != nil {
		grossFloat, _ := new(big.Float).SetInt(gross).Float64()
		m.grossCollected.Add(grossFloat)
	}
}

// ObserveDiscount records the discount granted on one purchase.
func (m *SaleMetrics) ObserveDiscount(amount *big.Int) {
	if m == nil || amount == nil || amount.Sign() == 0 {
		return
	}
	amountFloat, _ := new(big.Float).SetInt(amount).Float64()
	m.discountGranted.Add(amountFloat)
}

// ObserveRewardPaid records one revenue share disbursement.
func (m *SaleMetrics) ObserveRewardPaid(role string, amount *big.Int) {
	if m == nil || amount == nil {
		return
	}
	if role == "" {
		role = "unknown"
	}
	amountFloat, _ := new(big.Float).SetInt(amount).Float64()
	m.rewardsPaid.WithLabelValues(role).Add(amountFloat)
}

// SetCurrentPhase tracks the active phase identifier.
func (m *SaleMetrics) SetCurrentPhase(id uint64) {
	if m == nil {
		return
	}
	m.currentPhase.Set(float64(id))
}

// ObserveWithdrawal records one withdrawal lifecycle transition, one of
// requested, approved, blocked or executed.
func (m *SaleMetrics) ObserveWithdrawal(outcome string) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.withdrawals.WithLabelValues(outcome).Inc()
}

// SetTreasuryBalance tracks the treasury balance.
func (m *SaleMetrics) SetTreasuryBalance(balance *big.Int) {
	if m == nil || balance == nil {
		return
	}
	balanceFloat, _ := new(big.Float).SetInt(balance).Float64()
	m.treasuryBalance.Set(balanceFloat)
}
