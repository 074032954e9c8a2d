package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type MarketMetrics struct {
	listingsCreated  *prometheus.CounterVec
	auctionsCreated  *prometheus.CounterVec
	salesSettled     prometheus.Counter
	bidsAccepted     prometheus.Counter
	bidRefunds       prometheus.Counter
	finesCollected   *prometheus.CounterVec
	auctionsSettled  prometheus.Counter
	withdrawals      prometheus.Counter
	rejectedRequests *prometheus.CounterVec
}

var (
	marketOnce     sync.Once
	marketRegistry *MarketMetrics
)

func Market() *MarketMetrics {
	marketOnce.Do(func() {
		marketRegistry = &MarketMetrics{
			listingsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_listings_created_total",
				Help: "Count of fixed-price listings created by asset kind.",
			}, []string{"kind"}),
			auctionsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_auctions_created_total",
				Help: "Count of auctions created by asset kind.",
			}, []string{"kind"}),
			salesSettled: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "market_sales_settled_total",
				Help: "Count of fixed-price listings settled by a buyer.",
			}),
			bidsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "market_bids_accepted_total",
				Help: "Count of accepted auction bids.",
			}),
			bidRefunds: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "market_bid_refunds_total",
				Help: "Count of outbid or cancellation refunds issued.",
			}),
			finesCollected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_fines_collected_total",
				Help: "Count of cancellation fines retained by record type.",
			}, []string{"record"}),
			auctionsSettled: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "market_auctions_settled_total",
				Help: "Count of auctions settled to their highest bidder.",
			}),
			withdrawals: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "market_ledger_withdrawals_total",
				Help: "Count of ledger balance withdrawals.",
			}),
			rejectedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_rpc_rejections_total",
				Help: "Count of RPC requests rejected by reason.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(
			marketRegistry.listingsCreated,
			marketRegistry.auctionsCreated,
			marketRegistry.salesSettled,
			marketRegistry.bidsAccepted,
			marketRegistry.bidRefunds,
			marketRegistry.finesCollected,
			marketRegistry.auctionsSettled,
			marketRegistry.withdrawals,
			marketRegistry.rejectedRequests,
		)
	})
	return marketRegistry
}

func (m *MarketMetrics) ObserveListingsCreated(kind string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.listingsCreated.WithLabelValues(kind).Add(float64(count))
}

func (m *MarketMetrics) ObserveAuctionsCreated(kind string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.auctionsCreated.WithLabelValues(kind).Add(float64(count))
}

func (m *MarketMetrics) ObserveSaleSettled() {
	if m == nil {
		return
	}
	m.salesSettled.Inc()
}

func (m *MarketMetrics) ObserveBidAccepted() {
	if m == nil {
		return
	}
	m.bidsAccepted.Inc()
}

func (m *MarketMetrics) ObserveBidRefund() {
	if m == nil {
		return
	}
	m.bidRefunds.Inc()
}

func (m *MarketMetrics) ObserveFineCollected(record string) {
	if m == nil {
		return
	}
	if record == "" {
		record = "unknown"
	}
	m.finesCollected.WithLabelValues(record).Inc()
}

func (m *MarketMetrics) ObserveAuctionSettled() {
	if m == nil {
		return
	}
	m.auctionsSettled.Inc()
}

func (m *MarketMetrics) ObserveWithdrawal() {
	if m == nil {
		return
	}
	m.withdrawals.Inc()
}

func (m *MarketMetrics) ObserveRejection(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.rejectedRequests.WithLabelValues(reason).Inc()
}
