package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckoutsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkouts_started_total",
		Help: "Total number of pending checkouts started",
	})

	CheckoutsAbandonedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkouts_abandoned_total",
		Help: "Total number of pending checkouts abandoned before settlement",
	})

	OrdersSettledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_settled_total",
		Help: "Total number of orders settled",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed order finalizations",
	}, []string{"reason"})

	PaymentsCapturedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_captured_total",
		Help: "Total number of captured partial payments",
	}, []string{"method"})

	PaymentIntentsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_intents_failed_total",
		Help: "Total number of failed payment intent creations",
	}, []string{"method"})

	SettlementLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_settlement_latency_seconds",
		Help:    "Latency of order finalization",
		Buckets: prometheus.DefBuckets,
	})

	RefundsRequestedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "refunds_requested_total",
		Help: "Total number of refund requests",
	})

	RefundsApprovedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refunds_approved_total",
		Help: "Total number of approved refunds",
	}, []string{"destination"})

	RefundsRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "refunds_rejected_total",
		Help: "Total number of rejected refunds",
	})

	WalletCreditsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallet_credits_total",
		Help: "Total number of wallet credit operations",
	})

	WalletDeductionsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallet_deductions_failed_total",
		Help: "Total number of wallet deductions rejected for insufficient funds",
	})

	QRPollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qr_status_polls_total",
		Help: "Total number of QR payment status polls",
	}, []string{"outcome"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
