package notification

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the notification pipeline.
var (
	notificationsConsumedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_notifications_consumed_total",
		Help: "Total change notifications consumed from the feed",
	})

	notificationsReconciledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_notifications_reconciled_total",
		Help: "Total change notifications rewritten to a pinned version by resource",
	}, []string{"resource"})

	subscriberErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_subscriber_errors_total",
		Help: "Total errors raised by subscriber handlers",
	})

	pipelineCyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_pipeline_cycles_total",
		Help: "Total poll-reconcile-distribute cycles completed",
	})
)
