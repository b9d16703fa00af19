package observability

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the SDK's counters. They live on a per-instance registerer
// (pass nil to keep them unregistered) so that multiple isolated SDK
// instances can coexist in one process, e.g. under test.
type Metrics struct {
	EventsIngested    prometheus.Counter
	CampaignsMatched  prometheus.Counter
	MessagesScheduled prometheus.Counter
	MessagesDisplayed prometheus.Counter
	MessagesDropped   prometheus.Counter
	CampaignRejects   prometheus.Counter
	Syncs             *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notifly_events_ingested_total",
			Help: "Total events recorded in the counter store",
		}),
		CampaignsMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notifly_campaigns_matched_total",
			Help: "Total campaigns that passed the eligibility filter",
		}),
		MessagesScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notifly_messages_scheduled_total",
			Help: "Total in-app messages handed to the scheduler",
		}),
		MessagesDisplayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notifly_messages_displayed_total",
			Help: "Total in-app messages handed to the renderer",
		}),
		MessagesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notifly_messages_dropped_total",
			Help: "Total display attempts dropped because a message surface was active",
		}),
		CampaignRejects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notifly_campaign_parse_rejects_total",
			Help: "Total campaign records dropped during sync parsing",
		}),
		Syncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifly_syncs_total",
			Help: "Total state syncs by outcome",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.EventsIngested, m.CampaignsMatched, m.MessagesScheduled,
			m.MessagesDisplayed, m.MessagesDropped, m.CampaignRejects, m.Syncs,
		)
	}
	return m
}
