package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "livequiz"

// Metrics holds the engine's collectors. Each instance owns its registry so
// tests can build as many as they like. A nil *Metrics is a valid no-op.
type Metrics struct {
	Registry *prometheus.Registry

	RequestCounter     *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	RoomsCreated       *prometheus.CounterVec
	RoomCodeCollisions prometheus.Counter
	ActiveRooms        prometheus.Gauge
	Subscribers        prometheus.Gauge
	ActiveCountdowns   prometheus.Gauge
	Broadcasts         *prometheus.CounterVec
	DroppedMessages    prometheus.Counter
	Answers            *prometheus.CounterVec
	WordsFound         prometheus.Counter
	QuestionsDrawn     *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		RequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		RoomsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rooms",
				Name:      "created_total",
				Help:      "Rooms created by mode",
			},
			[]string{"mode"},
		),
		RoomCodeCollisions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rooms",
			Name:      "code_collisions_total",
			Help:      "Room code candidates rejected because they were already taken",
		}),
		ActiveRooms: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "channels",
			Help:      "Room channels currently held by the hub",
		}),
		Subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "subscribers",
			Help:      "Connected channel subscribers",
		}),
		ActiveCountdowns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "countdowns",
			Help:      "Running room countdowns",
		}),
		Broadcasts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "live",
				Name:      "broadcasts_total",
				Help:      "Events broadcast to room channels",
			},
			[]string{"event"},
		),
		DroppedMessages: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "dropped_messages_total",
			Help:      "Messages dropped because a subscriber buffer was full",
		}),
		Answers: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scoring",
				Name:      "answers_total",
				Help:      "Scored answers by correctness",
			},
			[]string{"correct"},
		),
		WordsFound: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "words_found_total",
			Help:      "Word-search words accepted",
		}),
		QuestionsDrawn: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "draw",
				Name:      "questions_total",
				Help:      "Draw outcomes by result",
			},
			[]string{"result"},
		),
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(route, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestCounter.WithLabelValues(route, status).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (m *Metrics) RoomCreated(mode string) {
	if m == nil {
		return
	}
	m.RoomsCreated.WithLabelValues(mode).Inc()
}

func (m *Metrics) CodeCollision() {
	if m == nil {
		return
	}
	m.RoomCodeCollisions.Inc()
}

func (m *Metrics) SetChannels(rooms, subscribers int) {
	if m == nil {
		return
	}
	m.ActiveRooms.Set(float64(rooms))
	m.Subscribers.Set(float64(subscribers))
}

func (m *Metrics) CountdownStarted() {
	if m == nil {
		return
	}
	m.ActiveCountdowns.Inc()
}

func (m *Metrics) CountdownStopped() {
	if m == nil {
		return
	}
	m.ActiveCountdowns.Dec()
}

func (m *Metrics) Broadcast(event string) {
	if m == nil {
		return
	}
	m.Broadcasts.WithLabelValues(event).Inc()
}

func (m *Metrics) Dropped() {
	if m == nil {
		return
	}
	m.DroppedMessages.Inc()
}

func (m *Metrics) AnswerScored(correct bool) {
	if m == nil {
		return
	}
	label := "false"
	if correct {
		label = "true"
	}
	m.Answers.WithLabelValues(label).Inc()
}

func (m *Metrics) WordFound() {
	if m == nil {
		return
	}
	m.WordsFound.Inc()
}

func (m *Metrics) Drawn(result string) {
	if m == nil {
		return
	}
	m.QuestionsDrawn.WithLabelValues(result).Inc()
}
