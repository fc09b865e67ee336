package room

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	settlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "footbot",
		Name:      "room_settlements_total",
		Help:      "Rooms settled, by outcome (played, draw, no_contest)",
	}, []string{"outcome"})

	mismatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "footbot",
		Name:      "score_mismatches_total",
		Help:      "Score submission attempts where the captains disagreed",
	})
)
