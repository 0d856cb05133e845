package cart

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeFull       = "full"
	outcomePartial    = "partial"
	outcomeOutOfStock = "out_of_stock"
	outcomeNotFound   = "not_found"
	outcomeReleased   = "released"
	outcomeError      = "error"
)

type Metrics struct {
	Reservations *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Reservations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "estore_cart_reservations_total",
				Help: "Cart reservation attempts by outcome",
			},
			[]string{"outcome"},
		),
	}

	reg.MustRegister(m.Reservations)
	return m
}

func reserveOutcome(res Reservation, err error) string {
	switch {
	case errors.Is(err, ErrOutOfStock):
		return outcomeOutOfStock
	case errors.Is(err, ErrItemNotFound):
		return outcomeNotFound
	case res.Granted == 0:
		return outcomeError
	case res.Granted < res.Requested:
		return outcomePartial
	default:
		return outcomeFull
	}
}
