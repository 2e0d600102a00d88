// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	bookingsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_bookings_total",
			Help: "Booking attempts by result",
		},
		[]string{"result"},
	)

	ticketsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketing_tickets_issued_total",
			Help: "Tickets issued across all bookings",
		},
	)

	seatConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketing_seat_conflicts_total",
			Help: "Seat allocation conflicts surfaced by the store",
		},
	)

	checkIns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_checkins_total",
			Help: "Gate verifications by result",
		},
		[]string{"result"},
	)

	notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_notifications_total",
			Help: "Notification deliveries per sink and result",
		},
		[]string{"sink", "result"},
	)

	roomSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ticketing_room_subscribers",
			Help: "Open organizer room websocket connections",
		},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ticketing_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// Booking records a booking attempt.  result is "ok" or the error kind.
func Booking(result string, tickets int) {
	bookingsCreated.WithLabelValues(result).Inc()
	if tickets > 0 {
		ticketsIssued.Add(float64(tickets))
	}
}

// SeatConflict counts one allocation collision.
func SeatConflict() { seatConflicts.Inc() }

// CheckIn records a gate verification result.
func CheckIn(result string) { checkIns.WithLabelValues(result).Inc() }

// Notification records a delivery attempt on a sink.
func Notification(sink, result string) { notifications.WithLabelValues(sink, result).Inc() }

// RoomJoined and RoomLeft track websocket subscribers.
func RoomJoined() { roomSubscribers.Inc() }
func RoomLeft()   { roomSubscribers.Dec() }

// Middleware observes request latency labelled by the matched route.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			httpDuration.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).
				Observe(time.Since(start).Seconds())
			return err
		}
	}
}
