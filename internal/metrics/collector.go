// Package metrics exposes facility state in Prometheus format.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"parking-facility/internal/parking"
)

// StatusSource is satisfied by parking.Facility and its instrumented wrapper.
type StatusSource interface {
	Status(ctx context.Context) parking.Status
}

// OccupancyCollector reads the facility status at scrape time.
type OccupancyCollector struct {
	source StatusSource

	freeSpots     *prometheus.Desc
	totalSpots    *prometheus.Desc
	occupied      *prometheus.Desc
	reserved      *prometheus.Desc
	activeTickets *prometheus.Desc
	occupancy     *prometheus.Desc
}

func NewOccupancyCollector(source StatusSource, facilityID string) *OccupancyCollector {
	constLabels := prometheus.Labels{"facility": facilityID}
	return &OccupancyCollector{
		source: source,
		freeSpots: prometheus.NewDesc("parking_spots_free",
			"Free spots by size", []string{"size"}, constLabels),
		totalSpots: prometheus.NewDesc("parking_spots_total",
			"Configured spots by size", []string{"size"}, constLabels),
		occupied: prometheus.NewDesc("parking_spots_occupied",
			"Occupied spots", nil, constLabels),
		reserved: prometheus.NewDesc("parking_spots_reserved",
			"Spots held by an unexpired reservation", nil, constLabels),
		activeTickets: prometheus.NewDesc("parking_active_tickets",
			"Open parking sessions", nil, constLabels),
		occupancy: prometheus.NewDesc("parking_occupancy_ratio",
			"Occupied spots over total spots", nil, constLabels),
	}
}

func (c *OccupancyCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.freeSpots
	ch <- c.totalSpots
	ch <- c.occupied
	ch <- c.reserved
	ch <- c.activeTickets
	ch <- c.occupancy
}

func (c *OccupancyCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.source.Status(context.Background())

	for _, size := range parking.SpotSizes {
		ch <- prometheus.MustNewConstMetric(c.freeSpots, prometheus.GaugeValue,
			float64(st.AvailableBySize[size]), size.String())
		ch <- prometheus.MustNewConstMetric(c.totalSpots, prometheus.GaugeValue,
			float64(st.TotalBySize[size]), size.String())
	}
	ch <- prometheus.MustNewConstMetric(c.occupied, prometheus.GaugeValue, float64(st.Occupied))
	ch <- prometheus.MustNewConstMetric(c.reserved, prometheus.GaugeValue, float64(st.Reserved))
	ch <- prometheus.MustNewConstMetric(c.activeTickets, prometheus.GaugeValue, float64(st.ActiveTickets))
	ch <- prometheus.MustNewConstMetric(c.occupancy, prometheus.GaugeValue, st.OccupancyRate/100)
}

// EventCounter counts facility events by kind.
type EventCounter struct {
	events *prometheus.CounterVec
}

func NewEventCounter() *EventCounter {
	return &EventCounter{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parking_events_total",
			Help: "Facility events by kind",
		}, []string{"kind"}),
	}
}

// Run counts events until ch is closed or ctx is done.
func (c *EventCounter) Run(ctx context.Context, ch <-chan parking.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			c.events.WithLabelValues(string(e.Kind)).Inc()
		}
	}
}

// NewRegistry returns a registry carrying the Go and process collectors plus
// the given facility collectors.
func NewRegistry(cs ...prometheus.Collector) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	cs = append([]prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}, cs...)
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Collector exposes the counter for registration.
func (c *EventCounter) Collector() prometheus.Collector {
	return c.events
}
