package proximity

import (
	"math"
	"sync"

	"github.com/lupppig/deliverynotify/internal/classify"
	"github.com/lupppig/deliverynotify/internal/domain"
	"github.com/lupppig/deliverynotify/internal/geo"
)

const (
	ApproachingRadiusKm = 1.0
	ArrivedRadiusKm     = 0.1
	// MinutesPerKm is the fixed ETA heuristic for approaching alerts.
	MinutesPerKm = 3.0
)

type Key struct {
	OrderID  string
	DriverID string
}

// Sample is one position update for an in-flight delivery.
type Sample struct {
	OrderID          string
	Driver           domain.Driver
	DriverPosition   domain.Position
	CustomerPosition domain.Position
}

func (s Sample) key() Key {
	return Key{OrderID: s.OrderID, DriverID: s.Driver.ID}
}

// Alert is emitted on a downward threshold crossing.
type Alert struct {
	Event        domain.DeliveryEvent
	Notification domain.ClassifiedNotification
	DistanceKm   float64

	key     Key
	prev    float64
	hadPrev bool
}

// Monitor remembers the last distance per delivery and reports each
// threshold crossing exactly once.
type Monitor struct {
	mu   sync.Mutex
	last map[Key]float64
}

func NewMonitor() *Monitor {
	return &Monitor{
		last: make(map[Key]float64),
	}
}

// OnSample returns an alert when the sample crosses the arrived or
// approaching radius from outside, nil otherwise. A sample that jumps past
// both radii at once yields only the arrived alert.
func (m *Monitor) OnSample(s Sample) *Alert {
	distance := geo.DistanceKm(s.DriverPosition, s.CustomerPosition)
	k := s.key()

	m.mu.Lock()
	prev, seen := m.last[k]
	m.last[k] = distance
	m.mu.Unlock()

	crossed := func(radius float64) bool {
		return distance <= radius && (!seen || prev > radius)
	}

	var ev domain.DeliveryEvent
	switch {
	case crossed(ArrivedRadiusKm):
		ev = domain.DeliveryEvent{
			Type:        domain.EventDriverArrived,
			OrderID:     s.OrderID,
			DriverID:    s.Driver.ID,
			DriverName:  s.Driver.Name,
			DriverPhone: s.Driver.Phone,
		}
	case crossed(ApproachingRadiusKm):
		ev = domain.DeliveryEvent{
			Type:        domain.EventDriverApproaching,
			OrderID:     s.OrderID,
			DriverID:    s.Driver.ID,
			DriverName:  s.Driver.Name,
			DriverPhone: s.Driver.Phone,
			ETA:         domain.Minutes(EstimateMinutes(distance)),
		}
	default:
		return nil
	}

	return &Alert{
		Event:        ev,
		Notification: classify.Classify(ev),
		DistanceKm:   distance,
		key:          k,
		prev:         prev,
		hadPrev:      seen,
	}
}

// Rollback undoes the state change of the sample that produced a, so the
// next sample can cross again. It is a no-op once a later sample for the
// same delivery has been recorded.
func (m *Monitor) Rollback(a *Alert) {
	if a == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.last[a.key]
	if !ok || cur != a.DistanceKm {
		return
	}
	if a.hadPrev {
		m.last[a.key] = a.prev
	} else {
		delete(m.last, a.key)
	}
}

// Clear drops every tracked pair for the order. Call it when the delivery
// reaches a terminal status.
func (m *Monitor) Clear(orderID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for k := range m.last {
		if k.OrderID == orderID {
			delete(m.last, k)
			removed++
		}
	}
	return removed
}

// Tracked returns the number of deliveries with retained state.
func (m *Monitor) Tracked() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.last)
}

func EstimateMinutes(distanceKm float64) int {
	return int(math.Round(distanceKm * MinutesPerKm))
}
