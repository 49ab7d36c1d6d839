package tests

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"shuttle/internal/domain"
	"shuttle/internal/repository"
)

// ──────────────────────────────────────────────
// MEMORY STORE
// ──────────────────────────────────────────────

// MemoryStore is an in-memory repository.Store. Transactions are serialized by
// a single mutex and run against a copy of the state that is only published
// when fn succeeds, so a failing operation leaves nothing behind.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState

	// Counters for verification
	TxCount       int32
	RollbackCount int32

	errMu  sync.Mutex
	errors map[string]error
}

type memState struct {
	seq           int64
	trips         map[string]domain.Trip
	enrollments   map[string]domain.Enrollment
	enrollSeq     map[string]int64
	routes        map[string]domain.Route
	points        map[string]domain.Point
	notifications map[string]domain.Notification
	notifySeq     map[string]int64
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memState{
			trips:         make(map[string]domain.Trip),
			enrollments:   make(map[string]domain.Enrollment),
			enrollSeq:     make(map[string]int64),
			routes:        make(map[string]domain.Route),
			points:        make(map[string]domain.Point),
			notifications: make(map[string]domain.Notification),
			notifySeq:     make(map[string]int64),
		},
		errors: make(map[string]error),
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		seq:           s.seq,
		trips:         make(map[string]domain.Trip, len(s.trips)),
		enrollments:   make(map[string]domain.Enrollment, len(s.enrollments)),
		enrollSeq:     make(map[string]int64, len(s.enrollSeq)),
		routes:        make(map[string]domain.Route, len(s.routes)),
		points:        make(map[string]domain.Point, len(s.points)),
		notifications: make(map[string]domain.Notification, len(s.notifications)),
		notifySeq:     make(map[string]int64, len(s.notifySeq)),
	}
	for k, v := range s.trips {
		c.trips[k] = v
	}
	for k, v := range s.enrollments {
		c.enrollments[k] = v
	}
	for k, v := range s.enrollSeq {
		c.enrollSeq[k] = v
	}
	for k, v := range s.routes {
		c.routes[k] = v
	}
	for k, v := range s.points {
		c.points[k] = v
	}
	for k, v := range s.notifications {
		c.notifications[k] = v
	}
	for k, v := range s.notifySeq {
		c.notifySeq[k] = v
	}
	return c
}

// InjectError makes the named operation (e.g. "Trips.RefreshCounts") fail with err.
func (m *MemoryStore) InjectError(op string, err error) {
	m.errMu.Lock()
	defer m.errMu.Unlock()
	m.errors[op] = err
}

func (m *MemoryStore) injected(op string) error {
	m.errMu.Lock()
	defer m.errMu.Unlock()
	return m.errors[op]
}

// Repos returns repositories reading and writing committed state directly.
func (m *MemoryStore) Repos() repository.Repositories {
	return m.reposFor(&memView{store: m, locked: false})
}

// WithinTx runs fn against a private copy of the state and publishes it on success.
func (m *MemoryStore) WithinTx(ctx context.Context, fn func(repository.Repositories) error) error {
	atomic.AddInt32(&m.TxCount, 1)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	view := &memView{store: m, locked: true, st: m.state.clone()}
	if err := fn(m.reposFor(view)); err != nil {
		atomic.AddInt32(&m.RollbackCount, 1)
		return err
	}

	m.state = view.st
	return nil
}

// Reports returns a report repository over committed state.
func (m *MemoryStore) Reports() *MemoryReports {
	return &MemoryReports{store: m}
}

func (m *MemoryStore) reposFor(v *memView) repository.Repositories {
	return repository.Repositories{
		Trips:         &memTrips{v},
		Enrollments:   &memEnrollments{v},
		Routes:        &memRoutes{v},
		Notifications: &memNotifications{v},
	}
}

// memView gives repositories access to either a transaction's private state
// (locked) or the committed state, taking the store mutex per call.
type memView struct {
	store  *MemoryStore
	locked bool
	st     *memState
}

func (v *memView) with(fn func(st *memState)) {
	if v.locked {
		fn(v.st)
		return
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	fn(v.store.state)
}

// ──────────────────────────────────────────────
// TEST SETUP AND ASSERTION HELPERS
// ──────────────────────────────────────────────

// AddRoute seeds a route.
func (m *MemoryStore) AddRoute(route domain.Route) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.routes[route.ID] = route
}

// AddPoint seeds a boarding point.
func (m *MemoryStore) AddPoint(point domain.Point) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.points[point.ID] = point
}

// CountTrips returns the number of committed trips of a route on a date.
func (m *MemoryStore) CountTrips(routeID string, date time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.state.trips {
		if t.RouteID == routeID && t.Date.Equal(date) {
			n++
		}
	}
	return n
}

// Trip returns a committed trip.
func (m *MemoryStore) Trip(id string) *domain.Trip {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.state.trips[id]
	if !ok {
		return nil
	}
	return &t
}

// Enrollment returns the committed enrollment of a passenger in a trip.
func (m *MemoryStore) Enrollment(tripID, passengerID string) *domain.Enrollment {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.state.enrollments {
		if e.TripID == tripID && e.PassengerID == passengerID {
			return &e
		}
	}
	return nil
}

// CountEnrollments returns the number of committed enrollments of a trip.
func (m *MemoryStore) CountEnrollments(tripID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.state.enrollments {
		if e.TripID == tripID {
			n++
		}
	}
	return n
}

// Notifications returns the committed notifications of a recipient.
func (m *MemoryStore) Notifications(recipientID string) []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Notification
	for _, n := range m.state.notifications {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	return out
}

// ──────────────────────────────────────────────
// TRIPS
// ──────────────────────────────────────────────

type memTrips struct{ v *memView }

func (r *memTrips) Create(ctx context.Context, trip *domain.Trip) error {
	if err := r.v.store.injected("Trips.Create"); err != nil {
		return err
	}
	var err error
	r.v.with(func(st *memState) {
		for _, t := range st.trips {
			if t.RouteID == trip.RouteID && t.Date.Equal(trip.Date) {
				err = repository.ErrDuplicate
				return
			}
		}
		st.seq++
		trip.CreatedAt = time.Now()
		st.trips[trip.ID] = *trip
	})
	return err
}

func (r *memTrips) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	var out *domain.Trip
	r.v.with(func(st *memState) {
		if t, ok := st.trips[id]; ok {
			out = &t
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (r *memTrips) GetByRouteAndDate(ctx context.Context, routeID string, date time.Time) (*domain.Trip, error) {
	var out *domain.Trip
	r.v.with(func(st *memState) {
		for _, t := range st.trips {
			if t.RouteID == routeID && t.Date.Equal(date) {
				t := t
				out = &t
				return
			}
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (r *memTrips) LockByRouteAndDate(ctx context.Context, routeID string, date time.Time) (*domain.Trip, error) {
	return r.GetByRouteAndDate(ctx, routeID, date)
}

func (r *memTrips) LockByTokenHash(ctx context.Context, tokenHash string, date time.Time) (*domain.Trip, error) {
	var out *domain.Trip
	r.v.with(func(st *memState) {
		for _, t := range st.trips {
			if t.TokenHash != "" && t.TokenHash == tokenHash && t.Date.Equal(date) && t.Status != domain.TripStatusFinished {
				t := t
				out = &t
				return
			}
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (r *memTrips) Update(ctx context.Context, trip *domain.Trip) error {
	if err := r.v.store.injected("Trips.Update"); err != nil {
		return err
	}
	err := repository.ErrNotFound
	r.v.with(func(st *memState) {
		t, ok := st.trips[trip.ID]
		if !ok {
			return
		}
		t.Status = trip.Status
		t.StartedAt = trip.StartedAt
		t.FinishedAt = trip.FinishedAt
		t.TokenHash = trip.TokenHash
		st.trips[trip.ID] = t
		err = nil
	})
	return err
}

func (r *memTrips) RefreshCounts(ctx context.Context, tripID string) (domain.TripCounts, error) {
	if err := r.v.store.injected("Trips.RefreshCounts"); err != nil {
		return domain.TripCounts{}, err
	}
	var counts domain.TripCounts
	err := repository.ErrNotFound
	r.v.with(func(st *memState) {
		t, ok := st.trips[tripID]
		if !ok {
			return
		}
		for _, e := range st.enrollments {
			if e.TripID != tripID {
				continue
			}
			counts.Planned++
			if e.Status.HasBoarded() {
				counts.Boarded++
			}
			if e.Status == domain.EnrollmentStatusDisembarked {
				counts.Disembarked++
			}
		}
		counts.Apply(&t)
		st.trips[tripID] = t
		err = nil
	})
	return counts, err
}

func (r *memTrips) DeletePlanned(ctx context.Context, id string) error {
	err := repository.ErrNotFound
	r.v.with(func(st *memState) {
		t, ok := st.trips[id]
		if !ok || t.Status != domain.TripStatusPlanned {
			return
		}
		delete(st.trips, id)
		for eid, e := range st.enrollments {
			if e.TripID == id {
				delete(st.enrollments, eid)
				delete(st.enrollSeq, eid)
			}
		}
		err = nil
	})
	return err
}

// ──────────────────────────────────────────────
// ENROLLMENTS
// ──────────────────────────────────────────────

type memEnrollments struct{ v *memView }

func (r *memEnrollments) Create(ctx context.Context, enrollment *domain.Enrollment) error {
	if err := r.v.store.injected("Enrollments.Create"); err != nil {
		return err
	}
	var err error
	r.v.with(func(st *memState) {
		for _, e := range st.enrollments {
			if e.TripID == enrollment.TripID && e.PassengerID == enrollment.PassengerID {
				err = repository.ErrDuplicate
				return
			}
		}
		st.seq++
		enrollment.CreatedAt = time.Now()
		st.enrollments[enrollment.ID] = *enrollment
		st.enrollSeq[enrollment.ID] = st.seq
	})
	return err
}

func (r *memEnrollments) GetByTripAndPassenger(ctx context.Context, tripID, passengerID string) (*domain.Enrollment, error) {
	var out *domain.Enrollment
	r.v.with(func(st *memState) {
		for _, e := range st.enrollments {
			if e.TripID == tripID && e.PassengerID == passengerID {
				e := e
				out = &e
				return
			}
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (r *memEnrollments) ListByTrip(ctx context.Context, tripID string) ([]*domain.Enrollment, error) {
	var out []*domain.Enrollment
	r.v.with(func(st *memState) {
		for _, e := range st.enrollments {
			if e.TripID == tripID {
				e := e
				out = append(out, &e)
			}
		}
		sort.Slice(out, func(i, j int) bool {
			return st.enrollSeq[out[i].ID] < st.enrollSeq[out[j].ID]
		})
	})
	return out, nil
}

func (r *memEnrollments) Update(ctx context.Context, enrollment *domain.Enrollment) error {
	if err := r.v.store.injected("Enrollments.Update"); err != nil {
		return err
	}
	err := repository.ErrNotFound
	r.v.with(func(st *memState) {
		e, ok := st.enrollments[enrollment.ID]
		if !ok {
			return
		}
		e.Status = enrollment.Status
		e.CheckInAt = enrollment.CheckInAt
		e.CheckOutAt = enrollment.CheckOutAt
		st.enrollments[enrollment.ID] = e
		err = nil
	})
	return err
}

func (r *memEnrollments) MarkAbsent(ctx context.Context, tripID string) (int, error) {
	n := 0
	r.v.with(func(st *memState) {
		for id, e := range st.enrollments {
			if e.TripID == tripID && e.Status == domain.EnrollmentStatusWaiting {
				e.Status = domain.EnrollmentStatusAbsent
				st.enrollments[id] = e
				n++
			}
		}
	})
	return n, nil
}

// ──────────────────────────────────────────────
// ROUTES
// ──────────────────────────────────────────────

type memRoutes struct{ v *memView }

func (r *memRoutes) GetByID(ctx context.Context, id string) (*domain.Route, error) {
	var out *domain.Route
	r.v.with(func(st *memState) {
		if route, ok := st.routes[id]; ok {
			out = &route
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (r *memRoutes) GetByDriverID(ctx context.Context, driverID string) (*domain.Route, error) {
	var out *domain.Route
	r.v.with(func(st *memState) {
		for _, route := range st.routes {
			if route.DriverID == driverID {
				route := route
				out = &route
				return
			}
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (r *memRoutes) GetPoint(ctx context.Context, pointID string) (*domain.Point, error) {
	var out *domain.Point
	r.v.with(func(st *memState) {
		if p, ok := st.points[pointID]; ok {
			out = &p
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

// ──────────────────────────────────────────────
// NOTIFICATIONS
// ──────────────────────────────────────────────

type memNotifications struct{ v *memView }

func (r *memNotifications) Create(ctx context.Context, n *domain.Notification) error {
	if err := r.v.store.injected("Notifications.Create"); err != nil {
		return err
	}
	r.v.with(func(st *memState) {
		st.seq++
		n.CreatedAt = time.Now()
		st.notifications[n.ID] = *n
		st.notifySeq[n.ID] = st.seq
	})
	return nil
}

func (r *memNotifications) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]*domain.Notification, error) {
	var out []*domain.Notification
	r.v.with(func(st *memState) {
		for _, n := range st.notifications {
			if n.RecipientID == recipientID {
				n := n
				out = append(out, &n)
			}
		}
		sort.Slice(out, func(i, j int) bool {
			return st.notifySeq[out[i].ID] > st.notifySeq[out[j].ID]
		})
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memNotifications) MarkRead(ctx context.Context, id, recipientID string, at time.Time) error {
	err := repository.ErrNotFound
	r.v.with(func(st *memState) {
		n, ok := st.notifications[id]
		if !ok || n.RecipientID != recipientID {
			return
		}
		if n.ReadAt.IsZero() {
			n.ReadAt = at
			st.notifications[id] = n
		}
		err = nil
	})
	return err
}

// ──────────────────────────────────────────────
// REPORTS
// ──────────────────────────────────────────────

// MemoryReports is an in-memory repository.ReportRepository over a MemoryStore.
type MemoryReports struct {
	store *MemoryStore
}

func (r *MemoryReports) DailySummary(ctx context.Context, date time.Time) ([]domain.TripSummary, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	st := r.store.state

	out := []domain.TripSummary{}
	for _, t := range st.trips {
		if !t.Date.Equal(date) {
			continue
		}
		summary := domain.TripSummary{
			TripID:           t.ID,
			RouteID:          t.RouteID,
			RouteName:        st.routes[t.RouteID].Name,
			Date:             t.Date,
			Status:           t.Status,
			PlannedCount:     t.PlannedCount,
			BoardedCount:     t.BoardedCount,
			DisembarkedCount: t.DisembarkedCount,
		}
		for _, e := range st.enrollments {
			if e.TripID == t.ID && e.Status == domain.EnrollmentStatusAbsent {
				summary.AbsentCount++
			}
		}
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RouteName < out[j].RouteName })
	return out, nil
}

func (r *MemoryReports) TripRoster(ctx context.Context, tripID string) ([]domain.RosterEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	st := r.store.state

	out := []domain.RosterEntry{}
	for _, e := range st.enrollments {
		if e.TripID != tripID {
			continue
		}
		entry := domain.RosterEntry{
			EnrollmentID: e.ID,
			PassengerID:  e.PassengerID,
			Status:       e.Status,
		}
		if e.PointID != "" {
			pointID := e.PointID
			entry.PointID = &pointID
			if p, ok := st.points[e.PointID]; ok {
				name := p.Name
				entry.PointName = &name
			}
		}
		if !e.CheckInAt.IsZero() {
			at := e.CheckInAt
			entry.CheckInAt = &at
		}
		if !e.CheckOutAt.IsZero() {
			at := e.CheckOutAt
			entry.CheckOutAt = &at
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		return st.enrollSeq[out[i].EnrollmentID] < st.enrollSeq[out[j].EnrollmentID]
	})
	return out, nil
}

func (r *MemoryReports) PassengerHistory(ctx context.Context, passengerID string, limit int) ([]domain.HistoryEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	st := r.store.state

	out := []domain.HistoryEntry{}
	for _, e := range st.enrollments {
		if e.PassengerID != passengerID {
			continue
		}
		t := st.trips[e.TripID]
		entry := domain.HistoryEntry{
			TripID:    t.ID,
			RouteName: st.routes[t.RouteID].Name,
			Date:      t.Date,
			Status:    e.Status,
		}
		if !e.CheckInAt.IsZero() {
			at := e.CheckInAt
			entry.CheckInAt = &at
		}
		if !e.CheckOutAt.IsZero() {
			at := e.CheckOutAt
			entry.CheckOutAt = &at
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ──────────────────────────────────────────────
// MOCK TRIP CACHE
// ──────────────────────────────────────────────

// MockTripCache is an in-memory service.TripCache.
type MockTripCache struct {
	mu    sync.Mutex
	trips map[string]domain.Trip

	// Counters
	HitCount        int32
	MissCount       int32
	InvalidateCount int32

	// Error injection
	GetError error
}

// NewMockTripCache creates an empty cache.
func NewMockTripCache() *MockTripCache {
	return &MockTripCache{trips: make(map[string]domain.Trip)}
}

func cacheKey(routeID string, date time.Time) string {
	return routeID + ":" + date.Format(domain.DateLayout)
}

func (c *MockTripCache) GetDailyTrip(ctx context.Context, routeID string, date time.Time) (*domain.Trip, error) {
	if c.GetError != nil {
		return nil, c.GetError
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.trips[cacheKey(routeID, date)]
	if !ok {
		atomic.AddInt32(&c.MissCount, 1)
		return nil, nil
	}
	atomic.AddInt32(&c.HitCount, 1)
	return &t, nil
}

func (c *MockTripCache) SetDailyTrip(ctx context.Context, trip *domain.Trip) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := *trip
	t.TokenHash = ""
	c.trips[cacheKey(trip.RouteID, trip.Date)] = t
	return nil
}

func (c *MockTripCache) InvalidateDailyTrip(ctx context.Context, routeID string, date time.Time) error {
	atomic.AddInt32(&c.InvalidateCount, 1)
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.trips, cacheKey(routeID, date))
	return nil
}

// ──────────────────────────────────────────────
// MOCK RECORDER
// ──────────────────────────────────────────────

// MockRecorder counts lifecycle events.
type MockRecorder struct {
	mu            sync.Mutex
	Transitions   map[string]int
	CheckEvents   map[string]int
	Notifications map[string]int
}

// NewMockRecorder creates an empty recorder.
func NewMockRecorder() *MockRecorder {
	return &MockRecorder{
		Transitions:   make(map[string]int),
		CheckEvents:   make(map[string]int),
		Notifications: make(map[string]int),
	}
}

func (r *MockRecorder) TripTransition(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Transitions[status]++
}

func (r *MockRecorder) CheckEvent(kind, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CheckEvents[kind+":"+outcome]++
}

func (r *MockRecorder) NotificationsSent(notificationType string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Notifications[notificationType] += n
}

// CheckEventCount returns the count of a kind:outcome pair.
func (r *MockRecorder) CheckEventCount(kind, outcome string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.CheckEvents[kind+":"+outcome]
}

// ──────────────────────────────────────────────
// MEMORY REDIS
// ──────────────────────────────────────────────

// MemoryRedis is a redis.Cmdable that keeps GET/SET in a map. Any other
// command panics through the nil embedded interface.
type MemoryRedis struct {
	redis.Cmdable

	mu   sync.Mutex
	data map[string][]byte
	TTLs map[string]time.Duration
}

// NewMemoryRedis creates an empty MemoryRedis.
func NewMemoryRedis() *MemoryRedis {
	return &MemoryRedis{
		data: make(map[string][]byte),
		TTLs: make(map[string]time.Duration),
	}
}

func (m *MemoryRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (m *MemoryRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = append([]byte(nil), v...)
	case string:
		data = []byte(v)
	default:
		data = []byte(fmt.Sprint(v))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = data
	m.TTLs[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

// StoredKeys returns the stored keys in sorted order.
func (m *MemoryRedis) StoredKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Value returns the raw value stored under key.
func (m *MemoryRedis) Value(key string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key]
}

// Ensure mocks implement the interfaces they stand in for.
var (
	_ repository.Store            = (*MemoryStore)(nil)
	_ repository.ReportRepository = (*MemoryReports)(nil)
	_ redis.Cmdable               = (*MemoryRedis)(nil)
)
