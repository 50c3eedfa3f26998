// Package memory is an in-process storage.Store. Units of work run one at a
// time against a private copy of the data that replaces the live copy only on
// success.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/invoicing"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/storage"
)

type seqKey struct {
	businessID string
	year       int
}

type idemKey struct {
	businessID string
	key        string
}

type state struct {
	appointments   map[string]model.Appointment
	invoices       map[string]model.Invoice
	sequences      map[seqKey]int
	reminders      map[string]model.Reminder
	events         []model.Event
	idempotency    map[idemKey]*model.Appointment
	providerEvents map[string]time.Time
}

func newState() *state {
	return &state{
		appointments:   map[string]model.Appointment{},
		invoices:       map[string]model.Invoice{},
		sequences:      map[seqKey]int{},
		reminders:      map[string]model.Reminder{},
		idempotency:    map[idemKey]*model.Appointment{},
		providerEvents: map[string]time.Time{},
	}
}

func (s *state) clone() *state {
	c := &state{
		appointments:   make(map[string]model.Appointment, len(s.appointments)),
		invoices:       make(map[string]model.Invoice, len(s.invoices)),
		sequences:      make(map[seqKey]int, len(s.sequences)),
		reminders:      make(map[string]model.Reminder, len(s.reminders)),
		events:         append([]model.Event(nil), s.events...),
		idempotency:    make(map[idemKey]*model.Appointment, len(s.idempotency)),
		providerEvents: make(map[string]time.Time, len(s.providerEvents)),
	}
	for k, v := range s.appointments {
		c.appointments[k] = v
	}
	for k, v := range s.invoices {
		c.invoices[k] = v
	}
	for k, v := range s.sequences {
		c.sequences[k] = v
	}
	for k, v := range s.reminders {
		c.reminders[k] = v
	}
	for k, v := range s.idempotency {
		c.idempotency[k] = v
	}
	for k, v := range s.providerEvents {
		c.providerEvents[k] = v
	}
	return c
}

type Store struct {
	mu   sync.Mutex
	data *state

	dirMu    sync.RWMutex
	clients  map[string]model.Client
	subjects map[string]model.Subject
	services map[string]model.Service
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		data:     newState(),
		clients:  map[string]model.Client{},
		subjects: map[string]model.Subject{},
		services: map[string]model.Service{},
	}
}

func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(ctx, &tx{st: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (s *Store) ListAppointments(ctx context.Context, businessID string, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Appointment
	for _, a := range s.data.appointments {
		if a.BusinessID == businessID && a.DeletedAt == nil {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.After(out[j].StartTime)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Client(_ context.Context, businessID, clientID string) (model.Client, error) {
	s.dirMu.RLock()
	defer s.dirMu.RUnlock()
	c, ok := s.clients[clientID]
	if !ok || c.BusinessID != businessID || c.DeletedAt != nil {
		return model.Client{}, storage.ErrNotFound
	}
	return c, nil
}

func (s *Store) Subject(_ context.Context, clientID, subjectID string) (model.Subject, error) {
	s.dirMu.RLock()
	defer s.dirMu.RUnlock()
	sub, ok := s.subjects[subjectID]
	if !ok || sub.ClientID != clientID || sub.DeletedAt != nil {
		return model.Subject{}, storage.ErrNotFound
	}
	return sub, nil
}

func (s *Store) Service(_ context.Context, businessID, serviceID string) (model.Service, error) {
	s.dirMu.RLock()
	defer s.dirMu.RUnlock()
	svc, ok := s.services[serviceID]
	if !ok || svc.BusinessID != businessID {
		return model.Service{}, storage.ErrNotFound
	}
	return svc, nil
}

func (s *Store) PutClient(c model.Client) {
	s.dirMu.Lock()
	defer s.dirMu.Unlock()
	s.clients[c.ID] = c
}

func (s *Store) PutSubject(sub model.Subject) {
	s.dirMu.Lock()
	defer s.dirMu.Unlock()
	s.subjects[sub.ID] = sub
}

func (s *Store) PutService(svc model.Service) {
	s.dirMu.Lock()
	defer s.dirMu.Unlock()
	s.services[svc.ID] = svc
}

// Snapshot accessors for tests and the dev-mode dump.

func (s *Store) Appointments() []model.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Appointment, 0, len(s.data.appointments))
	for _, a := range s.data.appointments {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) || (out[i].CreatedAt.Equal(out[j].CreatedAt) && out[i].ID < out[j].ID) })
	return out
}

func (s *Store) Invoices() []model.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Invoice, 0, len(s.data.invoices))
	for _, inv := range s.data.invoices {
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return invoiceLess(out[i], out[j]) })
	return out
}

// invoiceLess orders by (year, sequence) so widened numbers sort after 999.
func invoiceLess(a, b model.Invoice) bool {
	ay, as, aok := invoicing.ParseNumber(a.InvoiceNumber)
	by, bs, bok := invoicing.ParseNumber(b.InvoiceNumber)
	switch {
	case aok != bok:
		return aok
	case aok && ay != by:
		return ay < by
	case aok && as != bs:
		return as < bs
	case a.InvoiceNumber != b.InvoiceNumber:
		return a.InvoiceNumber < b.InvoiceNumber
	}
	return a.BusinessID < b.BusinessID
}

func (s *Store) Reminders() []model.Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Reminder, 0, len(s.data.reminders))
	for _, r := range s.data.reminders {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledFor.Before(out[j].ScheduledFor) || (out[i].ScheduledFor.Equal(out[j].ScheduledFor) && out[i].ID < out[j].ID) })
	return out
}

func (s *Store) Events() []model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Event(nil), s.data.events...)
}
