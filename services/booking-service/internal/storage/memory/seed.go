package memory

import (
	"github.com/google/uuid"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/model"
	"github.com/shopspring/decimal"
)

// Demo names the directory records created by SeedDemo.
type Demo struct {
	BusinessID string
	ClientID   string
	SubjectID  string
	ServiceID  string
}

// SeedDemo adds one client, one subject and a 60 minute 15.00 service to
// businessID. Ids are derived from businessID so repeated runs agree.
func (s *Store) SeedDemo(businessID string) Demo {
	id := func(kind string) string {
		return uuid.NewSHA1(uuid.NameSpaceURL, []byte("groomdesk:"+businessID+":"+kind)).String()
	}
	d := Demo{
		BusinessID: businessID,
		ClientID:   id("client"),
		SubjectID:  id("subject"),
		ServiceID:  id("service"),
	}
	s.PutClient(model.Client{ID: d.ClientID, BusinessID: businessID, Name: "Ada Lovelace", Email: "ada@example.com"})
	s.PutSubject(model.Subject{ID: d.SubjectID, ClientID: d.ClientID, Name: "Biscuit", Species: "dog"})
	s.PutService(model.Service{
		ID:              d.ServiceID,
		BusinessID:      businessID,
		Name:            "Full groom",
		Price:           decimal.RequireFromString("15.00"),
		DurationMinutes: 60,
	})
	return d
}
