// Package lead tracks the sales lifecycle of a user. Every status change
// goes through the transition table; there is no way to jump a stage.
package lead

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/leadline/internal/store"
)

// transitions maps each status to the statuses it may move to. A lost
// lead can be revived back to new; paid is terminal.
var transitions = map[store.LeadStatus][]store.LeadStatus{
	store.LeadNew:       {store.LeadContacted, store.LeadLost},
	store.LeadContacted: {store.LeadQualified, store.LeadLost},
	store.LeadQualified: {store.LeadConverted, store.LeadLost},
	store.LeadConverted: {store.LeadPaid, store.LeadLost},
	store.LeadPaid:      {},
	store.LeadLost:      {store.LeadNew},
}

// InvalidTransitionError reports a status change the lifecycle does not
// allow, carrying the set of statuses that would have been valid.
type InvalidTransitionError struct {
	From    store.LeadStatus
	To      store.LeadStatus
	Allowed []store.LeadStatus
}

func (e *InvalidTransitionError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, s := range e.Allowed {
		allowed[i] = string(s)
	}
	return fmt.Sprintf("cannot transition lead from %s to %s (allowed: %s)",
		e.From, e.To, strings.Join(allowed, ", "))
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to store.LeadStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// LeadStore is the durable lead surface the service needs.
type LeadStore interface {
	FindByID(ctx context.Context, id int64) (*store.Lead, error)
	FindByUser(ctx context.Context, userID int64) (*store.Lead, error)
	Create(ctx context.Context, userID int64, phone, name, source string) (*store.Lead, error)
	UpdateStatus(ctx context.Context, id int64, status store.LeadStatus) error
	AddNote(ctx context.Context, leadID int64, note, addedBy string) (*store.LeadNote, error)
	List(ctx context.Context, params store.ListLeadsParams) ([]store.Lead, int, error)
}

// UserStore mirrors the lead status onto the owning user row.
type UserStore interface {
	UpdateLeadStatus(ctx context.Context, id int64, status store.LeadStatus) error
}

// Service owns lead lifecycle operations.
type Service struct {
	leads LeadStore
	users UserStore
}

// NewService creates a lead service
func NewService(leads LeadStore, users UserStore) *Service {
	return &Service{leads: leads, users: users}
}

// GetOrCreate returns the lead for a user, creating one in status new on
// first contact. Idempotent: repeat calls return the existing lead.
func (s *Service) GetOrCreate(ctx context.Context, user *store.User) (*store.Lead, error) {
	lead, err := s.leads.FindByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if lead != nil {
		return lead, nil
	}

	lead, err = s.leads.Create(ctx, user.ID, user.Phone, user.Name, "whatsapp")
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdateLeadStatus(ctx, user.ID, store.LeadNew); err != nil {
		log.Warn().Err(err).Int64("userId", user.ID).Msg("Failed to mirror lead status onto user")
	}
	log.Info().Int64("leadId", lead.ID).Str("phone", lead.Phone).Msg("New lead")
	return lead, nil
}

// Transition moves a lead to target, enforcing the lifecycle table. The
// user row is updated to match so list views stay consistent.
func (s *Service) Transition(ctx context.Context, id int64, target store.LeadStatus) (*store.Lead, error) {
	lead, err := s.leads.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if lead == nil {
		return nil, fmt.Errorf("lead %d not found", id)
	}

	if !CanTransition(lead.Status, target) {
		return nil, &InvalidTransitionError{
			From:    lead.Status,
			To:      target,
			Allowed: transitions[lead.Status],
		}
	}

	if err := s.leads.UpdateStatus(ctx, id, target); err != nil {
		return nil, err
	}
	if err := s.users.UpdateLeadStatus(ctx, lead.UserID, target); err != nil {
		log.Warn().Err(err).Int64("userId", lead.UserID).Msg("Failed to mirror lead status onto user")
	}

	log.Info().
		Int64("leadId", id).
		Str("from", string(lead.Status)).
		Str("to", string(target)).
		Msg("Lead status changed")

	lead.Status = target
	return lead, nil
}

// AddNote appends a note to a lead's history.
func (s *Service) AddNote(ctx context.Context, leadID int64, note, addedBy string) (*store.LeadNote, error) {
	lead, err := s.leads.FindByID(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if lead == nil {
		return nil, fmt.Errorf("lead %d not found", leadID)
	}
	return s.leads.AddNote(ctx, leadID, note, addedBy)
}

// List returns a page of leads.
func (s *Service) List(ctx context.Context, params store.ListLeadsParams) ([]store.Lead, int, error) {
	return s.leads.List(ctx, params)
}
