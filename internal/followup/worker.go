// Package followup schedules and delivers delayed nudge messages to
// leads through a River queue backed by Postgres. Jobs re-check the
// lead's status at execution time so a lead that converted or was lost
// while the job sat in the queue is skipped silently.
package followup

import (
	"context"
	"fmt"

	"github.com/riverqueue/river"
	"github.com/rs/zerolog/log"

	"github.com/leadline/internal/store"
)

// FollowUpArgs carries the payload of a scheduled follow-up job.
type FollowUpArgs struct {
	LeadID  int64  `json:"lead_id"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// Kind returns the job kind for River
func (FollowUpArgs) Kind() string {
	return "follow_up"
}

// LeadStore is the durable lead surface the worker needs.
type LeadStore interface {
	FindByID(ctx context.Context, id int64) (*store.Lead, error)
	IncrementFollowUp(ctx context.Context, id int64) error
}

// Sender delivers outbound messages.
type Sender interface {
	SendText(ctx context.Context, to, text string) error
}

// Worker executes follow-up jobs.
type Worker struct {
	river.WorkerDefaults[FollowUpArgs]
	leads  LeadStore
	sender Sender
}

// NewWorker creates a follow-up worker
func NewWorker(leads LeadStore, sender Sender) *Worker {
	return &Worker{leads: leads, sender: sender}
}

// Work re-fetches the lead and sends the follow-up unless the lead has
// reached a terminal status. A skip is a success, not a retry.
func (w *Worker) Work(ctx context.Context, job *river.Job[FollowUpArgs]) error {
	args := job.Args

	lead, err := w.leads.FindByID(ctx, args.LeadID)
	if err != nil {
		return fmt.Errorf("failed to load lead %d: %w", args.LeadID, err)
	}
	if lead == nil {
		log.Info().Int64("leadId", args.LeadID).Msg("Follow-up skipped, lead no longer exists")
		return nil
	}
	if lead.Status == store.LeadPaid || lead.Status == store.LeadLost {
		log.Info().
			Int64("leadId", lead.ID).
			Str("status", string(lead.Status)).
			Msg("Follow-up skipped, lead in terminal status")
		return nil
	}

	if err := w.sender.SendText(ctx, args.Phone, args.Message); err != nil {
		return fmt.Errorf("failed to send follow-up to %s: %w", args.Phone, err)
	}

	if err := w.leads.IncrementFollowUp(ctx, lead.ID); err != nil {
		log.Warn().Err(err).Int64("leadId", lead.ID).Msg("Failed to record follow-up count")
	}

	log.Info().Int64("leadId", lead.ID).Str("phone", args.Phone).Msg("Follow-up sent")
	return nil
}
