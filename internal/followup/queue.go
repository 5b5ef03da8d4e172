package followup

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/rs/zerolog/log"

	"github.com/leadline/internal/store"
)

// initialMessages are the automated first follow-ups per lead status.
// Statuses without an entry get no automated follow-up.
var initialMessages = map[store.LeadStatus]string{
	store.LeadNew:       "Hi! 👋 Just checking in — have you had a chance to look at our offer? Reply *YES* to know more or *STOP* to unsubscribe.",
	store.LeadContacted: "Hey! 🌟 We wanted to make sure you got all the info you need. Any questions? Our team is ready to help!",
	store.LeadQualified: "Great news! 🎉 We have a special offer ready for you. Reply *OFFER* to see details or *agent* to speak with our team.",
}

// LeadScheduleStore records scheduling state on the lead row.
type LeadScheduleStore interface {
	SetFollowUpAt(ctx context.Context, id int64, at time.Time) error
}

// Scheduler is the scheduling surface exposed to message processing.
// A nil implementation (queue unavailable) degrades to a no-op.
type Scheduler interface {
	Schedule(ctx context.Context, leadID int64, phone, message string, delay time.Duration) error
	ScheduleInitial(ctx context.Context, lead *store.Lead, delay time.Duration) error
}

// Queue wraps the River client for follow-up jobs.
type Queue struct {
	client      *river.Client[pgx.Tx]
	pool        *pgxpool.Pool
	leads       LeadScheduleStore
	maxAttempts int
	now         func() time.Time
}

// NewQueue creates the follow-up queue with its worker registered. The
// pool is owned by the queue and closed on Stop.
func NewQueue(databaseURL string, worker *Worker, leads LeadScheduleStore, maxWorkers, maxAttempts int) (*Queue, error) {
	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, worker)

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: maxWorkers},
		},
		Workers: workers,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create queue client: %w", err)
	}

	return &Queue{
		client:      client,
		pool:        pool,
		leads:       leads,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}, nil
}

// Start starts the queue workers.
func (q *Queue) Start(ctx context.Context) error {
	return q.client.Start(ctx)
}

// Stop stops the workers and closes the pool.
func (q *Queue) Stop(ctx context.Context) error {
	err := q.client.Stop(ctx)
	q.pool.Close()
	return err
}

// Schedule enqueues a follow-up for delivery after delay and stamps the
// lead with the planned time.
func (q *Queue) Schedule(ctx context.Context, leadID int64, phone, message string, delay time.Duration) error {
	runAt := q.now().Add(delay)
	_, err := q.client.Insert(ctx, FollowUpArgs{
		LeadID:  leadID,
		Phone:   phone,
		Message: message,
	}, &river.InsertOpts{
		ScheduledAt: runAt,
		MaxAttempts: q.maxAttempts,
	})
	if err != nil {
		return fmt.Errorf("failed to schedule follow-up for lead %d: %w", leadID, err)
	}

	if err := q.leads.SetFollowUpAt(ctx, leadID, runAt); err != nil {
		log.Warn().Err(err).Int64("leadId", leadID).Msg("Failed to stamp follow-up time on lead")
	}

	log.Info().
		Int64("leadId", leadID).
		Str("phone", phone).
		Time("runAt", runAt).
		Msg("Follow-up scheduled")
	return nil
}

// ScheduleInitial enqueues the automated first follow-up for a lead.
// Only fires once, on a lead that has never been followed up and is
// still in its entry status.
func (q *Queue) ScheduleInitial(ctx context.Context, lead *store.Lead, delay time.Duration) error {
	if lead.FollowUpCount != 0 || lead.Status != store.LeadNew {
		return nil
	}
	message, ok := initialMessages[lead.Status]
	if !ok {
		return nil
	}
	return q.Schedule(ctx, lead.ID, lead.Phone, message, delay)
}

// InitialMessage returns the automated follow-up text for a status, if any.
func InitialMessage(status store.LeadStatus) (string, bool) {
	m, ok := initialMessages[status]
	return m, ok
}
