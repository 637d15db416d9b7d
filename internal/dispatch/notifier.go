package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/labor-dispatch/internal/domain"
	"github.com/cuongbtq/labor-dispatch/internal/realtime"
)

// DefaultOfferTTL matches the client-side expiry of an offer.
const DefaultOfferTTL = 60 * time.Second

// Delivery is the outcome of offering a job to one candidate.
type Delivery struct {
	LaborerID string           `json:"laborerId"`
	Outcome   realtime.Outcome `json:"-"`
}

// NotifierConfig holds notifier configuration
type NotifierConfig struct {
	Pusher Pusher
	Logger *slog.Logger
	// TrackOffers remembers who was offered a job so Retract can push
	// job_taken to the candidates that lost.
	TrackOffers bool
	OfferTTL    time.Duration
	Now         func() time.Time
}

type sentOffer struct {
	candidates []string
	sentAt     time.Time
}

// Notifier broadcasts job offers to candidates. Each send is independent:
// one dropped offer never affects the others.
type Notifier struct {
	pusher      Pusher
	logger      *slog.Logger
	trackOffers bool
	offerTTL    time.Duration
	now         func() time.Time

	mu     sync.Mutex
	offers map[string]sentOffer
}

// NewNotifier creates a new Notifier
func NewNotifier(cfg *NotifierConfig) *Notifier {
	ttl := cfg.OfferTTL
	if ttl <= 0 {
		ttl = DefaultOfferTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Notifier{
		pusher:      cfg.Pusher,
		logger:      cfg.Logger,
		trackOffers: cfg.TrackOffers,
		offerTTL:    ttl,
		now:         now,
		offers:      make(map[string]sentOffer),
	}
}

// Notify pushes a new_job offer to every candidate and reports each outcome
// in candidate order.
func (n *Notifier) Notify(ctx context.Context, candidates []string, job *domain.JobOffer) []Delivery {
	deliveries := n.broadcast(candidates, realtime.NewJobMessage(job))

	delivered := 0
	for _, d := range deliveries {
		if d.Outcome.Delivered {
			delivered++
			continue
		}
		n.logger.Debug("Offer not delivered",
			slog.String("job_id", job.ID),
			slog.String("laborer_id", d.LaborerID),
			slog.String("reason", string(d.Outcome.Reason)),
		)
	}

	n.logger.Info("Job offers dispatched",
		slog.String("job_id", job.ID),
		slog.Int("candidates", len(candidates)),
		slog.Int("delivered", delivered),
	)

	if n.trackOffers && len(candidates) > 0 {
		n.remember(job.ID, candidates)
	}

	return deliveries
}

// Retract tells every still-tracked candidate except winner that the job is
// gone. It is a no-op unless offer tracking is enabled.
func (n *Notifier) Retract(jobID, winner string) []Delivery {
	if !n.trackOffers {
		return nil
	}

	n.mu.Lock()
	offer, ok := n.offers[jobID]
	delete(n.offers, jobID)
	n.mu.Unlock()

	if !ok || n.now().Sub(offer.sentAt) > n.offerTTL {
		return nil
	}

	losers := make([]string, 0, len(offer.candidates))
	for _, id := range offer.candidates {
		if id != winner {
			losers = append(losers, id)
		}
	}

	deliveries := n.broadcast(losers, realtime.JobTakenMessage(jobID))
	n.logger.Debug("Offer retracted",
		slog.String("job_id", jobID),
		slog.Int("notified", len(deliveries)),
	)
	return deliveries
}

func (n *Notifier) broadcast(recipients []string, msg realtime.Message) []Delivery {
	deliveries := make([]Delivery, len(recipients))

	// a slow peer must not hold up the others
	var wg sync.WaitGroup
	for i, id := range recipients {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			deliveries[i] = Delivery{
				LaborerID: id,
				Outcome:   n.pusher.Send(id, msg),
			}
		}(i, id)
	}
	wg.Wait()

	return deliveries
}

func (n *Notifier) remember(jobID string, candidates []string) {
	now := n.now()

	n.mu.Lock()
	defer n.mu.Unlock()

	for id, offer := range n.offers {
		if now.Sub(offer.sentAt) > n.offerTTL {
			delete(n.offers, id)
		}
	}
	n.offers[jobID] = sentOffer{
		candidates: append([]string(nil), candidates...),
		sentAt:     now,
	}
}
