package risk

import (
	"context"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"advocate_backend/internal/audit"
	catalog "advocate_backend/internal/catalog/repository"
	"advocate_backend/internal/events"
	"advocate_backend/internal/leads/domain"
	"advocate_backend/internal/leads/repository"
	"advocate_backend/platform/ai"
	"advocate_backend/platform/apperr"
	"advocate_backend/platform/logger"
)

func TestAssessScoreAndLevel(t *testing.T) {
	cases := []struct {
		name      string
		sentiment float64
		silence   time.Duration
		msgCount  int
		wantScore int
		wantLevel domain.RiskLevel
	}{
		{"negative quiet and thin", -0.4, 80 * time.Hour, 2, 5, domain.RiskHigh},
		{"mildly negative and quiet", -0.1, 30 * time.Hour, 5, 2, domain.RiskMedium},
		{"healthy conversation", 0.2, 10 * time.Hour, 10, 0, domain.RiskLow},
		{"boundary sentiment scores one", -0.3, time.Hour, 5, 1, domain.RiskLow},
		{"silence just over a day", 0.2, 25 * time.Hour, 2, 2, domain.RiskMedium},
		{"three days of silence alone is medium", 0.5, 80 * time.Hour, 6, 2, domain.RiskMedium},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := assess(tc.sentiment, tc.silence, tc.msgCount, nil)
			if got.Score != tc.wantScore {
				t.Fatalf("score = %d, want %d", got.Score, tc.wantScore)
			}
			if got.Level != tc.wantLevel {
				t.Fatalf("level = %q, want %q", got.Level, tc.wantLevel)
			}
		})
	}
}

func inbound(body string) domain.Message {
	return domain.Message{Direction: domain.DirectionInbound, Origin: domain.OriginHuman, Body: body}
}

func TestIdentifyFactors(t *testing.T) {
	cases := []struct {
		name      string
		sentiment float64
		silence   time.Duration
		msgCount  int
		messages  []domain.Message
		want      []string
	}{
		{
			name:      "very negative beats trend tag",
			sentiment: -0.6,
			silence:   time.Hour,
			msgCount:  5,
			want:      []string{"very_negative_sentiment"},
		},
		{
			name:      "negative trend",
			sentiment: -0.25,
			silence:   time.Hour,
			msgCount:  5,
			want:      []string{"negative_sentiment_trend"},
		},
		{
			name:      "silence tiers are exclusive",
			sentiment: 0.5,
			silence:   50 * time.Hour,
			msgCount:  5,
			want:      []string{"no_response_48h"},
		},
		{
			name:      "longest silence tier",
			sentiment: 0.5,
			silence:   80 * time.Hour,
			msgCount:  5,
			want:      []string{"no_response_72h"},
		},
		{
			name:      "thin conversation",
			sentiment: 0.5,
			silence:   time.Hour,
			msgCount:  2,
			want:      []string{"limited_engagement"},
		},
		{
			name:      "price talk with negative tone",
			sentiment: -0.1,
			silence:   time.Hour,
			msgCount:  5,
			messages:  []domain.Message{inbound("That is too expensive for me")},
			want:      []string{"price_concern_negative_sentiment"},
		},
		{
			name:      "price talk with neutral tone",
			sentiment: 0.1,
			silence:   time.Hour,
			msgCount:  5,
			messages:  []domain.Message{inbound("Does insurance cover part of the price?")},
			want:      []string{"recent_price_discussion"},
		},
		{
			name:      "anxiety and competitor signals",
			sentiment: 0.1,
			silence:   time.Hour,
			msgCount:  5,
			messages: []domain.Message{
				inbound("I am nervous about the drilling"),
				inbound("I am also comparing with another practice"),
			},
			want: []string{"dental_anxiety_signals", "considering_competitors"},
		},
		{
			name:      "price mention outside the last three messages is ignored",
			sentiment: 0.1,
			silence:   time.Hour,
			msgCount:  5,
			messages: []domain.Message{
				inbound("What is the price of whitening?"),
				inbound("Thanks"),
				inbound("See you"),
				inbound("One more thing"),
			},
			want: nil,
		},
		{
			name:      "ghosting staff",
			sentiment: 0.1,
			silence:   30 * time.Hour,
			msgCount:  5,
			messages: []domain.Message{
				{Direction: domain.DirectionOutbound, Origin: domain.OriginHuman, Body: "Dr. Patel here, give me a call."},
			},
			want: []string{"no_response_24h", "no_response_after_human"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := identifyFactors(tc.sentiment, tc.silence, tc.msgCount, tc.messages)
			if len(got) != len(tc.want) {
				t.Fatalf("factors = %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("factors = %v, want %v", got, tc.want)
				}
			}
		})
	}
}

func TestNextStatus(t *testing.T) {
	now := time.Now().UTC()
	contact := func(ago time.Duration) *time.Time {
		t := now.Add(-ago)
		return &t
	}

	cases := []struct {
		name string
		lead domain.Lead
		leve domain.RiskLevel
		want domain.Status
	}{
		{"active goes at risk on high", domain.Lead{Status: domain.StatusActive}, domain.RiskHigh, domain.StatusAtRisk},
		{"active stays on medium", domain.Lead{Status: domain.StatusActive}, domain.RiskMedium, ""},
		{"at risk goes cold after a week of high", domain.Lead{Status: domain.StatusAtRisk, LastContact: contact(169 * time.Hour)}, domain.RiskHigh, domain.StatusCold},
		{"at risk stays under a week despite high", domain.Lead{Status: domain.StatusAtRisk, LastContact: contact(100 * time.Hour)}, domain.RiskHigh, ""},
		{"at risk goes cold after two weeks regardless", domain.Lead{Status: domain.StatusAtRisk, LastContact: contact(340 * time.Hour)}, domain.RiskLow, domain.StatusCold},
		{"at risk stays warm under two weeks on low", domain.Lead{Status: domain.StatusAtRisk, LastContact: contact(200 * time.Hour)}, domain.RiskLow, ""},
		{"at risk never contacted goes cold", domain.Lead{Status: domain.StatusAtRisk}, domain.RiskLow, domain.StatusCold},
		{"cold never transitions here", domain.Lead{Status: domain.StatusCold}, domain.RiskHigh, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := nextStatus(tc.lead, tc.leve, now); got != tc.want {
				t.Fatalf("nextStatus = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestWeightedAverageFavorsRecent(t *testing.T) {
	// Oldest positive, newest negative. The plain mean is zero but the
	// weighted mean must lean negative.
	got := weightedAverage([]float64{1, -1})
	want := (1*1 + -1*2) / 3.0
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("weightedAverage = %v, want %v", got, want)
	}
	if got >= 0 {
		t.Fatalf("weightedAverage = %v, want negative", got)
	}

	if got := weightedAverage(nil); got != 0 {
		t.Fatalf("weightedAverage(nil) = %v, want 0", got)
	}
}

func TestConversationSentimentScoresEverySender(t *testing.T) {
	analyzer := NewAnalyzer()

	// A conversation made only of outbound turns still carries a tone.
	messages := []domain.Message{
		{Direction: domain.DirectionOutbound, Origin: domain.OriginAssistant, Body: "This is wonderful fantastic great news!"},
	}
	if got := analyzer.ConversationSentiment(messages); got <= 0 {
		t.Fatalf("sentiment over positive outbound turn = %v, want positive", got)
	}

	messages = append(messages, domain.Message{
		Direction: domain.DirectionInbound,
		Origin:    domain.OriginHuman,
		Body:      "This is terrible, I am very unhappy and disappointed.",
	})
	if got := analyzer.ConversationSentiment(messages); got >= 0 {
		t.Fatalf("sentiment = %v, want negative after recent unhappy turn", got)
	}
}

// Sweep-level fixtures.

type riskRepo struct {
	mu          sync.Mutex
	leads       []domain.Lead
	transcript  map[uuid.UUID][]domain.Message
	counts      map[uuid.UUID]int
	riskUpdates []repository.RiskUpdate
	sent        []repository.OutreachRecord
}

func newRiskRepo(leads ...domain.Lead) *riskRepo {
	return &riskRepo{
		leads:      leads,
		transcript: make(map[uuid.UUID][]domain.Message),
		counts:     make(map[uuid.UUID]int),
	}
}

func (f *riskRepo) CreateLead(context.Context, repository.CreateLeadParams) (domain.Lead, error) {
	return domain.Lead{}, nil
}

func (f *riskRepo) GetLeadByID(context.Context, uuid.UUID) (domain.Lead, error) {
	return domain.Lead{}, nil
}

func (f *riskRepo) GetLeadByPhone(context.Context, string) (domain.Lead, error) {
	return domain.Lead{}, nil
}

func (f *riskRepo) ListLeadsByStatus(_ context.Context, statuses []domain.Status) ([]domain.Lead, error) {
	var out []domain.Lead
	for _, lead := range f.leads {
		for _, status := range statuses {
			if lead.Status == status {
				out = append(out, lead)
			}
		}
	}
	return out, nil
}

func (f *riskRepo) UpdateLeadStatus(context.Context, uuid.UUID, domain.Status) error { return nil }

func (f *riskRepo) UpdateLeadRisk(_ context.Context, update repository.RiskUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.riskUpdates = append(f.riskUpdates, update)
	return nil
}

func (f *riskRepo) TouchLastContact(context.Context, uuid.UUID, time.Time) error { return nil }

func (f *riskRepo) CreateMessage(context.Context, repository.CreateMessageParams) (domain.Message, error) {
	return domain.Message{}, nil
}

func (f *riskRepo) SetMessageIntent(context.Context, uuid.UUID, string) error { return nil }

func (f *riskRepo) ListRecentMessages(_ context.Context, leadID uuid.UUID, _ int) ([]domain.Message, error) {
	return f.transcript[leadID], nil
}

func (f *riskRepo) LastMessage(context.Context, uuid.UUID) (*domain.Message, error) {
	return nil, nil
}

func (f *riskRepo) CountMessages(_ context.Context, leadID uuid.UUID) (int, error) {
	return f.counts[leadID], nil
}

func (f *riskRepo) RecordOutreach(_ context.Context, record repository.OutreachRecord) (domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, record)
	return domain.Message{ID: uuid.New(), LeadID: record.LeadID, Body: record.Body}, nil
}

func (f *riskRepo) LastStrategyAt(context.Context, uuid.UUID, []string) (*time.Time, error) {
	return nil, nil
}

func (f *riskRepo) CountByStatus(context.Context) ([]repository.StatusCount, error) { return nil, nil }

func (f *riskRepo) TopAtRisk(context.Context, int) ([]domain.Lead, error) { return nil, nil }

var _ repository.LeadsRepository = (*riskRepo)(nil)

type recordingAuditRepo struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingAuditRepo) Insert(_ context.Context, eventType, _ string, _ *uuid.UUID, _ map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
	return nil
}

func (r *recordingAuditRepo) has(eventType string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == eventType {
			return true
		}
	}
	return false
}

type offerCatalog struct{}

func (offerCatalog) ActiveOffer(context.Context, string) (catalog.Offer, error) {
	return catalog.Offer{Title: "20% off your first whitening", Body: "Valid this month."}, nil
}

func (offerCatalog) ActiveTestimonial(context.Context, string) (catalog.Testimonial, error) {
	return catalog.Testimonial{}, apperr.NotFound("no active testimonial available")
}

type cannedModel struct {
	response string
	err      error
}

func (m cannedModel) Complete(context.Context, ai.Request) (string, error) {
	return m.response, m.err
}

func newTestScorer(repo *riskRepo, auditRepo *recordingAuditRepo, model ai.Client) *Scorer {
	log := logger.New("test")
	auditLog := audit.New(auditRepo, log)
	intervener := NewIntervener(repo, model, offerCatalog{}, auditLog, log, time.Second)
	return NewScorer(repo, NewAnalyzer(), intervener, auditLog, events.NewInMemoryBus(log), log)
}

// strugglingLead is an active lead whose last message is old and unhappy,
// enough for a high risk level.
func strugglingLead(repo *riskRepo) domain.Lead {
	lead := domain.Lead{
		ID:        uuid.New(),
		Name:      "Ines Moreau",
		Status:    domain.StatusActive,
		RiskLevel: domain.RiskLow,
		CreatedAt: time.Now().Add(-200 * time.Hour),
	}
	repo.leads = append(repo.leads, lead)
	repo.transcript[lead.ID] = []domain.Message{
		{Direction: domain.DirectionInbound, Origin: domain.OriginHuman,
			Body: "This is too expensive, I am really unhappy and disappointed.", CreatedAt: time.Now().Add(-100 * time.Hour)},
	}
	repo.counts[lead.ID] = 1
	return lead
}

func TestSweepPromotesAndIntervenesOnHighRisk(t *testing.T) {
	repo := newRiskRepo()
	strugglingLead(repo)
	auditRepo := &recordingAuditRepo{}
	scorer := newTestScorer(repo, auditRepo, cannedModel{response: `{"message": "We hear you on the cost, let me help."}`})

	stats, err := scorer.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if stats.NewlyAtRisk != 1 {
		t.Fatalf("stats = %+v, want one newly at risk", stats)
	}
	if stats.InterventionsSent != 1 || stats.AggressiveOffersSent != 1 {
		t.Fatalf("stats = %+v, want one intervention and one offer", stats)
	}

	if len(repo.riskUpdates) != 1 {
		t.Fatalf("risk updates = %d, want 1", len(repo.riskUpdates))
	}
	update := repo.riskUpdates[0]
	if update.Level != domain.RiskHigh {
		t.Fatalf("level = %q, want high", update.Level)
	}
	if update.NewStatus == nil || *update.NewStatus != domain.StatusAtRisk {
		t.Fatalf("new status = %v, want at_risk", update.NewStatus)
	}
	if update.Sentiment >= 0 {
		t.Fatalf("stored sentiment = %v, want negative", update.Sentiment)
	}

	if len(repo.sent) != 2 {
		t.Fatalf("sent = %d, want predictive message plus offer", len(repo.sent))
	}
	if repo.sent[0].Strategy != StrategyPredictive || repo.sent[1].Strategy != StrategyRetentionOffer {
		t.Fatalf("strategies = %q, %q", repo.sent[0].Strategy, repo.sent[1].Strategy)
	}
	if !strings.Contains(repo.sent[1].Body, "20% off") {
		t.Fatalf("offer body = %q, want catalog offer mentioned", repo.sent[1].Body)
	}

	if !auditRepo.has("risk_level_change") {
		t.Fatalf("audit events = %v, want risk_level_change", auditRepo.events)
	}
}

func TestSweepChecksInOnMediumAtRiskLead(t *testing.T) {
	repo := newRiskRepo()
	lead := domain.Lead{
		ID:        uuid.New(),
		Name:      "Sam Rivera",
		Status:    domain.StatusAtRisk,
		RiskLevel: domain.RiskHigh,
		CreatedAt: time.Now().Add(-100 * time.Hour),
	}
	now := time.Now()
	lead.LastContact = &now
	repo.leads = append(repo.leads, lead)
	// A fresh neutral message: only the thin conversation and a mild gap
	// remain, which lands on medium.
	repo.transcript[lead.ID] = []domain.Message{
		{Direction: domain.DirectionInbound, Origin: domain.OriginHuman,
			Body: "Okay.", CreatedAt: time.Now().Add(-30 * time.Hour)},
	}
	repo.counts[lead.ID] = 1
	auditRepo := &recordingAuditRepo{}
	scorer := newTestScorer(repo, auditRepo, cannedModel{err: context.DeadlineExceeded})

	stats, err := scorer.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if stats.InterventionsSent != 1 || stats.AggressiveOffersSent != 0 {
		t.Fatalf("stats = %+v, want one mild intervention", stats)
	}
	if len(repo.sent) != 1 || repo.sent[0].Strategy != StrategyCheckIn {
		t.Fatalf("sent = %+v, want one check-in", repo.sent)
	}
}

func TestSweepDemotesSilentAtRiskLeadToCold(t *testing.T) {
	repo := newRiskRepo()
	contact := time.Now().Add(-400 * time.Hour)
	lead := domain.Lead{
		ID:          uuid.New(),
		Name:        "Ines Moreau",
		Status:      domain.StatusAtRisk,
		RiskLevel:   domain.RiskHigh,
		LastContact: &contact,
		CreatedAt:   time.Now().Add(-500 * time.Hour),
	}
	repo.leads = append(repo.leads, lead)
	repo.counts[lead.ID] = 1
	auditRepo := &recordingAuditRepo{}
	scorer := newTestScorer(repo, auditRepo, cannedModel{err: context.DeadlineExceeded})

	stats, err := scorer.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if stats.MarkedCold != 1 {
		t.Fatalf("stats = %+v, want one lead marked cold", stats)
	}
	update := repo.riskUpdates[0]
	if update.NewStatus == nil || *update.NewStatus != domain.StatusCold {
		t.Fatalf("new status = %v, want cold", update.NewStatus)
	}
	if update.ReasonForCold == nil || *update.ReasonForCold == "" {
		t.Fatal("expected a recorded reason for cold")
	}
	// A lead on its way out gets no intervention message.
	if len(repo.sent) != 0 {
		t.Fatalf("sent = %d, want none", len(repo.sent))
	}
}

func TestSweepSkipsIneligibleStatuses(t *testing.T) {
	repo := newRiskRepo(
		domain.Lead{ID: uuid.New(), Status: domain.StatusNew},
		domain.Lead{ID: uuid.New(), Status: domain.StatusCold},
		domain.Lead{ID: uuid.New(), Status: domain.StatusHumanHandoff},
	)
	auditRepo := &recordingAuditRepo{}
	scorer := newTestScorer(repo, auditRepo, cannedModel{err: context.DeadlineExceeded})

	stats, err := scorer.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if stats.Evaluated != 0 {
		t.Fatalf("evaluated = %d, want 0", stats.Evaluated)
	}
}
