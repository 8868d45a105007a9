package scanner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"advocate_backend/internal/audit"
	"advocate_backend/internal/events"
	"advocate_backend/internal/leads/domain"
	"advocate_backend/internal/leads/repository"
	"advocate_backend/platform/ai"
	"advocate_backend/platform/logger"
)

type scanRepo struct {
	mu            sync.Mutex
	leads         []domain.Lead
	lastNudge     map[uuid.UUID]*time.Time
	transcript    map[uuid.UUID][]domain.Message
	sent          []repository.OutreachRecord
	statusChanges map[uuid.UUID]domain.Status
}

func newScanRepo(leads ...domain.Lead) *scanRepo {
	return &scanRepo{
		leads:         leads,
		lastNudge:     make(map[uuid.UUID]*time.Time),
		transcript:    make(map[uuid.UUID][]domain.Message),
		statusChanges: make(map[uuid.UUID]domain.Status),
	}
}

func (f *scanRepo) CreateLead(context.Context, repository.CreateLeadParams) (domain.Lead, error) {
	return domain.Lead{}, nil
}

func (f *scanRepo) GetLeadByID(context.Context, uuid.UUID) (domain.Lead, error) {
	return domain.Lead{}, nil
}

func (f *scanRepo) GetLeadByPhone(context.Context, string) (domain.Lead, error) {
	return domain.Lead{}, nil
}

func (f *scanRepo) ListLeadsByStatus(_ context.Context, statuses []domain.Status) ([]domain.Lead, error) {
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

func (f *scanRepo) UpdateLeadStatus(_ context.Context, id uuid.UUID, status domain.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusChanges[id] = status
	return nil
}

func (f *scanRepo) UpdateLeadRisk(context.Context, repository.RiskUpdate) error { return nil }

func (f *scanRepo) TouchLastContact(context.Context, uuid.UUID, time.Time) error { return nil }

func (f *scanRepo) CreateMessage(context.Context, repository.CreateMessageParams) (domain.Message, error) {
	return domain.Message{}, nil
}

func (f *scanRepo) SetMessageIntent(context.Context, uuid.UUID, string) error { return nil }

func (f *scanRepo) ListRecentMessages(_ context.Context, leadID uuid.UUID, _ int) ([]domain.Message, error) {
	return f.transcript[leadID], nil
}

func (f *scanRepo) LastMessage(context.Context, uuid.UUID) (*domain.Message, error) {
	return nil, nil
}

func (f *scanRepo) CountMessages(context.Context, uuid.UUID) (int, error) { return 0, nil }

func (f *scanRepo) RecordOutreach(_ context.Context, record repository.OutreachRecord) (domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, record)
	return domain.Message{ID: uuid.New(), LeadID: record.LeadID}, nil
}

func (f *scanRepo) LastStrategyAt(_ context.Context, leadID uuid.UUID, _ []string) (*time.Time, error) {
	return f.lastNudge[leadID], nil
}

func (f *scanRepo) CountByStatus(context.Context) ([]repository.StatusCount, error) { return nil, nil }

func (f *scanRepo) TopAtRisk(context.Context, int) ([]domain.Lead, error) { return nil, nil }

var _ repository.LeadsRepository = (*scanRepo)(nil)

type cannedModel struct {
	response string
	err      error
}

func (m cannedModel) Complete(context.Context, ai.Request) (string, error) {
	return m.response, m.err
}

type nopAuditRepo struct{}

func (nopAuditRepo) Insert(context.Context, string, string, *uuid.UUID, map[string]any) error {
	return nil
}

func newTestScanner(repo *scanRepo, model ai.Client) *Scanner {
	log := logger.New("test")
	return New(repo, model, audit.New(nopAuditRepo{}, log), events.NewInMemoryBus(log), log, Config{
		Parallelism:  2,
		ModelTimeout: time.Second,
	})
}

// quietLead is an active lead whose conversation went quiet after a
// procedure question.
func quietLead(repo *scanRepo) domain.Lead {
	lead := domain.Lead{ID: uuid.New(), Name: "Ines Moreau", Status: domain.StatusActive, CreatedAt: time.Now().Add(-200 * time.Hour)}
	repo.leads = append(repo.leads, lead)
	repo.transcript[lead.ID] = []domain.Message{
		{Direction: domain.DirectionInbound, Origin: domain.OriginHuman, Body: "How much do implants cost?", CreatedAt: time.Now().Add(-80 * time.Hour)},
		{Direction: domain.DirectionOutbound, Origin: domain.OriginAssistant, Body: "Here is a breakdown...", CreatedAt: time.Now().Add(-79 * time.Hour)},
	}
	return lead
}

func TestScanSendsProactiveOutreach(t *testing.T) {
	repo := newScanRepo()
	quietLead(repo)
	model := cannedModel{response: `{"should_engage": true, "strategy": "proactive_outreach", "reasoning": "asked about implants and went quiet", "recommended_offer": "implant consult", "urgency_level": "medium", "next_best_action": "re-open the implant conversation"}`}
	scanner := newTestScanner(repo, model)

	stats, err := scanner.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if stats.OpportunitiesIdentified != 1 || stats.ProactiveMessagesSent != 1 {
		t.Fatalf("stats = %+v, want one opportunity and one message", stats)
	}
	if len(repo.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(repo.sent))
	}

	record := repo.sent[0]
	if record.Source != Source || record.Strategy != StrategyProactiveOutreach {
		t.Fatalf("record = %+v, want scanner proactive_outreach", record)
	}
	if record.NewStatus != nil {
		t.Fatalf("proactive outreach must not change lead status, got %v", *record.NewStatus)
	}
}

func TestScanEscalatesToHuman(t *testing.T) {
	repo := newScanRepo()
	lead := quietLead(repo)
	model := cannedModel{response: `{"should_engage": true, "strategy": "escalate_to_human", "reasoning": "needs a personal call", "urgency_level": "high", "next_best_action": "call them"}`}
	scanner := newTestScanner(repo, model)

	stats, err := scanner.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if stats.LeadsEscalated != 1 || stats.ProactiveMessagesSent != 0 {
		t.Fatalf("stats = %+v, want one escalation and no message", stats)
	}
	if got := repo.statusChanges[lead.ID]; got != domain.StatusHumanHandoff {
		t.Fatalf("status = %q, want human_handoff", got)
	}
	if len(repo.sent) != 0 {
		t.Fatalf("sent = %d, want none on escalation", len(repo.sent))
	}
}

func TestScanRespectsNoneStrategy(t *testing.T) {
	repo := newScanRepo()
	quietLead(repo)
	model := cannedModel{response: `{"should_engage": false, "strategy": "none", "reasoning": "conversation concluded"}`}
	scanner := newTestScanner(repo, model)

	stats, err := scanner.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if stats.OpportunitiesIdentified != 0 || len(repo.sent) != 0 {
		t.Fatalf("stats = %+v, sent = %d, want nothing", stats, len(repo.sent))
	}
}

func TestScanSkipsRecentlyNudgedLead(t *testing.T) {
	repo := newScanRepo()
	lead := quietLead(repo)
	recent := time.Now().Add(-12 * time.Hour)
	repo.lastNudge[lead.ID] = &recent
	model := cannedModel{response: `{"should_engage": true, "strategy": "proactive_outreach", "reasoning": "again"}`}
	scanner := newTestScanner(repo, model)

	stats, err := scanner.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if stats.SkippedRecentlyNudged != 1 || len(repo.sent) != 0 {
		t.Fatalf("stats = %+v, sent = %d, want one cooldown skip", stats, len(repo.sent))
	}
}

func TestScanSweepsNewAndAtRiskLeads(t *testing.T) {
	repo := newScanRepo(
		domain.Lead{ID: uuid.New(), Status: domain.StatusNew, CreatedAt: time.Now().Add(-48 * time.Hour)},
		domain.Lead{ID: uuid.New(), Status: domain.StatusAtRisk, RiskLevel: domain.RiskHigh, CreatedAt: time.Now().Add(-48 * time.Hour)},
		domain.Lead{ID: uuid.New(), Status: domain.StatusContacted, CreatedAt: time.Now().Add(-48 * time.Hour)},
		domain.Lead{ID: uuid.New(), Status: domain.StatusCold, CreatedAt: time.Now().Add(-48 * time.Hour)},
	)
	model := cannedModel{response: `{"should_engage": false, "strategy": "none"}`}
	scanner := newTestScanner(repo, model)

	stats, err := scanner.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	// Only the new and at_risk leads qualify; contacted and cold belong
	// to the outreach cycle.
	if stats.LeadsScanned != 2 {
		t.Fatalf("scanned = %d, want 2", stats.LeadsScanned)
	}
}

func TestFallbackDecisionTiers(t *testing.T) {
	now := time.Now().UTC()

	cases := []struct {
		name         string
		lead         domain.Lead
		transcript   []domain.Message
		wantEngage   bool
		wantStrategy string
		wantUrgency  string
	}{
		{
			name:         "stale new lead gets welcome offer",
			lead:         domain.Lead{Status: domain.StatusNew, CreatedAt: now.Add(-30 * time.Hour)},
			wantEngage:   true,
			wantStrategy: StrategyProactiveOutreach,
			wantUrgency:  "medium",
		},
		{
			name:       "fresh new lead is left alone",
			lead:       domain.Lead{Status: domain.StatusNew, CreatedAt: now.Add(-2 * time.Hour)},
			wantEngage: false,
		},
		{
			name:         "high risk gets urgent outreach",
			lead:         domain.Lead{Status: domain.StatusAtRisk, RiskLevel: domain.RiskHigh, CreatedAt: now.Add(-200 * time.Hour)},
			wantEngage:   true,
			wantStrategy: StrategyProactiveOutreach,
			wantUrgency:  "high",
		},
		{
			name:         "medium risk gets supportive outreach",
			lead:         domain.Lead{Status: domain.StatusAtRisk, RiskLevel: domain.RiskMedium, CreatedAt: now.Add(-200 * time.Hour)},
			wantEngage:   true,
			wantStrategy: StrategyProactiveOutreach,
			wantUrgency:  "medium",
		},
		{
			name:       "low risk at_risk lead is left alone",
			lead:       domain.Lead{Status: domain.StatusAtRisk, RiskLevel: domain.RiskLow, CreatedAt: now.Add(-200 * time.Hour)},
			wantEngage: false,
		},
		{
			name: "quiet active lead gets check-in",
			lead: domain.Lead{Status: domain.StatusActive, CreatedAt: now.Add(-300 * time.Hour)},
			transcript: []domain.Message{
				{Body: "thanks", CreatedAt: now.Add(-80 * time.Hour)},
			},
			wantEngage:   true,
			wantStrategy: StrategyProactiveOutreach,
			wantUrgency:  "low",
		},
		{
			name: "recently answered active lead is left alone",
			lead: domain.Lead{Status: domain.StatusActive, CreatedAt: now.Add(-300 * time.Hour)},
			transcript: []domain.Message{
				{Body: "thanks", CreatedAt: now.Add(-10 * time.Hour)},
			},
			wantEngage: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dec := fallbackDecision(tc.lead, tc.transcript, now)
			if dec.ShouldEngage != tc.wantEngage {
				t.Fatalf("should_engage = %v, want %v", dec.ShouldEngage, tc.wantEngage)
			}
			if !tc.wantEngage {
				return
			}
			if dec.Strategy != tc.wantStrategy {
				t.Fatalf("strategy = %q, want %q", dec.Strategy, tc.wantStrategy)
			}
			if dec.UrgencyLevel != tc.wantUrgency {
				t.Fatalf("urgency = %q, want %q", dec.UrgencyLevel, tc.wantUrgency)
			}
		})
	}
}

func TestScanFallsBackToRulesWhenModelFails(t *testing.T) {
	repo := newScanRepo(domain.Lead{
		ID:        uuid.New(),
		Name:      "Sam Rivera",
		Status:    domain.StatusAtRisk,
		RiskLevel: domain.RiskHigh,
		CreatedAt: time.Now().Add(-200 * time.Hour),
	})
	model := cannedModel{err: context.DeadlineExceeded}
	scanner := newTestScanner(repo, model)

	stats, err := scanner.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if stats.ProactiveMessagesSent != 1 || stats.Errors != 0 {
		t.Fatalf("stats = %+v, want one rule-based message and no errors", stats)
	}
	if len(repo.sent) != 1 || repo.sent[0].Strategy != StrategyProactiveOutreach {
		t.Fatalf("sent = %+v, want proactive_outreach", repo.sent)
	}
}
