package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"sorteio/internal/models"

	"github.com/google/logger"
	"github.com/google/uuid"
)

var (
	ErrDuplicateNumber    = errors.New("lucky number already issued")
	ErrCampaignClosed     = errors.New("campaign already adjudicated; the number pool is frozen")
	ErrAlreadyAdjudicated = errors.New("campaign already adjudicated")
	ErrDrawsNotSet        = errors.New("draw results not set")
	ErrNoNumberSource     = errors.New("no number registry configured")
	ErrAdjudicating       = errors.New("campaign adjudication in progress")
)

// NumberSource supplies the campaign's lucky-number pool.
type NumberSource interface {
	LoadPool(ctx context.Context) ([]models.LuckyNumber, error)
}

// AwardStore persists adjudication runs.
type AwardStore interface {
	SaveRun(ctx context.Context, run AdjudicationRun) error
}

// AdjudicationRun is the published outcome of a campaign.
type AdjudicationRun struct {
	RunID      string              `json:"run_id"`
	CampaignID string              `json:"campaign_id"`
	PoolSize   int                 `json:"pool_size"`
	Draws      []models.DrawResult `json:"draws"`
	Awards     []models.PrizeAward `json:"awards"`
	DecidedAt  time.Time           `json:"decided_at"`
}

// CampaignSession holds the data for a single campaign.
type CampaignSession struct {
	Numbers      []models.LuckyNumber
	Draws        []models.DrawResult
	Run          *AdjudicationRun
	LastActivity time.Time

	adjudicating bool // a run is being saved; the pool is already frozen
}

// checkOpen returns the reason the session can no longer change, if any.
func (sess *CampaignSession) checkOpen(closed error) error {
	switch {
	case sess.Run != nil:
		return closed
	case sess.adjudicating:
		return ErrAdjudicating
	}
	return nil
}

// CampaignService manages multiple campaign sessions.
type CampaignService struct {
	mu       sync.Mutex
	sessions map[string]*CampaignSession // Key: campaignID

	source NumberSource
	store  AwardStore
	now    func() time.Time
}

// NewCampaignService creates a CampaignService. source and store may be nil
// when no registry database is configured.
func NewCampaignService(source NumberSource, store AwardStore) *CampaignService {
	return &CampaignService{
		sessions: make(map[string]*CampaignSession),
		source:   source,
		store:    store,
		now:      time.Now,
	}
}

// session returns the session for a campaign, creating one if it doesn't
// exist. Callers must hold s.mu for writing.
func (s *CampaignService) session(campaignID string) *CampaignSession {
	sess, exists := s.sessions[campaignID]
	if !exists {
		sess = &CampaignSession{Numbers: make([]models.LuckyNumber, 0)}
		s.sessions[campaignID] = sess
	}
	sess.LastActivity = s.now()
	return sess
}

// GetNumbers returns a copy of the campaign pool sorted by number.
func (s *CampaignService) GetNumbers(campaignID string) []models.LuckyNumber {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := append([]models.LuckyNumber(nil), s.session(campaignID).Numbers...)
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// SearchByCPF returns the numbers issued under a guardian's CPF. Formatting
// characters in cpf are ignored.
func (s *CampaignService) SearchByCPF(campaignID, cpf string) []models.LuckyNumber {
	digits := OnlyDigits(cpf)
	if digits == "" {
		return nil
	}
	var out []models.LuckyNumber
	for _, n := range s.GetNumbers(campaignID) {
		if OnlyDigits(n.GuardianCPF) == digits {
			out = append(out, n)
		}
	}
	return out
}

// Participants returns the distinct owners of the pool, ordered by ID.
func (s *CampaignService) Participants(campaignID string) []models.Participant {
	seen := make(map[string]bool)
	var out []models.Participant
	for _, n := range s.GetNumbers(campaignID) {
		if seen[n.ParticipantID] {
			continue
		}
		seen[n.ParticipantID] = true
		out = append(out, models.Participant{ID: n.ParticipantID, Name: n.ParticipantName, GuardianCPF: n.GuardianCPF})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetDraws returns the draw results set for the campaign.
func (s *CampaignService) GetDraws(campaignID string) []models.DrawResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.DrawResult(nil), s.session(campaignID).Draws...)
}

// GetRun returns the adjudication run, or nil before adjudication.
func (s *CampaignService) GetRun(campaignID string) *AdjudicationRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session(campaignID).Run
}

// AddNumber adds a lucky number to the campaign pool.
func (s *CampaignService) AddNumber(campaignID string, n models.LuckyNumber) error {
	if err := checkNumber(n); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.session(campaignID)
	if err := sess.checkOpen(ErrCampaignClosed); err != nil {
		return err
	}
	for _, existing := range sess.Numbers {
		if existing.Number == n.Number {
			return fmt.Errorf("%w: %s", ErrDuplicateNumber, n.Number)
		}
	}
	sess.Numbers = append(sess.Numbers, n)
	return nil
}

// ReplaceNumbers swaps the whole pool. Nothing changes if any number is
// invalid or repeated.
func (s *CampaignService) ReplaceNumbers(campaignID string, numbers []models.LuckyNumber) error {
	seen := make(map[string]bool, len(numbers))
	for _, n := range numbers {
		if err := checkNumber(n); err != nil {
			return err
		}
		if seen[n.Number] {
			return fmt.Errorf("%w: %s", ErrDuplicateNumber, n.Number)
		}
		seen[n.Number] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.session(campaignID)
	if err := sess.checkOpen(ErrCampaignClosed); err != nil {
		return err
	}
	sess.Numbers = append(make([]models.LuckyNumber, 0, len(numbers)), numbers...)
	logger.Infof("Campaign %s: pool replaced with %d numbers", campaignID, len(numbers))
	return nil
}

// LoadNumbers replaces the pool with the numbers held by the registry.
func (s *CampaignService) LoadNumbers(ctx context.Context, campaignID string) (int, error) {
	if s.source == nil {
		return 0, ErrNoNumberSource
	}
	numbers, err := s.source.LoadPool(ctx)
	if err != nil {
		return 0, fmt.Errorf("load pool: %w", err)
	}
	if err := s.ReplaceNumbers(campaignID, numbers); err != nil {
		return 0, err
	}
	return len(numbers), nil
}

// SetDraws records the three lottery extractions, in prize order.
func (s *CampaignService) SetDraws(campaignID string, raws []string) ([]models.DrawResult, error) {
	draws, err := ParseDraws(raws)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.session(campaignID)
	if err := sess.checkOpen(ErrAlreadyAdjudicated); err != nil {
		return nil, err
	}
	sess.Draws = draws
	return append([]models.DrawResult(nil), draws...), nil
}

// Adjudicate freezes the campaign pool and decides the prizes. A campaign
// is adjudicated once; errors leave the session open so the data can be
// fixed and the run repeated. The award store is called without holding
// the service lock, while the session refuses changes.
func (s *CampaignService) Adjudicate(ctx context.Context, campaignID string) (*AdjudicationRun, error) {
	s.mu.Lock()
	sess := s.session(campaignID)
	if err := sess.checkOpen(ErrAlreadyAdjudicated); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if len(sess.Draws) == 0 {
		s.mu.Unlock()
		return nil, ErrDrawsNotSet
	}
	pool := append([]models.LuckyNumber(nil), sess.Numbers...)
	draws := append([]models.DrawResult(nil), sess.Draws...)
	sess.adjudicating = true
	s.mu.Unlock()

	run, err := s.decide(ctx, campaignID, pool, draws)

	s.mu.Lock()
	defer s.mu.Unlock()
	sess.adjudicating = false
	sess.LastActivity = s.now()
	if err != nil {
		return nil, err
	}
	sess.Run = run

	for _, a := range run.Awards {
		logger.Infof("Campaign %s: prize %d -> %s (%s, %s)", campaignID, a.Slot, a.WinningNumber, a.ParticipantID, a.DecisionTier)
	}
	return run, nil
}

// decide runs the engine on a frozen snapshot and persists the result.
func (s *CampaignService) decide(ctx context.Context, campaignID string, pool []models.LuckyNumber, draws []models.DrawResult) (*AdjudicationRun, error) {
	awards, err := Adjudicate(pool, draws)
	if err != nil {
		logger.Errorf("Campaign %s: adjudication aborted: %v", campaignID, err)
		return nil, err
	}

	run := &AdjudicationRun{
		RunID:      uuid.NewString(),
		CampaignID: campaignID,
		PoolSize:   len(pool),
		Draws:      draws,
		Awards:     awards,
		DecidedAt:  s.now().UTC(),
	}
	if s.store != nil {
		if err := s.store.SaveRun(ctx, *run); err != nil {
			logger.Errorf("Campaign %s: saving run %s failed: %v", campaignID, run.RunID, err)
			return nil, fmt.Errorf("save awards: %w", err)
		}
	}
	return run, nil
}

// CleanUpInactiveSessions removes sessions idle for longer than maxIdle.
// Adjudicated campaigns and runs in progress are kept.
func (s *CampaignService) CleanUpInactiveSessions(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for campaignID, sess := range s.sessions {
		if sess.checkOpen(ErrCampaignClosed) == nil && s.now().Sub(sess.LastActivity) > maxIdle {
			logger.Infof("Removing inactive campaign session: %s", campaignID)
			delete(s.sessions, campaignID)
			removed++
		}
	}
	return removed
}

// ClearSession removes all data associated with a specific campaign. An
// adjudicated campaign keeps its published run and cannot be cleared.
func (s *CampaignService) ClearSession(campaignID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[campaignID]; ok {
		if err := sess.checkOpen(ErrCampaignClosed); err != nil {
			return err
		}
	}
	delete(s.sessions, campaignID)
	logger.Infof("Cleared session for campaign: %s", campaignID)
	return nil
}

func checkNumber(n models.LuckyNumber) error {
	if !ValidLuckyNumber(n.Number) {
		return fmt.Errorf("%w: %q", ErrInvalidLuckyNumber, n.Number)
	}
	if strings.TrimSpace(n.ParticipantID) == "" {
		return fmt.Errorf("%w: %s has no participant", ErrInvalidLuckyNumber, n.Number)
	}
	return nil
}

// OnlyDigits strips everything but ASCII digits from s.
func OnlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
