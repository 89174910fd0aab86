package services

import (
	"errors"
	"fmt"
	"sort"

	"sorteio/internal/models"
)

var (
	// ErrInsufficientParticipants means a prize slot was reached with nobody left to win it.
	ErrInsufficientParticipants = errors.New("insufficient participants")
	// ErrDataIntegrityViolation means the same lucky number was issued more than once.
	ErrDataIntegrityViolation = errors.New("data integrity violation")
	// ErrInvalidLuckyNumber means a pool entry is not a 6-digit number with an owner.
	ErrInvalidLuckyNumber = errors.New("invalid lucky number")
)

// Adjudicate decides the winner of every prize slot, in slot order.
//
// For each slot only numbers whose owner has not won an earlier slot are
// eligible. A unique exact match of the draw's centena wins outright; with
// no match the smallest absolute centena difference wins; ties at either
// level go to the number with the larger digit at the first differing
// position counted from the units digit.
//
// The pool is not modified. On any error no awards are returned.
func Adjudicate(pool []models.LuckyNumber, draws []models.DrawResult) ([]models.PrizeAward, error) {
	if err := validateDraws(draws); err != nil {
		return nil, err
	}

	owners := make(map[string]struct{})
	for _, n := range pool {
		if !ValidLuckyNumber(n.Number) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidLuckyNumber, n.Number)
		}
		if n.ParticipantID == "" {
			return nil, fmt.Errorf("%w: %s has no participant", ErrInvalidLuckyNumber, n.Number)
		}
		owners[n.ParticipantID] = struct{}{}
	}
	if len(owners) < len(draws) {
		return nil, fmt.Errorf("%w: %d participants for %d prizes", ErrInsufficientParticipants, len(owners), len(draws))
	}

	won := make(map[string]bool, len(draws))
	awards := make([]models.PrizeAward, 0, len(draws))
	for _, draw := range draws {
		award, err := adjudicateSlot(pool, draw, won)
		if err != nil {
			return nil, fmt.Errorf("slot %d: %w", draw.Slot, err)
		}
		won[award.ParticipantID] = true
		awards = append(awards, award)
	}
	return awards, nil
}

// ValidLuckyNumber reports whether s is exactly six ASCII digits.
func ValidLuckyNumber(s string) bool {
	if len(s) != models.LuckyNumberDigits {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func validateDraws(draws []models.DrawResult) error {
	if len(draws) != models.PrizeCount {
		return fmt.Errorf("%w: expected %d draws, got %d", ErrInvalidDrawValue, models.PrizeCount, len(draws))
	}
	for i, d := range draws {
		if d.Slot != i+1 {
			return fmt.Errorf("%w: draw %d has slot %d", ErrInvalidDrawValue, i+1, d.Slot)
		}
		if d.RawValue < 0 || d.Centena != Centena(d.RawValue) {
			return fmt.Errorf("slot %d: %w: centena %q does not match %d", d.Slot, ErrInvalidDrawValue, d.Centena, d.RawValue)
		}
	}
	return nil
}

func adjudicateSlot(pool []models.LuckyNumber, draw models.DrawResult, won map[string]bool) (models.PrizeAward, error) {
	target := draw.RawValue % 1000

	var eligible []models.LuckyNumber
	for _, n := range pool {
		if !won[n.ParticipantID] {
			eligible = append(eligible, n)
		}
	}
	if len(eligible) == 0 {
		return models.PrizeAward{}, ErrInsufficientParticipants
	}

	var exact []models.LuckyNumber
	for _, n := range eligible {
		if n.Number[3:] == draw.Centena {
			exact = append(exact, n)
		}
	}

	var (
		tied []models.LuckyNumber
		tier models.DecisionTier
	)
	switch {
	case len(exact) == 1:
		tied, tier = exact, models.TierExactUnique
	case len(exact) > 1:
		tied, tier = exact, models.TierExactTiebreak
	default:
		tied = closest(eligible, target)
		tier = models.TierProximityUnique
		if len(tied) > 1 {
			tier = models.TierProximityTiebreak
		}
	}

	winner := tied[0]
	var steps []models.TiebreakStep
	if len(tied) > 1 {
		var err error
		winner, steps, err = tiebreak(tied)
		if err != nil {
			return models.PrizeAward{}, err
		}
	}

	winningDiff := distance(winner.Number, target)
	var excluded []models.LuckyNumber
	for _, n := range pool {
		if won[n.ParticipantID] && distance(n.Number, target) <= winningDiff {
			excluded = append(excluded, n)
		}
	}

	return models.PrizeAward{
		Slot:            draw.Slot,
		DrawValue:       draw.RawValue,
		TargetCentena:   draw.Centena,
		WinningNumber:   winner.Number,
		ParticipantID:   winner.ParticipantID,
		ParticipantName: winner.ParticipantName,
		DecisionTier:    tier,
		CandidateTrail:  trail(tied, target),
		Tiebreak:        steps,
		Excluded:        trail(excluded, target),
	}, nil
}

// closest returns the numbers at the minimal linear centena distance from target.
func closest(numbers []models.LuckyNumber, target int) []models.LuckyNumber {
	best := -1
	var out []models.LuckyNumber
	for _, n := range numbers {
		d := distance(n.Number, target)
		switch {
		case best < 0 || d < best:
			best = d
			out = []models.LuckyNumber{n}
		case d == best:
			out = append(out, n)
		}
	}
	return out
}

// tiebreak compares tied numbers digit by digit from the units digit
// leftwards; at each position only the numbers holding the largest digit
// stay in contention.
func tiebreak(tied []models.LuckyNumber) (models.LuckyNumber, []models.TiebreakStep, error) {
	seen := make(map[string]string, len(tied))
	for _, n := range tied {
		if owner, dup := seen[n.Number]; dup {
			return models.LuckyNumber{}, nil, fmt.Errorf("%w: lucky number %s held by %s and %s",
				ErrDataIntegrityViolation, n.Number, owner, n.ParticipantID)
		}
		seen[n.Number] = n.ParticipantID
	}

	remaining := tied
	var steps []models.TiebreakStep
	for pos := 1; pos <= models.LuckyNumberDigits && len(remaining) > 1; pos++ {
		idx := models.LuckyNumberDigits - pos
		step := models.TiebreakStep{Position: pos, Digits: make(map[string]int, len(remaining))}
		top := -1
		for _, n := range remaining {
			digit := int(n.Number[idx] - '0')
			step.Digits[n.Number] = digit
			if digit > top {
				top = digit
			}
		}
		var kept []models.LuckyNumber
		for _, n := range remaining {
			if step.Digits[n.Number] == top {
				kept = append(kept, n)
				step.Kept = append(step.Kept, n.Number)
			}
		}
		sort.Strings(step.Kept)
		steps = append(steps, step)
		remaining = kept
	}

	if len(remaining) != 1 {
		return models.LuckyNumber{}, nil, fmt.Errorf("%w: %d candidates identical at every digit", ErrDataIntegrityViolation, len(remaining))
	}
	return remaining[0], steps, nil
}

func trail(numbers []models.LuckyNumber, target int) []models.Candidate {
	out := make([]models.Candidate, 0, len(numbers))
	for _, n := range numbers {
		out = append(out, models.Candidate{
			Number:        n.Number,
			ParticipantID: n.ParticipantID,
			Centena:       n.Number[3:],
			Difference:    distance(n.Number, target),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Number != out[j].Number {
			return out[i].Number < out[j].Number
		}
		return out[i].ParticipantID < out[j].ParticipantID
	})
	return out
}

// distance is linear: 999 and 001 are 998 apart.
func distance(number string, target int) int {
	c := int(number[3]-'0')*100 + int(number[4]-'0')*10 + int(number[5]-'0')
	if c > target {
		return c - target
	}
	return target - c
}
