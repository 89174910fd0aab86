package services

import (
	"encoding/json"
	"errors"
	"reflect"
	"strconv"
	"testing"

	"sorteio/internal/models"
)

func num(number, owner string) models.LuckyNumber {
	return models.LuckyNumber{Number: number, ParticipantID: owner, ParticipantName: "Aluno " + owner}
}

func mustDraws(t *testing.T, values ...int) []models.DrawResult {
	t.Helper()
	raws := make([]string, len(values))
	for i, v := range values {
		raws[i] = strconv.Itoa(v)
	}
	draws, err := ParseDraws(raws)
	if err != nil {
		t.Fatalf("ParseDraws(%v): %v", values, err)
	}
	return draws
}

func assertAward(t *testing.T, got models.PrizeAward, slot int, number, owner string, tier models.DecisionTier) {
	t.Helper()
	if got.Slot != slot || got.WinningNumber != number || got.ParticipantID != owner || got.DecisionTier != tier {
		t.Errorf("slot %d: expected %s/%s/%s, got %s/%s/%s",
			slot, number, owner, tier, got.WinningNumber, got.ParticipantID, got.DecisionTier)
	}
}

func TestAdjudicate_RuleCascade(t *testing.T) {
	pool := []models.LuckyNumber{
		num("122876", "A"),
		num("000875", "B"),
		num("111877", "C"),
		num("500100", "D"),
	}

	awards, err := Adjudicate(pool, mustDraws(t, 345876, 10000, 99999))
	if err != nil {
		t.Fatalf("Expected no error, but got %v", err)
	}
	if len(awards) != models.PrizeCount {
		t.Fatalf("Expected %d awards, got %d", models.PrizeCount, len(awards))
	}

	// Exact match wins even though 000875 and 111877 are one away.
	assertAward(t, awards[0], 1, "122876", "A", models.TierExactUnique)
	assertAward(t, awards[1], 2, "500100", "D", models.TierProximityUnique)
	assertAward(t, awards[2], 3, "111877", "C", models.TierProximityUnique)

	seen := make(map[string]bool)
	for _, a := range awards {
		if seen[a.ParticipantID] {
			t.Errorf("Participant %s won more than once", a.ParticipantID)
		}
		seen[a.ParticipantID] = true
	}
}

func TestAdjudicate_ProximityPrefersSmallerDifference(t *testing.T) {
	pool := []models.LuckyNumber{
		num("200879", "Y"), // difference 3
		num("094875", "X"), // difference 1
		num("300100", "Z"),
	}

	awards, err := Adjudicate(pool, mustDraws(t, 345876, 1100, 2100))
	if err != nil {
		t.Fatalf("Expected no error, but got %v", err)
	}
	assertAward(t, awards[0], 1, "094875", "X", models.TierProximityUnique)

	trail := awards[0].CandidateTrail
	if len(trail) != 1 || trail[0].Difference != 1 || trail[0].Centena != "875" {
		t.Errorf("Unexpected candidate trail: %+v", trail)
	}
}

func TestAdjudicate_ExactTiebreakFromTheRight(t *testing.T) {
	pool := []models.LuckyNumber{
		num("321876", "A"),
		num("987876", "B"),
		num("450000", "C"),
		num("460000", "D"),
	}

	awards, err := Adjudicate(pool, mustDraws(t, 345876, 5000, 6000))
	if err != nil {
		t.Fatalf("Expected no error, but got %v", err)
	}
	assertAward(t, awards[0], 1, "987876", "B", models.TierExactTiebreak)

	steps := awards[0].Tiebreak
	if len(steps) != 4 {
		t.Fatalf("Expected 4 tiebreak steps, got %d: %+v", len(steps), steps)
	}
	for _, step := range steps[:3] {
		if len(step.Kept) != 2 {
			t.Errorf("Position %d should keep both numbers, kept %v", step.Position, step.Kept)
		}
	}
	last := steps[3]
	if last.Position != 4 || last.Digits["321876"] != 1 || last.Digits["987876"] != 7 {
		t.Errorf("Unexpected decisive step: %+v", last)
	}
	if !reflect.DeepEqual(last.Kept, []string{"987876"}) {
		t.Errorf("Expected only 987876 kept, got %v", last.Kept)
	}
}

func TestAdjudicate_ThreeWayExactTie(t *testing.T) {
	pool := []models.LuckyNumber{
		num("122876", "A"),
		num("321876", "B"),
		num("987876", "C"),
	}

	awards, err := Adjudicate(pool, mustDraws(t, 345876, 1, 2))
	if err != nil {
		t.Fatalf("Expected no error, but got %v", err)
	}
	assertAward(t, awards[0], 1, "987876", "C", models.TierExactTiebreak)
	if len(awards[0].CandidateTrail) != 3 {
		t.Errorf("Expected all three numbers in the trail, got %+v", awards[0].CandidateTrail)
	}

	// The remaining two are equally far from 001 and split on the 4th digit.
	assertAward(t, awards[1], 2, "122876", "A", models.TierProximityTiebreak)
	assertAward(t, awards[2], 3, "321876", "B", models.TierProximityUnique)
}

func TestAdjudicate_ProximityTiebreak(t *testing.T) {
	pool := []models.LuckyNumber{
		num("011875", "A"),
		num("222877", "B"),
		num("900500", "C"),
	}

	awards, err := Adjudicate(pool, mustDraws(t, 345876, 3500, 4500))
	if err != nil {
		t.Fatalf("Expected no error, but got %v", err)
	}
	assertAward(t, awards[0], 1, "222877", "B", models.TierProximityTiebreak)
	if len(awards[0].Tiebreak) != 1 || awards[0].Tiebreak[0].Position != 1 {
		t.Errorf("Expected a single units-digit comparison, got %+v", awards[0].Tiebreak)
	}
	assertAward(t, awards[1], 2, "900500", "C", models.TierExactUnique)
	assertAward(t, awards[2], 3, "011875", "A", models.TierProximityUnique)
}

func TestAdjudicate_PreviousWinnerIsSkipped(t *testing.T) {
	pool := []models.LuckyNumber{
		num("987876", "P"),
		num("555876", "P"),
		num("123870", "Q"), // difference 6
		num("400880", "R"), // difference 4
	}

	awards, err := Adjudicate(pool, mustDraws(t, 345876, 128876, 50123))
	if err != nil {
		t.Fatalf("Expected no error, but got %v", err)
	}

	assertAward(t, awards[0], 1, "987876", "P", models.TierExactTiebreak)
	// 555876 matches exactly but P already won.
	assertAward(t, awards[1], 2, "400880", "R", models.TierProximityUnique)
	assertAward(t, awards[2], 3, "123870", "Q", models.TierProximityUnique)

	excluded := awards[1].Excluded
	if len(excluded) != 2 || excluded[0].Number != "555876" || excluded[1].Number != "987876" {
		t.Errorf("Expected both of P's numbers in the exclusion trail, got %+v", excluded)
	}
	if len(awards[0].Excluded) != 0 {
		t.Errorf("Nobody can be excluded in the first slot, got %+v", awards[0].Excluded)
	}
}

func TestAdjudicate_RangeEdges(t *testing.T) {
	pool := []models.LuckyNumber{
		num("123999", "A"),
		num("456001", "B"),
		num("789500", "C"),
	}

	awards, err := Adjudicate(pool, mustDraws(t, 1000, 999, 2001))
	if err != nil {
		t.Fatalf("Expected no error, but got %v", err)
	}
	if awards[0].TargetCentena != "000" {
		t.Errorf("Expected centena 000, got %s", awards[0].TargetCentena)
	}
	assertAward(t, awards[0], 1, "456001", "B", models.TierProximityUnique)
	assertAward(t, awards[1], 2, "123999", "A", models.TierExactUnique)
	assertAward(t, awards[2], 3, "789500", "C", models.TierProximityUnique)
}

func TestAdjudicate_DistanceIsLinear(t *testing.T) {
	pool := []models.LuckyNumber{
		num("000999", "A"), // 998 from 001, only 2 if the range wrapped
		num("000500", "B"), // 499 from 001
		num("000700", "C"),
	}

	awards, err := Adjudicate(pool, mustDraws(t, 1, 2, 3))
	if err != nil {
		t.Fatalf("Expected no error, but got %v", err)
	}
	assertAward(t, awards[0], 1, "000500", "B", models.TierProximityUnique)
	assertAward(t, awards[1], 2, "000700", "C", models.TierProximityUnique)
	assertAward(t, awards[2], 3, "000999", "A", models.TierProximityUnique)
	if awards[2].CandidateTrail[0].Difference != 996 {
		t.Errorf("Expected difference 996, got %d", awards[2].CandidateTrail[0].Difference)
	}
}

func TestAdjudicate_Errors(t *testing.T) {
	validDraws := mustDraws(t, 345876, 1000, 2000)

	tests := []struct {
		name  string
		pool  []models.LuckyNumber
		draws []models.DrawResult
		want  error
	}{
		{
			name:  "empty pool",
			pool:  nil,
			draws: validDraws,
			want:  ErrInsufficientParticipants,
		},
		{
			name:  "fewer participants than prizes",
			pool:  []models.LuckyNumber{num("000001", "A"), num("000002", "A"), num("000003", "B")},
			draws: validDraws,
			want:  ErrInsufficientParticipants,
		},
		{
			name:  "duplicate number in a tie",
			pool:  []models.LuckyNumber{num("321876", "A"), num("321876", "B"), num("000001", "C")},
			draws: validDraws,
			want:  ErrDataIntegrityViolation,
		},
		{
			name:  "short lucky number",
			pool:  []models.LuckyNumber{num("12345", "A"), num("000002", "B"), num("000003", "C")},
			draws: validDraws,
			want:  ErrInvalidLuckyNumber,
		},
		{
			name:  "number without owner",
			pool:  []models.LuckyNumber{num("123456", ""), num("000002", "B"), num("000003", "C")},
			draws: validDraws,
			want:  ErrInvalidLuckyNumber,
		},
		{
			name:  "two draws",
			pool:  []models.LuckyNumber{num("000001", "A"), num("000002", "B"), num("000003", "C")},
			draws: validDraws[:2],
			want:  ErrInvalidDrawValue,
		},
		{
			name:  "draws out of order",
			pool:  []models.LuckyNumber{num("000001", "A"), num("000002", "B"), num("000003", "C")},
			draws: []models.DrawResult{validDraws[1], validDraws[0], validDraws[2]},
			want:  ErrInvalidDrawValue,
		},
		{
			name: "centena inconsistent with value",
			pool: []models.LuckyNumber{num("000001", "A"), num("000002", "B"), num("000003", "C")},
			draws: []models.DrawResult{
				{Slot: 1, RawValue: 345876, Centena: "875"},
				validDraws[1],
				validDraws[2],
			},
			want: ErrInvalidDrawValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			awards, err := Adjudicate(tt.pool, tt.draws)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Expected %v, but got %v", tt.want, err)
			}
			if awards != nil {
				t.Errorf("Expected no awards on error, got %+v", awards)
			}
		})
	}
}

func TestAdjudicate_DuplicateOutsideTieIsIgnored(t *testing.T) {
	// Allocation guarantees uniqueness; the engine only reports duplicates
	// that reach the digit comparison.
	pool := []models.LuckyNumber{
		num("111111", "A"),
		num("111111", "B"),
		num("222876", "C"),
		num("333500", "D"),
		num("444501", "E"),
	}
	awards, err := Adjudicate(pool, mustDraws(t, 345876, 500, 7501))
	if err != nil {
		t.Fatalf("Expected no error, but got %v", err)
	}
	assertAward(t, awards[0], 1, "222876", "C", models.TierExactUnique)
	assertAward(t, awards[1], 2, "333500", "D", models.TierExactUnique)
	assertAward(t, awards[2], 3, "444501", "E", models.TierExactUnique)

	_, err = Adjudicate(pool, mustDraws(t, 345876, 500, 111))
	if !errors.Is(err, ErrDataIntegrityViolation) {
		t.Errorf("Expected ErrDataIntegrityViolation when the duplicates tie, got %v", err)
	}
}

func TestAdjudicate_DeterministicAndPure(t *testing.T) {
	pool := []models.LuckyNumber{
		num("987876", "P"),
		num("555876", "P"),
		num("123870", "Q"),
		num("400880", "R"),
		num("011875", "S"),
		num("222877", "T"),
	}
	original := append([]models.LuckyNumber(nil), pool...)
	draws := mustDraws(t, 345876, 128876, 50123)

	first, err := Adjudicate(pool, draws)
	if err != nil {
		t.Fatalf("Expected no error, but got %v", err)
	}
	second, err := Adjudicate(pool, draws)
	if err != nil {
		t.Fatalf("Expected no error, but got %v", err)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Errorf("Expected identical output across runs:\n%s\n%s", a, b)
	}
	if !reflect.DeepEqual(pool, original) {
		t.Error("Adjudicate modified its input pool")
	}
}
