package repository

import (
	"context"
	"fmt"
	"strings"

	"sorteio/internal/models"
	"sorteio/internal/services"

	"gorm.io/gorm"
)

// NumberRepository reads the lucky numbers issued by the enrollment portal.
type NumberRepository struct {
	db *gorm.DB
}

func NewNumberRepository(db *gorm.DB) *NumberRepository {
	return &NumberRepository{db: db}
}

// LoadPool returns every issued number, ordered by number.
func (r *NumberRepository) LoadPool(ctx context.Context) ([]models.LuckyNumber, error) {
	var rows []models.LuckyNumberRow
	if err := r.db.WithContext(ctx).Order("numero_da_sorte").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load numeros_da_sorte: %w", err)
	}
	return toLuckyNumbers(rows)
}

// FindByCPF returns the numbers issued under a guardian's CPF.
func (r *NumberRepository) FindByCPF(ctx context.Context, cpf string) ([]models.LuckyNumber, error) {
	var rows []models.LuckyNumberRow
	err := r.db.WithContext(ctx).
		Where("cpf = ?", services.OnlyDigits(cpf)).
		Order("numero_da_sorte").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find numbers by cpf: %w", err)
	}
	return toLuckyNumbers(rows)
}

func toLuckyNumbers(rows []models.LuckyNumberRow) ([]models.LuckyNumber, error) {
	numbers := make([]models.LuckyNumber, 0, len(rows))
	for _, row := range rows {
		if row.Numero < 0 || row.Numero > 999999 {
			return nil, fmt.Errorf("%w: row %d holds %d", services.ErrInvalidLuckyNumber, row.ID, row.Numero)
		}
		numbers = append(numbers, models.LuckyNumber{
			Number:          services.FormatLuckyNumber(row.Numero),
			ParticipantID:   participantID(row),
			ParticipantName: strings.TrimSpace(row.Aluno),
			GuardianCPF:     services.OnlyDigits(row.CPF),
			Tier:            row.Lote,
		})
	}
	return numbers, nil
}

// participantID prefers the student code. Older rows only carry the
// guardian's CPF and the student's name, which together identify the student.
func participantID(row models.LuckyNumberRow) string {
	if row.CodigoAluno != nil && strings.TrimSpace(*row.CodigoAluno) != "" {
		return strings.TrimSpace(*row.CodigoAluno)
	}
	return services.OnlyDigits(row.CPF) + "/" + strings.ToUpper(strings.Join(strings.Fields(row.Aluno), " "))
}
