package services

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"sorteio/internal/models"

	"github.com/google/logger"
)

// ParseNumbersCSV reads participant_id,name,cpf,number[,tier] records.
// A header row is optional. Malformed rows are skipped and logged; a
// broken CSV stream is an error.
func ParseNumbersCSV(r io.Reader) ([]models.LuckyNumber, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var numbers []models.LuckyNumber
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV: %w", err)
		}

		if len(record) != 4 && len(record) != 5 {
			logger.Infof("Skipping malformed numbers CSV record %d: %v", line, record)
			continue
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[3]), "number") {
			continue
		}

		number, err := NormalizeLuckyNumber(record[3])
		if err != nil {
			logger.Infof("Skipping numbers CSV record %d with invalid number: %v", line, record)
			continue
		}
		tier := 0
		if len(record) == 5 && strings.TrimSpace(record[4]) != "" {
			tier, err = strconv.Atoi(strings.TrimSpace(record[4]))
			if err != nil {
				logger.Infof("Skipping numbers CSV record %d with invalid tier: %v", line, record)
				continue
			}
		}
		participantID := strings.TrimSpace(record[0])
		if participantID == "" {
			logger.Infof("Skipping numbers CSV record %d without participant: %v", line, record)
			continue
		}

		numbers = append(numbers, models.LuckyNumber{
			Number:          number,
			ParticipantID:   participantID,
			ParticipantName: strings.TrimSpace(record[1]),
			GuardianCPF:     OnlyDigits(record[2]),
			Tier:            tier,
		})
	}
	return numbers, nil
}

// NormalizeLuckyNumber left-pads a numeric lucky number to six digits.
// The registry stores numbers as integers, so "4211" means "004211".
func NormalizeLuckyNumber(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > models.LuckyNumberDigits {
		return "", fmt.Errorf("%w: %q", ErrInvalidLuckyNumber, raw)
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] < '0' || raw[i] > '9' {
			return "", fmt.Errorf("%w: %q", ErrInvalidLuckyNumber, raw)
		}
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidLuckyNumber, raw)
	}
	return FormatLuckyNumber(n), nil
}

// FormatLuckyNumber renders n zero padded to six digits.
func FormatLuckyNumber(n int) string {
	return fmt.Sprintf("%06d", n)
}
