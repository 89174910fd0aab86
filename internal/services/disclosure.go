package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/template"

	"sorteio/internal/models"
)

var tierLabels = map[models.DecisionTier]string{
	models.TierExactUnique:       "centena idêntica (vencedor único)",
	models.TierExactTiebreak:     "centena idêntica com desempate dígito a dígito",
	models.TierProximityUnique:   "menor diferença absoluta (vencedor único)",
	models.TierProximityTiebreak: "menor diferença absoluta com desempate dígito a dígito",
}

// TierLabel returns the human readable justification of a decision tier.
func TierLabel(t models.DecisionTier) string {
	if l, ok := tierLabels[t]; ok {
		return l
	}
	return string(t)
}

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"maskName":  MaskName,
	"tierLabel": TierLabel,
	"join":      strings.Join,
}).Parse(`Apuração da campanha {{.CampaignID}}
Execução: {{.RunID}}
Data: {{.DecidedAt.Format "02/01/2006 15:04 MST"}}
Números participantes: {{.PoolSize}}

Extrações da Loteria Federal:
{{- range .Draws}}
  {{.Slot}}º prêmio: {{.RawValue}} (centena {{.Centena}})
{{- end}}
{{range .Awards}}
{{.Slot}}º PRÊMIO
  Centena sorteada: {{.TargetCentena}}
  Número vencedor: {{.WinningNumber}}{{with .ParticipantName}} - {{maskName .}}{{end}}
  Critério: {{tierLabel .DecisionTier}}
{{- if .Excluded}}
  Desconsiderados (aluno já premiado):
{{- range .Excluded}}
    {{.Number}} (diferença {{.Difference}})
{{- end}}
{{- end}}
  Tabela de cálculo:
    {{printf "%-8s %-8s %s" "número" "centena" "diferença"}}
{{- range .CandidateTrail}}
    {{printf "%-8s %-8s %d" .Number .Centena .Difference}}
{{- end}}
{{- if .Tiebreak}}
  Desempate:
{{- range .Tiebreak}}
    {{.Position}}º dígito da direita:{{range $n, $d := .Digits}} {{$n}}={{$d}}{{end}} -> mantidos {{join .Kept ", "}}
{{- end}}
{{- end}}
{{end}}`))

// RenderReport writes the public disclosure of an adjudication run.
func RenderReport(w io.Writer, run AdjudicationRun) error {
	if err := reportTemplate.Execute(w, run); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

// WriteAwardsCSV writes one row per award, preceded by a UTF-8 BOM so
// spreadsheet tools detect the encoding.
func WriteAwardsCSV(w io.Writer, awards []models.PrizeAward) error {
	if _, err := w.Write([]byte("\xef\xbb\xbf")); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"prêmio", "extração", "centena", "número vencedor", "aluno", "critério"}); err != nil {
		return err
	}
	for _, a := range awards {
		row := []string{
			strconv.Itoa(a.Slot),
			strconv.Itoa(a.DrawValue),
			a.TargetCentena,
			a.WinningNumber,
			MaskName(a.ParticipantName),
			TierLabel(a.DecisionTier),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// MaskName keeps the first name and the last two letters of the surname:
// "Maria Souza Lima" becomes "Maria ****** ma".
func MaskName(name string) string {
	words := strings.Fields(name)
	switch len(words) {
	case 0:
		return ""
	case 1:
		return words[0]
	}
	last := []rune(words[len(words)-1])
	if len(last) > 2 {
		last = last[len(last)-2:]
	}
	return words[0] + " ****** " + string(last)
}

// MaskCPF keeps the first three and last two digits of an 11-digit CPF.
// Anything else is returned unchanged.
func MaskCPF(cpf string) string {
	digits := OnlyDigits(cpf)
	if len(digits) != 11 {
		return cpf
	}
	return digits[:3] + "******" + digits[9:]
}
