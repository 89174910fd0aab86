package handlers

import (
	"bytes"
	"errors"
	"html/template"
	"net/http"
	"strconv"

	"sorteio/internal/models"
	"sorteio/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
)

const campaignKey = "campaignID"

// HTTPHandler holds the dependencies for the HTTP handlers, like the campaign service.
type HTTPHandler struct {
	service         *services.CampaignService
	templates       *template.Template
	defaultCampaign string
}

// NewHTTPHandler creates a new HTTPHandler.
func NewHTTPHandler(service *services.CampaignService, templates *template.Template, defaultCampaign string) *HTTPHandler {
	return &HTTPHandler{
		service:         service,
		templates:       templates,
		defaultCampaign: defaultCampaign,
	}
}

// renderPage is a helper to perform a two-step template rendering.
// It first executes the content template into a buffer, then executes the main
// layout template, passing the rendered content as a variable.
func (h *HTTPHandler) renderPage(c *gin.Context, pageData gin.H, contentTmpl string) {
	buf := new(bytes.Buffer)
	err := h.templates.ExecuteTemplate(buf, contentTmpl, pageData)
	if err != nil {
		logger.Errorf("Error executing content template %s: %v", contentTmpl, err)
		c.String(http.StatusInternalServerError, "Template rendering error")
		return
	}

	pageData["PageContent"] = template.HTML(buf.String())

	c.Header("Content-Type", "text/html; charset=utf-8")
	err = h.templates.ExecuteTemplate(c.Writer, "layout.html", pageData)
	if err != nil {
		logger.Errorf("Error executing layout template: %v", err)
		c.String(http.StatusInternalServerError, "Template rendering error")
	}
}

// renderPartial executes a single template, used for HTMX swaps.
func (h *HTTPHandler) renderPartial(c *gin.Context, name string, data gin.H) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(c.Writer, name, data); err != nil {
		logger.Errorf("Error executing template %s: %v", name, err)
		c.String(http.StatusInternalServerError, "Template error")
	}
}

// CampaignMiddleware resolves the campaign of the request from the
// X-Campaign-ID header, then the campaign cookie, then the configured default.
func (h *HTTPHandler) CampaignMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Campaign-ID")
		if id == "" {
			if cookie, err := c.Cookie("campaign"); err == nil {
				id = cookie
			}
		}
		if id == "" {
			id = h.defaultCampaign
		}
		c.Set(campaignKey, id)
		c.Next()
	}
}

func campaignID(c *gin.Context) string {
	return c.GetString(campaignKey)
}

// RegisterPublicRoutes registers routes that do not depend on a campaign.
func (h *HTTPHandler) RegisterPublicRoutes(router gin.IRouter) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// RegisterCampaignRoutes registers the routes served behind CampaignMiddleware.
func (h *HTTPHandler) RegisterCampaignRoutes(router gin.IRouter) {
	router.GET("/", h.ShowIndex)
	router.POST("/numbers", h.AddNumber)
	router.POST("/upload-numbers-csv", h.UploadNumbersCSV)
	router.POST("/load-numbers", h.LoadNumbers)
	router.GET("/numbers", h.ListNumbers)
	router.GET("/numbers/search", h.SearchNumbers)
	router.POST("/draws", h.SetDraws)
	router.POST("/adjudicate", h.PerformAdjudication)
	router.GET("/results", h.GetResults)
	router.GET("/report", h.GetReport)
	router.GET("/export-results-csv", h.ExportResultsCSV)
	router.POST("/reset", h.Reset)
}

// ShowIndex handles the request for the operator dashboard.
func (h *HTTPHandler) ShowIndex(c *gin.Context) {
	id := campaignID(c)
	numbers := h.service.GetNumbers(id)
	draws := h.service.GetDraws(id)

	drawValues := make([]string, models.PrizeCount)
	for i, d := range draws {
		if i < len(drawValues) {
			drawValues[i] = strconv.Itoa(d.RawValue)
		}
	}

	data := gin.H{
		"title":            "Apuração",
		"CampaignID":       id,
		"Numbers":          numbers,
		"NumberCount":      len(numbers),
		"ParticipantCount": len(h.service.Participants(id)),
		"Draws":            draws,
		"DrawValues":       drawValues,
		"Run":              h.service.GetRun(id),
	}
	h.renderPage(c, data, "index.html")
}

// AddNumber handles the form submission for issuing one lucky number.
func (h *HTTPHandler) AddNumber(c *gin.Context) {
	id := campaignID(c)
	number, err := services.NormalizeLuckyNumber(c.PostForm("number"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	n := models.LuckyNumber{
		Number:          number,
		ParticipantID:   c.PostForm("participantID"),
		ParticipantName: c.PostForm("participantName"),
		GuardianCPF:     services.OnlyDigits(c.PostForm("guardianCPF")),
	}
	if err := h.service.AddNumber(id, n); err != nil {
		h.writeError(c, err)
		return
	}

	h.renderPartial(c, "numbers_table.html", gin.H{"Numbers": h.service.GetNumbers(id)})
}

// UploadNumbersCSV handles the CSV upload that replaces the number pool.
func (h *HTTPHandler) UploadNumbersCSV(c *gin.Context) {
	file, _, err := c.Request.FormFile("numbersCSV")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Error retrieving file: " + err.Error()})
		return
	}
	defer file.Close()

	numbers, err := services.ParseNumbersCSV(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := campaignID(c)
	if err := h.service.ReplaceNumbers(id, numbers); err != nil {
		h.writeError(c, err)
		return
	}

	h.renderPartial(c, "numbers_table.html", gin.H{"Numbers": h.service.GetNumbers(id)})
}

// LoadNumbers imports the pool from the enrollment registry.
func (h *HTTPHandler) LoadNumbers(c *gin.Context) {
	n, err := h.service.LoadNumbers(c.Request.Context(), campaignID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"loaded": n})
}

type publicNumber struct {
	Student string `json:"student"`
	Number  string `json:"number"`
	CPF     string `json:"cpf"`
}

// ListNumbers returns the transparency list: every number with the
// student's name and the guardian's CPF masked.
func (h *HTTPHandler) ListNumbers(c *gin.Context) {
	numbers := h.service.GetNumbers(campaignID(c))
	out := make([]publicNumber, 0, len(numbers))
	for _, n := range numbers {
		out = append(out, publicNumber{
			Student: services.MaskName(n.ParticipantName),
			Number:  n.Number,
			CPF:     services.MaskCPF(n.GuardianCPF),
		})
	}
	c.JSON(http.StatusOK, out)
}

// SearchNumbers lets a guardian look up the numbers issued under their CPF.
func (h *HTTPHandler) SearchNumbers(c *gin.Context) {
	cpf := c.Query("cpf")
	if services.OnlyDigits(cpf) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Por favor, informe o CPF"})
		return
	}

	found := h.service.SearchByCPF(campaignID(c), cpf)
	if len(found) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Nenhum número da sorte encontrado para este CPF"})
		return
	}
	out := make([]publicNumber, 0, len(found))
	for _, n := range found {
		out = append(out, publicNumber{Student: n.ParticipantName, Number: n.Number, CPF: services.MaskCPF(n.GuardianCPF)})
	}
	c.JSON(http.StatusOK, out)
}

// SetDraws records the three Loteria Federal extractions.
func (h *HTTPHandler) SetDraws(c *gin.Context) {
	raws := []string{c.PostForm("draw1"), c.PostForm("draw2"), c.PostForm("draw3")}
	draws, err := h.service.SetDraws(campaignID(c), raws)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, draws)
}

// PerformAdjudication runs the adjudication for the campaign.
func (h *HTTPHandler) PerformAdjudication(c *gin.Context) {
	run, err := h.service.Adjudicate(c.Request.Context(), campaignID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.renderPartial(c, "adjudication_response.html", gin.H{"Run": run})
}

// GetResults returns the adjudication run as JSON.
func (h *HTTPHandler) GetResults(c *gin.Context) {
	run := h.service.GetRun(campaignID(c))
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "campaign not adjudicated yet"})
		return
	}
	c.JSON(http.StatusOK, run)
}

// GetReport returns the public disclosure report.
func (h *HTTPHandler) GetReport(c *gin.Context) {
	run := h.service.GetRun(campaignID(c))
	if run == nil {
		c.String(http.StatusNotFound, "campaign not adjudicated yet")
		return
	}

	buf := new(bytes.Buffer)
	if err := services.RenderReport(buf, *run); err != nil {
		logger.Errorf("Error rendering report: %v", err)
		c.String(http.StatusInternalServerError, "Error rendering report")
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", buf.Bytes())
}

// ExportResultsCSV handles the request to download the awards as a CSV file.
func (h *HTTPHandler) ExportResultsCSV(c *gin.Context) {
	run := h.service.GetRun(campaignID(c))
	if run == nil {
		c.String(http.StatusNotFound, "campaign not adjudicated yet")
		return
	}

	buf := new(bytes.Buffer)
	if err := services.WriteAwardsCSV(buf, run.Awards); err != nil {
		logger.Errorf("Error writing CSV: %v", err)
		c.String(http.StatusInternalServerError, "Error writing CSV")
		return
	}
	c.Header("Content-Disposition", "attachment;filename=apuracao.csv")
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

// Reset discards the campaign session. Adjudicated campaigns are kept.
func (h *HTTPHandler) Reset(c *gin.Context) {
	if err := h.service.ClearSession(campaignID(c)); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Errorf("Campaign %s: %v", campaignID(c), err)
	} else {
		logger.Warningf("Campaign %s: %v", campaignID(c), err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidDrawValue),
		errors.Is(err, services.ErrInvalidLuckyNumber),
		errors.Is(err, services.ErrDuplicateNumber),
		errors.Is(err, services.ErrDrawsNotSet):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrCampaignClosed),
		errors.Is(err, services.ErrAlreadyAdjudicated),
		errors.Is(err, services.ErrAdjudicating):
		return http.StatusConflict
	case errors.Is(err, services.ErrInsufficientParticipants),
		errors.Is(err, services.ErrDataIntegrityViolation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrNoNumberSource):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
