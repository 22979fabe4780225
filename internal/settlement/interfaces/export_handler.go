package interfaces

import (
	"database/sql"
	"net/http"
	"strings"
	"time"

	"lunchbot/internal/observability/metrics"
	orders "lunchbot/internal/orders/domain"
	orderrepo "lunchbot/internal/orders/infrastructure/postgres"
	settlement "lunchbot/internal/settlement/domain"
	settlementrepo "lunchbot/internal/settlement/infrastructure/postgres"
)

// ReportExportHandler serves settled daily reports as XLSX or PDF.
// Path shape: /api/v1/settlements/{date}/report.{xlsx|pdf}
type ReportExportHandler struct {
	db *sql.DB
}

// NewReportExportHandler constructs a ReportExportHandler.
func NewReportExportHandler(db *sql.DB) *ReportExportHandler {
	return &ReportExportHandler{db: db}
}

// ServeHTTP handles report export requests. Only settled dates export; the
// report is rebuilt from the date's finished orders.
func (h *ReportExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.db == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	date, format, ok := parseExportPath(r.URL.Path)
	if !ok {
		http.Error(w, "path must be /api/v1/settlements/{date}/report.{xlsx|pdf}", http.StatusBadRequest)
		return
	}

	start := time.Now()
	record, err := settlementrepo.NewSettlementRepository(h.db).GetByDate(r.Context(), date)
	if err != nil {
		metrics.ObserveReportExport(format, metrics.ResultError, time.Since(start))
		http.Error(w, "query settlement error", http.StatusInternalServerError)
		return
	}
	if record == nil {
		http.Error(w, "date has not been settled", http.StatusNotFound)
		return
	}

	dayLines, err := orderrepo.NewOrderRepository(h.db).ListDayLines(r.Context(), date, orders.StatusFinished)
	if err != nil {
		metrics.ObserveReportExport(format, metrics.ResultError, time.Since(start))
		http.Error(w, "query orders error", http.StatusInternalServerError)
		return
	}
	lines := make([]settlement.ReportLine, 0, len(dayLines))
	for _, dl := range dayLines {
		lines = append(lines, settlement.ReportLine{
			ItemName:      dl.Line.ItemName,
			Price:         dl.Line.PricePerItem,
			IsCombo:       dl.Line.IsCombo,
			SelectedDrink: dl.Line.SelectedDrink,
		})
	}
	report := settlement.BuildReport(date, lines)

	var payload []byte
	var contentType string
	switch format {
	case "xlsx":
		payload, err = BuildReportXLSX(report)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "pdf":
		payload, err = BuildReportPDF(report)
		contentType = "application/pdf"
	}
	if err != nil {
		metrics.ObserveReportExport(format, metrics.ResultError, time.Since(start))
		http.Error(w, "render report error", http.StatusInternalServerError)
		return
	}

	metrics.ObserveReportExport(format, metrics.ResultSuccess, time.Since(start))
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="report-`+date+`.`+format+`"`)
	_, _ = w.Write(payload)
}

func parseExportPath(path string) (date, format string, ok bool) {
	trimmed := strings.TrimPrefix(path, "/api/v1/settlements/")
	if trimmed == path {
		return "", "", false
	}
	parts := strings.Split(trimmed, "/")
	if len(parts) != 2 {
		return "", "", false
	}
	date = parts[0]
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return "", "", false
	}
	switch parts[1] {
	case "report.xlsx":
		return date, "xlsx", true
	case "report.pdf":
		return date, "pdf", true
	default:
		return "", "", false
	}
}
