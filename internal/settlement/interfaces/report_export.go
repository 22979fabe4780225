package interfaces

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	settlement "lunchbot/internal/settlement/domain"
)

// BuildReportPDF renders a minimal PDF for a daily report.
func BuildReportPDF(report settlement.Report) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Daily Order Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Date: %s", report.Date))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Orders: %d", report.OrderCount))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Drinks: %d", report.DrinkTotal))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Total Amount: %s", report.TotalAmount.String()))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(70, 6, "Item", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Count", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Subtotal", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, item := range report.Items {
		name := item.Name
		if item.IsCombo {
			name += " (combo)"
		}
		pdf.CellFormat(70, 6, name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%d", item.Count), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, item.Subtotal.String(), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	if len(report.Drinks) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(70, 6, "Drink", "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, "Count", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 10)
		for _, drink := range report.Drinks {
			pdf.CellFormat(70, 6, drink.Name, "1", 0, "L", false, 0, "")
			pdf.CellFormat(30, 6, fmt.Sprintf("%d", drink.Count), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildReportXLSX renders a minimal XLSX for a daily report.
func BuildReportXLSX(report settlement.Report) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	itemsSheet := "items"
	drinksSheet := "drinks"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(itemsSheet)
	f.NewSheet(drinksSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Daily Order Report")
	_ = f.SetCellValue(summarySheet, "A3", "Date")
	_ = f.SetCellValue(summarySheet, "B3", report.Date)
	_ = f.SetCellValue(summarySheet, "A4", "Orders")
	_ = f.SetCellValue(summarySheet, "B4", report.OrderCount)
	_ = f.SetCellValue(summarySheet, "A5", "Drinks")
	_ = f.SetCellValue(summarySheet, "B5", report.DrinkTotal)
	_ = f.SetCellValue(summarySheet, "A6", "Total Amount")
	_ = f.SetCellValue(summarySheet, "B6", report.TotalAmount.String())

	_ = f.SetCellValue(itemsSheet, "A1", "Item")
	_ = f.SetCellValue(itemsSheet, "B1", "Combo")
	_ = f.SetCellValue(itemsSheet, "C1", "Count")
	_ = f.SetCellValue(itemsSheet, "D1", "Subtotal")
	for i, item := range report.Items {
		row := i + 2
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("A%d", row), item.Name)
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("B%d", row), item.IsCombo)
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("C%d", row), item.Count)
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("D%d", row), item.Subtotal.String())
	}

	_ = f.SetCellValue(drinksSheet, "A1", "Drink")
	_ = f.SetCellValue(drinksSheet, "B1", "Count")
	for i, drink := range report.Drinks {
		row := i + 2
		_ = f.SetCellValue(drinksSheet, fmt.Sprintf("A%d", row), drink.Name)
		_ = f.SetCellValue(drinksSheet, fmt.Sprintf("B%d", row), drink.Count)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
