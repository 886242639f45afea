package infra

// pdf.go — POS receipt generation using go-pdf/fpdf.
// Renders a thermal-receipt-style PDF: branch header, M-Pesa reference and
// timestamp, item table, bold total. Output goes to
// storagePath/receipt_{mpesaReference}.pdf.

import (
	"fmt"
	"os"
	"path/filepath"

	"dukapos/internal/model"

	"github.com/go-pdf/fpdf"
)

// GenerateReceiptPDF writes a PDF receipt for a settled sale and returns the
// absolute path of the generated file. Sale must have Items (with Product)
// and Branch preloaded.
func GenerateReceiptPDF(sale *model.Sale, storagePath string) (string, error) {
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}

	fileName := fmt.Sprintf("receipt_%s.pdf", sale.MpesaReference)
	filePath := filepath.Join(storagePath, fileName)

	// 74mm × 105mm — close to thermal receipt paper
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: 74, Ht: 105},
	})
	pdf.SetMargins(4, 4, 4)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 8

	branchName := "DukaPOS"
	location := ""
	if sale.Branch != nil {
		branchName = sale.Branch.Name
		location = sale.Branch.Location
	}

	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(contentW, 7, branchName, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	if location != "" {
		pdf.CellFormat(contentW, 5, location, "", 1, "C", false, 0, "")
	}
	pdf.CellFormat(contentW, 5, "Sales Receipt", "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "B", 8)
	pdf.CellFormat(contentW, 5, "Ref "+sale.MpesaReference, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(contentW, 4, sale.TransactionDate.Format("02/01/2006  15:04"), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)

	col1 := contentW * 0.52 // product name
	col2 := contentW * 0.16 // qty
	col3 := contentW * 0.32 // subtotal

	pdf.SetFont("Helvetica", "B", 7)
	pdf.CellFormat(col1, 5, "Item", "B", 0, "L", false, 0, "")
	pdf.CellFormat(col2, 5, "Qty", "B", 0, "C", false, 0, "")
	pdf.CellFormat(col3, 5, "Subtotal", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 7)
	for _, item := range sale.Items {
		name := ""
		if item.Product != nil {
			name = item.Product.Name
		}
		if len(name) > 24 {
			name = name[:24]
		}
		pdf.CellFormat(col1, 4, name, "", 0, "L", false, 0, "")
		pdf.CellFormat(col2, 4, fmt.Sprintf("%d", item.Quantity), "", 0, "C", false, 0, "")
		pdf.CellFormat(col3, 4, "KES "+item.Subtotal.StringFixed(2), "", 1, "R", false, 0, "")
	}
	pdf.Ln(2)

	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(1)

	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(col1+col2, 6, "TOTAL", "", 0, "L", false, 0, "")
	pdf.CellFormat(col3, 6, "KES "+sale.TotalAmount.StringFixed(2), "", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(contentW, 4, "Paid via "+sale.PaymentMethod, "", 1, "L", false, 0, "")
	pdf.Ln(2)
	pdf.SetFont("Helvetica", "I", 6)
	pdf.CellFormat(contentW, 4, "Thank you for shopping with us", "", 1, "C", false, 0, "")

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}
	return filePath, nil
}
