package services

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// receiptFields lists the notification data rendered on a payment receipt, in order.
var receiptFields = []struct{ key, label string }{
	{"appointmentId", "Appointment ID"},
	{"patientName", "Patient"},
	{"doctorName", "Doctor"},
	{"speciality", "Speciality"},
	{"slotDate", "Date"},
	{"slotTime", "Time"},
	{"amount", "Amount paid"},
	{"paidAt", "Paid at"},
}

// RenderReceiptPDF builds a one-page payment receipt from notification data.
func RenderReceiptPDF(data map[string]string) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Payment receipt", true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.CellFormat(0, 12, "Prescripto - Payment Receipt", "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Arial", "", 12)
	for _, f := range receiptFields {
		value := data[f.key]
		if f.key == "amount" && data["currency"] != "" {
			value = fmt.Sprintf("%s %s", data["currency"], value)
		}
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(50, 9, f.label, "1", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 12)
		pdf.CellFormat(0, 9, value, "1", 1, "L", false, 0, "")
	}

	pdf.Ln(8)
	pdf.SetFont("Arial", "I", 9)
	pdf.MultiCell(0, 5, "This receipt was generated automatically. Please keep it for your records.", "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render receipt: %w", err)
	}
	return buf.Bytes(), nil
}
