package reporting

import (
	"encoding/csv"
	"io"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// WriteDefaultersCSV renders defaulter rows as CSV for download by office
// staff. Amounts are grouped with thousand separators for readability.
func WriteDefaultersCSV(w io.Writer, rows []DefaulterRow) error {
	cw := csv.NewWriter(w)
	p := message.NewPrinter(language.English)

	if err := cw.Write([]string{"student_fee_id", "student_id", "student_name", "outstanding", "overdue_since", "installments_overdue"}); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{
			strconv.FormatInt(row.StudentFeeID, 10),
			strconv.FormatInt(row.StudentID, 10),
			row.StudentName,
			p.Sprintf("%.2f", row.Outstanding.InexactFloat64()),
			row.OverdueSince.Format("2006-01-02"),
			strconv.Itoa(row.InstallmentsOverdue),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
