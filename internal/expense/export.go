package expense

import (
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v2"
)

// ExportHeader is the first row of every export.
var ExportHeader = []string{
	"Type", "Date", "Establishment", "Receipt Amount", "Per Diem Amount",
	"Reimbursable Amount", "City", "State", "Zip Code", "Note",
}

const (
	exportDateLayout = "1/2/2006"
	xlsxSheetName    = "Expenses"
	xlsxAmountFormat = "0.00"
)

// Summary totals a set of expenses.
type Summary struct {
	Count        int             `json:"count"`
	Receipt      decimal.Decimal `json:"receipt"`
	PerDiem      decimal.Decimal `json:"perDiem"`
	Reimbursable decimal.Decimal `json:"reimbursable"`
	Lodging      decimal.Decimal `json:"lodging"`
	Food         decimal.Decimal `json:"food"`
}

// Summarize totals receipts, allowances and reimbursable amounts, splitting
// the reimbursable total by expense type.
func Summarize(expenses []Expense) Summary {
	var s Summary
	for _, e := range expenses {
		r := reimbursableOf(e)
		s.Count++
		s.Receipt = s.Receipt.Add(e.ReceiptAmount)
		s.PerDiem = s.PerDiem.Add(e.PerDiemAmount)
		switch e.Type {
		case TypeLodging:
			s.Lodging = s.Lodging.Add(r)
		case TypeFood:
			s.Food = s.Food.Add(r)
		}
	}
	s.Reimbursable = s.Lodging.Add(s.Food)
	return s
}

// reimbursableOf prefers the stored amount and recomputes it for records
// saved without one.
func reimbursableOf(e Expense) decimal.Decimal {
	if !e.ReimbursableAmount.IsZero() {
		return e.ReimbursableAmount
	}
	return Reimbursable(e.ReceiptAmount, e.PerDiemAmount)
}

// exportCell is one cell of the export table. Amount cells carry a value.
type exportCell struct {
	text   string
	amount *decimal.Decimal
}

func textCell(s string) exportCell { return exportCell{text: s} }

func amountCell(d decimal.Decimal) exportCell {
	return exportCell{text: d.StringFixed(2), amount: &d}
}

// exportTable lays out the header, one row per expense, a blank separator
// and the three totals rows.
func exportTable(expenses []Expense) [][]exportCell {
	rows := make([][]exportCell, 0, len(expenses)+5)

	header := make([]exportCell, len(ExportHeader))
	for i, h := range ExportHeader {
		header[i] = textCell(h)
	}
	rows = append(rows, header)

	for _, e := range expenses {
		rows = append(rows, []exportCell{
			textCell(string(e.Type)),
			textCell(e.Date.Format(exportDateLayout)),
			textCell(e.Establishment),
			amountCell(e.ReceiptAmount),
			amountCell(e.PerDiemAmount),
			amountCell(reimbursableOf(e)),
			textCell(e.City),
			textCell(e.State),
			textCell(e.ZipCode),
			textCell(e.Note),
		})
	}

	s := Summarize(expenses)
	blank := textCell("")
	rows = append(rows,
		nil,
		[]exportCell{textCell("TOTALS"), blank, blank, amountCell(s.Receipt), amountCell(s.PerDiem), amountCell(s.Reimbursable), blank, blank, blank, blank},
		[]exportCell{textCell("Lodging Total"), blank, blank, blank, blank, amountCell(s.Lodging), blank, blank, blank, blank},
		[]exportCell{textCell("Food Total"), blank, blank, blank, blank, amountCell(s.Food), blank, blank, blank, blank},
	)
	return rows
}

// WriteCSV writes expenses and their totals as CSV.
func WriteCSV(w io.Writer, expenses []Expense) error {
	cw := csv.NewWriter(w)
	for _, row := range exportTable(expenses) {
		record := make([]string, len(row))
		for i, c := range row {
			record[i] = c.text
		}
		if err := cw.Write(record); err != nil {
			return eris.Wrap(err, "expense: write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "expense: flush csv")
}

// WriteXLSX writes the same table as WriteCSV to an "Expenses" sheet, with
// amounts as numeric cells.
func WriteXLSX(w io.Writer, expenses []Expense) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(xlsxSheetName)
	if err != nil {
		return eris.Wrap(err, "expense: add xlsx sheet")
	}

	for _, row := range exportTable(expenses) {
		xr := sheet.AddRow()
		for _, c := range row {
			cell := xr.AddCell()
			if c.amount != nil {
				cell.SetFloatWithFormat(c.amount.Round(2).InexactFloat64(), xlsxAmountFormat)
				continue
			}
			cell.SetString(c.text)
		}
	}

	return eris.Wrap(f.Write(w), "expense: write xlsx")
}
