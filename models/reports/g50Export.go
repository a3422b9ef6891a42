package reports

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/dzfacture/facture_backend/models"
	"github.com/dzfacture/facture_backend/utils"
	"github.com/xuri/excelize/v2"
)

// g50Columns is the fixed export schema consumed by downstream filing
// tooling. Column order and 2-decimal formatting must not change.
var g50Columns = []string{
	"period",
	"business_name",
	"nif",
	"nis",
	"rc",
	"turnover_19",
	"vat_19",
	"turnover_9",
	"vat_9",
	"turnover_export",
	"turnover_exempt",
	"vat_collected_total",
	"vat_deductible_purchases",
	"vat_deductible_imports",
	"vat_deductible_total",
	"vat_net_before_credit",
	"previous_credit",
	"vat_net_after_credit",
	"vat_payable",
	"new_credit",
	"stamp_duty_collected",
	"invoice_count",
	"purchase_count",
	"import_entry_count",
	"finalized_at",
}

func businessIdFromCtx(ctx context.Context) (string, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return "", errors.New("business id is required")
	}
	return businessId, nil
}

func g50Row(business *models.Business, decl *models.G50Declaration) []string {
	finalizedAt := ""
	if decl.FinalizedAt != nil {
		finalizedAt = decl.FinalizedAt.Format("2006-01-02 15:04:05")
	}
	return []string{
		fmt.Sprintf("%04d-%02d", decl.Year, decl.Month),
		business.Name,
		business.Nif,
		business.Nis,
		business.Rc,
		decl.Turnover19.StringFixed(2),
		decl.Vat19.StringFixed(2),
		decl.Turnover9.StringFixed(2),
		decl.Vat9.StringFixed(2),
		decl.TurnoverExport.StringFixed(2),
		decl.TurnoverExempt.StringFixed(2),
		decl.VatCollectedTotal.StringFixed(2),
		decl.VatDeductiblePurchases.StringFixed(2),
		decl.VatDeductibleImports.StringFixed(2),
		decl.VatDeductibleTotal.StringFixed(2),
		decl.VatNetBeforeCredit.StringFixed(2),
		decl.PreviousCredit.StringFixed(2),
		decl.VatNetAfterCredit.StringFixed(2),
		decl.VatPayable.StringFixed(2),
		decl.NewCredit.StringFixed(2),
		decl.StampDutyCollected.StringFixed(2),
		fmt.Sprint(decl.InvoiceCount),
		fmt.Sprint(decl.PurchaseCount),
		fmt.Sprint(decl.ImportEntryCount),
		finalizedAt,
	}
}

// WriteG50Csv streams the declaration as the fixed 25-column CSV.
func WriteG50Csv(ctx context.Context, w io.Writer, year int, month int) error {
	businessId, err := businessIdFromCtx(ctx)
	if err != nil {
		return err
	}
	business, err := models.GetBusinessById(ctx, businessId)
	if err != nil {
		return err
	}
	decl, err := models.GetG50(ctx, year, month)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(g50Columns); err != nil {
		return err
	}
	if err := cw.Write(g50Row(business, decl)); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// WriteG50Xlsx writes the same row layout as a spreadsheet.
func WriteG50Xlsx(ctx context.Context, w io.Writer, year int, month int) error {
	businessId, err := businessIdFromCtx(ctx)
	if err != nil {
		return err
	}
	business, err := models.GetBusinessById(ctx, businessId)
	if err != nil {
		return err
	}
	decl, err := models.GetG50(ctx, year, month)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	sheetName := "G50"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)

	row := g50Row(business, decl)
	for i, name := range g50Columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, name); err != nil {
			return err
		}
		cell, err = excelize.CoordinatesToCellName(i+1, 2)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, row[i]); err != nil {
			return err
		}
	}

	return f.Write(w)
}
