// seed-demo creates a demo user, business and customer with a handful of
// invoices, so a fresh environment has data to poke at.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-demo
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dzfacture/facture_backend/config"
	"github.com/dzfacture/facture_backend/models"
	"github.com/dzfacture/facture_backend/utils"
	"github.com/shopspring/decimal"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	user, err := models.CreateUser(ctx, &models.NewUser{
		Name:     "Demo User",
		Email:    "demo@facture.dz",
		Password: "demo-password",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create user: %v\n", err)
		os.Exit(1)
	}

	business, err := models.CreateBusiness(ctx, &models.NewBusiness{
		Name:           "SARL Demo",
		Type:           models.BusinessTypeCorporate,
		FiscalRegime:   models.FiscalRegimeReal,
		MainActivity:   models.MainActivityTrade,
		Nif:            "000016001234567",
		Nis:            "000016001234568",
		Rc:             "16/00-1234567B19",
		Ai:             "16012345678",
		DefaultVatRate: decimal.NewFromInt(19),
		Timezone:       utils.DefaultTimezone,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create business: %v\n", err)
		os.Exit(1)
	}
	businessId := business.ID.String()
	if err := models.AddUserToBusiness(ctx, user.ID, businessId, "owner"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to link user: %v\n", err)
		os.Exit(1)
	}

	ctx = utils.SetBusinessIdInContext(ctx, businessId)
	ctx = utils.SetUserIdInContext(ctx, user.ID)
	ctx = utils.SetUserNameInContext(ctx, user.Name)

	customer, err := models.CreateCustomer(ctx, &models.NewCustomer{
		Name: "EURL Client Pilote",
		Nif:  "000016009876543",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create customer: %v\n", err)
		os.Exit(1)
	}

	for i := 0; i < 3; i++ {
		_, err := models.CreateInvoice(ctx, &models.NewInvoice{
			CustomerId:    customer.ID,
			Type:          models.InvoiceTypeInvoice,
			Status:        models.InvoiceStatusIssued,
			IssueDate:     time.Now().AddDate(0, 0, -i*7),
			PaymentMethod: models.PaymentMethodCash,
			Items: []models.NewInvoiceItem{
				{
					Name:      fmt.Sprintf("Prestation %d", i+1),
					Kind:      models.ItemKindServices,
					Quantity:  decimal.NewFromInt(2),
					UnitPrice: decimal.NewFromInt(500),
					VatRate:   decimal.NewFromInt(19),
				},
			},
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create invoice: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Println("seeded demo data for business", businessId)
}
