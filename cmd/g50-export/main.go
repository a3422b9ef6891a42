// g50-export writes the G50 declaration for a business and period to a CSV
// or XLSX file without going through the HTTP layer.
//
// Usage:
//   go run ./cmd/g50-export -business <id> -year 2026 -month 7 -out g50.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dzfacture/facture_backend/config"
	"github.com/dzfacture/facture_backend/models/reports"
	"github.com/dzfacture/facture_backend/utils"
)

func main() {
	businessId := flag.String("business", "", "business id")
	year := flag.Int("year", 0, "declaration year")
	month := flag.Int("month", 0, "declaration month (1-12)")
	out := flag.String("out", "g50.csv", "output file (.csv or .xlsx)")
	flag.Parse()

	if *businessId == "" || *year == 0 || *month == 0 {
		flag.Usage()
		os.Exit(2)
	}

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	ctx := utils.SetBusinessIdInContext(context.Background(), *businessId)

	f, err := os.Create(*out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create %s: %v\n", *out, err)
		os.Exit(1)
	}
	defer f.Close()

	if strings.HasSuffix(strings.ToLower(*out), ".xlsx") {
		err = reports.WriteG50Xlsx(ctx, f, *year, *month)
	} else {
		err = reports.WriteG50Csv(ctx, f, *year, *month)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("wrote", *out)
}
