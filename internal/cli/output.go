package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/text/message"

	"github.com/iurnickita/abetos/internal/client"
	"github.com/iurnickita/abetos/internal/service"
)

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func renderSeedReport(w io.Writer, format, kind string, report service.SeedReport) error {
	if format == "json" {
		errs := report.Errors
		if errs == nil {
			errs = []string{}
		}
		return writeJSON(w, map[string]any{
			"kind":    kind,
			"created": report.Created,
			"updated": report.Updated,
			"errors":  errs,
		})
	}

	fmt.Fprintf(w, "%s: %d created, %d updated\n", kind, report.Created, report.Updated)
	for _, e := range report.Errors {
		fmt.Fprintf(w, "  error: %s\n", e)
	}
	return nil
}

func renderProfile(w io.Writer, format string, p *message.Printer, profile client.Profile) error {
	if format == "json" {
		return writeJSON(w, profile)
	}

	c := profile.Customer
	fmt.Fprintf(w, "%s (%s)\n", c.FullName, c.MemberNumber)
	fmt.Fprintf(w, "document: %s\n", c.DocNumber)
	p.Fprintf(w, "balance: %d points\n", profile.Balance)
	return nil
}

func renderReceipt(w io.Writer, format string, p *message.Printer, receipt client.Receipt) error {
	if format == "json" {
		return writeJSON(w, receipt)
	}

	tx := receipt.Transaction
	p.Fprintf(w, "accrued: %d points (%s, transaction %d)\n", tx.Points, tx.ProductCode, tx.ID)
	p.Fprintf(w, "new balance: %d points\n", receipt.NewBalance)
	return nil
}
