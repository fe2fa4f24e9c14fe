package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/peterbourgon/ff/v4"
	"go.uber.org/multierr"

	"github.com/zombor/receipt-cam/internal/receipt"
)

func newLedgerCommand(root *rootConfig) *ff.Command {
	fs := ff.NewFlagSet("ledger").SetParent(root.flags)
	dbPath := fs.StringLong("db", "receipt-cam.db", "Database file path")

	return &ff.Command{
		Name:      "ledger",
		Usage:     "receipt-cam ledger [FLAGS]",
		ShortHelp: "print committed receipts and their total",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) (err error) {
			db, err := receipt.NewBoltDB(*dbPath)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer func() { err = multierr.Append(err, db.Close()) }()

			service := receipt.NewService(db, nil, nil)
			records, err := service.List()
			if err != nil {
				return err
			}
			summary, err := service.Summary()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tVENDOR\tBILL DATE\tTOTAL")
			for _, record := range records {
				final := record.Final()
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					record.ID,
					record.CreatedAt.Format("2006-01-02 15:04"),
					final.Vendor,
					final.BillDate,
					final.TotalAmount,
				)
			}
			fmt.Fprintf(tw, "\nTotal\t%d receipts\t%d totaled\t\t%s\n", summary.Count, summary.Totaled, summary.Total.StringFixed(2))
			return tw.Flush()
		},
	}
}
