package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmeshcher/masjid-donations/internal/model"
)

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Resolve pending donations against the payment gateway once",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, logger, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			defer logger.Sync()

			n, err := a.Service.ReconcilePending(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "resolved %d pending donation(s)\n", n)
			return nil
		},
	}
}

type listOptions struct {
	status string
	typeID int64
	from   string
	to     string
	query  string
}

func (o listOptions) filter() (model.DonationFilter, error) {
	var f model.DonationFilter

	if o.status != "" {
		st, err := model.ParseDonationStatus(o.status)
		if err != nil {
			return f, err
		}
		f.Status = &st
	}

	if o.typeID > 0 {
		id := o.typeID
		f.DonationTypeID = &id
	}

	if o.from != "" {
		t, err := time.Parse(time.DateOnly, o.from)
		if err != nil {
			return f, fmt.Errorf("--from: %w", err)
		}
		f.StartDate = &t
	}

	if o.to != "" {
		t, err := time.Parse(time.DateOnly, o.to)
		if err != nil {
			return f, fmt.Errorf("--to: %w", err)
		}
		end := model.EndOfDay(t)
		f.EndDate = &end
	}

	f.Query = o.query
	return f, nil
}

func listCmd() *cobra.Command {
	var opts listOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List donations",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := opts.filter()
			if err != nil {
				return err
			}

			a, logger, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			defer logger.Sync()

			donations, err := a.Service.ListDonations(cmd.Context(), f)
			if err != nil {
				return err
			}

			return printDonations(cmd.OutOrStdout(), donations)
		},
	}

	cmd.Flags().StringVar(&opts.status, "status", "", "Status (pending, completed, failed, refunded)")
	cmd.Flags().Int64Var(&opts.typeID, "type", 0, "Donation type id")
	cmd.Flags().StringVar(&opts.from, "from", "", "Created on or after date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.to, "to", "", "Created on or before date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.query, "q", "", "Match donor name or email")

	return cmd
}

func printDonations(out io.Writer, donations []model.Donation) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "CREATED\tSTATUS\tTYPE\tDONOR\tTOTAL\tREFERENCE")
	for _, d := range donations {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s %s\t%s\n",
			d.CreatedAt.Format(time.DateTime),
			d.Status,
			d.DonationTypeName,
			d.DisplayName(),
			strconv.FormatFloat(float64(d.TotalAmount)/100, 'f', 2, 64),
			d.Currency,
			d.PaymentReference,
		)
	}

	return tw.Flush()
}

func iftarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "iftar",
		Short: "Manage the iftar sponsorship calendar",
	}

	var start, end string

	generate := &cobra.Command{
		Use:   "generate",
		Short: "Add calendar days from --start to --end inclusive",
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := time.Parse(time.DateOnly, start)
			if err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			to, err := time.Parse(time.DateOnly, end)
			if err != nil {
				return fmt.Errorf("--end: %w", err)
			}

			a, logger, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			defer logger.Sync()

			n, err := a.Service.GenerateIftarDates(cmd.Context(), from, to)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "added %d day(s)\n", n)
			return nil
		},
	}

	generate.Flags().StringVar(&start, "start", "", "First day (YYYY-MM-DD)")
	generate.Flags().StringVar(&end, "end", "", "Last day (YYYY-MM-DD)")
	_ = generate.MarkFlagRequired("start")
	_ = generate.MarkFlagRequired("end")

	cmd.AddCommand(generate)
	return cmd
}
