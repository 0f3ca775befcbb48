package main

import (
	"fmt"
	"time"

	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/billing"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/model"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	feePrice     string
	feeBase      int
	feeTolerance int
	feeEntry     string
	feeExit      string
	feeMinutes   int
	feeDiscount  string
)

var feeCmd = &cobra.Command{
	Use:   "fee",
	Short: "Compute a parking fee offline",
	Long:  `Compute the fee of a stay for an ad-hoc billing rule, without touching any store.`,
	Example: `  parkpos fee --price 5.00 --base 60 --tolerance 15 --minutes 135
  parkpos fee --price 3.50 --base 30 --entry 2024-05-10T08:00:00Z --exit 2024-05-10T09:10:00Z --discount 1`,
	Args: cobra.NoArgs,
	RunE: runFee,
}

func init() {
	feeCmd.Flags().StringVar(&feePrice, "price", "", "Price per base period (required)")
	feeCmd.Flags().IntVar(&feeBase, "base", 60, "Base period in minutes")
	feeCmd.Flags().IntVar(&feeTolerance, "tolerance", 0, "Free minutes before charging")
	feeCmd.Flags().StringVar(&feeEntry, "entry", "", "Entry time (RFC3339)")
	feeCmd.Flags().StringVar(&feeExit, "exit", "", "Exit time (RFC3339), defaults to now")
	feeCmd.Flags().IntVar(&feeMinutes, "minutes", -1, "Length of the stay in minutes, instead of --entry/--exit")
	feeCmd.Flags().StringVar(&feeDiscount, "discount", "0", "Discount subtracted from the fee")
	_ = feeCmd.MarkFlagRequired("price")
	feeCmd.MarkFlagsMutuallyExclusive("minutes", "entry")

	rootCmd.AddCommand(feeCmd)
}

func runFee(cmd *cobra.Command, args []string) error {
	price, err := parseMoney("price", feePrice)
	if err != nil {
		return err
	}
	discount, err := parseMoney("discount", feeDiscount)
	if err != nil {
		return err
	}
	entry, exit, err := stayInterval()
	if err != nil {
		return err
	}

	rule := model.BillingRule{BasePrice: price, BaseTimeMinutes: feeBase, ToleranceMinutes: feeTolerance}
	q, err := billing.Compute(entry, exit, rule)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "elapsed:   %d min\n", q.ElapsedMinutes)
	fmt.Fprintf(out, "billable:  %d min\n", q.BillableMinutes)
	fmt.Fprintf(out, "units:     %d x %s\n", q.Units, price)
	fmt.Fprintf(out, "fee:       %s\n", q.Fee)
	if discount > 0 {
		fmt.Fprintf(out, "charged:   %s\n", billing.ApplyDiscount(q.Fee, discount))
	}
	return nil
}

func stayInterval() (time.Time, time.Time, error) {
	if feeMinutes >= 0 {
		exit := time.Now().UTC().Truncate(time.Minute)
		return exit.Add(-time.Duration(feeMinutes) * time.Minute), exit, nil
	}
	if feeEntry == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("either --minutes or --entry is required")
	}
	entry, err := time.Parse(time.RFC3339, feeEntry)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --entry: %w", err)
	}
	exit := time.Now()
	if feeExit != "" {
		if exit, err = time.Parse(time.RFC3339, feeExit); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --exit: %w", err)
		}
	}
	return entry, exit, nil
}

func parseMoney(flag, raw string) (model.Money, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid --%s %q: %w", flag, raw, err)
	}
	m, err := model.MoneyFromDecimal(d)
	if err != nil {
		return 0, fmt.Errorf("invalid --%s %q: %w", flag, raw, err)
	}
	return m, nil
}
