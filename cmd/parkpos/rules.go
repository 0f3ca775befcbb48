package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/apierror"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/clock"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/config"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/dto"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/model"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/service"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	seedCarPrice        string
	seedMotorcyclePrice string
	seedBase            int
	seedTolerance       int
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage billing rules",
}

var rulesSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create and activate a default rule for every category without one",
	Long: `Create and activate a default billing rule for each vehicle category that
has no active rule. Categories that already have one are left untouched, so the
command is safe to run on every deploy.`,
	Args: cobra.NoArgs,
	RunE: runRulesSeed,
}

func init() {
	rulesSeedCmd.Flags().StringVar(&seedCarPrice, "car-price", "5.00", "Car price per base period")
	rulesSeedCmd.Flags().StringVar(&seedMotorcyclePrice, "motorcycle-price", "3.00", "Motorcycle price per base period")
	rulesSeedCmd.Flags().IntVar(&seedBase, "base", 60, "Base period in minutes")
	rulesSeedCmd.Flags().IntVar(&seedTolerance, "tolerance", 15, "Free minutes before charging")

	rulesCmd.AddCommand(rulesSeedCmd)
	rootCmd.AddCommand(rulesCmd)
}

func runRulesSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	setupLogger(cfg)

	_, store, err := openStore(cfg)
	if err != nil {
		return err
	}
	svc := service.NewBillingService(store, clock.Real{})

	prices := map[model.VehicleCategory]string{
		model.VehicleCar:        seedCarPrice,
		model.VehicleMotorcycle: seedMotorcyclePrice,
	}
	for _, category := range []model.VehicleCategory{model.VehicleCar, model.VehicleMotorcycle} {
		created, err := seedRule(cmd.Context(), svc, category, prices[category])
		if err != nil {
			return fmt.Errorf("%s: %w", category, err)
		}
		if created != nil {
			log.Info().Str("category", string(category)).Str("rule_id", created.ID.String()).
				Str("base_price", created.BasePrice.String()).Msg("billing rule created")
			continue
		}
		log.Info().Str("category", string(category)).Msg("active rule present, skipped")
	}
	return nil
}

// seedRule returns nil when category already has an active rule.
func seedRule(ctx context.Context, svc service.BillingService, category model.VehicleCategory, price string) (*model.BillingRule, error) {
	_, err := svc.ActiveRule(ctx, category)
	if err == nil {
		return nil, nil
	}
	if !errors.Is(err, apierror.ErrNotFound) {
		return nil, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("invalid price %q: %w", price, err)
	}
	return svc.CreateRule(ctx, dto.CreateBillingRuleRequest{
		VehicleCategory:  string(category),
		BasePrice:        d,
		BaseTimeMinutes:  seedBase,
		ToleranceMinutes: seedTolerance,
		Activate:         true,
	})
}
