package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/care-api/internal/model"
	"github.com/jwalitptl/care-api/internal/repository/postgres"
	"github.com/jwalitptl/care-api/internal/service/access"
	"github.com/jwalitptl/care-api/internal/service/event"
	"github.com/jwalitptl/care-api/internal/service/schedule"
	"github.com/jwalitptl/care-api/pkg/metrics"
	"github.com/jwalitptl/care-api/pkg/validator"
)

func dueCmd() *cobra.Command {
	var (
		domain  string
		patient string
		day     string
	)

	cmd := &cobra.Command{
		Use:   "due",
		Short: "List the schedules of a patient that fire on a day",
		RunE: func(cmd *cobra.Command, args []string) error {
			profileID, err := uuid.Parse(patient)
			if err != nil {
				return fmt.Errorf("invalid --patient: %w", err)
			}
			date := time.Now().UTC()
			if day != "" {
				if date, err = time.Parse("2006-01-02", day); err != nil {
					return fmt.Errorf("invalid --date: %w", err)
				}
			}

			cfg, log, err := setup()
			if err != nil {
				return err
			}
			db, err := postgres.NewDB(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			m := metrics.NewMetrics(prometheus.NewRegistry(), "care")
			resolver := access.NewResolver(
				postgres.NewUserRepository(db),
				postgres.NewPatientProfileRepository(db),
				postgres.NewConnectionRepository(db),
				access.Config{CacheTTL: cfg.Access.CacheTTL, CleanupInterval: cfg.Access.CleanupInterval},
				log, m,
			)
			engine := schedule.NewEngine(postgres.NewScheduleRepository(db), resolver, validator.New(), event.NewEmitter(log), log, m)

			due, err := engine.DueOn(context.Background(), model.Domain(strings.ToUpper(domain)), profileID, date)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, s := range due {
				fmt.Fprintf(out, "%s %s %s %s\n", s.ScheduledTime, s.Domain, s.Frequency, s.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&domain, "domain", string(model.DomainMedication), "Schedule domain: BP, SUGAR or MEDICATION")
	cmd.Flags().StringVar(&patient, "patient", "", "Patient profile id")
	cmd.Flags().StringVar(&day, "date", "", "Day to check as YYYY-MM-DD (default: today)")
	_ = cmd.MarkFlagRequired("patient")
	return cmd
}
