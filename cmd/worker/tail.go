package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/care-api/pkg/messaging/redis"
)

func tailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tail",
		Short: "Print care events as the relay publishes them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}

			broker, err := redis.NewRedisBroker(cfg.ToBrokerConfig(), log)
			if err != nil {
				return err
			}
			defer broker.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			msgs, err := broker.Subscribe(ctx, cfg.Outbox.Channel)
			if err != nil {
				return err
			}
			for msg := range msgs {
				fmt.Fprintln(cmd.OutOrStdout(), string(msg))
			}
			return nil
		},
	}
}
