package cli

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iliyamo/dock-slot-reservation/internal/config"
	"github.com/iliyamo/dock-slot-reservation/internal/queue"
)

func newWorkerCmd() *cobra.Command {
	var logPath string

	c := &cobra.Command{
		Use:   "worker",
		Short: "Consume slot events and append them to the audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotenv(); err != nil {
				return err
			}
			qcfg := config.LoadQueueConfig()
			if qcfg.URL == "" {
				return errors.New("RABBITMQ_URL is not set")
			}
			if logPath == "" {
				logPath = qcfg.AuditLog
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log.Printf("audit worker consuming %s", queue.SlotEventsQueue)
			err := queue.StartAuditConsumer(ctx, qcfg.URL, logPath)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	c.Flags().StringVar(&logPath, "log", "", "audit log path (defaults to AUDIT_LOG_PATH)")
	return c
}
