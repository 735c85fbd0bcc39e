// Command backfill runs a fee generation pass for an arbitrary past period.
// The in-process scheduler only bills the month it fires in; when the API
// was down over a month boundary, run this once per missed period. The pass
// is idempotent, so re-running an already covered period is harmless.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/feeflow/feeflow-api/internal/repository"
	"github.com/feeflow/feeflow-api/internal/service"
	"github.com/feeflow/feeflow-api/pkg/config"
	"github.com/feeflow/feeflow-api/pkg/database"
	"github.com/feeflow/feeflow-api/pkg/logger"
)

func main() {
	lastMonth := time.Now().UTC().AddDate(0, -1, 0)
	var (
		month   int
		year    int
		timeout time.Duration
	)
	flag.IntVar(&month, "month", int(lastMonth.Month()), "billing period month (1-12)")
	flag.IntVar(&year, "year", lastMonth.Year(), "billing period year")
	flag.DurationVar(&timeout, "timeout", 2*time.Minute, "overall run timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close()

	feeRepo := repository.NewFeeRecordRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	billing := service.NewBillingService(feeRepo, enrollmentRepo, paymentRepo, nil, nil, logr)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	summary, err := billing.GenerateFeesForPeriod(ctx, service.GenerateFeesRequest{Month: month, Year: year})
	if err != nil {
		log.Fatalf("generation pass failed: %v", err)
	}
	fmt.Printf("period %d-%02d: generated=%d skipped=%d failed=%d\n",
		summary.PeriodYear, summary.PeriodMonth, summary.Generated, summary.Skipped, summary.Failed)
}
