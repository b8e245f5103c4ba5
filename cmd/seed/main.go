package main

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"portfolio-tracker/internal/config"
	"portfolio-tracker/internal/database"
	"portfolio-tracker/internal/models"
)

type demoHolding struct {
	symbol       string
	allocation   string
	initialValue string
	currentValue string
}

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	db, err := database.Open(context.Background(), cfg.Database.Driver, cfg.Database.URL, cfg.Database.MaxOpenConns)
	if err != nil {
		logger.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()
	if err := database.RunMigrations(cfg.Database.Driver, cfg.Database.URL); err != nil {
		logger.Fatalf("migrate failed: %v", err)
	}

	r := database.New(db, logger)
	ctx := context.Background()

	demos := []struct {
		client   string
		start    string
		daysAgo  int
		holdings []demoHolding
	}{
		{"Demo Growth", "2024-01-02", 30, []demoHolding{
			{"AAPL", "0.4", "4000", "4420.40"},
			{"MSFT", "0.35", "3500", "3810.15"},
			{"NVDA", "0.25", "2500", "3975.00"},
		}},
		{"Demo Income", "2023-06-01", 7, []demoHolding{
			{"KO", "0.5", "5000", "5120.00"},
			{"JNJ", "0.5", "5000", "4830.50"},
		}},
		{"Demo Cash", "2024-03-01", 1, nil},
	}

	for _, demo := range demos {
		s := models.Snapshot{Stocks: []models.Position{}}
		s.ClientName = demo.client
		s.StartDate = demo.start
		s.Timestamp = time.Now().UTC().AddDate(0, 0, -demo.daysAgo).Format("2006-01-02T15:04:05")

		initial, current := decimal.Zero, decimal.Zero
		for _, h := range demo.holdings {
			iv := decimal.RequireFromString(h.initialValue)
			cv := decimal.RequireFromString(h.currentValue)
			ret := cv.Sub(iv)
			s.Stocks = append(s.Stocks, models.Position{
				Symbol:           h.symbol,
				Allocation:       decimal.RequireFromString(h.allocation),
				InitialValue:     iv,
				CurrentValue:     cv,
				Return:           ret,
				ReturnPercentage: ret.Div(iv).Mul(decimal.NewFromInt(100)).Round(4),
			})
			initial = initial.Add(iv)
			current = current.Add(cv)
		}
		if initial.IsZero() {
			initial = decimal.NewFromInt(10000)
			current = initial
		}
		s.InitialBalance = initial
		s.CurrentValue = current
		s.TotalReturn = current.Sub(initial)
		s.TotalReturnPercentage = s.TotalReturn.Div(initial).Mul(decimal.NewFromInt(100)).Round(4)

		id, err := r.CreateSnapshot(ctx, s)
		if err != nil {
			logger.Errorf("seed %q failed: %v", demo.client, err)
			continue
		}
		fmt.Printf("seeded snapshot %d for %s (%d positions)\n", id, demo.client, len(s.Stocks))
	}
}
