package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/store"
)

// Seed a SQLite database with mock trade and snapshot data for local development.
// Usage: go run scripts/seed_mock_data.go [db_path]
// Default db_path: data/trading.db
func main() {
	dbPath := "data/trading.db"
	if len(os.Args) > 1 && strings.TrimSpace(os.Args[1]) != "" {
		dbPath = strings.TrimSpace(os.Args[1])
	}

	st, err := store.Open(dbPath)
	if err != nil {
		panic(err)
	}
	defer st.Close()

	ctx := context.Background()
	if err := seedTrades(ctx, st); err != nil {
		panic(err)
	}
	if err := seedSnapshots(ctx, st); err != nil {
		panic(err)
	}

	fmt.Printf("✓ mock data seeded into %s\n", dbPath)
}

var mockSymbols = []string{"AAPL", "MSFT", "NVDA", "TSLA", "SPY"}

func seedTrades(ctx context.Context, st *store.Store) error {
	now := time.Now()
	for i := 0; i < 20; i++ {
		sym := mockSymbols[rand.Intn(len(mockSymbols))]
		action := "BUY"
		if i%3 == 0 {
			action = "SELL"
		}
		status := "EXECUTED"
		reasoning := "mock momentum signal"
		if i%5 == 0 {
			status = "REJECTED"
			reasoning = "Trade value $15000.00 exceeds max position size $10000.00"
		}
		fill := 100 + rand.Float64()*400
		rec := store.TradeRecord{
			Symbol:     sym,
			Action:     action,
			Quantity:   1 + rand.Intn(20),
			OrderType:  "market",
			Status:     status,
			Reasoning:  reasoning,
			Confidence: 0.70 + rand.Float64()*0.25,
			Timestamp:  now.Add(-time.Duration(i) * time.Hour),
		}
		if status == "EXECUTED" {
			rec.FillPrice = &fill
			rec.OrderID = fmt.Sprintf("mock-%03d", i)
		}
		if err := st.RecordTrade(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func seedSnapshots(ctx context.Context, st *store.Store) error {
	now := time.Now()
	equity := 100000.0
	for i := 30; i >= 0; i-- {
		equity *= 1 + (rand.Float64()-0.48)*0.01
		err := st.RecordSnapshot(ctx, store.SnapshotRecord{
			Equity:         equity,
			Cash:           equity * 0.4,
			PortfolioValue: equity,
			PositionCount:  rand.Intn(6),
			Timestamp:      now.AddDate(0, 0, -i),
		})
		if err != nil {
			return err
		}
	}
	return nil
}
