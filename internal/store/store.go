package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// TradeStore 抽象：交易/分析/组合快照的持久化能力。
type TradeStore interface {
	RecordTrade(ctx context.Context, rec TradeRecord) error
	RecordAnalysis(ctx context.Context, rec AnalysisRecord) error
	RecordSnapshot(ctx context.Context, rec SnapshotRecord) error
	RecentTrades(ctx context.Context, limit int) ([]TradeRecord, error)
	RecentSnapshots(ctx context.Context, limit int) ([]SnapshotRecord, error)
	Close() error
}

var _ TradeStore = (*Store)(nil)

// TradeRecord 表示一次执行结果的落库数据。
type TradeRecord struct {
	ID         int64
	Symbol     string
	Action     string
	Quantity   int
	OrderType  string
	LimitPrice *float64
	FillPrice  *float64
	Status     string
	OrderID    string
	Reasoning  string
	Confidence float64
	Timestamp  time.Time
}

// AnalysisRecord 表示一轮分析的摘要。
type AnalysisRecord struct {
	ID             int64
	Summary        string
	RiskAssessment string
	TradeCount     int
	Timestamp      time.Time
}

// SnapshotRecord 表示某一时刻的组合快照。
type SnapshotRecord struct {
	ID             int64
	Equity         float64
	Cash           float64
	PortfolioValue float64
	PositionCount  int
	Timestamp      time.Time
}

// Store 基于 sqlite 的 TradeStore 实现。
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open 打开数据库并初始化表结构。
func Open(dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db 路径不能为空")
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("创建数据目录失败: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("打开 sqlite 失败: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=3000;",
		"PRAGMA synchronous=NORMAL;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("设置 pragma %s 失败: %w", p, err)
		}
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS trades (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    symbol TEXT NOT NULL,
    action TEXT NOT NULL,
    quantity INTEGER NOT NULL,
    order_type TEXT NOT NULL,
    limit_price REAL,
    fill_price REAL,
    status TEXT NOT NULL,
    order_id TEXT,
    reasoning TEXT,
    confidence REAL NOT NULL DEFAULT 0,
    timestamp INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS analyses (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    summary TEXT,
    risk_assessment TEXT,
    trade_count INTEGER NOT NULL DEFAULT 0,
    timestamp INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS portfolio_snapshots (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    equity REAL NOT NULL,
    cash REAL NOT NULL,
    portfolio_value REAL NOT NULL,
    position_count INTEGER NOT NULL DEFAULT 0,
    timestamp INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_timestamp ON trades(timestamp);
CREATE INDEX IF NOT EXISTS idx_snapshots_timestamp ON portfolio_snapshots(timestamp);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("初始化表结构失败: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) conn() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, fmt.Errorf("store 未初始化")
	}
	return s.db, nil
}

// RecordTrade 落库一次交易结果。
func (s *Store) RecordTrade(ctx context.Context, rec TradeRecord) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	symbol := strings.ToUpper(strings.TrimSpace(rec.Symbol))
	if symbol == "" {
		return fmt.Errorf("symbol 必填")
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO trades
			(symbol, action, quantity, order_type, limit_price, fill_price, status, order_id, reasoning, confidence, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		symbol, rec.Action, rec.Quantity, rec.OrderType,
		nullableFloat(rec.LimitPrice), nullableFloat(rec.FillPrice),
		rec.Status, nullIfEmpty(rec.OrderID), nullIfEmpty(rec.Reasoning),
		rec.Confidence, rec.Timestamp.UnixMilli())
	if err != nil {
		return fmt.Errorf("写入 trades 失败: %w", err)
	}
	return nil
}

// RecordAnalysis 落库一轮分析摘要。
func (s *Store) RecordAnalysis(ctx context.Context, rec AnalysisRecord) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO analyses (summary, risk_assessment, trade_count, timestamp)
		VALUES (?, ?, ?, ?)`,
		nullIfEmpty(rec.Summary), nullIfEmpty(rec.RiskAssessment),
		rec.TradeCount, rec.Timestamp.UnixMilli())
	if err != nil {
		return fmt.Errorf("写入 analyses 失败: %w", err)
	}
	return nil
}

// RecordSnapshot 落库组合快照。
func (s *Store) RecordSnapshot(ctx context.Context, rec SnapshotRecord) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO portfolio_snapshots (equity, cash, portfolio_value, position_count, timestamp)
		VALUES (?, ?, ?, ?, ?)`,
		rec.Equity, rec.Cash, rec.PortfolioValue, rec.PositionCount, rec.Timestamp.UnixMilli())
	if err != nil {
		return fmt.Errorf("写入 portfolio_snapshots 失败: %w", err)
	}
	return nil
}

// RecentTrades 返回最近的交易（按时间倒序）。
func (s *Store) RecentTrades(ctx context.Context, limit int) ([]TradeRecord, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, symbol, action, quantity, order_type, limit_price, fill_price, status, order_id, reasoning, confidence, timestamp
		FROM trades
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("查询 trades 失败: %w", err)
	}
	defer rows.Close()
	var list []TradeRecord
	for rows.Next() {
		var (
			rec                   TradeRecord
			limitPrice, fillPrice sql.NullFloat64
			orderID, reasoning    sql.NullString
			ts                    int64
		)
		if err := rows.Scan(&rec.ID, &rec.Symbol, &rec.Action, &rec.Quantity, &rec.OrderType,
			&limitPrice, &fillPrice, &rec.Status, &orderID, &reasoning, &rec.Confidence, &ts); err != nil {
			return nil, fmt.Errorf("扫描 trade 行失败: %w", err)
		}
		if limitPrice.Valid {
			v := limitPrice.Float64
			rec.LimitPrice = &v
		}
		if fillPrice.Valid {
			v := fillPrice.Float64
			rec.FillPrice = &v
		}
		rec.OrderID = orderID.String
		rec.Reasoning = reasoning.String
		rec.Timestamp = time.UnixMilli(ts)
		list = append(list, rec)
	}
	return list, rows.Err()
}

// RecentSnapshots 返回最近的组合快照（按时间倒序）。
func (s *Store) RecentSnapshots(ctx context.Context, limit int) ([]SnapshotRecord, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, equity, cash, portfolio_value, position_count, timestamp
		FROM portfolio_snapshots
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("查询 portfolio_snapshots 失败: %w", err)
	}
	defer rows.Close()
	var list []SnapshotRecord
	for rows.Next() {
		var (
			rec SnapshotRecord
			ts  int64
		)
		if err := rows.Scan(&rec.ID, &rec.Equity, &rec.Cash, &rec.PortfolioValue, &rec.PositionCount, &ts); err != nil {
			return nil, fmt.Errorf("扫描 snapshot 行失败: %w", err)
		}
		rec.Timestamp = time.UnixMilli(ts)
		list = append(list, rec)
	}
	return list, rows.Err()
}

func nullableFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullIfEmpty(v string) interface{} {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
