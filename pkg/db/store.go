package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/wallet-scout/pkg/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS tokens (
    chain TEXT NOT NULL,
    address TEXT NOT NULL,
    symbol TEXT,
    name TEXT,
    liquidity_usd REAL DEFAULT 0,
    volume_24h_usd REAL DEFAULT 0,
    last_price_usd REAL DEFAULT 0,
    buy_tax_pct REAL DEFAULT 0,
    sell_tax_pct REAL DEFAULT 0,
    is_honeypot BOOLEAN DEFAULT FALSE,
    first_seen_at TIMESTAMP,
    PRIMARY KEY (chain, address)
);

CREATE TABLE IF NOT EXISTS seed_tokens (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    chain TEXT NOT NULL,
    token_address TEXT NOT NULL,
    source TEXT NOT NULL,
    snapshot_ts TIMESTAMP NOT NULL,
    rank_24h INTEGER DEFAULT 0,
    vol_24h_usd REAL DEFAULT 0,
    pct_change_24h REAL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS wallets (
    chain TEXT NOT NULL,
    address TEXT NOT NULL,
    labels TEXT DEFAULT '[]',
    is_bot BOOLEAN DEFAULT FALSE,
    first_seen_at TIMESTAMP,
    last_active_at TIMESTAMP,
    PRIMARY KEY (chain, address)
);

CREATE TABLE IF NOT EXISTS trades (
    tx_hash TEXT NOT NULL,
    chain TEXT NOT NULL,
    ts TIMESTAMP NOT NULL,
    wallet TEXT NOT NULL,
    token TEXT NOT NULL,
    side TEXT NOT NULL CHECK (side IN ('buy','sell')),
    qty_token REAL NOT NULL CHECK (qty_token >= 0),
    price_usd REAL DEFAULT 0,
    usd_value REAL DEFAULT 0,
    venue TEXT,
    PRIMARY KEY (chain, tx_hash)
);

CREATE TABLE IF NOT EXISTS positions (
    chain TEXT NOT NULL,
    wallet TEXT NOT NULL,
    token TEXT NOT NULL,
    qty REAL DEFAULT 0,
    cost_basis_usd REAL DEFAULT 0,
    realized_usd REAL DEFAULT 0,
    unrealized_usd REAL DEFAULT 0,
    last_price_usd REAL DEFAULT 0,
    last_trade_ts TIMESTAMP,
    updated_at TIMESTAMP,
    PRIMARY KEY (chain, wallet, token)
);

CREATE TABLE IF NOT EXISTS wallet_stats_30d (
    chain TEXT NOT NULL,
    wallet TEXT NOT NULL,
    trade_count INTEGER DEFAULT 0,
    realized_usd REAL DEFAULT 0,
    unrealized_usd REAL DEFAULT 0,
    best_trade_multiple REAL DEFAULT 0,
    early_score_median REAL DEFAULT 0,
    max_drawdown_pct REAL DEFAULT 0,
    updated_at TIMESTAMP,
    PRIMARY KEY (chain, wallet)
);

CREATE TABLE IF NOT EXISTS watchlist (
    chain TEXT NOT NULL,
    wallet TEXT NOT NULL,
    score REAL DEFAULT 0,
    status TEXT DEFAULT 'pending',
    added_at TIMESTAMP,
    last_evaluated_at TIMESTAMP,
    last_confluence_at TIMESTAMP,
    PRIMARY KEY (chain, wallet)
);

CREATE TABLE IF NOT EXISTS alerts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    dedup_key TEXT NOT NULL UNIQUE,
    kind TEXT NOT NULL,
    chain TEXT NOT NULL,
    token TEXT NOT NULL,
    side TEXT NOT NULL,
    wallets TEXT DEFAULT '[]',
    window_ms INTEGER DEFAULT 0,
    weights TEXT DEFAULT '{}',
    created_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_trades_wallet_ts ON trades(chain, wallet, ts DESC);
CREATE INDEX IF NOT EXISTS idx_trades_token_ts ON trades(chain, token, ts DESC);
CREATE INDEX IF NOT EXISTS idx_trades_chain_ts ON trades(chain, ts DESC);
CREATE INDEX IF NOT EXISTS idx_seed_snapshot ON seed_tokens(chain, snapshot_ts DESC);
CREATE INDEX IF NOT EXISTS idx_watchlist_status ON watchlist(chain, status);
CREATE INDEX IF NOT EXISTS idx_alerts_created ON alerts(created_at DESC);
`

type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ---- Tokens ----

func (s *Store) UpsertToken(t Token) error {
	_, err := s.db.Exec(`
		INSERT INTO tokens (chain, address, symbol, name, liquidity_usd, volume_24h_usd, last_price_usd, first_seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chain, address) DO UPDATE SET
			symbol = CASE WHEN excluded.symbol != '' THEN excluded.symbol ELSE tokens.symbol END,
			liquidity_usd = excluded.liquidity_usd,
			volume_24h_usd = excluded.volume_24h_usd,
			last_price_usd = excluded.last_price_usd`,
		string(t.Chain), t.Address, t.Symbol, t.Name, t.LiquidityUSD, t.Volume24hUSD, t.LastPriceUSD, t.FirstSeenAt)
	return err
}

func (s *Store) UpdateTokenSafety(chain config.Chain, address string, buyTax, sellTax float64, honeypot bool) error {
	_, err := s.db.Exec(`UPDATE tokens SET buy_tax_pct=?, sell_tax_pct=?, is_honeypot=? WHERE chain=? AND address=?`,
		buyTax, sellTax, honeypot, string(chain), address)
	return err
}

func (s *Store) UpdateTokenPrice(chain config.Chain, address string, price float64) error {
	_, err := s.db.Exec(`UPDATE tokens SET last_price_usd=? WHERE chain=? AND address=?`,
		price, string(chain), address)
	return err
}

func (s *Store) GetToken(chain config.Chain, address string) (*Token, error) {
	var t Token
	var ch string
	err := s.db.QueryRow(`
		SELECT chain, address, COALESCE(symbol,''), COALESCE(name,''), liquidity_usd, volume_24h_usd,
		       last_price_usd, buy_tax_pct, sell_tax_pct, is_honeypot, first_seen_at
		FROM tokens WHERE chain=? AND address=?`, string(chain), address).
		Scan(&ch, &t.Address, &t.Symbol, &t.Name, &t.LiquidityUSD, &t.Volume24hUSD,
			&t.LastPriceUSD, &t.BuyTaxPct, &t.SellTaxPct, &t.IsHoneypot, &t.FirstSeenAt)
	if err != nil {
		return nil, err
	}
	t.Chain = config.Chain(ch)
	return &t, nil
}

// ---- Seed tokens ----

func (s *Store) InsertSeed(seed SeedToken) error {
	_, err := s.db.Exec(`
		INSERT INTO seed_tokens (chain, token_address, source, snapshot_ts, rank_24h, vol_24h_usd, pct_change_24h)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(seed.Chain), seed.TokenAddress, seed.Source, seed.SnapshotTS, seed.Rank24h, seed.Vol24hUSD, seed.PctChange24h)
	return err
}

// RecentSeeds returns one row per token whose latest snapshot is newer than since.
func (s *Store) RecentSeeds(chain config.Chain, since time.Time) ([]SeedToken, error) {
	rows, err := s.db.Query(`
		SELECT id, chain, token_address, source, MAX(snapshot_ts) AS snapshot_ts, rank_24h, vol_24h_usd, pct_change_24h
		FROM seed_tokens WHERE chain=? AND snapshot_ts > ?
		GROUP BY token_address
		ORDER BY snapshot_ts DESC`, string(chain), since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var seeds []SeedToken
	for rows.Next() {
		var st SeedToken
		var ch string
		if err := rows.Scan(&st.ID, &ch, &st.TokenAddress, &st.Source, &st.SnapshotTS, &st.Rank24h, &st.Vol24hUSD, &st.PctChange24h); err != nil {
			continue
		}
		st.Chain = config.Chain(ch)
		seeds = append(seeds, st)
	}
	return seeds, rows.Err()
}

// ---- Wallets ----

func (s *Store) UpsertWallet(chain config.Chain, address string, seenAt time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO wallets (chain, address, first_seen_at, last_active_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(chain, address) DO UPDATE SET
			last_active_at = MAX(wallets.last_active_at, excluded.last_active_at)`,
		string(chain), address, seenAt, seenAt)
	return err
}

func (s *Store) SetWalletBot(chain config.Chain, address string, isBot bool) error {
	_, err := s.db.Exec(`UPDATE wallets SET is_bot=? WHERE chain=? AND address=?`,
		isBot, string(chain), address)
	return err
}

func (s *Store) AddWalletLabel(chain config.Chain, address, label string) error {
	var raw string
	err := s.db.QueryRow(`SELECT COALESCE(labels,'[]') FROM wallets WHERE chain=? AND address=?`,
		string(chain), address).Scan(&raw)
	if err != nil {
		return err
	}
	var labels []string
	_ = json.Unmarshal([]byte(raw), &labels)
	for _, l := range labels {
		if l == label {
			return nil
		}
	}
	labels = append(labels, label)
	buf, _ := json.Marshal(labels)
	_, err = s.db.Exec(`UPDATE wallets SET labels=? WHERE chain=? AND address=?`,
		string(buf), string(chain), address)
	return err
}

func (s *Store) GetWallet(chain config.Chain, address string) (*Wallet, error) {
	var w Wallet
	var ch, labels string
	err := s.db.QueryRow(`
		SELECT chain, address, COALESCE(labels,'[]'), is_bot, first_seen_at, last_active_at
		FROM wallets WHERE chain=? AND address=?`, string(chain), address).
		Scan(&ch, &w.Address, &labels, &w.IsBot, &w.FirstSeenAt, &w.LastActiveAt)
	if err != nil {
		return nil, err
	}
	w.Chain = config.Chain(ch)
	_ = json.Unmarshal([]byte(labels), &w.Labels)
	return &w, nil
}

// ActiveWallets returns wallets with at least one trade since the cutoff.
func (s *Store) ActiveWallets(chain config.Chain, since time.Time) ([]Wallet, error) {
	rows, err := s.db.Query(`
		SELECT DISTINCT w.chain, w.address, COALESCE(w.labels,'[]'), w.is_bot, w.first_seen_at, w.last_active_at
		FROM wallets w JOIN trades t ON t.chain = w.chain AND t.wallet = w.address
		WHERE w.chain=? AND t.ts > ?`, string(chain), since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wallets []Wallet
	for rows.Next() {
		var w Wallet
		var ch, labels string
		if err := rows.Scan(&ch, &w.Address, &labels, &w.IsBot, &w.FirstSeenAt, &w.LastActiveAt); err != nil {
			continue
		}
		w.Chain = config.Chain(ch)
		_ = json.Unmarshal([]byte(labels), &w.Labels)
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

// ---- Trades ----

// InsertTrade inserts a trade keyed on (chain, tx_hash). Returns false when
// the hash was already recorded.
func (s *Store) InsertTrade(t Trade) (bool, error) {
	res, err := s.db.Exec(`
		INSERT OR IGNORE INTO trades (tx_hash, chain, ts, wallet, token, side, qty_token, price_usd, usd_value, venue)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TxHash, string(t.Chain), t.TS, t.Wallet, t.Token, t.Side, t.QtyToken, t.PriceUSD, t.USDValue, t.Venue)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) TradesForWallet(chain config.Chain, wallet string, since time.Time) ([]Trade, error) {
	rows, err := s.db.Query(`
		SELECT tx_hash, chain, ts, wallet, token, side, qty_token, price_usd, usd_value, COALESCE(venue,'')
		FROM trades WHERE chain=? AND wallet=? AND ts > ?
		ORDER BY ts ASC, tx_hash ASC`, string(chain), wallet, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrades(rows)
}

func (s *Store) TradesForToken(chain config.Chain, token string, since time.Time) ([]Trade, error) {
	rows, err := s.db.Query(`
		SELECT tx_hash, chain, ts, wallet, token, side, qty_token, price_usd, usd_value, COALESCE(venue,'')
		FROM trades WHERE chain=? AND token=? AND ts > ?
		ORDER BY ts ASC, tx_hash ASC`, string(chain), token, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrades(rows)
}

func scanTrades(rows *sql.Rows) ([]Trade, error) {
	var trades []Trade
	for rows.Next() {
		var t Trade
		var ch string
		if err := rows.Scan(&t.TxHash, &ch, &t.TS, &t.Wallet, &t.Token, &t.Side, &t.QtyToken, &t.PriceUSD, &t.USDValue, &t.Venue); err != nil {
			continue
		}
		t.Chain = config.Chain(ch)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// LastTradePrice returns the most recently observed trade price for a token.
func (s *Store) LastTradePrice(chain config.Chain, token string) (float64, bool) {
	var price float64
	err := s.db.QueryRow(`
		SELECT price_usd FROM trades
		WHERE chain=? AND token=? AND price_usd > 0
		ORDER BY ts DESC LIMIT 1`, string(chain), token).Scan(&price)
	if err != nil {
		return 0, false
	}
	return price, true
}

// DistinctBuyersBefore counts distinct wallets that bought the token strictly
// before the given timestamp.
func (s *Store) DistinctBuyersBefore(chain config.Chain, token string, ts time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(DISTINCT wallet) FROM trades
		WHERE chain=? AND token=? AND side='buy' AND ts < ?`, string(chain), token, ts).Scan(&n)
	return n, err
}

func (s *Store) DistinctBuyers(chain config.Chain, token string) (int, error) {
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(DISTINCT wallet) FROM trades
		WHERE chain=? AND token=? AND side='buy'`, string(chain), token).Scan(&n)
	return n, err
}

// ---- Positions ----

func (s *Store) UpsertPosition(p Position) error {
	_, err := s.db.Exec(`
		INSERT INTO positions (chain, wallet, token, qty, cost_basis_usd, realized_usd, unrealized_usd, last_price_usd, last_trade_ts, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chain, wallet, token) DO UPDATE SET
			qty = excluded.qty,
			cost_basis_usd = excluded.cost_basis_usd,
			realized_usd = excluded.realized_usd,
			unrealized_usd = excluded.unrealized_usd,
			last_price_usd = excluded.last_price_usd,
			last_trade_ts = excluded.last_trade_ts,
			updated_at = excluded.updated_at`,
		string(p.Chain), p.Wallet, p.Token, p.Qty, p.CostBasisUSD, p.RealizedUSD, p.UnrealizedUSD,
		p.LastPriceUSD, p.LastTradeTS, p.UpdatedAt)
	return err
}

func (s *Store) PositionsForWallet(chain config.Chain, wallet string) ([]Position, error) {
	rows, err := s.db.Query(`
		SELECT chain, wallet, token, qty, cost_basis_usd, realized_usd, unrealized_usd, last_price_usd, last_trade_ts, updated_at
		FROM positions WHERE chain=? AND wallet=?`, string(chain), wallet)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []Position
	for rows.Next() {
		var p Position
		var ch string
		if err := rows.Scan(&ch, &p.Wallet, &p.Token, &p.Qty, &p.CostBasisUSD, &p.RealizedUSD,
			&p.UnrealizedUSD, &p.LastPriceUSD, &p.LastTradeTS, &p.UpdatedAt); err != nil {
			continue
		}
		p.Chain = config.Chain(ch)
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// ---- Wallet stats ----

func (s *Store) UpsertStats(ws WalletStats) error {
	_, err := s.db.Exec(`
		INSERT INTO wallet_stats_30d (chain, wallet, trade_count, realized_usd, unrealized_usd, best_trade_multiple, early_score_median, max_drawdown_pct, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chain, wallet) DO UPDATE SET
			trade_count = excluded.trade_count,
			realized_usd = excluded.realized_usd,
			unrealized_usd = excluded.unrealized_usd,
			best_trade_multiple = excluded.best_trade_multiple,
			early_score_median = excluded.early_score_median,
			max_drawdown_pct = excluded.max_drawdown_pct,
			updated_at = excluded.updated_at`,
		string(ws.Chain), ws.Wallet, ws.TradeCount, ws.RealizedUSD, ws.UnrealizedUSD,
		ws.BestTradeMultiple, ws.EarlyScoreMedian, ws.MaxDrawdownPct, ws.UpdatedAt)
	return err
}

func (s *Store) GetStats(chain config.Chain, wallet string) (*WalletStats, error) {
	var ws WalletStats
	var ch string
	err := s.db.QueryRow(`
		SELECT chain, wallet, trade_count, realized_usd, unrealized_usd, best_trade_multiple, early_score_median, max_drawdown_pct, updated_at
		FROM wallet_stats_30d WHERE chain=? AND wallet=?`, string(chain), wallet).
		Scan(&ch, &ws.Wallet, &ws.TradeCount, &ws.RealizedUSD, &ws.UnrealizedUSD,
			&ws.BestTradeMultiple, &ws.EarlyScoreMedian, &ws.MaxDrawdownPct, &ws.UpdatedAt)
	if err != nil {
		return nil, err
	}
	ws.Chain = config.Chain(ch)
	return &ws, nil
}

// RankableStats returns 30-day stats for non-bot wallets on a chain.
func (s *Store) RankableStats(chain config.Chain) ([]WalletStats, error) {
	rows, err := s.db.Query(`
		SELECT ws.chain, ws.wallet, ws.trade_count, ws.realized_usd, ws.unrealized_usd,
		       ws.best_trade_multiple, ws.early_score_median, ws.max_drawdown_pct, ws.updated_at
		FROM wallet_stats_30d ws
		JOIN wallets w ON w.chain = ws.chain AND w.address = ws.wallet
		WHERE ws.chain=? AND w.is_bot = FALSE`, string(chain))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []WalletStats
	for rows.Next() {
		var ws WalletStats
		var ch string
		if err := rows.Scan(&ch, &ws.Wallet, &ws.TradeCount, &ws.RealizedUSD, &ws.UnrealizedUSD,
			&ws.BestTradeMultiple, &ws.EarlyScoreMedian, &ws.MaxDrawdownPct, &ws.UpdatedAt); err != nil {
			continue
		}
		ws.Chain = config.Chain(ch)
		stats = append(stats, ws)
	}
	return stats, rows.Err()
}

func (s *Store) LastStatsUpdate() (time.Time, error) {
	var ts sql.NullTime
	err := s.db.QueryRow(`SELECT MAX(updated_at) FROM wallet_stats_30d`).Scan(&ts)
	if err != nil || !ts.Valid {
		return time.Time{}, err
	}
	return ts.Time, nil
}

// ---- Watchlist ----

func (s *Store) UpsertWatchlist(e WatchlistEntry) error {
	_, err := s.db.Exec(`
		INSERT INTO watchlist (chain, wallet, score, status, added_at, last_evaluated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chain, wallet) DO UPDATE SET
			score = excluded.score,
			status = excluded.status,
			last_evaluated_at = excluded.last_evaluated_at,
			added_at = CASE WHEN excluded.status = 'active' AND watchlist.status != 'active'
			                THEN excluded.added_at ELSE watchlist.added_at END`,
		string(e.Chain), e.Wallet, e.Score, e.Status, e.AddedAt, e.LastEvaluatedAt)
	return err
}

func (s *Store) Watchlist(chain config.Chain, status string) ([]WatchlistEntry, error) {
	rows, err := s.db.Query(`
		SELECT chain, wallet, score, status, added_at, last_evaluated_at, last_confluence_at
		FROM watchlist WHERE chain=? AND status=? ORDER BY score DESC`, string(chain), status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanWatchlist(rows)
}

func (s *Store) AllWatchlist(chain config.Chain) ([]WatchlistEntry, error) {
	rows, err := s.db.Query(`
		SELECT chain, wallet, score, status, added_at, last_evaluated_at, last_confluence_at
		FROM watchlist WHERE chain=? ORDER BY score DESC`, string(chain))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanWatchlist(rows)
}

func scanWatchlist(rows *sql.Rows) ([]WatchlistEntry, error) {
	var entries []WatchlistEntry
	for rows.Next() {
		var e WatchlistEntry
		var ch string
		var confluenceAt sql.NullTime
		if err := rows.Scan(&ch, &e.Wallet, &e.Score, &e.Status, &e.AddedAt, &e.LastEvaluatedAt, &confluenceAt); err != nil {
			continue
		}
		e.Chain = config.Chain(ch)
		if confluenceAt.Valid {
			e.LastConfluenceAt = confluenceAt.Time
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// TouchConfluence records the wallet's participation in a confluence so the
// maintainer can defer removal while a window is live.
func (s *Store) TouchConfluence(chain config.Chain, wallet string, ts time.Time) error {
	_, err := s.db.Exec(`UPDATE watchlist SET last_confluence_at=? WHERE chain=? AND wallet=?`,
		ts, string(chain), wallet)
	return err
}

// ---- Alerts ----

// InsertAlert appends to the alert ledger. The dedup key is unique; a
// duplicate insert is ignored and reported as not-inserted.
func (s *Store) InsertAlert(a AlertRecord) (bool, error) {
	walletsJSON, _ := json.Marshal(a.Wallets)
	res, err := s.db.Exec(`
		INSERT OR IGNORE INTO alerts (dedup_key, kind, chain, token, side, wallets, window_ms, weights, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.DedupKey, a.Kind, string(a.Chain), a.Token, a.Side, string(walletsJSON), a.WindowMS, a.Weights, a.CreatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) RecentAlerts(limit int) ([]AlertRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, dedup_key, kind, chain, token, side, wallets, window_ms, weights, created_at
		FROM alerts ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAlerts(rows)
}

func (s *Store) AlertsSince(since time.Time) ([]AlertRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, dedup_key, kind, chain, token, side, wallets, window_ms, weights, created_at
		FROM alerts WHERE created_at > ? ORDER BY created_at ASC`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAlerts(rows)
}

func scanAlerts(rows *sql.Rows) ([]AlertRecord, error) {
	var alerts []AlertRecord
	for rows.Next() {
		var a AlertRecord
		var ch, wallets string
		if err := rows.Scan(&a.ID, &a.DedupKey, &a.Kind, &ch, &a.Token, &a.Side, &wallets, &a.WindowMS, &a.Weights, &a.CreatedAt); err != nil {
			continue
		}
		a.Chain = config.Chain(ch)
		_ = json.Unmarshal([]byte(wallets), &a.Wallets)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// ---- Status ----

func (s *Store) Counts() (map[string]int64, error) {
	stats := map[string]int64{}
	tables := []string{"tokens", "seed_tokens", "wallets", "trades", "positions",
		"wallet_stats_30d", "watchlist", "alerts"}

	for _, t := range tables {
		var count int64
		if err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", t)).Scan(&count); err == nil {
			stats[t] = count
		}
	}

	var active int64
	s.db.QueryRow("SELECT COUNT(*) FROM watchlist WHERE status='active'").Scan(&active)
	stats["watchlist_active"] = active

	return stats, nil
}
