package ledger

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	uid TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	trade_id TEXT NOT NULL,
	order_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	price REAL NOT NULL,
	quantity REAL NOT NULL,
	ts DATETIME NOT NULL,
	notional REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_symbol_ts ON trades(symbol, ts);

CREATE TABLE IF NOT EXISTS equity (
	time DATETIME NOT NULL,
	cash REAL NOT NULL,
	equity REAL NOT NULL,
	realized_pl REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(time);
`
