package repository

// Schema returns the idempotent DDL for all analyzer tables. Predictions
// and accuracy records key on (symbol, horizon_days, prediction_date) and
// use ReplacingMergeTree so re-inserts of the same key collapse.
func Schema(database string) []string {
	return []string{
		`CREATE DATABASE IF NOT EXISTS ` + database,

		`CREATE TABLE IF NOT EXISTS ` + database + `.price_snapshots (
			symbol            LowCardinality(String),
			price             Float64,
			market_cap        Float64,
			volume_24h        Float64,
			price_change_24h  Float64,
			observed_at       DateTime64(3, 'UTC')
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(observed_at)
		ORDER BY (symbol, observed_at)`,

		`CREATE TABLE IF NOT EXISTS ` + database + `.news_items (
			title            String,
			source           String,
			url              String,
			category         LowCardinality(String),
			published_at     DateTime64(3, 'UTC'),
			sentiment_score  Float64,
			ai_score         Nullable(Float64),
			ai_explanation   String
		) ENGINE = ReplacingMergeTree()
		PARTITION BY toYYYYMM(published_at)
		ORDER BY (url, published_at)`,

		`CREATE TABLE IF NOT EXISTS ` + database + `.predictions (
			symbol            LowCardinality(String),
			horizon_days      Int32,
			prediction_date   DateTime('UTC'),
			target_date       DateTime('UTC'),
			current_price     Float64,
			predicted_price   Float64,
			direction         LowCardinality(String),
			sentiment_factor  Float64,
			technical_factor  Float64,
			confidence        Float64,
			used_sentiment    UInt8,
			used_technical    UInt8
		) ENGINE = ReplacingMergeTree()
		ORDER BY (symbol, horizon_days, prediction_date)`,

		`CREATE TABLE IF NOT EXISTS ` + database + `.accuracy (
			symbol           LowCardinality(String),
			horizon_days     Int32,
			prediction_date  DateTime('UTC'),
			target_date      DateTime('UTC'),
			predicted_price  Float64,
			actual_price     Float64,
			error_rate       Float64
		) ENGINE = ReplacingMergeTree()
		ORDER BY (symbol, horizon_days, prediction_date)`,
	}
}
