package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aleksgain/crypto-market-analyzer/internal/domain/models"
	"github.com/aleksgain/crypto-market-analyzer/pkg/clickhouse"
	"github.com/aleksgain/crypto-market-analyzer/pkg/logger"
)

// actualPriceTolerance bounds how far from the target date a snapshot may
// be and still count as the realized price.
const actualPriceTolerance = 36 * time.Hour

// Store implements the price, news and prediction stores on ClickHouse.
type Store struct {
	db       *sql.DB
	database string
	l        *logger.Logger
}

func NewStore(client *clickhouse.Client, database string, l *logger.Logger) *Store {
	if l == nil {
		l = logger.Nop()
	}
	return &Store{db: client.DB(), database: database, l: l}
}

func (s *Store) table(name string) string {
	return s.database + "." + name
}

func (s *Store) PutSnapshot(ctx context.Context, snap models.PriceSnapshot) error {
	query := `INSERT INTO ` + s.table("price_snapshots") + `
		(symbol, price, market_cap, volume_24h, price_change_24h, observed_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		snap.Symbol, snap.Price, snap.MarketCap, snap.Volume24h,
		snap.PriceChange24h, snap.ObservedAt)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

func (s *Store) GetPriceHistory(ctx context.Context, symbol string, window time.Duration) ([]models.PriceSnapshot, error) {
	since := time.Now().UTC().Add(-window)
	query := `SELECT symbol, price, market_cap, volume_24h, price_change_24h, observed_at
		FROM ` + s.table("price_snapshots") + `
		WHERE symbol = ? AND observed_at >= ?
		ORDER BY observed_at ASC`
	rows, err := s.db.QueryContext(ctx, query, symbol, since)
	if err != nil {
		return nil, fmt.Errorf("query price history: %w", err)
	}
	defer rows.Close()

	var out []models.PriceSnapshot
	for rows.Next() {
		var snap models.PriceSnapshot
		if err := rows.Scan(&snap.Symbol, &snap.Price, &snap.MarketCap,
			&snap.Volume24h, &snap.PriceChange24h, &snap.ObservedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (s *Store) GetActualPrice(ctx context.Context, symbol string, atDate time.Time) (float64, bool, error) {
	from := atDate.Add(-actualPriceTolerance)
	to := atDate.Add(actualPriceTolerance)
	query := `SELECT price
		FROM ` + s.table("price_snapshots") + `
		WHERE symbol = ? AND observed_at BETWEEN ? AND ?
		ORDER BY abs(toUnixTimestamp64Milli(observed_at) - ?) ASC
		LIMIT 1`
	var price float64
	err := s.db.QueryRowContext(ctx, query, symbol, from, to, atDate.UnixMilli()).Scan(&price)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query actual price: %w", err)
	}
	return price, true, nil
}

func (s *Store) PutNewsItem(ctx context.Context, item models.NewsItem) error {
	query := `INSERT INTO ` + s.table("news_items") + `
		(title, source, url, category, published_at, sentiment_score, ai_score, ai_explanation)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		item.Title, item.Source, item.URL, item.Category,
		item.PublishedAt, item.SentimentScore, item.AIScore, item.AIExplanation)
	if err != nil {
		return fmt.Errorf("insert news item: %w", err)
	}
	return nil
}

func (s *Store) GetNewsItems(ctx context.Context, since time.Time, limit int) ([]models.NewsItem, error) {
	query := `SELECT title, source, url, category, published_at, sentiment_score, ai_score, ai_explanation
		FROM ` + s.table("news_items") + ` FINAL
		WHERE published_at >= ?
		ORDER BY published_at DESC
		LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("query news items: %w", err)
	}
	defer rows.Close()

	var out []models.NewsItem
	for rows.Next() {
		var item models.NewsItem
		if err := rows.Scan(&item.Title, &item.Source, &item.URL, &item.Category,
			&item.PublishedAt, &item.SentimentScore, &item.AIScore, &item.AIExplanation); err != nil {
			return nil, fmt.Errorf("scan news item: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *Store) PutPrediction(ctx context.Context, rec models.PredictionRecord) error {
	query := `INSERT INTO ` + s.table("predictions") + `
		(symbol, horizon_days, prediction_date, target_date, current_price, predicted_price,
		 direction, sentiment_factor, technical_factor, confidence, used_sentiment, used_technical)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		rec.Symbol, int32(rec.HorizonDays), rec.PredictionDate, rec.TargetDate,
		rec.CurrentPrice, rec.PredictedPrice, string(rec.Direction),
		rec.SentimentFactor, rec.TechnicalFactor, rec.Confidence,
		boolUInt8(rec.UsedSentiment), boolUInt8(rec.UsedTechnical))
	if err != nil {
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}

func (s *Store) GetMaturedUnresolved(ctx context.Context, now time.Time) ([]models.PredictionRecord, error) {
	query := `SELECT p.symbol, p.horizon_days, p.prediction_date, p.target_date,
			p.current_price, p.predicted_price, p.direction,
			p.sentiment_factor, p.technical_factor, p.confidence,
			p.used_sentiment, p.used_technical
		FROM ` + s.table("predictions") + ` AS p FINAL
		LEFT ANTI JOIN ` + s.table("accuracy") + ` AS a
			USING (symbol, horizon_days, prediction_date)
		WHERE p.target_date <= ?
		ORDER BY p.symbol, p.horizon_days, p.prediction_date`
	rows, err := s.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("query matured predictions: %w", err)
	}
	defer rows.Close()

	var out []models.PredictionRecord
	for rows.Next() {
		var rec models.PredictionRecord
		var horizon int32
		var direction string
		var usedSent, usedTech uint8
		if err := rows.Scan(&rec.Symbol, &horizon, &rec.PredictionDate, &rec.TargetDate,
			&rec.CurrentPrice, &rec.PredictedPrice, &direction,
			&rec.SentimentFactor, &rec.TechnicalFactor, &rec.Confidence,
			&usedSent, &usedTech); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		rec.HorizonDays = int(horizon)
		rec.Direction = models.Direction(direction)
		rec.UsedSentiment = usedSent != 0
		rec.UsedTechnical = usedTech != 0
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) PutAccuracyRecord(ctx context.Context, rec models.AccuracyRecord) error {
	query := `INSERT INTO ` + s.table("accuracy") + `
		(symbol, horizon_days, prediction_date, target_date, predicted_price, actual_price, error_rate)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		rec.Symbol, int32(rec.HorizonDays), rec.PredictionDate, rec.TargetDate,
		rec.PredictedPrice, rec.ActualPrice, rec.ErrorRate)
	if err != nil {
		return fmt.Errorf("insert accuracy record: %w", err)
	}
	return nil
}

func (s *Store) GetAccuracySummaries(ctx context.Context) ([]models.AccuracySummary, error) {
	query := `SELECT symbol, horizon_days, avg(error_rate) AS avg_error, count() AS cnt
		FROM ` + s.table("accuracy") + ` FINAL
		GROUP BY symbol, horizon_days
		ORDER BY symbol, horizon_days`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query accuracy summaries: %w", err)
	}
	defer rows.Close()

	var out []models.AccuracySummary
	for rows.Next() {
		var sum models.AccuracySummary
		var horizon int32
		var count uint64
		if err := rows.Scan(&sum.Symbol, &horizon, &sum.AvgError, &count); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		sum.HorizonDays = int(horizon)
		sum.Count = int(count)
		out = append(out, sum)
	}
	return out, rows.Err()
}

func boolUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
