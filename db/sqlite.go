package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"premiumcat/ml"
)

// Store persists prediction history and the training log in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	database, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// sqlite serializes writers; one connection avoids "database is locked".
	database.SetMaxOpenConns(1)

	if err := createTables(database); err != nil {
		database.Close()
		return nil, err
	}
	return &Store{db: database}, nil
}

func createTables(database *sql.DB) error {
	query := `
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        prediction_id TEXT NOT NULL,
        age INTEGER NOT NULL,
        weight REAL NOT NULL,
        height REAL NOT NULL,
        income_lpa REAL NOT NULL,
        smoker BOOLEAN NOT NULL,
        occupation TEXT NOT NULL,
        city TEXT NOT NULL,
        bmi REAL NOT NULL,
        age_group TEXT NOT NULL,
        lifestyle_risk TEXT NOT NULL,
        city_tier INTEGER NOT NULL,
        category TEXT NOT NULL,
        probabilities TEXT NOT NULL,
        created_at DATETIME NOT NULL,
        UNIQUE(prediction_id)
    );
    CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at);
    CREATE TABLE IF NOT EXISTS training_log (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        model_name VARCHAR(50),
        model_path TEXT,
        accuracy REAL,
        precision REAL,
        recall REAL,
        trained_at DATETIME,
        data_points INTEGER,
        rejected_rows INTEGER
    );
    CREATE TABLE IF NOT EXISTS data_quality (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        source TEXT NOT NULL,
        row_index INTEGER NOT NULL,
        rule TEXT NOT NULL,
        message TEXT NOT NULL,
        recorded_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_data_quality_source ON data_quality(source);
    `
	if _, err := database.Exec(query); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// PredictionRecord is one row of prediction history.
type PredictionRecord struct {
	ID            string             `json:"id"`
	Applicant     ml.Applicant       `json:"applicant"`
	Features      ml.Features        `json:"features"`
	Category      string             `json:"predicted_category"`
	Probabilities map[string]float64 `json:"class_probabilities"`
	CreatedAt     time.Time          `json:"created_at"`
}

func (s *Store) SavePrediction(ctx context.Context, rec PredictionRecord) error {
	if rec.ID == "" {
		return errors.New("prediction id required")
	}
	probs, err := json.Marshal(rec.Probabilities)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO predictions (
            prediction_id, age, weight, height, income_lpa, smoker, occupation, city,
            bmi, age_group, lifestyle_risk, city_tier, category, probabilities, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Applicant.Age,
		rec.Applicant.Weight,
		rec.Applicant.Height,
		rec.Applicant.IncomeLPA,
		rec.Applicant.Smoker,
		rec.Applicant.Occupation,
		rec.Applicant.City,
		rec.Features.BMI,
		string(rec.Features.AgeGroup),
		string(rec.Features.LifestyleRisk),
		int(rec.Features.CityTier),
		rec.Category,
		string(probs),
		rec.CreatedAt.UTC(),
	)
	return err
}

// QueryPredictions returns the most recent predictions first.
func (s *Store) QueryPredictions(ctx context.Context, limit int) ([]PredictionRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT prediction_id, age, weight, height, income_lpa, smoker, occupation, city,
               bmi, age_group, lifestyle_risk, city_tier, category, probabilities, created_at
        FROM predictions
        ORDER BY created_at DESC, id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]PredictionRecord, 0)
	for rows.Next() {
		var rec PredictionRecord
		var ageGroup, risk, probs string
		var tier int
		if err := rows.Scan(
			&rec.ID,
			&rec.Applicant.Age,
			&rec.Applicant.Weight,
			&rec.Applicant.Height,
			&rec.Applicant.IncomeLPA,
			&rec.Applicant.Smoker,
			&rec.Applicant.Occupation,
			&rec.Applicant.City,
			&rec.Features.BMI,
			&ageGroup,
			&risk,
			&tier,
			&rec.Category,
			&probs,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		rec.Features.AgeGroup = ml.AgeGroup(ageGroup)
		rec.Features.LifestyleRisk = ml.LifestyleRisk(risk)
		rec.Features.CityTier = ml.CityTier(tier)
		rec.Features.IncomeLPA = rec.Applicant.IncomeLPA
		rec.Features.Occupation = rec.Applicant.Occupation
		if err := json.Unmarshal([]byte(probs), &rec.Probabilities); err != nil {
			return nil, fmt.Errorf("decode probabilities of %s: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type TrainingLog struct {
	ModelName    string    `json:"model_name"`
	ModelPath    string    `json:"model_path"`
	Accuracy     float64   `json:"accuracy"`
	Precision    float64   `json:"precision"`
	Recall       float64   `json:"recall"`
	TrainedAt    time.Time `json:"trained_at"`
	DataPoints   int       `json:"data_points"`
	RejectedRows int       `json:"rejected_rows"`
}

func (s *Store) SaveTrainingLog(ctx context.Context, entry TrainingLog) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO training_log (model_name, model_path, accuracy, precision, recall, trained_at, data_points, rejected_rows)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ModelName, entry.ModelPath, entry.Accuracy, entry.Precision, entry.Recall,
		entry.TrainedAt.UTC(), entry.DataPoints, entry.RejectedRows)
	return err
}

func (s *Store) LoadTrainingLog(ctx context.Context) ([]TrainingLog, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT model_name, model_path, accuracy, precision, recall, trained_at, data_points, rejected_rows
        FROM training_log
        ORDER BY trained_at DESC
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]TrainingLog, 0)
	for rows.Next() {
		var log TrainingLog
		if err := rows.Scan(&log.ModelName, &log.ModelPath, &log.Accuracy, &log.Precision, &log.Recall,
			&log.TrainedAt, &log.DataPoints, &log.RejectedRows); err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

// DataIssue is a training row rejected during cleaning.
type DataIssue struct {
	Source     string    `json:"source"`
	Row        int       `json:"row"`
	Rule       string    `json:"rule"`
	Message    string    `json:"message"`
	RecordedAt time.Time `json:"recorded_at"`
}

// SaveDataIssues stores issues in one transaction.
func (s *Store) SaveDataIssues(ctx context.Context, issues []DataIssue) error {
	if len(issues) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO data_quality (source, row_index, rule, message, recorded_at)
        VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, issue := range issues {
		if _, err := stmt.ExecContext(ctx, issue.Source, issue.Row, issue.Rule, issue.Message, issue.RecordedAt.UTC()); err != nil {
			return fmt.Errorf("insert data issue: %w", err)
		}
	}
	return tx.Commit()
}

// QueryDataIssues returns the issues recorded for source, in row order.
func (s *Store) QueryDataIssues(ctx context.Context, source string) ([]DataIssue, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT source, row_index, rule, message, recorded_at
        FROM data_quality
        WHERE source = ?
        ORDER BY row_index ASC
    `, source)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	issues := make([]DataIssue, 0)
	for rows.Next() {
		var issue DataIssue
		if err := rows.Scan(&issue.Source, &issue.Row, &issue.Rule, &issue.Message, &issue.RecordedAt); err != nil {
			return nil, err
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
