package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"premiumcat/ml"
)

type TrainingConfig struct {
	DataPath       string
	ModelType      string
	ModelPath      string
	MaxTreeDepth   int
	MinSamplesLeaf int
	TestRatio      float64
	Seed           int64
}

// TrainingResult reports what a training run produced. Metrics are measured
// on the held-out rows.
type TrainingResult struct {
	Model     *ml.Model
	Metrics   ml.Metrics
	Cleaning  CleaningStats
	Issues    []QualityIssue
	TrainRows int
	TestRows  int
	TrainedAt time.Time
}

// Train cleans records, fits a model on the training split and scores it on
// the held-out split.
func Train(records []*ml.ApplicantRecord, config TrainingConfig, logger *zap.Logger) (*TrainingResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.ModelType != "" && config.ModelType != ml.ModelTypeDecisionTree {
		return nil, fmt.Errorf("unsupported model type: %s", config.ModelType)
	}

	cleaner := NewDataCleaner(logger)
	cleaned, issues := cleaner.Clean(records)
	if len(cleaned) == 0 {
		return nil, errors.New("no usable training rows after cleaning")
	}

	set, err := ml.BuildTrainingSet(cleaned)
	if err != nil {
		return nil, fmt.Errorf("build training set: %w", err)
	}
	train, test := ml.SplitDataset(set, config.TestRatio, config.Seed)
	if train.Len() == 0 {
		return nil, errors.New("training split is empty")
	}

	model, err := ml.TrainModel(train, ml.TreeOptions{
		MaxDepth:       config.MaxTreeDepth,
		MinSamplesLeaf: config.MinSamplesLeaf,
	})
	if err != nil {
		return nil, fmt.Errorf("train model: %w", err)
	}

	result := &TrainingResult{
		Model:     model,
		Cleaning:  cleaner.GetStats(),
		Issues:    issues,
		TrainRows: train.Len(),
		TestRows:  test.Len(),
		TrainedAt: time.Now().UTC(),
	}
	if test.Len() > 0 {
		result.Metrics, err = ml.Evaluate(model, test)
		if err != nil {
			return nil, fmt.Errorf("evaluate model: %w", err)
		}
	} else {
		logger.Warn("no held-out rows, skipping evaluation")
	}

	logger.Info("model trained",
		zap.Int("train_rows", result.TrainRows),
		zap.Int("test_rows", result.TestRows),
		zap.Int("rejected_rows", len(issues)),
		zap.Int("tree_depth", model.Tree.Depth()),
		zap.Float64("accuracy", result.Metrics.Accuracy),
		zap.Float64("precision", result.Metrics.Precision),
		zap.Float64("recall", result.Metrics.Recall))

	return result, nil
}

// TrainFile trains on the CSV at config.DataPath and writes the artifact to
// config.ModelPath.
func TrainFile(config TrainingConfig, logger *zap.Logger) (*TrainingResult, error) {
	records, err := ml.ReadRecordsFile(config.DataPath)
	if err != nil {
		return nil, fmt.Errorf("read training data: %w", err)
	}

	result, err := Train(records, config, logger)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(config.ModelPath), 0o755); err != nil {
		return nil, fmt.Errorf("create model dir: %w", err)
	}
	if err := result.Model.Save(config.ModelPath); err != nil {
		return nil, fmt.Errorf("save model: %w", err)
	}
	return result, nil
}
