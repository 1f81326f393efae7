package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"go.uber.org/zap"

	"premiumcat/config"
	"premiumcat/db"
	"premiumcat/logger"
	"premiumcat/pipeline"
)

func main() {
	configPath := flag.String("config", "config.yaml", "config file")
	dataPath := flag.String("data", "", "training CSV (overrides ml.training.data_path)")
	modelPath := flag.String("model_path", "", "model output path (overrides ml.model_path)")
	maxDepth := flag.Int("max_depth", 0, "max tree depth (overrides config)")
	minLeaf := flag.Int("min_leaf", 0, "minimum samples per leaf (overrides config)")
	testRatio := flag.Float64("test_ratio", 0, "held-out ratio (overrides config)")
	seed := flag.Int64("seed", 0, "shuffle seed (overrides config)")
	skipLog := flag.Bool("no_db", false, "do not append to the training log")
	flag.Parse()

	path, baseDir := config.Locate(*configPath)
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	// flag values are taken relative to the working directory
	cfg.ResolvePaths(baseDir)

	logger := logger.New(cfg.Log)
	defer logger.Sync()

	training := pipeline.TrainingConfig{
		DataPath:       firstString(*dataPath, cfg.ML.Training.DataPath),
		ModelType:      cfg.ML.ModelType,
		ModelPath:      firstString(*modelPath, cfg.ML.ModelPath),
		MaxTreeDepth:   firstInt(*maxDepth, cfg.ML.Training.MaxTreeDepth),
		MinSamplesLeaf: firstInt(*minLeaf, cfg.ML.Training.MinSamplesLeaf),
		TestRatio:      cfg.ML.Training.TestRatio,
		Seed:           cfg.ML.Training.Seed,
	}
	if *testRatio > 0 {
		training.TestRatio = *testRatio
	}
	if *seed != 0 {
		training.Seed = *seed
	}

	result, err := pipeline.TrainFile(training, logger)
	if err != nil {
		logger.Fatal("training failed", zap.String("data", training.DataPath), zap.Error(err))
	}
	for _, issue := range result.Issues {
		logger.Debug("rejected row", zap.Int("row", issue.Row), zap.String("rule", issue.Rule), zap.String("message", issue.Message))
	}

	if !*skipLog {
		store, err := db.Open(cfg.Database.Path)
		if err != nil {
			logger.Fatal("failed to open database", zap.Error(err))
		}
		defer store.Close()

		err = store.SaveTrainingLog(context.Background(), db.TrainingLog{
			ModelName:    training.ModelType,
			ModelPath:    training.ModelPath,
			Accuracy:     result.Metrics.Accuracy,
			Precision:    result.Metrics.Precision,
			Recall:       result.Metrics.Recall,
			TrainedAt:    result.TrainedAt,
			DataPoints:   result.TrainRows + result.TestRows,
			RejectedRows: len(result.Issues),
		})
		if err != nil {
			logger.Error("failed to save training log", zap.Error(err))
		}

		issues := make([]db.DataIssue, 0, len(result.Issues))
		for _, issue := range result.Issues {
			issues = append(issues, db.DataIssue{
				Source:     training.DataPath,
				Row:        issue.Row,
				Rule:       issue.Rule,
				Message:    issue.Message,
				RecordedAt: issue.Timestamp,
			})
		}
		if err := store.SaveDataIssues(context.Background(), issues); err != nil {
			logger.Error("failed to save data quality issues", zap.Error(err))
		}
	}

	fmt.Printf("accuracy=%.2f precision=%.2f recall=%.2f\n",
		result.Metrics.Accuracy, result.Metrics.Precision, result.Metrics.Recall)
	fmt.Printf("model saved to %s\n", training.ModelPath)
}

func firstString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstInt(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
