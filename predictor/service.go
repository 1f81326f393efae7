// Package predictor derives features for an applicant and runs the classifier on them.
package predictor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"premiumcat/db"
	"premiumcat/ml"
	"premiumcat/monitoring"
)

// Prediction is the result returned to callers.
type Prediction struct {
	ID            string             `json:"id"`
	Category      string             `json:"predicted_category"`
	Probabilities map[string]float64 `json:"class_probabilities"`
	Features      ml.Features        `json:"features"`
	Display       ml.FeatureDisplay  `json:"display"`
	Cached        bool               `json:"cached"`
	CreatedAt     time.Time          `json:"created_at"`
}

type Recorder interface {
	SavePrediction(ctx context.Context, rec db.PredictionRecord) error
}

type Publisher interface {
	Publish(messageType monitoring.MessageType, data interface{}) error
}

// Dependencies are all optional.
type Dependencies struct {
	// ModelVersion namespaces cache entries so a replaced model never
	// serves outcomes memoized for its predecessor.
	ModelVersion string
	Cache        Cache
	Recorder     Recorder
	Publisher    Publisher
	Metrics      *monitoring.Metrics
	Logger       *zap.Logger
}

type modelState struct {
	classifier ml.Classifier
	version    string
}

// Service is safe for concurrent use as long as the classifier is read-only.
// Each call sees exactly one model, even across SwapModel.
type Service struct {
	model atomic.Pointer[modelState]
	deps  Dependencies
	now   func() time.Time
}

func New(model ml.Classifier, deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	s := &Service{deps: deps, now: time.Now}
	s.model.Store(&modelState{classifier: model, version: deps.ModelVersion})
	return s
}

// SwapModel replaces the classifier for subsequent calls.
func (s *Service) SwapModel(model ml.Classifier, version string) {
	previous := s.model.Swap(&modelState{classifier: model, version: version})
	s.deps.Logger.Info("model replaced",
		zap.String("previous_version", previous.version),
		zap.String("version", version))
}

func (s *Service) ModelVersion() string {
	return s.model.Load().version
}

func (s *Service) Classes() []string {
	return s.model.Load().classifier.Classes()
}

// Predict returns ml.ErrInvalidInput unchanged for underivable applicants and
// a *ml.InferenceError for any classifier failure. Neither leaves the service
// in a bad state.
func (s *Service) Predict(ctx context.Context, applicant ml.Applicant) (*Prediction, error) {
	start := s.now()

	features, err := ml.Derive(applicant)
	if err != nil {
		s.countError("invalid_input")
		return nil, err
	}

	state := s.model.Load()
	key := CacheKey(features)
	if state.version != "" {
		key = state.version + "|" + key
	}
	outcome, cached := s.lookup(ctx, key)
	if !cached {
		outcome, err = classify(state.classifier, features)
		if err != nil {
			s.countError("inference")
			s.deps.Logger.Warn("inference failed",
				zap.Any("features", features),
				zap.Error(err))
			return nil, err
		}
		if s.deps.Cache != nil {
			s.deps.Cache.Set(ctx, key, outcome)
		}
	}

	prediction := &Prediction{
		ID:            uuid.NewString(),
		Category:      outcome.Category,
		Probabilities: outcome.Probabilities,
		Features:      features,
		Display:       features.Display(),
		Cached:        cached,
		CreatedAt:     s.now().UTC(),
	}

	s.record(ctx, applicant, prediction)
	s.publish(prediction)

	if s.deps.Metrics != nil {
		s.deps.Metrics.PredictionsTotal.WithLabelValues(prediction.Category).Inc()
		s.deps.Metrics.PredictionDuration.Observe(s.now().Sub(start).Seconds())
	}
	s.deps.Logger.Info("prediction served",
		zap.String("id", prediction.ID),
		zap.String("category", prediction.Category),
		zap.Bool("cached", cached))

	return prediction, nil
}

func (s *Service) lookup(ctx context.Context, key string) (Outcome, bool) {
	if s.deps.Cache == nil {
		return Outcome{}, false
	}
	outcome, ok := s.deps.Cache.Get(ctx, key)
	if s.deps.Metrics != nil {
		result := "miss"
		if ok {
			result = "hit"
		}
		s.deps.Metrics.CacheLookups.WithLabelValues(result).Inc()
	}
	return outcome, ok
}

// classify calls the classifier; panics from it are reported as inference errors.
func classify(model ml.Classifier, features ml.Features) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ml.InferenceError{Err: fmt.Errorf("classifier panic: %v", r)}
		}
	}()

	label, err := model.Predict(features)
	if err != nil {
		return Outcome{}, &ml.InferenceError{Err: err}
	}
	probs, err := model.PredictProba(features)
	if err != nil {
		return Outcome{}, &ml.InferenceError{Err: err}
	}
	if _, ok := probs[label]; !ok {
		return Outcome{}, &ml.InferenceError{Err: errors.New("predicted label missing from probabilities")}
	}
	return Outcome{Category: label, Probabilities: probs}, nil
}

func (s *Service) record(ctx context.Context, applicant ml.Applicant, p *Prediction) {
	if s.deps.Recorder == nil {
		return
	}
	err := s.deps.Recorder.SavePrediction(ctx, db.PredictionRecord{
		ID:            p.ID,
		Applicant:     applicant,
		Features:      p.Features,
		Category:      p.Category,
		Probabilities: p.Probabilities,
		CreatedAt:     p.CreatedAt,
	})
	if err != nil {
		s.deps.Logger.Error("failed to record prediction", zap.String("id", p.ID), zap.Error(err))
	}
}

func (s *Service) publish(p *Prediction) {
	if s.deps.Publisher == nil {
		return
	}
	if err := s.deps.Publisher.Publish(monitoring.PredictionEvent, p); err != nil {
		s.deps.Logger.Warn("failed to publish prediction", zap.String("id", p.ID), zap.Error(err))
	}
}

func (s *Service) countError(kind string) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.PredictionErrors.WithLabelValues(kind).Inc()
	}
}
