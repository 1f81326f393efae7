package predictor

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"premiumcat/db"
	"premiumcat/ml"
	"premiumcat/monitoring"
)

type fakeClassifier struct {
	mu       sync.Mutex
	label    string
	probs    map[string]float64
	err      error
	panicMsg string
	calls    int
}

func (f *fakeClassifier) Predict(ml.Features) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	return f.label, f.err
}

func (f *fakeClassifier) PredictProba(ml.Features) (map[string]float64, error) {
	return f.probs, f.err
}

func (f *fakeClassifier) Classes() []string {
	return []string{"High", "Low", "Medium"}
}

func (f *fakeClassifier) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeRecorder struct {
	records []db.PredictionRecord
	err     error
}

func (r *fakeRecorder) SavePrediction(_ context.Context, rec db.PredictionRecord) error {
	if r.err != nil {
		return r.err
	}
	r.records = append(r.records, rec)
	return nil
}

type fakePublisher struct {
	events []interface{}
}

func (p *fakePublisher) Publish(_ monitoring.MessageType, data interface{}) error {
	p.events = append(p.events, data)
	return nil
}

func lowClassifier() *fakeClassifier {
	return &fakeClassifier{
		label: "Low",
		probs: map[string]float64{"Low": 0.8, "Medium": 0.15, "High": 0.05},
	}
}

func sampleApplicant() ml.Applicant {
	return ml.Applicant{
		Age:        30,
		Weight:     65,
		Height:     1.7,
		IncomeLPA:  10,
		Smoker:     false,
		Occupation: "privatejob",
		City:       "Mumbai",
	}
}

func TestServicePredict(t *testing.T) {
	recorder := &fakeRecorder{}
	publisher := &fakePublisher{}
	metrics := monitoring.NewMetrics(nil)
	svc := New(lowClassifier(), Dependencies{
		Recorder:  recorder,
		Publisher: publisher,
		Metrics:   metrics,
		Logger:    zaptest.NewLogger(t),
	})

	p, err := svc.Predict(context.Background(), sampleApplicant())
	require.NoError(t, err)

	assert.Equal(t, "Low", p.Category)
	assert.InDelta(t, 0.8, p.Probabilities["Low"], 1e-9)
	assert.NotEmpty(t, p.ID)
	assert.False(t, p.Cached)
	assert.InDelta(t, 22.49, p.Features.BMI, 0.01)
	assert.Equal(t, ml.AgeGroupAdult, p.Features.AgeGroup)
	assert.Equal(t, ml.LifestyleRiskLow, p.Features.LifestyleRisk)
	assert.Equal(t, ml.CityTier1, p.Features.CityTier)
	assert.Equal(t, "Tier 1", p.Display.CityTier)

	require.Len(t, recorder.records, 1)
	assert.Equal(t, p.ID, recorder.records[0].ID)
	assert.Equal(t, "Mumbai", recorder.records[0].Applicant.City)
	assert.Len(t, publisher.events, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PredictionsTotal.WithLabelValues("Low")))
}

func TestServicePredictInvalidInput(t *testing.T) {
	model := lowClassifier()
	metrics := monitoring.NewMetrics(nil)
	svc := New(model, Dependencies{Metrics: metrics})

	a := sampleApplicant()
	a.Height = 0
	_, err := svc.Predict(context.Background(), a)
	assert.ErrorIs(t, err, ml.ErrInvalidInput)

	a = sampleApplicant()
	a.Age = -1
	_, err = svc.Predict(context.Background(), a)
	assert.ErrorIs(t, err, ml.ErrInvalidInput)

	assert.Equal(t, 0, model.Calls())
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.PredictionErrors.WithLabelValues("invalid_input")))
}

func TestServicePredictInferenceError(t *testing.T) {
	model := lowClassifier()
	model.err = ml.ErrUnknownCategory
	svc := New(model, Dependencies{})

	_, err := svc.Predict(context.Background(), sampleApplicant())
	require.Error(t, err)

	var inferenceErr *ml.InferenceError
	require.True(t, errors.As(err, &inferenceErr))
	assert.ErrorIs(t, err, ml.ErrUnknownCategory)

	// a failed call leaves the service usable
	model.err = nil
	p, err := svc.Predict(context.Background(), sampleApplicant())
	require.NoError(t, err)
	assert.Equal(t, "Low", p.Category)
}

func TestServicePredictClassifierPanic(t *testing.T) {
	model := lowClassifier()
	model.panicMsg = "boom"
	svc := New(model, Dependencies{})

	_, err := svc.Predict(context.Background(), sampleApplicant())
	var inferenceErr *ml.InferenceError
	require.True(t, errors.As(err, &inferenceErr))
	assert.Contains(t, err.Error(), "boom")
}

func TestServicePredictLabelWithoutProbability(t *testing.T) {
	model := lowClassifier()
	model.label = "Extreme"
	svc := New(model, Dependencies{})

	_, err := svc.Predict(context.Background(), sampleApplicant())
	var inferenceErr *ml.InferenceError
	assert.True(t, errors.As(err, &inferenceErr))
}

func TestServicePredictMemoizes(t *testing.T) {
	model := lowClassifier()
	metrics := monitoring.NewMetrics(nil)
	svc := New(model, Dependencies{Cache: NewLRUCache(16, 0), Metrics: metrics})

	first, err := svc.Predict(context.Background(), sampleApplicant())
	require.NoError(t, err)
	second, err := svc.Predict(context.Background(), sampleApplicant())
	require.NoError(t, err)

	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Category, second.Category)
	assert.Equal(t, first.Probabilities, second.Probabilities)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 1, model.Calls())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("miss")))

	// a different city in the same tier derives the same row
	other := sampleApplicant()
	other.City = "Delhi"
	third, err := svc.Predict(context.Background(), other)
	require.NoError(t, err)
	assert.True(t, third.Cached)
}

func TestServicePredictRecorderFailure(t *testing.T) {
	svc := New(lowClassifier(), Dependencies{
		Recorder: &fakeRecorder{err: errors.New("disk full")},
		Logger:   zaptest.NewLogger(t),
	})

	p, err := svc.Predict(context.Background(), sampleApplicant())
	require.NoError(t, err)
	assert.Equal(t, "Low", p.Category)
}

func TestServiceConcurrentPredict(t *testing.T) {
	svc := New(lowClassifier(), Dependencies{Cache: NewLRUCache(16, 0)})

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(age int) {
			defer wg.Done()
			a := sampleApplicant()
			a.Age = age
			if _, err := svc.Predict(context.Background(), a); err != nil {
				errs <- err
			}
		}(20 + i*3)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}
}
