package ml

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trainedModel(t *testing.T) *Model {
	t.Helper()
	set, err := BuildTrainingSet(syntheticRecords(90))
	require.NoError(t, err)
	model, err := TrainModel(set, TreeOptions{MaxDepth: 5})
	require.NoError(t, err)
	return model
}

func TestModelPredict(t *testing.T) {
	model := trainedModel(t)
	assert.Equal(t, []string{"High", "Low", "Medium"}, model.Classes())

	// row 3 of the synthetic dataset
	features, err := Derive(Applicant{Age: 39, Weight: 91, Height: 1.7, IncomeLPA: 3.5, Smoker: true, Occupation: "governmentjob", City: "Mumbai"})
	require.NoError(t, err)

	label, err := model.Predict(features)
	require.NoError(t, err)
	assert.Equal(t, "High", label)

	probs, err := model.PredictProba(features)
	require.NoError(t, err)
	require.Len(t, probs, 3)
	sum := 0.0
	for class, p := range probs {
		assert.GreaterOrEqual(t, p, 0.0, class)
		assert.LessOrEqual(t, p, 1.0, class)
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Equal(t, 1.0, probs["High"])
}

func TestModelUnknownCategory(t *testing.T) {
	model := trainedModel(t)
	features := Features{BMI: 22, AgeGroup: AgeGroupAdult, LifestyleRisk: LifestyleRiskLow, CityTier: CityTier1, IncomeLPA: 2, Occupation: "astronaut"}
	_, err := model.Predict(features)
	assert.ErrorIs(t, err, ErrUnknownCategory)
	_, err = model.PredictProba(features)
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestModelSaveLoad(t *testing.T) {
	model := trainedModel(t)
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, model.Save(path))

	loaded, err := LoadModel(ModelTypeDecisionTree, path)
	require.NoError(t, err)
	assert.Equal(t, model.Classes(), loaded.Classes())
	assert.Len(t, loaded.Version, 16)

	again, err := LoadModel(ModelTypeDecisionTree, path)
	require.NoError(t, err)
	assert.Equal(t, loaded.Version, again.Version)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary artifact left behind")

	features, err := Derive(Applicant{Age: 22, Weight: 55, Height: 1.7, IncomeLPA: 1.5, Occupation: "freelancer", City: "Jaipur"})
	require.NoError(t, err)
	want, err := model.PredictProba(features)
	require.NoError(t, err)
	got, err := loaded.PredictProba(features)
	require.NoError(t, err)
	for class, p := range want {
		assert.Equal(t, math.Float64bits(p), math.Float64bits(got[class]), class)
	}
}

func TestLoadModelMissingFile(t *testing.T) {
	_, err := LoadModel(ModelTypeDecisionTree, filepath.Join(t.TempDir(), "missing.json"))
	var loadErr *ModelLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadModelUnsupportedType(t *testing.T) {
	_, err := LoadModel("random_forest", "model.json")
	var loadErr *ModelLoadError
	assert.True(t, errors.As(err, &loadErr))
}

func TestLoadModelSchemaMismatch(t *testing.T) {
	model := trainedModel(t)
	model.Schema = []string{"bmi", "agegroup", "lifestylerisk", "citytier", "incomelpa", "occupation"}
	payload, err := json.Marshal(model)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "drifted.json")
	require.NoError(t, os.WriteFile(path, payload, 0o600))

	_, err = LoadModel(ModelTypeDecisionTree, path)
	var loadErr *ModelLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.ErrorIs(t, err, ErrSchemaMismatch)
	assert.Equal(t, path, loadErr.Path)
}

func TestLoadModelCorruptArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, err := LoadModel(ModelTypeDecisionTree, path)
	var loadErr *ModelLoadError
	assert.True(t, errors.As(err, &loadErr))
}

func TestSaveUntrainedModel(t *testing.T) {
	model := &Model{Type: ModelTypeDecisionTree, Schema: FeatureNames(), Labels: []string{"Low"}}
	assert.Error(t, model.Save(filepath.Join(t.TempDir(), "model.json")))
}
