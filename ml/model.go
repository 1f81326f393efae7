package ml

import (
	"errors"
	"fmt"
)

// Classifier is the contract the inference caller relies on.
type Classifier interface {
	Predict(features Features) (string, error)
	PredictProba(features Features) (map[string]float64, error)
	Classes() []string
}

const ModelTypeDecisionTree = "decision_tree"

// Model bundles the feature schema, the fitted encoder and the tree. It is
// read-only once trained or loaded.
type Model struct {
	Type    string       `json:"model_type"`
	Schema  []string     `json:"schema"`
	Encoder Encoder      `json:"encoder"`
	Labels  []string     `json:"classes"`
	Tree    DecisionTree `json:"tree"`

	// Version identifies the loaded artifact bytes; empty for a model
	// trained in process.
	Version string `json:"-"`
}

var _ Classifier = (*Model)(nil)

// TrainModel fits the encoder and the tree on a prepared training set.
func TrainModel(set *TrainingSet, opts TreeOptions) (*Model, error) {
	if set == nil || len(set.Features) == 0 {
		return nil, errors.New("training set is empty")
	}
	model := &Model{
		Type:   ModelTypeDecisionTree,
		Schema: FeatureNames(),
		Labels: append([]string(nil), set.Classes...),
	}
	if err := model.Encoder.Fit(set.Features); err != nil {
		return nil, err
	}
	vectors, err := model.Encoder.TransformAll(set.Features)
	if err != nil {
		return nil, err
	}
	if err := model.Tree.Train(vectors, set.Labels, len(set.Classes), opts); err != nil {
		return nil, err
	}
	return model, nil
}

func (m *Model) Classes() []string {
	return append([]string(nil), m.Labels...)
}

func (m *Model) Predict(features Features) (string, error) {
	vector, err := m.Encoder.Transform(features)
	if err != nil {
		return "", err
	}
	label, _, err := m.Tree.Predict(vector)
	if err != nil {
		return "", err
	}
	return m.Labels[label], nil
}

func (m *Model) PredictProba(features Features) (map[string]float64, error) {
	vector, err := m.Encoder.Transform(features)
	if err != nil {
		return nil, err
	}
	dist, err := m.Tree.PredictProba(vector)
	if err != nil {
		return nil, err
	}
	probs := make(map[string]float64, len(m.Labels))
	for i, label := range m.Labels {
		probs[label] = dist[i]
	}
	return probs, nil
}

// CheckSchema reports whether the model was trained on the current feature columns.
func (m *Model) CheckSchema() error {
	expected := FeatureNames()
	if len(m.Schema) != len(expected) {
		return fmt.Errorf("%w: model has %v, want %v", ErrSchemaMismatch, m.Schema, expected)
	}
	for i := range expected {
		if m.Schema[i] != expected[i] {
			return fmt.Errorf("%w: column %d is %q, want %q", ErrSchemaMismatch, i, m.Schema[i], expected[i])
		}
	}
	return nil
}

func (m *Model) validate() error {
	if err := m.CheckSchema(); err != nil {
		return err
	}
	if len(m.Labels) == 0 {
		return errors.New("model has no classes")
	}
	if m.Tree.ClassCount != len(m.Labels) {
		return fmt.Errorf("tree has %d classes, model lists %d", m.Tree.ClassCount, len(m.Labels))
	}
	if len(m.Tree.Nodes) == 0 {
		return ErrNotTrained
	}
	if len(m.Encoder.Categories) == 0 {
		return errors.New("encoder not fitted")
	}
	return nil
}
