package ml

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// LoadModel reads a model artifact. Every failure is a *ModelLoadError.
func LoadModel(modelType, path string) (*Model, error) {
	if modelType != ModelTypeDecisionTree {
		return nil, &ModelLoadError{Path: path, Err: fmt.Errorf("unsupported model type %q", modelType)}
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, &ModelLoadError{Path: path, Err: err}
	}
	var model Model
	if err := json.Unmarshal(payload, &model); err != nil {
		return nil, &ModelLoadError{Path: path, Err: err}
	}
	if model.Type != modelType {
		return nil, &ModelLoadError{Path: path, Err: fmt.Errorf("artifact is %q, want %q", model.Type, modelType)}
	}
	if err := model.validate(); err != nil {
		return nil, &ModelLoadError{Path: path, Err: err}
	}
	sum := sha256.Sum256(payload)
	model.Version = hex.EncodeToString(sum[:8])
	return &model, nil
}

func (m *Model) Save(path string) error {
	if err := m.validate(); err != nil {
		return err
	}
	payload, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	// write then rename so readers never see a partial artifact
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
