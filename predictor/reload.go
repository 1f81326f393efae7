package predictor

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"premiumcat/ml"
)

const reloadDebounce = 250 * time.Millisecond

// LoadFunc loads a model and reports the version of the loaded artifact.
type LoadFunc func() (ml.Classifier, string, error)

// ArtifactLoader loads the decision tree artifact at path.
func ArtifactLoader(modelType, path string) LoadFunc {
	return func() (ml.Classifier, string, error) {
		model, err := ml.LoadModel(modelType, path)
		if err != nil {
			return nil, "", err
		}
		return model, model.Version, nil
	}
}

// WatchModel reloads the model whenever the file at path is written or
// replaced, until ctx is done. A failed reload keeps the current model.
// The returned channel is closed once the watcher has stopped.
func WatchModel(ctx context.Context, path string, load LoadFunc, svc *Service) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// watch the directory: a rename over path replaces the watched inode
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	target := filepath.Clean(path)
	logger := svc.deps.Logger.With(zap.String("model_path", path))
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer watcher.Close()

		var debounce <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
					continue
				}
				logger.Debug("model artifact changed", zap.String("op", ev.Op.String()))
				debounce = time.After(reloadDebounce)

			case <-debounce:
				debounce = nil
				svc.reload(load, logger)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("model watcher error", zap.Error(err))
			}
		}
	}()

	logger.Info("watching model artifact")
	return done, nil
}

func (s *Service) reload(load LoadFunc, logger *zap.Logger) {
	model, version, err := load()
	if err != nil {
		s.countReload("failure")
		logger.Error("model reload failed, keeping current model", zap.Error(err))
		return
	}
	if version != "" && version == s.ModelVersion() {
		s.countReload("unchanged")
		return
	}
	s.SwapModel(model, version)
	s.countReload("success")
}

func (s *Service) countReload(result string) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.ModelReloads.WithLabelValues(result).Inc()
	}
}
