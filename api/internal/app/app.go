// Package app assembles the prediction service from configuration.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"pkm2-predict/api/internal/config"
	"pkm2-predict/api/internal/descriptor"
	"pkm2-predict/api/internal/descriptor/padel"
	descremote "pkm2-predict/api/internal/descriptor/remote"
	"pkm2-predict/api/internal/features"
	"pkm2-predict/api/internal/predict"
	"pkm2-predict/api/internal/predict/ensemble"
	predremote "pkm2-predict/api/internal/predict/remote"
	"pkm2-predict/api/internal/service"
	"pkm2-predict/api/internal/store"
)

// App holds the wired service and the resources it owns.
type App struct {
	Service   *service.Service
	Predictor predict.Predictor
	Provider  descriptor.Provider
	DB        *sql.DB
}

// Close releases the database pool, if any.
func (a *App) Close() error {
	if a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

// New loads the predictor, picks the descriptor provider and, when a
// database is configured, adds the descriptor cache and the prediction log.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}

	p, err := NewPredictor(cfg, log)
	if err != nil {
		return nil, err
	}
	if cfg.PredictSerialize {
		p = predict.Synchronized(p)
	}

	provider, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}

	a := &App{Predictor: p}
	if dsn := cfg.DSN(); dsn != "" {
		db, err := store.Open(ctx, dsn)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		log.Info("db connected", zap.String("dsn", store.SafeDSNSummary(dsn)))
		a.DB = db
		provider = descriptor.NewCached(provider, store.NewDescriptorRepo(db, cfg.CacheMaxAge), log)
	}
	a.Provider = provider

	a.Service = service.New(provider, p, features.Required, log)
	if a.DB != nil {
		a.Service.Recorder = store.NewPredictionRepo(a.DB)
	}
	return a, nil
}

// NewPredictor returns the remote predictor when MODEL_URL is set, otherwise
// the local voting classifier artifact.
func NewPredictor(cfg *config.Config, log *zap.Logger) (predict.Predictor, error) {
	if cfg.ModelURL != "" {
		log.Info("using remote model", zap.String("url", cfg.ModelURL))
		return predremote.New(cfg.ModelURL, cfg.PredictTimeout), nil
	}
	path, err := predict.ResolvePath(cfg.ModelPath)
	if err != nil {
		return nil, err
	}
	m, err := ensemble.Load(path)
	if err != nil {
		return nil, err
	}
	if err := CheckSchema(m, features.Required); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Info("model loaded",
		zap.String("path", path),
		zap.String("voting", m.Voting()),
		zap.Int("estimators", m.NEstimators()),
		zap.Int("n_features", m.NFeatures()))
	return m, nil
}

// ErrSchema reports a model whose columns differ from the required list.
var ErrSchema = errors.New("model schema does not match required descriptors")

// CheckSchema compares the model's declared columns with required. A model
// without names is only checked by width.
func CheckSchema(s predict.Schema, required []string) error {
	names := s.FeatureNames()
	if len(names) == 0 {
		if s.NFeatures() != len(required) {
			return fmt.Errorf("%w: model expects %d features, have %d", ErrSchema, s.NFeatures(), len(required))
		}
		return nil
	}
	if !features.Equal(names, required) {
		return fmt.Errorf("%w: model columns %v", ErrSchema, names)
	}
	return nil
}

// NewProvider builds the configured descriptor provider.
func NewProvider(cfg *config.Config) (descriptor.Provider, error) {
	switch cfg.DescriptorProvider {
	case "padel":
		jar, err := predict.ResolvePath(cfg.PaDELJar)
		if err != nil {
			return nil, err
		}
		return padel.New(cfg.PaDELJava, jar, cfg.DescriptorTimeout), nil
	case "remote":
		return descremote.New(cfg.DescriptorURL, cfg.DescriptorTimeout), nil
	}
	return nil, fmt.Errorf("unknown descriptor provider %q", cfg.DescriptorProvider)
}
