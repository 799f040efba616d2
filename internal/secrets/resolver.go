package secrets

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Checker-Finance/price-finder/pkg/cache"
	"github.com/Checker-Finance/price-finder/pkg/config"
	pkgsecrets "github.com/Checker-Finance/price-finder/pkg/secrets"
)

// ServiceSecrets are the credentials the API service may load from a secrets manager.
type ServiceSecrets struct {
	DatabaseURL string
	RedisPass   string
	NATSURL     string
}

// ParseServiceSecrets reads the known keys from a secret map. At least one must be set.
func ParseServiceSecrets(m map[string]string) (ServiceSecrets, error) {
	s := ServiceSecrets{
		DatabaseURL: m["database_url"],
		RedisPass:   m["redis_pass"],
		NATSURL:     m["nats_url"],
	}
	if s == (ServiceSecrets{}) {
		return s, fmt.Errorf("secret has none of database_url, redis_pass, nats_url")
	}
	return s, nil
}

// Apply overrides cfg fields with the non-empty secrets.
func (s ServiceSecrets) Apply(cfg *config.Config) {
	if s.DatabaseURL != "" {
		cfg.DatabaseURL = s.DatabaseURL
	}
	if s.RedisPass != "" {
		cfg.RedisPass = s.RedisPass
	}
	if s.NATSURL != "" {
		cfg.NATSURL = s.NATSURL
	}
}

// Resolver resolves secrets of type T, caching them to limit provider calls.
//
// Secret naming convention: {env}/{name}
type Resolver[T any] struct {
	logger   *zap.Logger
	env      string
	provider pkgsecrets.Provider
	cache    *cache.TTL[T]
	parse    func(map[string]string) (T, error)
}

// NewResolver constructs a resolver. parse extracts and validates T.
func NewResolver[T any](
	logger *zap.Logger,
	env string,
	provider pkgsecrets.Provider,
	c *cache.TTL[T],
	parse func(map[string]string) (T, error),
) *Resolver[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver[T]{logger: logger, env: env, provider: provider, cache: c, parse: parse}
}

// SecretName builds the Secrets Manager key for name.
func (r *Resolver[T]) SecretName(name string) string {
	if strings.Contains(name, "/") {
		return name
	}
	return strings.ToLower(fmt.Sprintf("%s/%s", r.env, name))
}

// Resolve fetches or returns the cached secret for name.
func (r *Resolver[T]) Resolve(ctx context.Context, name string) (T, error) {
	secretName := r.SecretName(name)
	if v, ok := r.cache.Get(secretName); ok {
		return v, nil
	}

	raw, err := r.provider.GetSecret(ctx, secretName)
	if err != nil {
		r.logger.Warn("aws.secret_fetch_failed", zap.String("key", secretName), zap.Error(err))
		var zero T
		return zero, fmt.Errorf("resolve secret %q: %w", secretName, err)
	}

	v, err := r.parse(raw)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("parse secret %q: %w", secretName, err)
	}
	r.cache.Put(secretName, v)

	r.logger.Info("aws.secret_resolved", zap.String("key", secretName))
	return v, nil
}
