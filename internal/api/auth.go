package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"fieldbook/internal/config"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

const (
	apiKeyHeaderDefault   = "x-api-key"
	apiExtraHeaderDefault = "x-api-extra"
	clientKeyUnknown      = "unknown"
)

// Permissions granted to API clients.
const (
	permReadAvailability  = "read:availability"
	permReadReservations  = "read:reservations"
	permWriteReservations = "write:reservations"
	permReadExports       = "read:exports"
	permReadHealth        = "read:health"
)

var (
	errMissingCredentials = errors.New("missing api key headers")
	errInvalidAPIKey      = errors.New("invalid api key")
	errInvalidExtra       = errors.New("invalid extra header")
	errPermissionDenied   = errors.New("permission denied")
	errRateLimited        = errors.New("rate limit exceeded")
)

// keyring resolves API clients and enforces their permissions and quotas.
// Shared by the HTTP and gRPC surfaces.
type keyring struct {
	cfg     config.APIConfig
	clients map[string]config.APIClientKey
	limiter *rateLimiter
}

func newKeyring(cfg config.APIConfig) *keyring {
	m := make(map[string]config.APIClientKey, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		m[k.Key] = k
	}
	return &keyring{
		cfg:     cfg,
		clients: m,
		limiter: newRateLimiter(cfg.RateLimit),
	}
}

func (k *keyring) apiKeyHeader() string {
	h := strings.ToLower(strings.TrimSpace(k.cfg.Auth.HeaderAPIKey))
	if h == "" {
		return apiKeyHeaderDefault
	}
	return h
}

func (k *keyring) extraHeader() string {
	h := strings.ToLower(strings.TrimSpace(k.cfg.Auth.HeaderExtra))
	if h == "" {
		return apiExtraHeaderDefault
	}
	return h
}

func (k *keyring) authenticate(apiKey, extra string) (config.APIClientKey, error) {
	if apiKey == "" || extra == "" {
		return config.APIClientKey{}, errMissingCredentials
	}

	client, ok := k.clients[apiKey]
	if !ok {
		return config.APIClientKey{}, errInvalidAPIKey
	}
	if subtle.ConstantTimeCompare([]byte(client.Extra), []byte(extra)) != 1 {
		return config.APIClientKey{}, errInvalidExtra
	}
	return client, nil
}

// authorize: an empty permission list means allow-all.
func (k *keyring) authorize(client config.APIClientKey, required string) error {
	if required == "" || len(client.Permissions) == 0 {
		return nil
	}
	for _, p := range client.Permissions {
		if strings.TrimSpace(p) == required {
			return nil
		}
	}
	return errPermissionDenied
}

func (k *keyring) check(apiKey, extra, required string) error {
	if !k.cfg.Auth.Enabled {
		return nil
	}
	client, err := k.authenticate(apiKey, extra)
	if err != nil {
		return err
	}
	return k.authorize(client, required)
}

// AuthInterceptor applies the keyring to unary gRPC calls.
type AuthInterceptor struct {
	cfg  *config.APIConfig
	keys *keyring
}

func NewAuthInterceptor(cfg *config.APIConfig) *AuthInterceptor {
	return &AuthInterceptor{
		cfg:  cfg,
		keys: newKeyring(*cfg),
	}
}

func (a *AuthInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !a.cfg.Enabled {
			return handler(ctx, req)
		}

		if a.cfg.Auth.Enabled {
			if err := a.checkAuth(ctx, info.FullMethod); err != nil {
				return nil, err
			}
		}
		if !a.keys.limiter.allow(a.clientKey(ctx)) {
			return nil, status.Error(codes.ResourceExhausted, errRateLimited.Error())
		}

		return handler(ctx, req)
	}
}

func (a *AuthInterceptor) checkAuth(ctx context.Context, fullMethod string) error {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing metadata")
	}

	apiKey := first(md.Get(a.keys.apiKeyHeader()))
	extra := first(md.Get(a.keys.extraHeader()))

	err := a.keys.check(apiKey, extra, requiredPermission(fullMethod))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errPermissionDenied):
		return status.Error(codes.PermissionDenied, err.Error())
	default:
		return status.Error(codes.Unauthenticated, err.Error())
	}
}

func requiredPermission(fullMethod string) string {
	switch fullMethod {
	case "/grpc.health.v1.Health/Check", "/grpc.health.v1.Health/List":
		return permReadHealth
	default:
		return ""
	}
}

func (a *AuthInterceptor) clientKey(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	if apiKey := first(md.Get(a.keys.apiKeyHeader())); apiKey != "" {
		return apiKey
	}

	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return clientKeyUnknown
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}
