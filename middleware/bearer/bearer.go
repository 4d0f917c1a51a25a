package bearer

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-auth-session"
)

// ErrMissingOrMalformed is returned by extractors that find no usable token.
var ErrMissingOrMalformed = errors.New("missing or malformed bearer token")

// Authorizer resolves a bearer token into a live principal.
type Authorizer interface {
	Authorize(ctx context.Context, bearer string, required ...auth.RoleKind) (*auth.AuthenticatedPrincipal, error)
}

type Config struct {
	// Filter skips the middleware when it returns true.
	Filter         func(*fiber.Ctx) bool
	SuccessHandler fiber.Handler
	ErrorHandler   fiber.ErrorHandler
	Authorizer     Authorizer
	// RequiredRoles is checked against the principal's stored role kind.
	RequiredRoles []auth.RoleKind
	ContextKey    string
	TokenLookup   string
	AuthScheme    string
	Logger        auth.Logger
}

// New returns a fiber handler that authorizes every request it sees.
func New(config ...Config) fiber.Handler {
	cfg := GetDefaultConfig(config...)
	extractors := GetExtractors(cfg.TokenLookup, cfg.AuthScheme)

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		raw, _ := ExtractRawToken(c, extractors)

		principal, err := cfg.Authorizer.Authorize(c.UserContext(), raw, cfg.RequiredRoles...)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		c.Locals(cfg.ContextKey, principal)
		c.SetUserContext(auth.WithPrincipalContext(c.UserContext(), principal))

		return cfg.SuccessHandler(c)
	}
}

// GetDefaultConfig fills the zero fields of config.
func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Authorizer == nil {
		panic("AUTH: bearer middleware configuration: Authorizer is required.")
	}

	if cfg.Logger == nil {
		cfg.Logger = auth.NoopLogger()
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		logger := cfg.Logger
		cfg.ErrorHandler = func(c *fiber.Ctx, err error) error {
			return auth.WriteError(c, logger, err)
		}
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = auth.DefaultContextKey
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = auth.DefaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = auth.DefaultAuthScheme
	}

	return cfg
}

// FromConfig builds a middleware Config from the shared auth Config.
func FromConfig(authCfg auth.Config, authorizer Authorizer, required ...auth.RoleKind) Config {
	return Config{
		Authorizer:    authorizer,
		RequiredRoles: required,
		ContextKey:    authCfg.GetContextKey(),
		TokenLookup:   authCfg.GetTokenLookup(),
		AuthScheme:    authCfg.GetAuthScheme(),
	}
}

// Extractor pulls a raw token from the request.
type Extractor func(c *fiber.Ctx) (string, error)

// ExtractRawToken returns the first token any extractor finds.
func ExtractRawToken(c *fiber.Ctx, extractors []Extractor) (string, error) {
	err := ErrMissingOrMalformed
	for _, extractor := range extractors {
		var raw string
		raw, err = extractor(c)
		if raw != "" && err == nil {
			return raw, nil
		}
	}
	return "", err
}

// GetExtractors parses a lookup such as
// "header:Authorization,cookie:access_token,query:token".
func GetExtractors(tokenLookup string, authScheme string) []Extractor {
	extractors := make([]Extractor, 0)

	for _, rootPart := range strings.Split(tokenLookup, ",") {
		parts := strings.SplitN(strings.TrimSpace(rootPart), ":", 2)
		if len(parts) != 2 {
			continue
		}
		source, name := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		if name == "" {
			continue
		}

		switch source {
		case "header":
			extractors = append(extractors, fromHeader(name, authScheme))
		case "query":
			extractors = append(extractors, fromQuery(name))
		case "param":
			extractors = append(extractors, fromParam(name))
		case "cookie":
			extractors = append(extractors, fromCookie(name))
		}
	}

	return extractors
}

func fromHeader(header string, authScheme string) Extractor {
	authScheme = strings.TrimSpace(authScheme)
	return func(c *fiber.Ctx) (string, error) {
		a := c.Get(header)
		l := len(authScheme)
		if l == 0 {
			if a = strings.TrimSpace(a); a != "" {
				return a, nil
			}
			return "", ErrMissingOrMalformed
		}
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) && a[l] == ' ' {
			if token := strings.TrimSpace(a[l+1:]); token != "" {
				return token, nil
			}
		}
		return "", ErrMissingOrMalformed
	}
}

func fromQuery(param string) Extractor {
	return func(c *fiber.Ctx) (string, error) {
		if token := c.Query(param); token != "" {
			return token, nil
		}
		return "", ErrMissingOrMalformed
	}
}

func fromParam(param string) Extractor {
	return func(c *fiber.Ctx) (string, error) {
		if token := c.Params(param); token != "" {
			return token, nil
		}
		return "", ErrMissingOrMalformed
	}
}

func fromCookie(name string) Extractor {
	return func(c *fiber.Ctx) (string, error) {
		if token := c.Cookies(name); token != "" {
			return token, nil
		}
		return "", ErrMissingOrMalformed
	}
}
