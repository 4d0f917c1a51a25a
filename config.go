package auth

import "time"

const (
	// DefaultAccessTokenTTL is the access token lifetime
	DefaultAccessTokenTTL = time.Hour
	// DefaultRefreshTokenTTL is the refresh token lifetime
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
	// DefaultIssuer is used when no issuer is configured
	DefaultIssuer = "go-auth-session"
	// DefaultTokenLookup reads the bearer token from the Authorization header
	DefaultTokenLookup = "header:Authorization"
	// DefaultAuthScheme is the bearer scheme
	DefaultAuthScheme = "Bearer"
	// DefaultContextKey is the fiber locals key for the authenticated principal
	DefaultContextKey = "principal"
)

// Options is a plain Config implementation. Zero fields fall back to defaults.
type Options struct {
	SigningKey      string        `json:"-"`
	Issuer          string        `json:"issuer"`
	Audience        []string      `json:"audience"`
	AccessTokenTTL  time.Duration `json:"access_token_ttl"`
	RefreshTokenTTL time.Duration `json:"refresh_token_ttl"`
	TokenLookup     string        `json:"token_lookup"`
	AuthScheme      string        `json:"auth_scheme"`
	ContextKey      string        `json:"context_key"`
}

var _ Config = Options{}

func (o Options) GetSigningKey() string {
	return o.SigningKey
}

func (o Options) GetIssuer() string {
	if o.Issuer == "" {
		return DefaultIssuer
	}
	return o.Issuer
}

func (o Options) GetAudience() []string {
	return o.Audience
}

func (o Options) GetAccessTokenTTL() time.Duration {
	if o.AccessTokenTTL <= 0 {
		return DefaultAccessTokenTTL
	}
	return o.AccessTokenTTL
}

func (o Options) GetRefreshTokenTTL() time.Duration {
	if o.RefreshTokenTTL <= 0 {
		return DefaultRefreshTokenTTL
	}
	return o.RefreshTokenTTL
}

func (o Options) GetTokenLookup() string {
	if o.TokenLookup == "" {
		return DefaultTokenLookup
	}
	return o.TokenLookup
}

func (o Options) GetAuthScheme() string {
	if o.AuthScheme == "" {
		return DefaultAuthScheme
	}
	return o.AuthScheme
}

func (o Options) GetContextKey() string {
	if o.ContextKey == "" {
		return DefaultContextKey
	}
	return o.ContextKey
}
