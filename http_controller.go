package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
)

// SessionAuthenticator is the surface the HTTP controller needs. Auther
// implements it.
type SessionAuthenticator interface {
	Join(ctx context.Context, req JoinRequest) (SessionPair, error)
	Login(ctx context.Context, identifier, secret string) (SessionPair, error)
	Refresh(ctx context.Context, refreshToken string) (SessionPair, error)
	Logout(ctx context.Context, refreshToken string) error
	Authorize(ctx context.Context, bearer string, required ...RoleKind) (*AuthenticatedPrincipal, error)
}

var _ SessionAuthenticator = (*Auther)(nil)

// RegisterAuthRoutes mounts the session endpoints on app. protect guards the
// "me" route; when nil the controller authorizes the bearer header itself.
func RegisterAuthRoutes(app fiber.Router, protect fiber.Handler, opts ...AuthControllerOption) *AuthController {
	controller := NewAuthController(opts...)

	app.Post(controller.Routes.Join, controller.JoinPost).Name("auth.join")
	app.Post(controller.Routes.Login, controller.LoginPost).Name("auth.login")
	app.Post(controller.Routes.Refresh, controller.RefreshPost).Name("auth.refresh")
	app.Post(controller.Routes.Logout, controller.LogoutPost).Name("auth.logout")

	if protect != nil {
		app.Get(controller.Routes.Me, protect, controller.MeGet).Name("auth.me")
	} else {
		app.Get(controller.Routes.Me, controller.MeGet).Name("auth.me")
	}

	return controller
}

type AuthControllerRoutes struct {
	Join    string
	Login   string
	Refresh string
	Logout  string
	Me      string
}

type AuthController struct {
	Debug      bool
	Logger     Logger
	Routes     *AuthControllerRoutes
	Auther     SessionAuthenticator
	AuthScheme string
	ContextKey string
	// JoinRoles lists the role kinds a caller may pick at join.
	JoinRoles []RoleKind
}

type AuthControllerOption func(*AuthController) *AuthController

// WithControllerAuthenticator sets the authenticator. Required.
func WithControllerAuthenticator(a SessionAuthenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = a
		return c
	}
}

// WithControllerLogger sets the controller logger.
func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Logger = normalizeLogger(logger)
		return c
	}
}

// WithControllerConfig copies the auth scheme and context key from cfg.
func WithControllerConfig(cfg Config) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if cfg != nil {
			c.AuthScheme = cfg.GetAuthScheme()
			c.ContextKey = cfg.GetContextKey()
		}
		return c
	}
}

// WithControllerJoinRoles replaces the role kinds open to self registration.
func WithControllerJoinRoles(kinds ...RoleKind) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.JoinRoles = kinds
		return c
	}
}

// WithControllerDebug dumps payloads to the logger.
func WithControllerDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:     defLogger{},
		AuthScheme: DefaultAuthScheme,
		ContextKey: DefaultContextKey,
		JoinRoles:  []RoleKind{RoleGuest, RoleMember},
		Routes: &AuthControllerRoutes{
			Join:    "/join",
			Login:   "/login",
			Refresh: "/refresh",
			Logout:  "/logout",
			Me:      "/me",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auther == nil {
		panic("Missing SessionAuthenticator in auth controller...")
	}

	return c
}

// JoinPayload is the registration request body.
type JoinPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	RoleKind string `json:"role_kind"`
	TenantID string `json:"tenant_id"`
}

// Validate will validate the payload
func (r JoinPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(10, 72)),
		validation.Field(&r.RoleKind, validation.By(validateRoleKind)),
		validation.Field(&r.TenantID, validation.Length(0, 128)),
	)
}

// LoginPayload payload
type LoginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (r LoginPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// RefreshPayload carries a refresh token in the request body.
type RefreshPayload struct {
	RefreshToken string `json:"refresh_token"`
}

// Validate will run validation rules
func (r RefreshPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

func (a *AuthController) JoinPost(c *fiber.Ctx) error {
	payload := new(JoinPayload)
	if err := c.BodyParser(payload); err != nil {
		return a.parseError(c, err)
	}

	if err := payload.Validate(); err != nil {
		return a.validationError(c, err)
	}

	role, _ := ParseRoleKind(payload.RoleKind)
	if strings.TrimSpace(payload.RoleKind) == "" {
		role = ""
	} else if !NewRoleSet(a.JoinRoles...).Contains(role) {
		return a.validationError(c, validation.Errors{
			"role_kind": errors.New("role kind cannot be self assigned"),
		})
	}

	pair, err := a.Auther.Join(c.UserContext(), JoinRequest{
		CredentialKey: payload.Email,
		Secret:        payload.Password,
		RoleKind:      role,
		TenantID:      payload.TenantID,
	})
	if err != nil {
		return WriteError(c, a.Logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(pair)
}

func (a *AuthController) LoginPost(c *fiber.Ctx) error {
	payload := new(LoginPayload)
	if err := c.BodyParser(payload); err != nil {
		return a.parseError(c, err)
	}

	if err := payload.Validate(); err != nil {
		// shape errors look like any other failed login
		a.debug("login validation failed", map[string]string{"email": payload.Email})
		return WriteError(c, a.Logger, ErrInvalidCredentials)
	}

	pair, err := a.Auther.Login(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		return WriteError(c, a.Logger, err)
	}

	return c.JSON(pair)
}

func (a *AuthController) RefreshPost(c *fiber.Ctx) error {
	payload := new(RefreshPayload)
	if err := c.BodyParser(payload); err != nil || payload.Validate() != nil {
		return WriteError(c, a.Logger, ErrInvalidRefreshToken)
	}

	pair, err := a.Auther.Refresh(c.UserContext(), payload.RefreshToken)
	if err != nil {
		return WriteError(c, a.Logger, err)
	}

	return c.JSON(pair)
}

func (a *AuthController) LogoutPost(c *fiber.Ctx) error {
	payload := new(RefreshPayload)
	if err := c.BodyParser(payload); err != nil {
		return c.SendStatus(fiber.StatusNoContent)
	}

	if err := a.Auther.Logout(c.UserContext(), payload.RefreshToken); err != nil {
		return WriteError(c, a.Logger, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (a *AuthController) MeGet(c *fiber.Ctx) error {
	if p, ok := PrincipalFromFiber(c, a.ContextKey); ok {
		return c.JSON(p)
	}

	token := bearerFromHeader(c.Get(fiber.HeaderAuthorization), a.AuthScheme)
	p, err := a.Auther.Authorize(c.UserContext(), token)
	if err != nil {
		return WriteError(c, a.Logger, err)
	}

	return c.JSON(p)
}

func (a *AuthController) parseError(c *fiber.Ctx, err error) error {
	a.Logger.Debug("auth controller parse payload", "error", err)
	return c.Status(fiber.StatusBadRequest).JSON(ErrorBody{Error: ErrorPayload{
		TextCode: "INVALID_BODY",
		Message:  "Failed to parse body",
	}})
}

func (a *AuthController) validationError(c *fiber.Ctx, err error) error {
	a.Logger.Debug("auth controller validate payload", "error", err)
	return c.Status(fiber.StatusBadRequest).JSON(ErrorBody{Error: ErrorPayload{
		TextCode:   "VALIDATION_FAILED",
		Message:    "Error validating payload",
		Validation: FormatValidationErrorToMap(err),
	}})
}

func (a *AuthController) debug(msg string, v any) {
	if a.Debug {
		a.Logger.Debug(msg, "payload", print.MaybePrettyJSON(v))
	}
}

// FormatValidationErrorToMap flattens ozzo validation errors per field.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}
	if err != nil {
		out["form"] = err.Error()
	}
	return out
}

func validateRoleKind(value any) error {
	raw, _ := value.(string)
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	if _, ok := ParseRoleKind(raw); !ok {
		return fmt.Errorf("must be one of %v", AllRoleKinds())
	}
	return nil
}

func bearerFromHeader(header, scheme string) string {
	if scheme == "" {
		return strings.TrimSpace(header)
	}
	l := len(scheme)
	if len(header) > l+1 && strings.EqualFold(header[:l], scheme) && header[l] == ' ' {
		return strings.TrimSpace(header[l+1:])
	}
	return ""
}
