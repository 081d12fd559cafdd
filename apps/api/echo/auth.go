package echoapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/sdoims/core"
	"github.com/trezcool/sdoims/core/user"
)

const (
	contextTokenKey = "userToken"
	contextActorKey = "actor"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Name         string `json:"name,omitempty"`
	Email        string `json:"email,omitempty"`
}

// jwtConfig is the JWT auth middleware config reading the token from lookup (e.g. "header:Authorization").
func jwtConfig(conf *core.Config, lookup string) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
		TokenLookup:   lookup,
	}
}

func NewClaims(conf *core.Config, usr user.User, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   strconv.FormatInt(usr.ID, 10),
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Name:         usr.Name,
		Email:        usr.Email,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)
	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// actorMiddleware resolves the actor of the token subject. Unknown and deactivated users are unauthorized.
func actorMiddleware(users *user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			id, err := strconv.ParseInt(claims.Subject, 10, 64)
			if err != nil {
				return errUnauthorized
			}

			actor, err := users.Actor(ctx.Request().Context(), id)
			if err != nil {
				if core.IsNotFound(err) {
					return errUnauthorized
				}
				return errors.Wrap(err, "resolving actor")
			}
			ctx.Set(contextActorKey, actor)
			return next(ctx)
		}
	}
}

// getContextActor returns the request actor. Routes without actorMiddleware get an actor with no permissions.
func getContextActor(ctx echo.Context) core.Actor {
	actor, _ := ctx.Get(contextActorKey).(core.Actor)
	return actor
}

type authApi struct {
	conf     *core.Config
	users    *user.Service
	validate *validator.Validate
}

func registerAuthAPI(g *echo.Group, conf *core.Config, users *user.Service, authed ...echo.MiddlewareFunc) {
	api := authApi{conf: conf, users: users, validate: validator.New()}

	ag := g.Group("/auth")
	ag.POST("/login", api.login)
	ag.POST("/token-refresh", api.refreshToken, authed...)
	ag.GET("/me", api.me, authed...)
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.users.Authenticate(ctx.Request().Context(), user.Credentials{Email: data.Email, Password: data.Password})
	if err != nil {
		if errors.Cause(err) == user.ErrInvalidCredentials {
			return errAuthenticationFailed
		}
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(api.conf, NewClaims(api.conf, usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *authApi) refreshToken(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(api.conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return errRefreshExpired
	}

	actor := getContextActor(ctx)
	usr := user.User{ID: actor.ID, Name: actor.Name, Email: actor.Email}
	token, err := GenerateToken(api.conf, NewClaims(api.conf, usr, claims.OrigIssuedAt))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

// me returns the request actor with its capabilities, for clients to tailor their UI.
func (api *authApi) me(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, getContextActor(ctx))
}
