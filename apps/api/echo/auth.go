package echoapi

import (
	"net/http"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/mdii/portal/core"
	"github.com/mdii/portal/core/session"
)

const (
	contextTokenKey   = "userToken"
	contextSessionKey = "session"
	tokenAudience     = "MDII"
)

var nowFunc = time.Now // mockable

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Email        string `json:"email"`
	IsAdmin      bool   `json:"is_admin,omitempty"`
}

// Session returns the viewer the claims were issued for.
func (c Claims) Session() session.Session {
	return session.Session{Email: c.Email, IsAdmin: c.IsAdmin}
}

// Auth issues and checks session tokens.
type Auth struct {
	jwtConfig       middleware.JWTConfig
	appName         string
	expirationDelta time.Duration
	refreshDelta    time.Duration
}

func NewAuth(conf *core.Config) *Auth {
	return &Auth{
		jwtConfig: middleware.JWTConfig{
			SigningKey:    []byte(conf.SecretKey),
			SigningMethod: middleware.AlgorithmHS256,
			ContextKey:    contextTokenKey,
			Claims:        new(Claims),
		},
		appName:         conf.AppName,
		expirationDelta: conf.SessionExpirationDelta,
		refreshDelta:    conf.SessionRefreshDelta,
	}
}

// Middleware rejects requests without a valid token.
func (a *Auth) Middleware() echo.MiddlewareFunc {
	return middleware.JWTWithConfig(a.jwtConfig)
}

func (a *Auth) SessionClaims(sess session.Session, origIat ...int64) *Claims {
	now := nowFunc()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    a.appName,
			Subject:   sess.Email,
			Audience:  tokenAudience,
			ExpiresAt: now.Add(a.expirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Email:        sess.Email,
		IsAdmin:      sess.IsAdmin,
	}
}

// GenerateToken generates a signed JWT token string representing the session Claims.
func (a *Auth) GenerateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(a.jwtConfig.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(a.jwtConfig.SigningKey)
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

func getContextSession(ctx echo.Context) (session.Session, error) {
	if sess, ok := ctx.Get(contextSessionKey).(session.Session); ok {
		return sess, nil
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return session.Session{}, err
	}
	sess := claims.Session()
	ctx.Set(contextSessionKey, sess)
	return sess, nil
}

// ctxSession is the best effort viewer of a request, for logs.
func ctxSession(ctx echo.Context) session.Session {
	sess, _ := getContextSession(ctx)
	return sess
}

type sessionApi struct {
	auth     *Auth
	svc      *session.Service
	validate *validator.Validate
}

func registerSessionAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *Auth, svc *session.Service, validate *validator.Validate) {
	api := sessionApi{auth: auth, svc: svc, validate: validate}

	sg := g.Group("/session")

	// un-authed endpoints
	sg.POST("", api.login)

	// authed endpoints
	sg.GET("", api.retrieve, jwt)
	sg.DELETE("", api.logout, jwt)
	sg.POST("/refresh", api.refresh, jwt)
}

// Handlers

func (api *sessionApi) login(ctx echo.Context) error {
	var data session.Login
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to session.Login")
	}
	data.Clean()
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	sess, err := api.svc.Login(data.Email)
	if err != nil {
		return err
	}
	return api.respond(ctx, api.auth.SessionClaims(sess))
}

func (api *sessionApi) retrieve(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context session")
	}
	return ctx.JSON(http.StatusOK, sess)
}

// logout is stateless: the client drops its token.
func (api *sessionApi) logout(ctx echo.Context) error {
	return ctx.NoContent(http.StatusNoContent)
}

func (api *sessionApi) refresh(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(api.auth.refreshDelta)
	if nowFunc().After(expTime) {
		return errRefreshExpired
	}

	// the allowlists may have changed since login
	sess, err := api.svc.Refresh(claims.Session())
	if err != nil {
		return errHttpForbidden
	}
	return api.respond(ctx, api.auth.SessionClaims(sess, claims.OrigIssuedAt))
}

func (api *sessionApi) respond(ctx echo.Context, claims *Claims) error {
	token, err := api.auth.GenerateToken(claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, Session: claims.Session()})
}

type LoginResponse struct {
	Token   string          `json:"token"`
	Session session.Session `json:"session"`
}
