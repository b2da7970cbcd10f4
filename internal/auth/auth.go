package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/iurnickita/abetos/internal/auth/config"
	"github.com/iurnickita/abetos/internal/handler/render"
	"github.com/iurnickita/abetos/internal/model"
	"github.com/iurnickita/abetos/internal/service"
	"github.com/iurnickita/abetos/internal/store"
	"github.com/iurnickita/abetos/internal/token"
)

type Auth interface {
	Register(w http.ResponseWriter, r *http.Request)
	Login(w http.ResponseWriter, r *http.Request)
	Me(w http.ResponseWriter, r *http.Request)
	// Middleware пропускает запросы с действующим токеном. Если роли заданы,
	// роль пользователя должна быть одной из них.
	Middleware(roles ...string) func(http.Handler) http.Handler
}

// Identity - пользователь запроса по данным токена.
type Identity struct {
	UserID int64
	Role   string
	Email  string
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

const minPasswordLen = 6

var ErrInvalidCredentials = errors.New("invalid credentials")

type auth struct {
	cfg     config.Config
	store   store.Store
	service service.Service
	zaplog  *zap.Logger
}

func NewAuth(cfg config.Config, store store.Store, service service.Service, zaplog *zap.Logger) Auth {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if zaplog == nil {
		zaplog = zap.NewNop()
	}
	return &auth{cfg: cfg, store: store, service: service, zaplog: zaplog}
}

// HashPassword хеширует пароль bcrypt.
func HashPassword(password string, cost int) (string, error) {
	if len(password) < minPasswordLen {
		return "", service.ErrInvalidInput
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

type RegisterJSONRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FullName  string `json:"full_name"`
	DocNumber string `json:"doc_number"`
	Phone     string `json:"phone"`
}

type UserJSON struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	CustomerID   int64  `json:"customer_id,omitempty"`
	MemberNumber string `json:"member_number,omitempty"`
}

type TokenJSONResponse struct {
	OK    bool     `json:"ok"`
	Token string   `json:"token"`
	User  UserJSON `json:"user"`
}

func (a *auth) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterJSONRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.Error(w, http.StatusBadRequest, "invalid_input", "malformed JSON body")
		return
	}

	// регистрация всегда создает клиента, роли персонала выдаются отдельно
	hash, err := HashPassword(req.Password, a.cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			render.Error(w, http.StatusBadRequest, "invalid_input", "password is too short")
			return
		}
		a.internalError(w, err)
		return
	}
	user, customer, err := a.service.RegisterCustomer(r.Context(),
		model.User{Email: req.Email, PasswordHash: hash},
		model.Customer{FullName: req.FullName, DocNumber: req.DocNumber, Phone: strings.TrimSpace(req.Phone)})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			render.Error(w, http.StatusBadRequest, "invalid_input", "email, full_name and doc_number are required")
		case errors.Is(err, service.ErrAlreadyExists):
			render.Error(w, http.StatusConflict, "already_exists", "email or document already registered")
		default:
			a.internalError(w, err)
		}
		return
	}

	a.respondToken(w, http.StatusCreated, user, &customer)
}

type LoginJSONRequest struct {
	// Email или номер документа
	Login     string `json:"login"`
	Email     string `json:"email"`
	DocNumber string `json:"doc_number"`
	Password  string `json:"password"`
}

func (a *auth) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginJSONRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.Error(w, http.StatusBadRequest, "invalid_input", "malformed JSON body")
		return
	}

	user, err := a.findUser(r.Context(), req)
	if err == nil {
		err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password))
	}
	if err != nil {
		if errors.Is(err, store.ErrNoRows) || errors.Is(err, ErrInvalidCredentials) ||
			errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			render.Error(w, http.StatusUnauthorized, "invalid_credentials", "invalid login or password")
			return
		}
		a.internalError(w, err)
		return
	}

	var customer *model.Customer
	if c, err := a.store.CustomerGetByUser(r.Context(), user.ID); err == nil {
		customer = &c
	}
	a.respondToken(w, http.StatusOK, user, customer)
}

func (a *auth) findUser(ctx context.Context, req LoginJSONRequest) (model.User, error) {
	login := strings.TrimSpace(req.Login)
	email := strings.TrimSpace(req.Email)
	doc := strings.TrimSpace(req.DocNumber)
	if login != "" {
		if strings.Contains(login, "@") {
			email = login
		} else {
			doc = login
		}
	}

	switch {
	case email != "":
		return a.store.AuthGetByEmail(ctx, email)
	case doc != "":
		customer, err := a.store.CustomerGetByDoc(ctx, doc)
		if err != nil {
			return model.User{}, err
		}
		if customer.UserID == nil {
			return model.User{}, ErrInvalidCredentials
		}
		return a.store.AuthGetByID(ctx, *customer.UserID)
	default:
		return model.User{}, ErrInvalidCredentials
	}
}

func (a *auth) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := FromContext(r.Context())
	if !ok {
		render.Error(w, http.StatusUnauthorized, "unauthorized", "missing token")
		return
	}
	user, err := a.store.AuthGetByID(r.Context(), id.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			render.Error(w, http.StatusUnauthorized, "unauthorized", "user no longer exists")
			return
		}
		a.internalError(w, err)
		return
	}

	resp := UserJSON{ID: user.ID, Email: user.Email, Role: user.Role}
	if customer, err := a.store.CustomerGetByUser(r.Context(), user.ID); err == nil {
		resp.CustomerID = customer.ID
		resp.MemberNumber = customer.MemberNumber
	}
	render.JSON(w, http.StatusOK, resp)
}

func (a *auth) Middleware(roles ...string) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// получение пользователя по токену
			header := r.Header.Get("Authorization")
			tokenString, found := strings.CutPrefix(header, "Bearer ")
			if !found || tokenString == "" {
				render.Error(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}
			claims, err := token.Parse([]byte(a.cfg.Secret), tokenString)
			if err != nil {
				render.Error(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
				return
			}

			// проверка роли
			if len(roles) > 0 && !slices.Contains(roles, claims.Role) {
				render.Error(w, http.StatusForbidden, "forbidden", "insufficient role")
				return
			}

			ctx := WithIdentity(r.Context(), Identity{UserID: claims.UserID, Role: claims.Role, Email: claims.Email})
			// передаём управление хендлеру
			h.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (a *auth) respondToken(w http.ResponseWriter, status int, user model.User, customer *model.Customer) {
	tokenString, err := token.Issue([]byte(a.cfg.Secret), a.cfg.TokenTTL, user, time.Now())
	if err != nil {
		a.internalError(w, err)
		return
	}
	resp := TokenJSONResponse{
		OK:    true,
		Token: tokenString,
		User:  UserJSON{ID: user.ID, Email: user.Email, Role: user.Role},
	}
	if customer != nil {
		resp.User.CustomerID = customer.ID
		resp.User.MemberNumber = customer.MemberNumber
	}
	render.JSON(w, status, resp)
}

func (a *auth) internalError(w http.ResponseWriter, err error) {
	a.zaplog.Error("auth request failed", zap.Error(err))
	render.Error(w, http.StatusInternalServerError, "internal", "internal error")
}

