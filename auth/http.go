package auth

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
)

type AuthControllerRoutes struct {
	Register       string
	Login          string
	ChangePassword string
	Welcome        string
}

type AuthController struct {
	Debug      bool
	Logger     Logger
	Repo       RepositoryManager
	Auther     Authenticator
	Routes     *AuthControllerRoutes
	ContextKey string
}

type AuthControllerOption func(*AuthController) *AuthController

func WithControllerLogger(l Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Logger = l
		return c
	}
}

func WithControllerRepo(repo RepositoryManager) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Repo = repo
		return c
	}
}

func WithControllerAuther(auther Authenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

func WithControllerContextKey(key string) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.ContextKey = key
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:     defLogger{},
		ContextKey: "user",
		Routes: &AuthControllerRoutes{
			Register:       "/register",
			Login:          "/login",
			ChangePassword: "/change-password",
			Welcome:        "/welcome",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing Authenticator in auth controller...")
	}

	return c
}

// RegisterAuthRoutes mounts the unauthenticated and authenticated auth
// endpoints. The protected middleware must run before ChangePassword.
func RegisterAuthRoutes(app fiber.Router, controller *AuthController, protected fiber.Handler) {
	app.Post(controller.Routes.Register, controller.RegisterPost)
	app.Post(controller.Routes.Login, controller.LoginPost)
	app.Post(controller.Routes.ChangePassword, protected, controller.ChangePasswordPost)
}

// RegisterHomeRoutes mounts the authenticated welcome endpoint.
func RegisterHomeRoutes(app fiber.Router, controller *AuthController, protected fiber.Handler) {
	app.Get(controller.Routes.Welcome, protected, controller.WelcomeGet)
}

// RegistrationCreatePayload is the registration request body
type RegistrationCreatePayload struct {
	Username  string `form:"username" json:"username"`
	Email     string `form:"email" json:"email"`
	Password  string `form:"password" json:"password"`
	Role      string `form:"role" json:"role"`
	FirstName string `form:"first_name" json:"first_name"`
	LastName  string `form:"last_name" json:"last_name"`
	Phone     string `form:"phone_number" json:"phone_number"`
}

// Validate will validate the payload
func (r RegistrationCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(2, 100)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 100)),
		validation.Field(&r.Role, validation.In(RoleUser, RoleAdmin)),
		validation.Field(&r.FirstName, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Length(1, 200)),
		validation.Field(&r.Phone, validation.By(ValidateOptionalPhone)),
	)
}

// ValidateOptionalPhone accepts an empty value or a parseable, valid phone number.
func ValidateOptionalPhone(value any) error {
	raw, _ := value.(string)
	if raw == "" {
		return nil
	}

	num, err := phonenumbers.Parse(raw, "US")
	if err != nil {
		return err
	}

	if !phonenumbers.IsValidNumber(num) {
		return errors.New("invalid phone number", errors.CategoryValidation)
	}

	return nil
}

func (a *AuthController) RegisterPost(c *fiber.Ctx) error {
	payload := new(RegistrationCreatePayload)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("register user parse payload", "error", err)
		return errors.Wrap(err, errors.CategoryBadInput, "unable to parse request body").
			WithCode(errors.CodeBadRequest)
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("register user validate payload", "error", err)
		return errors.Wrap(err, errors.CategoryValidation, err.Error()).
			WithCode(errors.CodeBadRequest)
	}

	var created *User
	req := RegisterUserMessage{
		Username:   payload.Username,
		Email:      payload.Email,
		Password:   payload.Password,
		Role:       payload.Role,
		FirstName:  payload.FirstName,
		LastName:   payload.LastName,
		Phone:      payload.Phone,
		OnResponse: func(u *User) { created = u },
	}

	handler := NewRegisterUserHandler(a.Repo)
	if err := handler.Execute(c.Context(), req); err != nil {
		a.Logger.Error("register user execute", "error", err)
		return err
	}

	username, email := payload.Username, payload.Email
	if created != nil {
		username, email = created.Username, created.Email
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "User with username " + username + " and email " + email + " registered successfully!",
	})
}

// LoginRequest payload
type LoginRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// Validate will validate the payload
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AuthController) LoginPost(c *fiber.Ctx) error {
	payload := new(LoginRequest)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("login parse payload", "error", err)
		return errors.Wrap(err, errors.CategoryBadInput, "unable to parse request body").
			WithCode(errors.CodeBadRequest)
	}

	if err := payload.Validate(); err != nil {
		return ErrMismatchedHashAndPassword
	}

	token, err := a.Auther.Login(c.Context(), payload.Username, payload.Password)
	if err != nil {
		a.Logger.Error("login error", "error", err)
		return err
	}

	return c.JSON(fiber.Map{
		"success":      true,
		"message":      "Logged in successfully!",
		"access_token": token,
	})
}

// ChangePasswordPayload is the change password request body
type ChangePasswordPayload struct {
	OldPassword string `form:"old_password" json:"old_password"`
	NewPassword string `form:"new_password" json:"new_password"`
}

// Validate will validate the payload
func (r ChangePasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.OldPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(6, 100)),
	)
}

func (a *AuthController) ChangePasswordPost(c *fiber.Ctx) error {
	claims, ok := GetFiberClaims(c, a.ContextKey)
	if !ok {
		return ErrUnableToDecodeSession
	}

	userID, err := uuid.Parse(claims.UserID())
	if err != nil {
		return errors.Wrap(err, errors.CategoryAuth, "invalid subject claim").
			WithCode(errors.CodeUnauthorized)
	}

	payload := new(ChangePasswordPayload)
	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("change password parse payload", "error", err)
		return errors.Wrap(err, errors.CategoryBadInput, "unable to parse request body").
			WithCode(errors.CodeBadRequest)
	}

	if err := payload.Validate(); err != nil {
		return errors.Wrap(err, errors.CategoryValidation, err.Error()).
			WithCode(errors.CodeBadRequest)
	}

	handler := NewChangePasswordHandler(a.Repo)
	err = handler.Execute(c.Context(), ChangePasswordMessage{
		UserID:      userID,
		OldPassword: payload.OldPassword,
		NewPassword: payload.NewPassword,
	})
	if err != nil {
		a.Logger.Error("change password execute", "error", err)
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Password changed successfully!",
	})
}

func (a *AuthController) WelcomeGet(c *fiber.Ctx) error {
	claims, ok := GetFiberClaims(c, a.ContextKey)
	if !ok {
		return ErrUnableToDecodeSession
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Welcome to the home page " + claims.Username() + "!",
		"user": fiber.Map{
			"id":       claims.UserID(),
			"username": claims.Username(),
			"role":     claims.Role(),
		},
	})
}
