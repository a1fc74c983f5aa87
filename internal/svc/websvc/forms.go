package websvc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mkrupp/itemcatalog/internal/domain"
	"github.com/mkrupp/itemcatalog/internal/svc/avatarsvc"
	"github.com/mkrupp/itemcatalog/internal/svc/catalogsvc"
)

// Messages of checks that need the database.
const (
	msgUsernameTaken    = "The username is taken! Please choose a different username."
	msgEmailTaken       = "The email is already exists !"
	msgCategoryTaken    = "The Category is already exists !"
	msgItemTaken        = "The item is already exists"
	msgSelectCategory   = "Please select a category !"
	msgInvalidCategory  = "invalid Category !"
	msgForeignCategory  = "invalid ID !"
	msgAvatarExtension  = "File does not have an approved extension: jpg, jpeg, png"
	msgAvatarInvalid    = "The file is not a valid image."
	msgAvatarTooLarge   = "The image is too large."
	msgRequired         = "This field is required."
	msgInvalidEmail     = "Invalid email address."
	msgInvalidFieldText = "Invalid value."
	msgPasswordTooLong  = "Field cannot be longer than 72 bytes."
)

// maxPasswordBytes is the longest password bcrypt accepts.
const maxPasswordBytes = 72

// UserLookup answers the uniqueness checks of account forms.
type UserLookup interface {
	UsernameTaken(ctx context.Context, username string, exceptID int64) (bool, error)
	EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error)
}

// CategoryLookup answers the category checks of catalog forms.
type CategoryLookup interface {
	GetCategory(ctx context.Context, id int64) (*domain.Category, error)
	CategoryNameTaken(ctx context.Context, name string, exceptID int64) (bool, error)
}

// ItemLookup answers the item checks of catalog forms.
type ItemLookup interface {
	ItemNameTaken(ctx context.Context, name string, exceptID int64) (bool, error)
}

// FieldErrors maps form field names to their messages.
type FieldErrors map[string][]string

// Add appends a message to field.
func (fe FieldErrors) Add(field, message string) {
	fe[field] = append(fe[field], message)
}

// Has reports whether field has any message.
func (fe FieldErrors) Has(field string) bool {
	return len(fe[field]) > 0
}

//nolint:gochecknoglobals
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		return field.Tag.Get("form")
	})

	return v
}

// checkStatic runs the struct tag rules of form and converts failures to messages.
func checkStatic(form any) FieldErrors {
	errs := FieldErrors{}

	err := validate.Struct(form)
	if err == nil {
		return errs
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		errs.Add("", err.Error())

		return errs
	}

	formType := reflect.TypeOf(form)
	if formType.Kind() == reflect.Pointer {
		formType = formType.Elem()
	}

	for _, fe := range verrs {
		errs.Add(fe.Field(), staticMessage(formType, fe))
	}

	return errs
}

func staticMessage(formType reflect.Type, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return msgRequired
	case "email":
		return msgInvalidEmail
	case "eqfield":
		return fmt.Sprintf("Field must be equal to %s.", strings.ToLower(fe.Param()))
	case "min", "max":
		return lengthMessage(formType, fe)
	default:
		return msgInvalidFieldText
	}
}

// lengthMessage words min/max failures like "between 2 and 50" when the field has both bounds.
func lengthMessage(formType reflect.Type, fe validator.FieldError) string {
	field, _ := formType.FieldByName(fe.StructField())

	var lower, upper string

	for _, rule := range strings.Split(field.Tag.Get("validate"), ",") {
		if v, ok := strings.CutPrefix(rule, "min="); ok {
			lower = v
		} else if v, ok := strings.CutPrefix(rule, "max="); ok {
			upper = v
		}
	}

	switch {
	case lower != "" && upper != "":
		return fmt.Sprintf("Field must be between %s and %s characters long.", lower, upper)
	case fe.Tag() == "min":
		return fmt.Sprintf("Field must be at least %s characters long.", fe.Param())
	default:
		return fmt.Sprintf("Field cannot be longer than %s characters.", fe.Param())
	}
}

// SignUpForm is the local registration form.
type SignUpForm struct {
	Username        string `form:"username"         validate:"required,min=2,max=50"`
	Email           string `form:"email"            validate:"required,email"`
	Password        string `form:"password"         validate:"required,min=6"`
	ConfirmPassword string `form:"confirm_password" validate:"required,eqfield=Password"`
}

func parseSignUpForm(r *http.Request) *SignUpForm {
	return &SignUpForm{
		Username:        strings.TrimSpace(r.PostFormValue("username")),
		Email:           strings.ToLower(strings.TrimSpace(r.PostFormValue("email"))),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirm_password"),
	}
}

// Validate checks the static rules and that username and email are free.
func (f *SignUpForm) Validate(ctx context.Context, users UserLookup) (FieldErrors, error) {
	errs := checkStatic(f)

	if len(f.Password) > maxPasswordBytes {
		errs.Add("password", msgPasswordTooLong)
	}

	if err := checkAccount(ctx, users, errs, f.Username, f.Email, 0); err != nil {
		return nil, err
	}

	return errs, nil
}

func checkAccount(ctx context.Context, users UserLookup, errs FieldErrors, username, email string, exceptID int64) error {
	if !errs.Has("username") {
		taken, err := users.UsernameTaken(ctx, username, exceptID)
		if err != nil {
			return fmt.Errorf("check username: %w", err)
		} else if taken {
			errs.Add("username", msgUsernameTaken)
		}
	}

	if !errs.Has("email") {
		taken, err := users.EmailTaken(ctx, email, exceptID)
		if err != nil {
			return fmt.Errorf("check email: %w", err)
		} else if taken {
			errs.Add("email", msgEmailTaken)
		}
	}

	return nil
}

// SignInForm is the local sign-in form.
type SignInForm struct {
	Username   string `form:"username"    validate:"required,min=2,max=50"`
	Password   string `form:"password"    validate:"required,min=6"`
	RememberMe bool   `form:"remember_me"`
}

func parseSignInForm(r *http.Request) *SignInForm {
	return &SignInForm{
		Username:   strings.TrimSpace(r.PostFormValue("username")),
		Password:   r.PostFormValue("password"),
		RememberMe: parseCheckbox(r.PostFormValue("remember_me")),
	}
}

// Validate checks the static rules.
func (f *SignInForm) Validate() FieldErrors {
	return checkStatic(f)
}

// ProfileForm updates the signed-in user's account.
type ProfileForm struct {
	Username string `form:"username" validate:"required,min=2,max=50"`
	Email    string `form:"email"    validate:"required,email"`

	// AvatarFilename is the name of the uploaded file, empty when none was sent
	AvatarFilename string `form:"avatar"`
}

func parseProfileForm(r *http.Request) *ProfileForm {
	return &ProfileForm{
		Username:       strings.TrimSpace(r.PostFormValue("username")),
		Email:          strings.ToLower(strings.TrimSpace(r.PostFormValue("email"))),
		AvatarFilename: "",
	}
}

// Validate checks the static rules, the avatar extension and that the new
// username and email are not used by another account.
func (f *ProfileForm) Validate(ctx context.Context, users UserLookup, actor *domain.User) (FieldErrors, error) {
	errs := checkStatic(f)

	if f.AvatarFilename != "" && !avatarsvc.AllowedExt(f.AvatarFilename) {
		errs.Add("avatar", msgAvatarExtension)
	}

	if err := checkAccount(ctx, users, errs, f.Username, f.Email, actor.ID); err != nil {
		return nil, err
	}

	return errs, nil
}

// CategoryForm adds or renames a category.
type CategoryForm struct {
	Name string `form:"name" validate:"required,min=2,max=50"`
}

func parseCategoryForm(r *http.Request) *CategoryForm {
	return &CategoryForm{Name: strings.TrimSpace(r.PostFormValue("name"))}
}

// Validate checks the static rules and that no other category than exceptID uses the name.
func (f *CategoryForm) Validate(ctx context.Context, categories CategoryLookup, exceptID int64) (FieldErrors, error) {
	errs := checkStatic(f)

	if !errs.Has("name") {
		taken, err := categories.CategoryNameTaken(ctx, f.Name, exceptID)
		if err != nil {
			return nil, fmt.Errorf("check category name: %w", err)
		} else if taken {
			errs.Add("name", msgCategoryTaken)
		}
	}

	return errs, nil
}

// ItemForm adds or edits an item.
type ItemForm struct {
	Name        string `form:"name"        validate:"required,min=2,max=50"`
	Description string `form:"description" validate:"required"`
	CategoryID  int64  `form:"category"`
}

func parseItemForm(r *http.Request) *ItemForm {
	categoryID, err := strconv.ParseInt(r.PostFormValue("category"), 10, 64)
	if err != nil {
		categoryID = catalogsvc.NoCategory
	}

	return &ItemForm{
		Name:        strings.TrimSpace(r.PostFormValue("name")),
		Description: r.PostFormValue("description"),
		CategoryID:  categoryID,
	}
}

// Input returns the form as service input.
func (f *ItemForm) Input() catalogsvc.ItemInput {
	return catalogsvc.ItemInput{
		Name:        f.Name,
		Description: f.Description,
		CategoryID:  f.CategoryID,
	}
}

// Validate checks the static rules, that the chosen category exists and belongs
// to actor, and that no other item than exceptID uses the name.
func (f *ItemForm) Validate(
	ctx context.Context,
	categories CategoryLookup,
	items ItemLookup,
	actor *domain.User,
	exceptID int64,
) (FieldErrors, error) {
	errs := checkStatic(f)

	if !errs.Has("name") {
		taken, err := items.ItemNameTaken(ctx, f.Name, exceptID)
		if err != nil {
			return nil, fmt.Errorf("check item name: %w", err)
		} else if taken {
			errs.Add("name", msgItemTaken)
		}
	}

	if f.CategoryID == catalogsvc.NoCategory {
		errs.Add("category", msgSelectCategory)

		return errs, nil
	}

	c, err := categories.GetCategory(ctx, f.CategoryID)
	if errors.Is(err, domain.ErrCategoryNotFound) {
		errs.Add("category", msgInvalidCategory)
	} else if err != nil {
		return nil, fmt.Errorf("check category: %w", err)
	} else if !domain.CanModify(actor, c) {
		errs.Add("category", msgForeignCategory)
	}

	return errs, nil
}

func parseCheckbox(value string) bool {
	switch strings.ToLower(value) {
	case "y", "yes", "on", "true", "1":
		return true
	default:
		return false
	}
}
