package websvc

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/mkrupp/itemcatalog/internal/domain"
	context_ "github.com/mkrupp/itemcatalog/internal/infra/context"
	"github.com/mkrupp/itemcatalog/internal/infra/metrics"
)

const (
	flashAccountCreated = "Your account has been created! You are now able to sign in"
	flashSignedIn       = "You logged in Successfully !"
	flashSignInFailed   = "Login Unsuccessful. please check your username and password"
	flashSignedOut      = "Logged out successfully !"
)

// authorizedResponse tells the sign-in script where to go and what to show.
type authorizedResponse struct {
	Redirect string `json:"redirect"`
	Message  string `json:"message"`
	Category string `json:"category"`
}

func signedIn(r *http.Request) bool {
	_, ok := context_.ActorFromContext(r.Context())

	return ok
}

// handleSignUp renders and processes the registration form.
func (ht *HTTPTransport) handleSignUp(w http.ResponseWriter, r *http.Request) error {
	if signedIn(r) {
		return redirect(w, r, "/")
	}

	if r.Method != http.MethodPost {
		return ht.render(w, r, "sign_up.html", page{Title: "Sign Up", Form: &SignUpForm{}}) //nolint:exhaustruct
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

		return fmt.Errorf("parse form: %w", err)
	}

	form := parseSignUpForm(r)

	errs, err := form.Validate(r.Context(), ht.accounts)
	if err != nil {
		return retry(w, r, "/sign-up", err)
	}

	if len(errs) == 0 {
		_, err = ht.accounts.Register(r.Context(), form.Username, form.Email, form.Password)

		switch {
		case errors.Is(err, domain.ErrUsernameTaken):
			errs.Add("username", msgUsernameTaken)
		case errors.Is(err, domain.ErrEmailTaken):
			errs.Add("email", msgEmailTaken)
		case err != nil:
			return retry(w, r, "/sign-up", err)
		default:
			ht.metrics.SignUp(metrics.MethodLocal)

			return redirectFlash(w, r, "/sign-in", FlashSuccess, flashAccountCreated)
		}
	}

	form.Password, form.ConfirmPassword = "", ""

	return ht.render(w, r, "sign_up.html", page{Title: "Sign Up", Form: form, Errors: errs}) //nolint:exhaustruct
}

// handleSignIn renders and processes the local sign-in form.
func (ht *HTTPTransport) handleSignIn(w http.ResponseWriter, r *http.Request) error {
	if signedIn(r) {
		return redirect(w, r, "/")
	}

	if r.Method != http.MethodPost {
		return ht.render(w, r, "sign_in.html", page{Title: "Sign In", Form: &SignInForm{}}) //nolint:exhaustruct
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

		return fmt.Errorf("parse form: %w", err)
	}

	form := parseSignInForm(r)

	if errs := form.Validate(); len(errs) > 0 {
		form.Password = ""

		return ht.render(w, r, "sign_in.html", page{Title: "Sign In", Form: form, Errors: errs}) //nolint:exhaustruct
	}

	u, err := ht.accounts.Authenticate(r.Context(), form.Username, form.Password)
	if errors.Is(err, domain.ErrInvalidCredentials) {
		ht.metrics.SignIn(metrics.MethodLocal, metrics.OutcomeFailure)

		return redirectFlash(w, r, r.URL.RequestURI(), FlashDanger, flashSignInFailed)
	} else if err != nil {
		return retry(w, r, r.URL.RequestURI(), err)
	}

	if err := ht.sessions.SignIn(r.Context(), w, u, form.RememberMe); err != nil {
		return retry(w, r, r.URL.RequestURI(), err)
	}

	ht.metrics.SignIn(metrics.MethodLocal, metrics.OutcomeSuccess)

	return redirectFlash(w, r, localTarget(r.URL.Query().Get("next")), FlashSuccess, flashSignedIn)
}

// handleAuthorized signs in with a third-party ID token, creating the account
// on first use. Answers with JSON for the sign-in script.
func (ht *HTTPTransport) handleAuthorized(w http.ResponseWriter, r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		_ = writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid form"})

		return fmt.Errorf("parse form: %w", err)
	}

	ctx := r.Context()

	u, identity, created, err := ht.accounts.SignInThirdParty(ctx, r.PostFormValue("id_token"), r.PostFormValue("password"))

	switch {
	case errors.Is(err, domain.ErrNoIDToken), errors.Is(err, domain.ErrInvalidIDToken):
		ht.metrics.SignIn(metrics.MethodThirdParty, metrics.OutcomeRejected)

		return writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Invalid id token"})
	case errors.Is(err, domain.ErrPasswordRequired):
		return writeJSON(w, http.StatusBadRequest, errorResponse{Error: "A password is required to create your account"})
	case err != nil:
		_ = writeJSON(w, http.StatusInternalServerError, errorResponse{Error: flashSomethingWrong})

		return err
	}

	if err := ht.sessions.SignIn(ctx, w, u, true); err != nil {
		_ = writeJSON(w, http.StatusInternalServerError, errorResponse{Error: flashSomethingWrong})

		return err
	}

	name := identity.GivenName
	if name == "" {
		name = u.Username
	}

	code := http.StatusOK
	message := fmt.Sprintf("Welcome Back %s, logged in successfully!", name)

	if created {
		code = http.StatusCreated
		message = fmt.Sprintf("Welcome %s to our website.", name)

		ht.metrics.SignUp(metrics.MethodThirdParty)
		ht.metrics.SignIn(metrics.MethodThirdParty, metrics.OutcomeCreated)
	} else {
		ht.metrics.SignIn(metrics.MethodThirdParty, metrics.OutcomeSuccess)
	}

	return writeJSON(w, code, authorizedResponse{Redirect: "/", Message: message, Category: FlashSuccess})
}

// handleSignOut ends the session.
func (ht *HTTPTransport) handleSignOut(w http.ResponseWriter, r *http.Request, _ *domain.User) error {
	if err := ht.sessions.SignOut(r.Context(), w, r); err != nil {
		return retry(w, r, "/", err)
	}

	return redirectFlash(w, r, "/", FlashInfo, flashSignedOut)
}
