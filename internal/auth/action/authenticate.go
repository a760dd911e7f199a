// Package action adapts the identity provider to the login form.
package action

import (
	"context"
	"errors"

	"github.com/smallbiznis/invoicedesk/internal/auth/domain"
	"github.com/smallbiznis/invoicedesk/internal/config"
	"go.uber.org/zap"
)

const (
	MsgInvalidCredentials = "Invalid credentials."
	MsgSomethingWentWrong = "Something went wrong."
)

// Outcome is what the login form shows or where it navigates next.
type Outcome struct {
	Message  string
	Redirect string
	Session  *domain.SignInResult
}

type Handler struct {
	provider  domain.IdentityProvider
	dashboard *config.DashboardHolder
	log       *zap.Logger
}

func NewHandler(provider domain.Service, dashboard *config.DashboardHolder, log *zap.Logger) *Handler {
	return &Handler{
		provider:  provider,
		dashboard: dashboard,
		log:       log.Named("auth.action"),
	}
}

// Authenticate signs in with the credentials provider. Only *AuthError is
// turned into a form message; every other error is returned as is.
func (h *Handler) Authenticate(ctx context.Context, values map[string]string) (Outcome, error) {
	res, err := h.provider.SignIn(ctx, domain.ProviderCredentials, values)
	if err != nil {
		var authErr *domain.AuthError
		if !errors.As(err, &authErr) {
			return Outcome{}, err
		}
		switch authErr.Kind {
		case domain.KindCredentialsSignin:
			return Outcome{Message: MsgInvalidCredentials}, nil
		default:
			h.log.Warn("sign in failed", zap.String("kind", string(authErr.Kind)))
			return Outcome{Message: MsgSomethingWentWrong}, nil
		}
	}

	return Outcome{
		Redirect: h.dashboard.Get().Login.RedirectPath,
		Session:  res,
	}, nil
}
