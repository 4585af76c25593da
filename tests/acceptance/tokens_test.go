package acceptance

import (
	"context"
	"net/http"
	"time"

	"github.com/aichukanov/docta-auth/internal/domain"
	"github.com/aichukanov/docta-auth/internal/dto"
	"github.com/aichukanov/docta-auth/internal/service"
)

// Tokens are delivered out of band in production, so the tests mint them
// through the same service the handlers use and redeem them over HTTP.

func (s *Suite) resetTokenFor(userID string) string {
	s.T().Helper()

	token, err := service.NewTokenService(s.Repos.PasswordReset).
		Create(context.Background(), userID, domain.TokenKindPasswordReset, "", time.Hour)
	s.Require().NoError(err)
	return token
}

func (s *Suite) emailTokenFor(userID string, kind domain.TokenKind, targetEmail string) string {
	s.T().Helper()

	token, err := service.NewTokenService(s.Repos.EmailVerification).
		Create(context.Background(), userID, kind, targetEmail, time.Hour)
	s.Require().NoError(err)
	return token
}

func (s *Suite) TestPasswordResetRequest_GenericResponse() {
	s.register("reset@example.com", "Password123")

	known := s.postJSON("/api/v1/auth/password-reset/request", dto.PasswordResetRequest{
		Email: "reset@example.com",
	})
	defer known.Body.Close()
	s.Equal(http.StatusOK, known.StatusCode)

	// The response must not reveal whether the email is registered.
	unknown := s.postJSON("/api/v1/auth/password-reset/request", dto.PasswordResetRequest{
		Email: "nobody@example.com",
	})
	defer unknown.Body.Close()
	s.Equal(http.StatusOK, unknown.StatusCode)

	var knownResp, unknownResp dto.SuccessResponse
	s.decode(known, &knownResp)
	s.decode(unknown, &unknownResp)
	s.Equal(knownResp.Message, unknownResp.Message)
}

func (s *Suite) TestPasswordResetConfirm_Success() {
	user, _ := s.register("reset@example.com", "OldPassword1")
	token := s.resetTokenFor(user.ID)

	resp := s.postJSON("/api/v1/auth/password-reset/confirm", dto.PasswordResetConfirm{
		Token:       token,
		NewPassword: "NewPassword1",
	})
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	// The old password no longer works, the new one does.
	oldLogin := s.postJSON("/api/v1/auth/login", dto.LoginRequest{
		Email:    "reset@example.com",
		Password: "OldPassword1",
	})
	defer oldLogin.Body.Close()
	s.Equal(http.StatusUnauthorized, oldLogin.StatusCode)

	newLogin := s.postJSON("/api/v1/auth/login", dto.LoginRequest{
		Email:    "reset@example.com",
		Password: "NewPassword1",
	})
	defer newLogin.Body.Close()
	s.Equal(http.StatusOK, newLogin.StatusCode)
}

func (s *Suite) TestPasswordResetConfirm_SingleUse() {
	user, _ := s.register("reset@example.com", "OldPassword1")
	token := s.resetTokenFor(user.ID)

	first := s.postJSON("/api/v1/auth/password-reset/confirm", dto.PasswordResetConfirm{
		Token:       token,
		NewPassword: "NewPassword1",
	})
	first.Body.Close()
	s.Equal(http.StatusOK, first.StatusCode)

	second := s.postJSON("/api/v1/auth/password-reset/confirm", dto.PasswordResetConfirm{
		Token:       token,
		NewPassword: "AnotherPassword1",
	})
	defer second.Body.Close()

	s.Equal(http.StatusGone, second.StatusCode)

	var errResp dto.ErrorResponse
	s.decode(second, &errResp)
	s.Equal("token_already_used", errResp.Error)
}

func (s *Suite) TestPasswordResetConfirm_UnknownToken() {
	resp := s.postJSON("/api/v1/auth/password-reset/confirm", dto.PasswordResetConfirm{
		Token:       "not-a-real-token",
		NewPassword: "NewPassword1",
	})
	defer resp.Body.Close()

	s.Equal(http.StatusNotFound, resp.StatusCode)

	var errResp dto.ErrorResponse
	s.decode(resp, &errResp)
	s.Equal("token_not_found", errResp.Error)
}

func (s *Suite) TestVerifyEmail_Success() {
	user, cookies := s.register("verify@example.com", "Password123")

	request := s.postJSONWithCookies("/api/v1/auth/verify-email/request", struct{}{}, cookies)
	request.Body.Close()
	s.Equal(http.StatusOK, request.StatusCode)

	token := s.emailTokenFor(user.ID, domain.TokenKindEmailVerification, "verify@example.com")

	confirm := s.postJSON("/api/v1/auth/verify-email/confirm", dto.TokenConfirm{Token: token})
	confirm.Body.Close()
	s.Equal(http.StatusOK, confirm.StatusCode)

	me := s.getWithCookies("/api/v1/auth/me", cookies)
	defer me.Body.Close()

	var verified dto.UserResponse
	s.decode(me, &verified)
	s.True(verified.IsEmailVerified)
}

func (s *Suite) TestVerifyEmailRequest_RequiresAuth() {
	resp := s.postJSONWithCookies("/api/v1/auth/verify-email/request", struct{}{}, nil)
	defer resp.Body.Close()

	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *Suite) TestEmailChange_Success() {
	user, cookies := s.register("old@example.com", "Password123")

	request := s.postJSONWithCookies("/api/v1/auth/email-change/request", dto.EmailChangeRequest{
		NewEmail: "new@example.com",
	}, cookies)
	request.Body.Close()
	s.Equal(http.StatusOK, request.StatusCode)

	token := s.emailTokenFor(user.ID, domain.TokenKindEmailChange, "new@example.com")

	confirm := s.postJSON("/api/v1/auth/email-change/confirm", dto.TokenConfirm{Token: token})
	confirm.Body.Close()
	s.Equal(http.StatusOK, confirm.StatusCode)

	me := s.getWithCookies("/api/v1/auth/me", cookies)
	defer me.Body.Close()

	var changed dto.UserResponse
	s.decode(me, &changed)
	s.Equal("new@example.com", changed.Email)
	s.True(changed.IsEmailVerified, "Redeeming the link proves ownership of the new address")

	// The new address logs in, the old one does not.
	login := s.postJSON("/api/v1/auth/login", dto.LoginRequest{
		Email:    "new@example.com",
		Password: "Password123",
	})
	defer login.Body.Close()
	s.Equal(http.StatusOK, login.StatusCode)
}

func (s *Suite) TestEmailChangeRequest_TakenEmail() {
	s.register("taken@example.com", "Password123")
	_, cookies := s.register("changer@example.com", "Password123")

	resp := s.postJSONWithCookies("/api/v1/auth/email-change/request", dto.EmailChangeRequest{
		NewEmail: "taken@example.com",
	}, cookies)
	defer resp.Body.Close()

	s.Equal(http.StatusConflict, resp.StatusCode)

	var errResp dto.ErrorResponse
	s.decode(resp, &errResp)
	s.Equal("email_already_in_use", errResp.Error)
}

func (s *Suite) TestEmailChangeConfirm_TakenWhileInFlight() {
	user, _ := s.register("changer@example.com", "Password123")
	token := s.emailTokenFor(user.ID, domain.TokenKindEmailChange, "contested@example.com")

	// Someone else claims the address before the link is redeemed.
	s.register("contested@example.com", "Password123")

	resp := s.postJSON("/api/v1/auth/email-change/confirm", dto.TokenConfirm{Token: token})
	defer resp.Body.Close()

	s.Equal(http.StatusConflict, resp.StatusCode)

	// The requester's email is untouched.
	unchanged, err := s.Repos.User.GetByID(context.Background(), user.ID)
	s.Require().NoError(err)
	s.Equal("changer@example.com", unchanged.Email)
}

func (s *Suite) TestEmailChangeConfirm_WrongKind() {
	user, _ := s.register("kinds@example.com", "Password123")

	// A verification token must not redeem an email change.
	token := s.emailTokenFor(user.ID, domain.TokenKindEmailVerification, "kinds@example.com")

	resp := s.postJSON("/api/v1/auth/email-change/confirm", dto.TokenConfirm{Token: token})
	defer resp.Body.Close()

	s.Equal(http.StatusNotFound, resp.StatusCode)
}
