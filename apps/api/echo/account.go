package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/learnlink/backend/core"
	"github.com/learnlink/backend/core/account"
)

// sign-in outcomes
const (
	outcomeSuccess            = "success"
	outcomeNotFound           = "not_found"
	outcomeInvalidCredentials = "invalid_credentials"
	outcomeInvalid            = "invalid"
	outcomeError              = "error"
)

type accountApi struct {
	svc     *account.Service
	metrics *Metrics
}

func registerAccountAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *account.Service, metrics *Metrics) {
	api := accountApi{
		svc:     svc,
		metrics: metrics,
	}
	superadmin := roleMiddleware(account.RoleSuperAdmin)

	// un-authed endpoints
	// TODO: rate limit `/signin` & `/forgot-password`
	g.POST("/signup", api.signup)
	g.POST("/signin", api.signin)
	g.POST("/forgot-password", api.forgotPassword)
	g.POST("/reset-password/:token", api.resetPassword)

	// authed endpoints
	ag := g.Group("", jwt)
	ag.GET("/accounts/me", api.me)
	ag.PUT("/accounts/:id/password", api.changePassword, ownerOrAdminMiddleware())
	ag.PUT("/students/:id", api.updateStudent, ownerOrAdminMiddleware())

	// superadmin endpoints
	ag.POST("/superadmin/invite-staff", api.inviteStaff, superadmin)
	ag.GET("/students", api.listStudents, superadmin)
	ag.PATCH("/students/:id/archive", api.archiveStudent, superadmin)
	ag.DELETE("/students/:id", api.deleteStudent, superadmin)
	ag.GET("/staff", api.listStaff, superadmin)
	ag.DELETE("/staff/:id", api.deleteStaff, superadmin)
}

// Handlers

func (api *accountApi) signup(ctx echo.Context) error {
	var data account.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}

	acc, err := api.svc.Signup(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "signing up")
	}
	api.metrics.signedUp()

	return ctx.JSON(http.StatusCreated, SignupResponse{Message: "Signup successful.", Student: acc})
}

func (api *accountApi) signin(ctx echo.Context) error {
	var data account.Credentials
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Credentials")
	}

	sess, err := api.svc.Authenticate(ctx.Request().Context(), data)
	if err != nil {
		var verr *core.ValidationError
		switch {
		case errors.As(err, &verr):
			api.metrics.signedIn(outcomeInvalid)
		case errors.Cause(err) == account.ErrNotFound:
			api.metrics.signedIn(outcomeNotFound)
			return echo.NewHTTPError(http.StatusNotFound, accountNotFoundText)
		case errors.Cause(err) == account.ErrInvalidCredentials:
			api.metrics.signedIn(outcomeInvalidCredentials)
		default:
			api.metrics.signedIn(outcomeError)
		}
		return errors.Wrap(err, "authenticating")
	}
	api.metrics.signedIn(outcomeSuccess)

	return ctx.JSON(http.StatusOK, SigninResponse{Message: "Signin successful.", Token: sess.Token, User: sess.Account})
}

func (api *accountApi) forgotPassword(ctx echo.Context) error {
	var data account.PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}

	res, err := api.svc.RequestPasswordReset(ctx.Request().Context(), data)
	if err != nil {
		if errors.Cause(err) == account.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, userNotFoundText)
		}
		return errors.Wrap(err, "requesting password reset")
	}
	api.metrics.resetRequested(res.EmailSent)

	msg := "Password reset link sent to your email."
	if !res.EmailSent {
		msg = "Password reset requested."
	}
	return ctx.JSON(http.StatusOK, ForgotPasswordResponse{Message: msg, EmailSent: res.EmailSent, Warning: res.Warning})
}

func (api *accountApi) resetPassword(ctx echo.Context) error {
	var data account.NewPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPassword")
	}

	if err := api.svc.ResetPassword(ctx.Request().Context(), ctx.Param("token"), data); err != nil {
		if errors.Cause(err) == account.ErrInvalidOrExpiredToken {
			api.metrics.passwordReset(outcomeInvalid)
		}
		return errors.Wrap(err, "resetting password")
	}
	api.metrics.passwordReset(outcomeSuccess)

	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Password has been reset."})
}

func (api *accountApi) inviteStaff(ctx echo.Context) error {
	var data account.NewStaff
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStaff")
	}

	inv, err := api.svc.InviteStaff(ctx.Request().Context(), data)
	if err != nil {
		var cerr *core.ConflictError
		if errors.As(err, &cerr) {
			return echo.NewHTTPError(http.StatusConflict, cerr.Message)
		}
		return errors.Wrap(err, "inviting staff")
	}
	api.metrics.invited(inv.EmailSent)

	msg := "Staff invited. Login details sent by email."
	if !inv.EmailSent {
		msg = "Staff account created."
	}
	return ctx.JSON(http.StatusCreated, InviteStaffResponse{
		Message:      msg,
		UserID:       inv.AccountID,
		UniqueID:     inv.Identifier,
		Email:        inv.Email,
		EmailSent:    inv.EmailSent,
		Warning:      inv.Warning,
		TempPassword: inv.TempPassword,
	})
}

func (api *accountApi) me(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	acc, err := api.svc.GetByID(ctx.Request().Context(), claims.AccountID)
	if err != nil {
		return errors.Wrap(err, "finding account by ID")
	}
	return ctx.JSON(http.StatusOK, acc)
}

func (api *accountApi) updateStudent(ctx echo.Context) error {
	id := ctx.Param("id")
	acc, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding account by ID")
	}
	if !acc.IsStudent() {
		return errors.Wrap(account.ErrNotFound, "finding student")
	}

	var data account.UpdateProfile
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}

	acc, err = api.svc.UpdateProfile(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, acc)
}

func (api *accountApi) changePassword(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data account.PasswordChange
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordChange")
	}

	// superadmins may skip the current password
	requireCurrent := claims.Role != account.RoleSuperAdmin
	if err = api.svc.ChangePassword(ctx.Request().Context(), ctx.Param("id"), data, requireCurrent); err != nil {
		return errors.Wrap(err, "changing password")
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Password updated."})
}

func (api *accountApi) listStudents(ctx echo.Context) error {
	includeArchived, _ := strconv.ParseBool(ctx.QueryParam("includeArchived"))

	students, err := api.svc.ListStudents(ctx.Request().Context(), includeArchived)
	if err != nil {
		return errors.Wrap(err, "listing students")
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *accountApi) listStaff(ctx echo.Context) error {
	staff, err := api.svc.ListStaff(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing staff")
	}
	return ctx.JSON(http.StatusOK, staff)
}

func (api *accountApi) archiveStudent(ctx echo.Context) error {
	var data ArchiveRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ArchiveRequest")
	}
	isActive := data.IsActive != nil && *data.IsActive

	acc, err := api.svc.SetStudentActive(ctx.Request().Context(), ctx.Param("id"), isActive)
	if err != nil {
		return errors.Wrap(err, "archiving student")
	}
	return ctx.JSON(http.StatusOK, acc)
}

func (api *accountApi) deleteStudent(ctx echo.Context) error {
	if err := api.svc.DeleteStudent(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Student deleted."})
}

func (api *accountApi) deleteStaff(ctx echo.Context) error {
	if err := api.svc.DeleteStaff(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting staff")
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Staff deleted."})
}

type (
	MessageResponse struct {
		Message string `json:"message"`
	}

	SignupResponse struct {
		Message string          `json:"message"`
		Student account.Account `json:"student"`
	}

	SigninResponse struct {
		Message string          `json:"message"`
		Token   string          `json:"token"`
		User    account.Account `json:"user"`
	}

	ForgotPasswordResponse struct {
		Message   string `json:"message"`
		EmailSent bool   `json:"emailSent"`
		Warning   string `json:"warning,omitempty"`
	}

	InviteStaffResponse struct {
		Message      string `json:"message"`
		UserID       string `json:"userId"`
		UniqueID     string `json:"uniqueId"`
		Email        string `json:"email"`
		EmailSent    bool   `json:"emailSent"`
		Warning      string `json:"warning,omitempty"`
		TempPassword string `json:"tempPassword,omitempty"`
	}

	// ArchiveRequest archives a student, or restores them when IsActive is true.
	ArchiveRequest struct {
		IsActive *bool `json:"isActive"`
	}
)
