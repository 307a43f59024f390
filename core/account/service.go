package account

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/learnlink/backend/core"
	"github.com/learnlink/backend/core/session"
)

var (
	nowFunc = time.Now // mockable

	// errors
	ErrNotFound                = errors.New("account not found")
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrInvalidOrExpiredToken   = errors.New("invalid or expired token")
	ErrIdentifierExhausted     = errors.New("could not generate a free identifier")
	errSuperAdminNotConfigured = errors.New("superadmin email and password are required")

	emailExistsText       = "Email already exists."
	identifierExistsText  = "Matric/ID already exists."
	inviteMailWarningText = "Email service failed. Provide credentials to the staff member manually or try again later."
	resetMailWarningText  = "Email service failed. Please try again later."
)

type (
	Repository interface {
		// CreateAccount persists a new Account.
		// Unique violations on email or identifier are reported as *core.ConflictError.
		CreateAccount(ctx context.Context, acc Account) (Account, error)
		GetAccount(ctx context.Context, filter GetFilter) (Account, error)
		// QueryAccounts returns the matching Accounts ordered by creation date.
		QueryAccounts(ctx context.Context, filter QueryFilter) ([]Account, error)
		// UpdateAccount saves the profile fields of acc (names, email, phone, identifier, role,
		// class level), matched by ID. Credentials, the reset token, the active flag and
		// lastLogin are left untouched; only the Set* operations below write them.
		UpdateAccount(ctx context.Context, acc Account) (Account, error)
		// SetLastLogin records a successful sign-in at t.
		SetLastLogin(ctx context.Context, id string, t time.Time) (Account, error)
		// SetResetToken stores a pending reset token, replacing any previous one.
		SetResetToken(ctx context.Context, id, token string, expiresAt, now time.Time) (Account, error)
		// SetPassword replaces passwordHash and discards any pending reset token in the same write.
		SetPassword(ctx context.Context, id string, passwordHash []byte, now time.Time) (Account, error)
		SetActive(ctx context.Context, id string, isActive bool, now time.Time) (Account, error)
		DeleteAccount(ctx context.Context, filter DeleteFilter) error
		// RedeemResetToken atomically sets passwordHash and clears the reset token on the Account
		// holding token, provided it expires strictly after now. It returns ErrNotFound otherwise.
		RedeemResetToken(ctx context.Context, token string, now time.Time, passwordHash []byte) (Account, error)
	}

	Service struct {
		conf       *core.Config
		repo       Repository
		hasher     Hasher
		issuer     *session.Issuer
		mailSvc    core.EmailService
		logger     core.Logger
		validate   *validator.Validate
		translator ut.Translator
	}
)

func NewService(
	conf *core.Config,
	repo Repository,
	hasher Hasher,
	issuer *session.Issuer,
	mailSvc core.EmailService,
	logger core.Logger,
	validate *validator.Validate,
	translator ut.Translator,
) *Service {
	return &Service{
		conf:       conf,
		repo:       repo,
		hasher:     hasher,
		issuer:     issuer,
		mailSvc:    mailSvc,
		logger:     logger,
		validate:   validate,
		translator: translator,
	}
}

// NewEmailConflict reports an email already held by another Account.
func NewEmailConflict() error { return core.NewConflictError("email", emailExistsText) }

// NewIdentifierConflict reports a uniqueId already held by another Account.
func NewIdentifierConflict() error { return core.NewConflictError("uniqueId", identifierExistsText) }

// checkEmailAvailable returns a *core.ConflictError if email is held by an Account other than exclID.
func (svc *Service) checkEmailAvailable(ctx context.Context, email, exclID string) error {
	acc, err := svc.repo.GetAccount(ctx, GetFilter{Email: email})
	switch {
	case err == nil:
		if acc.ID == exclID {
			return nil
		}
		return NewEmailConflict()
	case errors.Cause(err) == ErrNotFound:
		return nil
	default:
		return errors.Wrap(err, "checking email")
	}
}

func (svc *Service) checkIdentifierAvailable(ctx context.Context, identifier string) error {
	_, err := svc.repo.GetAccount(ctx, GetFilter{Identifier: identifier})
	switch {
	case err == nil:
		return NewIdentifierConflict()
	case errors.Cause(err) == ErrNotFound:
		return nil
	default:
		return errors.Wrap(err, "checking identifier")
	}
}

// notify delivers msg within the configured timeout. Failures are logged and returned
// as *core.NotificationError; they never undo the write that triggered them.
func (svc *Service) notify(ctx context.Context, msg *core.EmailMessage) error {
	if timeout := svc.conf.Mail.SendTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := svc.mailSvc.Send(ctx, msg); err != nil {
		nerr := &core.NotificationError{Err: err}
		svc.logger.Warn(fmt.Sprintf("sending %q email", msg.TemplateName), nerr)
		return nerr
	}
	return nil
}

// Signup self-registers a student Account.
func (svc *Service) Signup(ctx context.Context, ns NewStudent) (Account, error) {
	if err := ns.Validate(svc.validate, svc.translator); err != nil {
		return Account{}, err
	}
	if err := svc.checkEmailAvailable(ctx, ns.Email, ""); err != nil {
		return Account{}, err
	}

	identifier := ns.Identifier
	if identifier != "" {
		if err := svc.checkIdentifierAvailable(ctx, identifier); err != nil {
			return Account{}, err
		}
	} else {
		var err error
		if identifier, err = svc.newIdentifier(ctx, studentIDFunc); err != nil {
			return Account{}, errors.Wrap(err, "generating student identifier")
		}
	}

	hash, err := svc.hasher.Hash(ns.Password)
	if err != nil {
		return Account{}, errors.Wrap(err, "hashing password")
	}

	now := nowFunc().UTC()
	acc, err := svc.repo.CreateAccount(ctx, Account{
		ID:           uuid.NewString(),
		FirstName:    ns.FirstName,
		LastName:     ns.LastName,
		Email:        ns.Email,
		PasswordHash: hash,
		Phone:        ns.Phone,
		Identifier:   identifier,
		Role:         RoleStudent,
		ClassLevel:   ns.ClassLevel,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return Account{}, errors.Wrap(err, "creating student")
	}
	return acc, nil
}

type staffInviteData struct {
	Name         string
	Email        string
	Identifier   string
	TempPassword string
}

// InviteStaff provisions an active teacher Account with generated credentials and emails them.
// A failed email leaves the Account in place and is reported through Invitation.Warning.
func (svc *Service) InviteStaff(ctx context.Context, ns NewStaff) (Invitation, error) {
	if err := ns.Validate(svc.validate, svc.translator); err != nil {
		return Invitation{}, err
	}
	if err := svc.checkEmailAvailable(ctx, ns.Email, ""); err != nil {
		return Invitation{}, err
	}

	identifier, err := svc.newIdentifier(ctx, staffIDFunc)
	if err != nil {
		return Invitation{}, errors.Wrap(err, "generating staff identifier")
	}
	tempPwd, err := tempSecretFunc()
	if err != nil {
		return Invitation{}, errors.Wrap(err, "generating temporary password")
	}
	hash, err := svc.hasher.Hash(tempPwd)
	if err != nil {
		return Invitation{}, errors.Wrap(err, "hashing password")
	}

	now := nowFunc().UTC()
	acc, err := svc.repo.CreateAccount(ctx, Account{
		ID:           uuid.NewString(),
		FirstName:    ns.FirstName,
		LastName:     ns.LastName,
		Email:        ns.Email,
		PasswordHash: hash,
		Identifier:   identifier,
		Role:         RoleTeacher,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return Invitation{}, errors.Wrap(err, "creating staff")
	}
	svc.logger.Info("staff account created", map[string]interface{}{"id": acc.ID, "uniqueId": acc.Identifier})

	inv := Invitation{AccountID: acc.ID, Identifier: acc.Identifier, Email: acc.Email}
	err = svc.notify(ctx, &core.EmailMessage{
		To:           []mail.Address{{Name: acc.Name(), Address: acc.Email}},
		Subject:      "Your staff account login details",
		TemplateName: "staff_invite",
		TemplateData: staffInviteData{
			Name:         acc.Name(),
			Email:        acc.Email,
			Identifier:   acc.Identifier,
			TempPassword: tempPwd,
		},
	})
	if err != nil {
		inv.Warning = inviteMailWarningText
		if svc.conf.Debug {
			inv.TempPassword = tempPwd
		}
		return inv, nil
	}
	inv.EmailSent = true
	return inv, nil
}

// Authenticate checks Credentials and issues a session token.
// Missing and deactivated (non-superadmin) Accounts both yield ErrNotFound.
func (svc *Service) Authenticate(ctx context.Context, creds Credentials) (Session, error) {
	if err := creds.Validate(svc.validate, svc.translator); err != nil {
		return Session{}, err
	}

	filter := GetFilter{Identifier: core.CleanUpperString(creds.Identifier)}
	if creds.isEmail() {
		filter = GetFilter{Email: core.CleanString(creds.Identifier, true /* lower */)}
	}
	acc, err := svc.repo.GetAccount(ctx, filter)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Session{}, ErrNotFound
		}
		return Session{}, errors.Wrap(err, "finding account")
	}
	if !acc.CanSignIn() {
		return Session{}, ErrNotFound
	}
	if !svc.hasher.Verify(acc.PasswordHash, creds.Password) {
		return Session{}, ErrInvalidCredentials
	}

	token, err := svc.issuer.Issue(acc.ID, acc.Email, acc.Role)
	if err != nil {
		return Session{}, errors.Wrap(err, "issuing token")
	}

	if updated, err := svc.repo.SetLastLogin(ctx, acc.ID, nowFunc().UTC()); err != nil {
		svc.logger.Warn("setting lastLogin", err, acc)
	} else {
		acc = updated
	}
	return Session{Token: token, Account: acc}, nil
}

type passwordResetData struct {
	ResetLink string
	ExpiresIn string
}

// RequestPasswordReset stores a fresh reset token on the Account holding email and emails a reset link.
func (svc *Service) RequestPasswordReset(ctx context.Context, pr PasswordResetRequest) (ResetRequest, error) {
	if err := pr.Validate(svc.validate, svc.translator); err != nil {
		return ResetRequest{}, err
	}

	acc, err := svc.repo.GetAccount(ctx, GetFilter{Email: pr.Email})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return ResetRequest{}, ErrNotFound
		}
		return ResetRequest{}, errors.Wrap(err, "finding account")
	}

	token, err := resetTokenFunc()
	if err != nil {
		return ResetRequest{}, errors.Wrap(err, "generating reset token")
	}
	now := nowFunc().UTC()
	if acc, err = svc.repo.SetResetToken(ctx, acc.ID, token, now.Add(svc.conf.PasswordResetTimeoutDelta), now); err != nil {
		return ResetRequest{}, errors.Wrap(err, "saving reset token")
	}

	err = svc.notify(ctx, &core.EmailMessage{
		To:           []mail.Address{{Name: acc.Name(), Address: acc.Email}},
		Subject:      "Reset your password",
		TemplateName: "password_reset",
		TemplateData: passwordResetData{
			ResetLink: svc.conf.FrontendBaseURL + "/reset-password/" + token,
			ExpiresIn: svc.conf.PasswordResetTimeoutDelta.String(),
		},
	})
	if err != nil {
		return ResetRequest{Warning: resetMailWarningText}, nil
	}
	return ResetRequest{EmailSent: true}, nil
}

// ResetPassword redeems a reset token. A token can only be redeemed once, strictly before it expires.
func (svc *Service) ResetPassword(ctx context.Context, token string, np NewPassword) error {
	if err := np.Validate(svc.validate, svc.translator); err != nil {
		return err
	}
	if token == "" {
		return ErrInvalidOrExpiredToken
	}

	hash, err := svc.hasher.Hash(np.Password)
	if err != nil {
		return errors.Wrap(err, "hashing password")
	}
	if _, err = svc.repo.RedeemResetToken(ctx, token, nowFunc().UTC(), hash); err != nil {
		if errors.Cause(err) == ErrNotFound {
			return ErrInvalidOrExpiredToken
		}
		return errors.Wrap(err, "redeeming reset token")
	}
	return nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Account, error) {
	return svc.repo.GetAccount(ctx, GetFilter{ID: id})
}

// UpdateProfile modifies the non-empty fields of up on the Account.
func (svc *Service) UpdateProfile(ctx context.Context, id string, up UpdateProfile) (Account, error) {
	if err := up.Validate(svc.validate, svc.translator); err != nil {
		return Account{}, err
	}
	acc, err := svc.repo.GetAccount(ctx, GetFilter{ID: id})
	if err != nil {
		return Account{}, err
	}
	if up.Email != "" && up.Email != acc.Email {
		if err := svc.checkEmailAvailable(ctx, up.Email, acc.ID); err != nil {
			return Account{}, err
		}
	}
	up.apply(&acc)
	acc.UpdatedAt = nowFunc().UTC()
	acc, err = svc.repo.UpdateAccount(ctx, acc)
	return acc, errors.Wrap(err, "updating account")
}

// ChangePassword sets a new password, checking the current one when requireCurrent is set.
// Any pending reset token is discarded.
func (svc *Service) ChangePassword(ctx context.Context, id string, pc PasswordChange, requireCurrent bool) error {
	if err := pc.Validate(svc.validate, svc.translator); err != nil {
		return err
	}
	acc, err := svc.repo.GetAccount(ctx, GetFilter{ID: id})
	if err != nil {
		return err
	}
	if requireCurrent && !svc.hasher.Verify(acc.PasswordHash, pc.CurrentPassword) {
		return ErrInvalidCredentials
	}
	hash, err := svc.hasher.Hash(pc.Password)
	if err != nil {
		return errors.Wrap(err, "hashing password")
	}
	_, err = svc.repo.SetPassword(ctx, acc.ID, hash, nowFunc().UTC())
	return errors.Wrap(err, "updating password")
}

// ListStudents returns active students, or all of them when includeArchived is set.
func (svc *Service) ListStudents(ctx context.Context, includeArchived bool) ([]Account, error) {
	filter := QueryFilter{Roles: []string{RoleStudent}}
	if !includeArchived {
		active := true
		filter.IsActive = &active
	}
	return svc.repo.QueryAccounts(ctx, filter)
}

func (svc *Service) ListStaff(ctx context.Context) ([]Account, error) {
	return svc.repo.QueryAccounts(ctx, QueryFilter{Roles: []string{RoleTeacher}})
}

// SetStudentActive archives (false) or restores (true) a student.
func (svc *Service) SetStudentActive(ctx context.Context, id string, isActive bool) (Account, error) {
	acc, err := svc.repo.GetAccount(ctx, GetFilter{ID: id})
	if err != nil {
		return Account{}, err
	}
	if !acc.IsStudent() {
		return Account{}, ErrNotFound
	}
	acc, err = svc.repo.SetActive(ctx, acc.ID, isActive, nowFunc().UTC())
	return acc, errors.Wrap(err, "updating account")
}

func (svc *Service) DeleteStudent(ctx context.Context, id string) error {
	return svc.repo.DeleteAccount(ctx, DeleteFilter{ID: id, Role: RoleStudent})
}

func (svc *Service) DeleteStaff(ctx context.Context, id string) error {
	return svc.repo.DeleteAccount(ctx, DeleteFilter{ID: id, Role: RoleTeacher})
}

// EnsureSuperAdmin creates the superadmin Account for email, or reasserts its password,
// role and active flag when it already exists.
func (svc *Service) EnsureSuperAdmin(ctx context.Context, email, pwd string) (Account, error) {
	email = core.CleanString(email, true /* lower */)
	if email == "" || pwd == "" {
		return Account{}, errSuperAdminNotConfigured
	}
	if !core.IsEmailShaped(email) {
		return Account{}, core.NewValidationError(nil, core.FieldError{Field: "email", Error: "Email format is invalid."})
	}

	hash, err := svc.hasher.Hash(pwd)
	if err != nil {
		return Account{}, errors.Wrap(err, "hashing password")
	}
	now := nowFunc().UTC()

	acc, err := svc.repo.GetAccount(ctx, GetFilter{Email: email})
	switch {
	case err == nil:
		if acc, err = svc.promoteSuperAdmin(ctx, acc, hash, now); err != nil {
			return Account{}, err
		}
	case errors.Cause(err) == ErrNotFound:
		acc, err = svc.repo.CreateAccount(ctx, Account{
			ID:           uuid.NewString(),
			FirstName:    "Super",
			LastName:     "Admin",
			Email:        email,
			PasswordHash: hash,
			Role:         RoleSuperAdmin,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if err != nil {
			return Account{}, errors.Wrap(err, "creating superadmin")
		}
	default:
		return Account{}, errors.Wrap(err, "finding superadmin")
	}

	svc.warnStraySuperAdmins(ctx, acc.ID)
	return acc, nil
}

// promoteSuperAdmin reasserts role, password and active flag on an existing Account,
// each through its own targeted write.
func (svc *Service) promoteSuperAdmin(ctx context.Context, acc Account, hash []byte, now time.Time) (Account, error) {
	var err error
	if !acc.IsSuperAdmin() || acc.ClassLevel != "" {
		acc.Role = RoleSuperAdmin
		acc.ClassLevel = ""
		acc.UpdatedAt = now
		if acc, err = svc.repo.UpdateAccount(ctx, acc); err != nil {
			return Account{}, errors.Wrap(err, "updating superadmin")
		}
	}
	if acc, err = svc.repo.SetPassword(ctx, acc.ID, hash, now); err != nil {
		return Account{}, errors.Wrap(err, "setting superadmin password")
	}
	if !acc.IsActive {
		if acc, err = svc.repo.SetActive(ctx, acc.ID, true, now); err != nil {
			return Account{}, errors.Wrap(err, "activating superadmin")
		}
	}
	return acc, nil
}

// warnStraySuperAdmins reports superadmin Accounts other than the configured one,
// left over from a previous superAdmin.email. They are not demoted automatically.
func (svc *Service) warnStraySuperAdmins(ctx context.Context, keepID string) {
	admins, err := svc.repo.QueryAccounts(ctx, QueryFilter{Roles: []string{RoleSuperAdmin}})
	if err != nil {
		svc.logger.Warn("listing superadmins", err)
		return
	}
	for _, acc := range admins {
		if acc.ID != keepID {
			svc.logger.Warn(fmt.Sprintf("superadmin %s is not the configured superadmin", acc.Email), acc)
		}
	}
}

// IsSuperAdminNotConfigured reports whether EnsureSuperAdmin was skipped for lack of credentials.
func IsSuperAdminNotConfigured(err error) bool {
	return errors.Cause(err) == errSuperAdminNotConfigured
}
