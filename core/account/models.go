package account

import (
	"strings"
	"time"

	"github.com/learnlink/backend/core"
)

// Roles
const (
	RoleStudent    = "student"
	RoleTeacher    = "teacher"
	RoleSuperAdmin = "superadmin"
)

var (
	AllRoles    = []string{RoleStudent, RoleTeacher, RoleSuperAdmin}
	StaffRoles  = []string{RoleTeacher, RoleSuperAdmin}
	ClassLevels = []string{"JSS1", "JSS2", "JSS3", "SS1", "SS2", "SS3"}
)

// IsClassLevel reports whether lvl is one of ClassLevels.
func IsClassLevel(lvl string) bool {
	for _, l := range ClassLevels {
		if l == lvl {
			return true
		}
	}
	return false
}

type Account struct {
	ID           string `json:"id" bson:"_id"`
	FirstName    string `json:"firstName" bson:"firstName"`
	LastName     string `json:"lastName" bson:"lastName"`
	Email        string `json:"email" bson:"email"`
	PasswordHash []byte `json:"-" bson:"passwordHash"`
	Phone        string `json:"phone,omitempty" bson:"phone,omitempty"`
	Identifier   string `json:"uniqueId,omitempty" bson:"identifier,omitempty"`
	Role         string `json:"type" bson:"role"`
	ClassLevel   string `json:"classLevel,omitempty" bson:"classLevel,omitempty"`
	IsActive     bool   `json:"isActive" bson:"isActive"`

	// both set or both nil
	ResetToken          string     `json:"-" bson:"resetToken,omitempty"`
	ResetTokenExpiresAt *time.Time `json:"-" bson:"resetTokenExpiresAt,omitempty"`

	LastLogin *time.Time `json:"lastLogin,omitempty" bson:"lastLogin,omitempty"` // UTC
	CreatedAt time.Time  `json:"createdAt" bson:"createdAt"`                     // UTC
	UpdatedAt time.Time  `json:"updatedAt" bson:"updatedAt"`                     // UTC
}

func (a Account) Name() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

func (a Account) HasRole(roles ...string) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

func (a Account) IsStudent() bool    { return a.Role == RoleStudent }
func (a Account) IsTeacher() bool    { return a.Role == RoleTeacher }
func (a Account) IsSuperAdmin() bool { return a.Role == RoleSuperAdmin }

// CanSignIn reports whether an account in this state may authenticate.
// Superadmins are never locked out by the active flag.
func (a Account) CanSignIn() bool {
	return a.IsActive || a.IsSuperAdmin()
}

// NewStudent contains information needed to self-register a student Account.
type NewStudent struct {
	FirstName  string `json:"firstName" validate:"required"`
	LastName   string `json:"lastName" validate:"required"`
	Email      string `json:"email" validate:"required,emailshape"`
	Password   string `json:"password" validate:"required"`
	Phone      string `json:"phone" validate:"omitempty,phone"`
	ClassLevel string `json:"classLevel"`
	Role       string `json:"type" validate:"required"`
	Identifier string `json:"uniqueId" validate:"omitempty,identifier"`
}

func (ns *NewStudent) clean() {
	ns.FirstName = core.CleanString(ns.FirstName)
	ns.LastName = core.CleanString(ns.LastName)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.Phone = core.CleanString(ns.Phone)
	ns.ClassLevel = core.CleanUpperString(ns.ClassLevel)
	ns.Role = core.CleanString(ns.Role, true /* lower */)
	ns.Identifier = core.CleanUpperString(ns.Identifier)
}

// NewStaff contains information needed to invite a teacher.
type NewStaff struct {
	Email     string `json:"email" validate:"required,emailshape"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (ns *NewStaff) clean() {
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.FirstName = core.CleanString(ns.FirstName)
	if ns.FirstName == "" {
		ns.FirstName = "Teacher"
	}
	ns.LastName = core.CleanString(ns.LastName)
	if ns.LastName == "" {
		ns.LastName = "User"
	}
}

// Credentials are submitted at sign-in. Identifier is either an email or a uniqueId.
type Credentials struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

func (c *Credentials) clean() {
	c.Identifier = core.CleanString(c.Identifier)
}

func (c Credentials) isEmail() bool {
	return strings.Contains(c.Identifier, "@")
}

type PasswordResetRequest struct {
	Email string `json:"email" validate:"required"`
}

func (pr *PasswordResetRequest) clean() {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
}

// NewPassword is submitted to redeem a reset token.
type NewPassword struct {
	Password string `json:"password" validate:"required"`
}

// PasswordChange is submitted by an owner (CurrentPassword required) or a superadmin.
type PasswordChange struct {
	CurrentPassword string `json:"currentPassword"`
	Password        string `json:"password" validate:"required"`
}

// UpdateProfile defines what information may be provided to modify an existing Account.
// Empty fields are left unchanged.
type UpdateProfile struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email" validate:"omitempty,emailshape"`
	Phone     string `json:"phone" validate:"omitempty,phone"`
}

func (up *UpdateProfile) clean() {
	up.FirstName = core.CleanString(up.FirstName)
	up.LastName = core.CleanString(up.LastName)
	up.Email = core.CleanString(up.Email, true /* lower */)
	up.Phone = core.CleanString(up.Phone)
}

func (up UpdateProfile) apply(acc *Account) {
	if up.FirstName != "" {
		acc.FirstName = up.FirstName
	}
	if up.LastName != "" {
		acc.LastName = up.LastName
	}
	if up.Email != "" {
		acc.Email = up.Email
	}
	if up.Phone != "" {
		acc.Phone = up.Phone
	}
}

// Invitation is the outcome of InviteStaff.
// TempPassword is only filled in debug mode when the credentials email could not be sent.
type Invitation struct {
	AccountID    string
	Identifier   string
	Email        string
	EmailSent    bool
	Warning      string
	TempPassword string
}

// ResetRequest is the outcome of RequestPasswordReset.
type ResetRequest struct {
	EmailSent bool
	Warning   string
}

// Session is the outcome of a successful Authenticate.
type Session struct {
	Token   string
	Account Account
}

// GetFilter selects a single Account. Exactly one field is expected to be set.
type GetFilter struct {
	ID         string
	Email      string
	Identifier string
}

// QueryFilter applies AND operation on set fields.
type QueryFilter struct {
	Roles    []string
	IsActive *bool
}

// DeleteFilter matches an Account by ID, optionally restricted to Role.
type DeleteFilter struct {
	ID   string
	Role string
}
