package account

import "time"

// SetNowFunc replaces the service clock and returns a function restoring it.
func SetNowFunc(f func() time.Time) (restore func()) {
	orig := nowFunc
	nowFunc = f
	return func() { nowFunc = orig }
}

// SetStudentIDFunc replaces the student identifier generator.
func SetStudentIDFunc(f func() (string, error)) (restore func()) {
	orig := studentIDFunc
	studentIDFunc = f
	return func() { studentIDFunc = orig }
}

// SetStaffIDFunc replaces the staff identifier generator.
func SetStaffIDFunc(f func() (string, error)) (restore func()) {
	orig := staffIDFunc
	staffIDFunc = f
	return func() { staffIDFunc = orig }
}

// SetTempSecretFunc replaces the temporary password generator.
func SetTempSecretFunc(f func() (string, error)) (restore func()) {
	orig := tempSecretFunc
	tempSecretFunc = f
	return func() { tempSecretFunc = orig }
}

// SetResetTokenFunc replaces the reset token generator.
func SetResetTokenFunc(f func() (string, error)) (restore func()) {
	orig := resetTokenFunc
	resetTokenFunc = f
	return func() { resetTokenFunc = orig }
}
