package testutil

// Fixtures matching the embedded demo account seed.
const (
	ArifNIK       = "1234567890123456"
	ArifName      = "Arif Athaya"
	ArifEmail     = "arif@example.com"
	ArifBirthdate = "04-10-2005"

	BudiNIK  = "3201123456789001"
	BudiName = "Budi Santoso"

	UnknownNIK = "9999000099990000"

	// PasswordResetMessage is a user message carrying everything the
	// password reset tool needs for Arif's account.
	PasswordResetMessage = "NIK saya " + ArifNIK + ", email " + ArifEmail + ", lahir " + ArifBirthdate
)
