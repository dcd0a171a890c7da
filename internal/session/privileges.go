package session

// Privilege bits carried in Session.Privileges and the stored user
// record alike. Bit 0 (Public) is what RestrictUser clears; the rest
// gate welcome-sequence flags and chat/admin behavior.
const (
	PrivPublic uint32 = 1 << iota
	PrivNormal
	PrivBot
	PrivSupporter
	PrivAdmin
	PrivModerator
	PrivTournamentStaff
	PrivPendingVerification
)

// IsRestricted reports whether privileges describe a restricted
// account: normal but not public.
func IsRestricted(privileges uint32) bool {
	return privileges&PrivNormal != 0 && privileges&PrivPublic == 0
}

// IsBanned reports whether privileges describe a fully banned account:
// neither public nor normal, and not pending verification.
func IsBanned(privileges uint32) bool {
	return privileges&(PrivPublic|PrivNormal) == 0 && privileges&PrivPendingVerification == 0
}
