package login

// Wine signature constants: the mac-hash and disk-id values osu!'s
// hardware fingerprinting consistently reports under Wine/Proton.
// When either is observed, hardware matching falls back to unique-id
// alone since mac/disk are not meaningfully distinct across Wine hosts.
const (
	wineMACHash = "b4ec3c4334a0249dae95c284ec5983df"
	wineDiskID  = "ffae06fb022871fe9beb58b005c5e21d"
)

// IsWineSignature reports whether the given hwid fields match a known
// Wine/Proton fingerprint.
func IsWineSignature(macHash, diskID string) bool {
	return macHash == wineMACHash || diskID == wineDiskID
}

// MultiAccountCheck compares a fresh login's hwid against stored hardware
// history (via the relational collaborator) and reports any other user
// ids sharing that hardware. Wine clients are matched on unique id alone;
// others are matched on unique-id and disk-id together. The mac-hash is
// not compared.
type MultiAccountCheck struct {
	UniqueID string
	DiskID   string
	Wine     bool
}

// NewMultiAccountCheck builds the match parameters for a handshake.
func NewMultiAccountCheck(h Handshake) MultiAccountCheck {
	return MultiAccountCheck{
		UniqueID: h.UniqueID,
		DiskID:   h.DiskID,
		Wine:     IsWineSignature(h.MACHash, h.DiskID),
	}
}
