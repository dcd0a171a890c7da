package login

import "strconv"

// Known cheat-client osu-version markers, matched exactly.
var blockedVersions = map[string]string{
	"0Ainu":                                     "Ainu client",
	"b20190326.2":                               "Ainu client",
	"b20190401.22f56c084ba339eefd9c7ca4335e246f80": "Ainu client",
	"b20191223.3":                               "Ainu client",
	"b20190226.2":                               "hqOsu",
	"b20190716.5":                               "hqOsu (legacy)",
}

// CheatVerdict is the outcome of a cheat-client check.
type CheatVerdict struct {
	Blocked bool
	Reason  string
	// ForceUpdate marks cases that should be treated as a plain
	// outdated/invalid client rather than a restriction-worthy cheat.
	ForceUpdate bool
}

// CheckCheatClient applies the exact-match block list, the "skoot"
// prefix rule, the non-"b"-prefixed rule, and the minimum-year rule.
// No version string is special-cased: the "20160403.6" fallback client
// string has no "b" prefix and is blocked by the non-"b"-prefixed rule.
func CheckCheatClient(osuVersion string, minYear int) CheatVerdict {
	if reason, ok := blockedVersions[osuVersion]; ok {
		return CheatVerdict{Blocked: true, Reason: reason}
	}
	if hasPrefix(osuVersion, "skoot") {
		return CheatVerdict{Blocked: true, Reason: "Skoot client"}
	}
	if osuVersion == "" || osuVersion[0] != 'b' {
		return CheatVerdict{Blocked: true, Reason: "unrecognized client", ForceUpdate: true}
	}
	if year, ok := clientYear(osuVersion); ok && year < minYear {
		return CheatVerdict{Blocked: true, Reason: "outdated client", ForceUpdate: true}
	}
	return CheatVerdict{}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// clientYear extracts the YYYY from a "bYYYYMMDD[.N]" version string.
func clientYear(osuVersion string) (int, bool) {
	if len(osuVersion) < 5 || osuVersion[0] != 'b' {
		return 0, false
	}
	year, err := strconv.Atoi(osuVersion[1:5])
	if err != nil {
		return 0, false
	}
	return year, true
}
