package proto

// countryIndex maps ISO 3166-1 alpha-2 codes to the legacy numeric
// country ids the osu! client expects in presence packets. This is not
// the full table — unlisted codes fall back to 0 ("XX").
var countryIndex = map[string]uint8{
	"XX": 0,
	"OC": 1,
	"EU": 2,
	"AD": 3, "AE": 4, "AF": 5, "AG": 6, "AI": 7, "AL": 8, "AM": 9,
	"AR": 11, "AS": 12, "AT": 13, "AU": 14, "AW": 15, "AZ": 16,
	"BA": 17, "BB": 18, "BD": 19, "BE": 20, "BF": 21, "BG": 22,
	"BH": 23, "BI": 24, "BJ": 25, "BN": 27, "BO": 28, "BR": 30,
	"BS": 31, "BT": 33, "BW": 35, "BY": 36, "BZ": 37, "CA": 38,
	"CH": 44, "CL": 46, "CN": 49, "CO": 50, "CR": 53, "CU": 55,
	"CY": 56, "CZ": 57, "DE": 58, "DK": 60, "DO": 62, "DZ": 63,
	"EC": 64, "EE": 65, "EG": 66, "ES": 69, "ET": 70, "FI": 73,
	"FJ": 74, "FR": 76, "GB": 82, "GE": 83, "GH": 85, "GR": 93,
	"HK": 102, "HR": 104, "HU": 106, "ID": 108, "IE": 109, "IL": 110,
	"IN": 111, "IQ": 112, "IR": 113, "IS": 114, "IT": 115, "JM": 118,
	"JO": 119, "JP": 120, "KE": 121, "KG": 122, "KH": 123, "KP": 125,
	"KR": 126, "KW": 127, "KZ": 128, "LA": 129, "LB": 130, "LK": 135,
	"LT": 138, "LU": 139, "LV": 140, "MA": 144, "MC": 146, "MD": 147,
	"ME": 150, "MG": 151, "MK": 160, "MM": 163, "MN": 164, "MO": 165,
	"MT": 175, "MX": 178, "MY": 179, "NG": 189, "NL": 193, "NO": 196,
	"NP": 197, "NZ": 201, "OM": 203, "PA": 204, "PE": 206, "PG": 205,
	"PH": 207, "PK": 209, "PL": 210, "PT": 215, "PY": 217, "QA": 218,
	"RO": 221, "RS": 222, "RU": 223, "RW": 224, "SA": 225, "SE": 232,
	"SG": 233, "SI": 235, "SK": 236, "TH": 240, "TR": 241,
	"TW": 220, "UA": 242, "US": 243, "UY": 244, "UZ": 245,
	"VE": 246, "VN": 247, "ZA": 238, "ZW": 239,
}
