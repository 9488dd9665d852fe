package ocr

// Curated hint lists used to bias receipt parsing and to canonicalize
// what the OCR engine read. Operators extend these per campaign season;
// order matters only for readability.

// PreferredStoreHints are brand names matched case-insensitively against
// the receipt header before any generic heuristic runs.
var PreferredStoreHints = []string{
	"AEON BIG",
	"AEON",
	"LOTUS'S",
	"TESCO",
	"MYDIN",
	"GIANT",
	"ECONSAVE",
	"NSK",
	"TF VALUE-MART",
	"BILLION",
	"PACIFIC HYPERMARKET",
	"SENHENG",
	"HARVEY NORMAN",
	"COURTS",
	"BEST DENKI",
	"99 SPEEDMART",
	"KK SUPER MART",
	"HERO MARKET",
	"JAYA GROCER",
	"VILLAGE GROCER",
}

// genericRetailHints mark a line as a plausible store name when no
// preferred brand matched.
var genericRetailHints = []string{
	"SDN BHD",
	"SDN. BHD",
	"BHD",
	"SUPERMARKET",
	"HYPERMARKET",
	"MINIMARKET",
	"DEPARTMENT STORE",
	"ENTERPRISE",
	"TRADING",
	"RETAIL",
}

// aeonBranchHints pick the branch line near the bottom of AEON receipts,
// which is more specific than the corporate header.
var aeonBranchHints = []string{
	"HYPERMARKET",
	"BIG",
	"KLANG",
	"SHAH ALAM",
	"WANGSA MAJU",
	"MID VALLEY",
	"BUKIT TINGGI",
	"SETIA ALAM",
	"KOTA BHARU",
	"IPOH",
	"JOHOR BAHRU",
	"SEREMBAN 2",
}

// PreferredProductHints are campaign products matched against item
// lines; names here are also the canonical spellings.
var PreferredProductHints = []string{
	"KHIND TF1601DC",
	"KHIND SF1663",
	"KHIND EO5225",
	"KHIND RC118M",
	"KHIND BL1012",
	"KHIND IM4801",
	"KHIND VC9675",
	"KHIND OT2502",
	"KHIND SK156P",
	"KHIND EK1811W",
}

// StoreLocationMap maps a normalized store name to its canonical
// "City, State" string. Lookup is exact first, then substring.
var StoreLocationMap = map[string]string{
	"AEON BIG HYPERMARKET KLANG SELANGOR": "Klang, Selangor",
	"AEON BIG HYPERMARKET SHAH ALAM":      "Shah Alam, Selangor",
	"AEON MID VALLEY":                     "Kuala Lumpur, Wilayah Persekutuan",
	"AEON BUKIT TINGGI":                   "Klang, Selangor",
	"LOTUS'S KLANG":                       "Klang, Selangor",
	"MYDIN USJ":                           "Subang Jaya, Selangor",
	"GIANT SHAH ALAM":                     "Shah Alam, Selangor",
	"ECONSAVE BUKIT RAJA":                 "Klang, Selangor",
	"SENHENG SETIA ALAM":                  "Setia Alam, Selangor",
	"TF VALUE-MART SEREMBAN":              "Seremban, Negeri Sembilan",
}

// malaysianStates are the state tokens scanned for in address lines.
var malaysianStates = []string{
	"SELANGOR",
	"KUALA LUMPUR",
	"PUTRAJAYA",
	"LABUAN",
	"JOHOR",
	"KEDAH",
	"KELANTAN",
	"MELAKA",
	"NEGERI SEMBILAN",
	"PAHANG",
	"PERAK",
	"PERLIS",
	"PULAU PINANG",
	"PENANG",
	"SABAH",
	"SARAWAK",
	"TERENGGANU",
}

// knownLocations is the canonicalization target set for store locations.
func knownLocations() []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range StoreLocationMap {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, s := range malaysianStates {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
