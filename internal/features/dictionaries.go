package features

// Heuristic dictionaries. These are versioned data tables: scoring behavior
// must be reproducible across runs, so changes here bump DictionaryVersion
// and nothing in the matching logic needs to be touched.

// DictionaryVersion identifies the dictionary revision in effect
const DictionaryVersion = "2024-07"

// sensitiveKeywords are terms commonly found in credential-harvesting URLs.
// Scan order is fixed: KeywordHits preserves this order.
var sensitiveKeywords = []string{
	"login",
	"signin",
	"verify",
	"secure",
	"account",
	"update",
	"confirm",
	"banking",
	"password",
	"wallet",
	"invoice",
	"suspend",
}

// suspiciousTLDs are TLDs with a disproportionate share of abuse
// (free or near-free registration, weak takedown response)
var suspiciousTLDs = map[string]bool{
	"tk":      true,
	"ml":      true,
	"ga":      true,
	"cf":      true,
	"gq":      true,
	"xyz":     true,
	"top":     true,
	"club":    true,
	"work":    true,
	"zip":     true,
	"country": true,
}

// impersonatedBrands are high-value brands whose names inside a domain that
// does not end with <brand>.com indicate likely impersonation.
// Scan order is fixed; the first match wins.
var impersonatedBrands = []string{
	"paypal",
	"apple",
	"amazon",
	"microsoft",
	"google",
	"netflix",
	"facebook",
	"instagram",
	"whatsapp",
	"chase",
	"wellsfargo",
	"coinbase",
}

// URL shortener domains hide the true destination; flagged during
// redirect analysis rather than structural scoring
var shortenerDomains = map[string]bool{
	"bit.ly":      true,
	"tinyurl.com": true,
	"t.co":        true,
	"goo.gl":      true,
	"ow.ly":       true,
	"is.gd":       true,
	"rb.gy":       true,
}

// IsShortener reports whether the domain is a known URL shortener
func IsShortener(domain string) bool {
	return shortenerDomains[domain]
}
