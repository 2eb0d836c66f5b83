package task

import "strings"

// regionCodes maps common country names to CLDR region codes for
// Places and search biasing. Unlisted countries get no bias.
var regionCodes = map[string]string{
	"saudi arabia":         "SA",
	"uae":                  "AE",
	"united arab emirates": "AE",
	"qatar":                "QA",
	"kuwait":               "KW",
	"bahrain":              "BH",
	"oman":                 "OM",
	"egypt":                "EG",
	"jordan":               "JO",
	"united states":        "US",
	"usa":                  "US",
	"united kingdom":       "GB",
	"uk":                   "GB",
	"germany":              "DE",
	"france":               "FR",
	"spain":                "ES",
	"italy":                "IT",
	"netherlands":          "NL",
	"canada":               "CA",
	"australia":            "AU",
	"india":                "IN",
	"singapore":            "SG",
	"japan":                "JP",
	"brazil":               "BR",
	"mexico":               "MX",
	"south africa":         "ZA",
	"nigeria":              "NG",
	"kenya":                "KE",
	"turkey":               "TR",
	"china":                "CN",
}

// regionCode returns the two-letter region code for a country name, or
// empty when unknown.
func regionCode(country string) string {
	return regionCodes[strings.ToLower(strings.TrimSpace(country))]
}
