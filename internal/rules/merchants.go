package rules

import "regexp"

// MerchantLink is an informational deep link attached to a transaction when a
// known marketplace or payment processor is detected. Detection never assigns
// a category; the link just helps the user work out what the charge was.
type MerchantLink struct {
	Merchant string
	Label    string
	URL      string
}

type specialMerchant struct {
	name  string
	re    *regexp.Regexp
	label string
	url   string
}

// Fixed pattern set, compiled once at package load.
var specialMerchants = []specialMerchant{
	{
		name:  "Amazon",
		re:    regexp.MustCompile(`(?i)\bamazon\b|\bamzn\b`),
		label: "Amazon order history",
		url:   "https://www.amazon.com/gp/css/order-history",
	},
	{
		name:  "PayPal",
		re:    regexp.MustCompile(`(?i)\bpaypal\b`),
		label: "PayPal activity",
		url:   "https://www.paypal.com/myaccount/transactions",
	},
	{
		name:  "Klarna",
		re:    regexp.MustCompile(`(?i)\bklarna\b`),
		label: "Klarna purchases",
		url:   "https://app.klarna.com/purchases",
	},
}

// DetectMerchantLinks runs the fixed merchant pattern set over payee and memo
// and returns a link per detected merchant.
func DetectMerchantLinks(payee, memo string) []MerchantLink {
	var out []MerchantLink
	for _, m := range specialMerchants {
		if m.re.MatchString(payee) || m.re.MatchString(memo) {
			out = append(out, MerchantLink{Merchant: m.name, Label: m.label, URL: m.url})
		}
	}
	return out
}
