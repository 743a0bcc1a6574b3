package rules

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectMerchantLinksAmazon(t *testing.T) {
	t.Parallel()

	links := DetectMerchantLinks("AMAZON MARKETPLACE S.A.R.L.", "")
	require.Len(t, links, 1)
	require.Equal(t, "Amazon", links[0].Merchant)
	require.Contains(t, links[0].URL, "order-history")
}

func TestDetectMerchantLinksMemoOnly(t *testing.T) {
	t.Parallel()

	links := DetectMerchantLinks("PP.1234.PP", "PAYPAL . IHR EINKAUF")
	require.Len(t, links, 1)
	require.Equal(t, "PayPal", links[0].Merchant)
}

func TestDetectMerchantLinksNoFalsePositives(t *testing.T) {
	t.Parallel()

	require.Empty(t, DetectMerchantLinks("REWE Markt", "Lebensmittel"))
	// substring inside another word must not fire
	require.Empty(t, DetectMerchantLinks("AMAZONIA TRAVEL", ""))
}
