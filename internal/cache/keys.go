package cache

import "fmt"

// Key namespace, enumerated centrally so mutation call-sites can invalidate
// precisely without duplicating key strings. Layout: domain:type:identifier.
const (
	productVersion = "v1"

	productKeyPrefix     = "product:" + productVersion + ":"
	productListKeyPrefix = "products:list:" + productVersion + ":"
	campaignKeyPrefix    = "campaign:" + productVersion + ":"
	reviewListKeyPrefix  = "reviews:product:" + productVersion + ":"
	quoteKeyPrefix       = "quote:" + productVersion + ":"
)

// ProductKey addresses a single product by slug.
func ProductKey(slug string) string {
	return productKeyPrefix + slug
}

// ProductListKey addresses a product listing page by its filter hash.
func ProductListKey(filterHash string) string {
	return productListKeyPrefix + filterHash
}

// ProductListPattern matches every cached product listing.
func ProductListPattern() string {
	return productListKeyPrefix + "*"
}

// CampaignKey addresses an admin campaign by status bucket.
func CampaignKey(status string) string {
	return campaignKeyPrefix + "status:" + status
}

// ReviewListKey addresses the review list of a product.
func ReviewListKey(productID string) string {
	return reviewListKeyPrefix + productID
}

// QuoteKey addresses a single quote.
func QuoteKey(id string) string {
	return quoteKeyPrefix + id
}

// PurgePattern builds a glob over a whole domain prefix, for admin purges.
func PurgePattern(prefix string) string {
	return fmt.Sprintf("%s:%s:*", prefix, productVersion)
}
