// Package daangn retrieves region-scoped buy-sell documents from the Daangn web data route.
package daangn

import (
	"net/url"
	"strings"

	"github.com/user/listing-aggregator/internal/entity"
)

const (
	DefaultBaseURL = "https://www.daangn.com"

	acceptLanguage = "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7"
	userAgent      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	dataRoute      = "routes%2Fkr.buy-sell._index"
)

// RegionURL builds the data-route URL for one region. The region parameter is "name-id".
func RegionURL(baseURL string, region entity.Region) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	param := url.QueryEscape(region.Name + "-" + region.ID)
	return base + "/kr/buy-sell/?in=" + param + "&_data=" + dataRoute
}
