package ecommerce

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/shopsync/backend/internal/domain/integration"
	"github.com/shopsync/backend/internal/infrastructure/logger"
	"github.com/shopsync/backend/internal/infrastructure/telemetry"
)

// errMalformedLink marks a Link header that cannot be parsed or whose next page cannot be followed
var errMalformedLink = errors.New("shopify: malformed link header")

// ShopifyAdapter reads and updates a shop's catalog through the Shopify Admin REST API
type ShopifyAdapter struct {
	config *ShopifyConfig
	client *RateLimitedClient
	tokens integration.CredentialStore
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error

	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	locations map[string]int64
}

// ShopifyOption configures a ShopifyAdapter
type ShopifyOption func(*ShopifyAdapter)

// WithShopifySleep replaces the sleep used for Retry-After and quota cooldowns
func WithShopifySleep(f func(ctx context.Context, d time.Duration) error) ShopifyOption {
	return func(a *ShopifyAdapter) {
		a.sleep = f
	}
}

// WithShopifyClient replaces the rate limited client used for every request
func WithShopifyClient(c *RateLimitedClient) ShopifyOption {
	return func(a *ShopifyAdapter) {
		a.client = c
	}
}

// NewShopifyAdapter creates a new Shopify adapter reading access tokens from tokens
func NewShopifyAdapter(config *ShopifyConfig, tokens integration.CredentialStore, logger *zap.Logger, opts ...ShopifyOption) (*ShopifyAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &ShopifyAdapter{
		config:    config,
		tokens:    tokens,
		logger:    logger,
		sleep:     sleepContext,
		limiters:  make(map[string]*rate.Limiter),
		locations: make(map[string]int64),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.client == nil {
		httpClient := &http.Client{Timeout: time.Duration(config.TimeoutSeconds) * time.Second}
		a.client = NewRateLimitedClient(httpClient, logger)
	}
	return a, nil
}

// ---------------------------------------------------------------------------
// Catalog
// ---------------------------------------------------------------------------

// FetchAll returns every variant with a sku, following cursor pagination
func (a *ShopifyAdapter) FetchAll(ctx context.Context, tenant string) ([]integration.StorefrontVariant, error) {
	token, err := a.token(ctx, tenant)
	if err != nil {
		return nil, err
	}

	var (
		variants []integration.StorefrontVariant
		pageInfo string
		cooldown bool
	)
	for page := 1; ; page++ {
		if cooldown {
			if err := a.sleep(ctx, a.config.QuotaCooldown); err != nil {
				return nil, err
			}
		}

		resp, err := a.fetchPage(ctx, tenant, token, pageInfo)
		if err != nil {
			return nil, err
		}
		cooldown = a.quotaExceeded(resp.Header)

		var body shopifyProductsPage
		if err := json.Unmarshal(resp.Body, &body); err != nil {
			logger.Scoped(ctx, a.logger).Warn("Skipping undecodable product page",
				zap.String("shop", tenant),
				zap.Int("page", page),
				zap.Error(err),
			)
		} else {
			variants = appendVariants(variants, body.Products)
		}

		next, err := nextPageInfo(resp.Header.Get("Link"))
		if err != nil {
			logger.Scoped(ctx, a.logger).Error("Stopping pagination",
				zap.String("shop", tenant),
				zap.Int("page", page),
				zap.Error(err),
			)
			break
		}
		if next == "" {
			break
		}
		pageInfo = next
	}

	logger.Scoped(ctx, a.logger).Info("Fetched storefront catalog",
		zap.String("shop", tenant),
		zap.Int("variants", len(variants)),
	)
	return variants, nil
}

// fetchPage gets one product page, honoring Retry-After on 429 up to MaxPageRetries
func (a *ShopifyAdapter) fetchPage(ctx context.Context, tenant, token, pageInfo string) (*Response, error) {
	query := url.Values{}
	query.Set("fields", "id,variants")
	query.Set("limit", strconv.Itoa(a.config.PageLimit))
	if pageInfo != "" {
		query.Set("page_info", pageInfo)
	}
	req := &Request{
		Method: http.MethodGet,
		URL:    a.endpoint(tenant, "products.json") + "?" + query.Encode(),
		Header: a.headers(token),
	}

	for retries := 0; ; retries++ {
		if err := a.throttle(ctx, tenant); err != nil {
			return nil, err
		}
		resp, err := a.client.Send(ctx, req, BackoffPolicy{MaxAttempts: 1})
		if err != nil {
			return nil, err
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return resp, nil
		case resp.IsRateLimited():
			if retries >= a.config.MaxPageRetries {
				return nil, fmt.Errorf("%w: product page still throttled after %d retries", integration.ErrPlatformRateLimited, retries)
			}
			delay := retryAfter(resp.Header.Get("Retry-After"), a.config.DefaultRetryAfter)
			logger.Scoped(ctx, a.logger).Warn("Product page rate limited",
				zap.String("shop", tenant),
				zap.Duration("retry_after", delay),
				zap.Int("retry", retries+1),
			)
			if err := a.sleep(ctx, delay); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("%w: products.json HTTP %d: %s",
				integration.ErrPlatformRequestFailed, resp.StatusCode, truncate(string(resp.Body), 200))
		}
	}
}

func appendVariants(dst []integration.StorefrontVariant, products []shopifyProduct) []integration.StorefrontVariant {
	for _, p := range products {
		for _, v := range p.Variants {
			if v.SKU == nil || strings.TrimSpace(*v.SKU) == "" {
				continue
			}
			qty := 0
			if v.InventoryQuantity != nil {
				qty = *v.InventoryQuantity
			}
			dst = append(dst, integration.StorefrontVariant{
				SKU:             strings.TrimSpace(*v.SKU),
				VariantID:       strconv.FormatInt(v.ID, 10),
				InventoryItemID: strconv.FormatInt(v.InventoryItemID, 10),
				CurrentPrice:    v.Price,
				CurrentQuantity: qty,
			})
		}
	}
	return dst
}

// nextPageInfo extracts the page_info cursor of the rel="next" link.
// An empty result with nil error means there is no next page.
func nextPageInfo(header string) (string, error) {
	links, err := parseLinkHeader(header)
	if err != nil {
		return "", err
	}
	for _, link := range links {
		if !slices.Contains(link.rels, "next") {
			continue
		}
		u, err := url.Parse(link.target)
		if err != nil {
			return "", fmt.Errorf("%w: %v", errMalformedLink, err)
		}
		pageInfo := u.Query().Get("page_info")
		if pageInfo == "" {
			return "", fmt.Errorf("%w: next link without page_info", errMalformedLink)
		}
		return pageInfo, nil
	}
	return "", nil
}

type linkValue struct {
	target string
	rels   []string
}

// parseLinkHeader splits an RFC 8288 Link header into its link values.
// Targets are taken whole between angle brackets, so commas inside a URL
// (fields=id,variants) do not split a link.
func parseLinkHeader(header string) ([]linkValue, error) {
	var links []linkValue
	rest := strings.TrimSpace(header)
	for rest != "" {
		if rest[0] != '<' {
			return nil, fmt.Errorf("%w: %q", errMalformedLink, rest)
		}
		end := strings.IndexByte(rest, '>')
		if end < 0 {
			return nil, fmt.Errorf("%w: unterminated target %q", errMalformedLink, rest)
		}
		link := linkValue{target: rest[1:end]}

		params, next := cutLinkParams(rest[end+1:])
		for _, param := range strings.Split(params, ";") {
			name, value, ok := strings.Cut(strings.TrimSpace(param), "=")
			if ok && strings.EqualFold(strings.TrimSpace(name), "rel") {
				link.rels = strings.Fields(strings.Trim(strings.TrimSpace(value), `"`))
			}
		}
		links = append(links, link)
		rest = strings.TrimLeft(next, ", \t")
	}
	return links, nil
}

// cutLinkParams returns the parameters of one link value and the text after the comma ending it
func cutLinkParams(s string) (params, rest string) {
	quoted := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			quoted = !quoted
		case ',':
			if !quoted {
				return s[:i], s[i+1:]
			}
		}
	}
	return s, ""
}

// quotaExceeded reports whether the call-limit bucket is above the configured ratio
func (a *ShopifyAdapter) quotaExceeded(h http.Header) bool {
	used, limit, ok := strings.Cut(h.Get(ShopifyCallLimitHeader), "/")
	if !ok {
		return false
	}
	u, err1 := strconv.ParseFloat(strings.TrimSpace(used), 64)
	m, err2 := strconv.ParseFloat(strings.TrimSpace(limit), 64)
	if err1 != nil || err2 != nil || m <= 0 {
		return false
	}
	return u/m > a.config.QuotaThreshold
}

// retryAfter parses a Retry-After value in (possibly fractional) seconds
func retryAfter(value string, fallback time.Duration) time.Duration {
	seconds, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds * float64(time.Second))
}

// throttle waits for the shop's minimum request interval
func (a *ShopifyAdapter) throttle(ctx context.Context, tenant string) error {
	a.mu.Lock()
	limiter, ok := a.limiters[tenant]
	if !ok {
		limit := rate.Inf
		if a.config.MinRequestInterval > 0 {
			limit = rate.Every(a.config.MinRequestInterval)
		}
		limiter = rate.NewLimiter(limit, 1)
		a.limiters[tenant] = limiter
	}
	a.mu.Unlock()
	return limiter.Wait(ctx)
}

// ---------------------------------------------------------------------------
// Updates
// ---------------------------------------------------------------------------

// UpdateVariant writes price and available quantity. The two writes are
// independent: a failed price write does not prevent the inventory write.
func (a *ShopifyAdapter) UpdateVariant(ctx context.Context, tenant, variantID, inventoryItemID string, price decimal.Decimal, quantity int) integration.UpdateResult {
	result := integration.UpdateResult{VariantID: variantID}

	ctx, span := telemetry.StartSpan(ctx, "shopify.update_variant",
		telemetry.WithSpanKind(trace.SpanKindClient),
		telemetry.WithAttribute(telemetry.SpanAttrShop, tenant),
		telemetry.WithAttribute(telemetry.SpanAttrVariantID, variantID),
	)
	defer span.End()

	token, err := a.token(ctx, tenant)
	if err != nil {
		result.PriceErr = err
		result.QuantityErr = err
		telemetry.RecordError(span, err)
		return result
	}

	result.PriceErr = a.updatePrice(ctx, tenant, token, variantID, price)
	result.QuantityErr = a.updateInventory(ctx, tenant, token, inventoryItemID, quantity)

	if !result.OK() {
		telemetry.RecordError(span, errors.Join(result.PriceErr, result.QuantityErr))
		logger.Scoped(ctx, a.logger).Warn("Variant update incomplete",
			zap.String("shop", tenant),
			zap.String("variant_id", variantID),
			zap.NamedError("price_error", result.PriceErr),
			zap.NamedError("quantity_error", result.QuantityErr),
		)
	}
	return result
}

func (a *ShopifyAdapter) updatePrice(ctx context.Context, tenant, token, variantID string, price decimal.Decimal) error {
	id, err := strconv.ParseInt(variantID, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: variant id %q", integration.ErrPlatformRequestFailed, variantID)
	}
	body, err := json.Marshal(shopifyVariantUpdate{
		Variant: shopifyVariantPrice{ID: id, Price: price.StringFixed(2)},
	})
	if err != nil {
		return err
	}
	return a.write(ctx, &Request{
		Method: http.MethodPut,
		URL:    a.endpoint(tenant, "variants/"+variantID+".json"),
		Header: a.headers(token),
		Body:   body,
	})
}

func (a *ShopifyAdapter) updateInventory(ctx context.Context, tenant, token, inventoryItemID string, quantity int) error {
	itemID, err := strconv.ParseInt(inventoryItemID, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: inventory item id %q", integration.ErrPlatformRequestFailed, inventoryItemID)
	}
	locationID, err := a.location(ctx, tenant, token)
	if err != nil {
		return err
	}
	body, err := json.Marshal(shopifyInventorySet{
		LocationID:      locationID,
		InventoryItemID: itemID,
		Available:       quantity,
	})
	if err != nil {
		return err
	}
	return a.write(ctx, &Request{
		Method: http.MethodPost,
		URL:    a.endpoint(tenant, "inventory_levels/set.json"),
		Header: a.headers(token),
		Body:   body,
	})
}

func (a *ShopifyAdapter) write(ctx context.Context, req *Request) error {
	resp, err := a.client.Send(ctx, req, a.config.WritePolicy)
	if err != nil {
		return err
	}
	switch {
	case resp.IsSuccess():
		return nil
	case resp.IsRateLimited():
		return fmt.Errorf("%w: %s %s after %d attempts", integration.ErrPlatformRateLimited, req.Method, req.URL, resp.Attempts)
	default:
		return fmt.Errorf("%w: %s %s HTTP %d: %s",
			integration.ErrPlatformRequestFailed, req.Method, req.URL, resp.StatusCode, errorMessage(resp.Body))
	}
}

// location returns the configured inventory location, resolving and caching
// the first active location of the shop when none is configured
func (a *ShopifyAdapter) location(ctx context.Context, tenant, token string) (int64, error) {
	if a.config.LocationID != 0 {
		return a.config.LocationID, nil
	}

	a.mu.Lock()
	id, ok := a.locations[tenant]
	a.mu.Unlock()
	if ok {
		return id, nil
	}

	if err := a.throttle(ctx, tenant); err != nil {
		return 0, err
	}
	resp, err := a.client.Send(ctx, &Request{
		Method: http.MethodGet,
		URL:    a.endpoint(tenant, "locations.json"),
		Header: a.headers(token),
	}, a.config.WritePolicy)
	if err != nil {
		return 0, err
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: locations.json HTTP %d", integration.ErrPlatformRequestFailed, resp.StatusCode)
	}

	var body shopifyLocations
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return 0, fmt.Errorf("%w: %v", integration.ErrPlatformInvalidResponse, err)
	}
	for _, loc := range body.Locations {
		if loc.Active {
			a.mu.Lock()
			a.locations[tenant] = loc.ID
			a.mu.Unlock()
			logger.Scoped(ctx, a.logger).Info("Resolved inventory location", zap.String("shop", tenant), zap.Int64("location_id", loc.ID))
			return loc.ID, nil
		}
	}
	return 0, fmt.Errorf("%w: shop has no active location", integration.ErrPlatformInvalidResponse)
}

// ---------------------------------------------------------------------------
// OAuth
// ---------------------------------------------------------------------------

// AuthorizeURL returns the install URL a merchant is redirected to
func (a *ShopifyAdapter) AuthorizeURL(shop, state string) (string, error) {
	if err := a.config.ValidateOAuth(); err != nil {
		return "", fmt.Errorf("%w: %w", integration.ErrPlatformNotConfigured, err)
	}
	query := url.Values{}
	query.Set("client_id", a.config.ClientID)
	query.Set("scope", a.config.Scopes)
	if a.config.RedirectURL != "" {
		query.Set("redirect_uri", a.config.RedirectURL)
	}
	if state != "" {
		query.Set("state", state)
	}
	return a.baseURL(shop) + "/admin/oauth/authorize?" + query.Encode(), nil
}

// ExchangeAccessToken trades an OAuth authorization code for a permanent access token
func (a *ShopifyAdapter) ExchangeAccessToken(ctx context.Context, shop, code string) (string, error) {
	if err := a.config.ValidateOAuth(); err != nil {
		return "", fmt.Errorf("%w: %w", integration.ErrPlatformNotConfigured, err)
	}
	body, err := json.Marshal(shopifyTokenRequest{
		ClientID:     a.config.ClientID,
		ClientSecret: a.config.ClientSecret,
		Code:         code,
	})
	if err != nil {
		return "", err
	}

	resp, err := a.client.Send(ctx, &Request{
		Method: http.MethodPost,
		URL:    a.baseURL(shop) + "/admin/oauth/access_token",
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   body,
	}, a.config.WritePolicy)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token exchange HTTP %d: %s",
			integration.ErrPlatformAuthFailed, resp.StatusCode, errorMessage(resp.Body))
	}

	var token shopifyTokenResponse
	if err := json.Unmarshal(resp.Body, &token); err != nil {
		return "", fmt.Errorf("%w: %v", integration.ErrPlatformInvalidResponse, err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", integration.ErrPlatformAuthFailed)
	}
	return token.AccessToken, nil
}

// VerifyCallback checks the hmac Shopify signs the OAuth callback query with.
// The signature covers every other parameter, sorted by name.
func (a *ShopifyAdapter) VerifyCallback(query url.Values) error {
	if err := a.config.ValidateOAuth(); err != nil {
		return fmt.Errorf("%w: %w", integration.ErrPlatformNotConfigured, err)
	}
	given, err := hex.DecodeString(query.Get("hmac"))
	if err != nil || len(given) == 0 {
		return fmt.Errorf("%w: missing or malformed callback hmac", integration.ErrPlatformAuthFailed)
	}
	if !hmac.Equal(given, callbackSignature(a.config.ClientSecret, query)) {
		return fmt.Errorf("%w: callback hmac mismatch", integration.ErrPlatformAuthFailed)
	}
	return nil
}

func callbackSignature(secret string, query url.Values) []byte {
	keys := make([]string, 0, len(query))
	for k := range query {
		if k == "hmac" || k == "signature" {
			continue
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, escapeSigned(k, true)+"="+escapeSigned(strings.Join(query[k], ","), false))
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strings.Join(pairs, "&")))
	return mac.Sum(nil)
}

// escapeSigned escapes the separators of the signed message
func escapeSigned(s string, key bool) string {
	s = strings.ReplaceAll(s, "%", "%25")
	s = strings.ReplaceAll(s, "&", "%26")
	if key {
		s = strings.ReplaceAll(s, "=", "%3D")
	}
	return s
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (a *ShopifyAdapter) token(ctx context.Context, tenant string) (string, error) {
	token, ok, err := a.tokens.Get(ctx, tenant)
	if err != nil {
		return "", fmt.Errorf("shopify: load token: %w", err)
	}
	if !ok || token == "" {
		return "", fmt.Errorf("%w: no access token for %s", integration.ErrPlatformNotConfigured, tenant)
	}
	return token, nil
}

func (a *ShopifyAdapter) baseURL(shop string) string {
	if a.config.BaseURL != "" {
		return strings.TrimSuffix(a.config.BaseURL, "/")
	}
	return "https://" + shop
}

func (a *ShopifyAdapter) endpoint(tenant, resource string) string {
	return a.baseURL(tenant) + "/admin/api/" + a.config.APIVersion + "/" + resource
}

func (a *ShopifyAdapter) headers(token string) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set(ShopifyAccessTokenHeader, token)
	return h
}

// errorMessage renders the "errors" member of a Shopify error body
func errorMessage(body []byte) string {
	var e shopifyErrorBody
	if err := json.Unmarshal(body, &e); err == nil && e.Errors != nil {
		if b, err := json.Marshal(e.Errors); err == nil {
			return string(b)
		}
	}
	return truncate(string(body), 200)
}

// Ensure ShopifyAdapter implements the port
var _ integration.SinkCatalog = (*ShopifyAdapter)(nil)
