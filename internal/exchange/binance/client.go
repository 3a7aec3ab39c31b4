// Package binance implements the exchange gateway against the Binance
// USDT-M futures API.
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/andriipushkar/scalpbot/internal/exchange"
	"github.com/andriipushkar/scalpbot/internal/types"
)

const (
	mainnetBaseURL = "https://fapi.binance.com"
	testnetBaseURL = "https://testnet.binancefuture.com"

	mainnetStreamURL = "wss://fstream.binance.com"
	testnetStreamURL = "wss://stream.binancefuture.com"

	defaultRecvWindow = 5000 // ms
)

// Binance API error codes the lifecycle logic branches on.
const (
	codeTooManyRequests      = -1003
	codeMarginInsufficient   = -2019
	codeUnknownOrder         = -2011
	codeReduceOnlyRejected   = -2022
	codeOrderWouldTrigger    = -2021
	codeNoNeedToChangeMargin = -4046
)

// Config holds Binance USDT-M futures credentials and endpoints.
type Config struct {
	APIKey     string
	APISecret  string
	Testnet    bool
	RecvWindow int64 // ms
}

// Client is the Binance USDT-M futures gateway.
type Client struct {
	cfg       Config
	baseURL   string
	streamURL string
	http      *http.Client
	limiter   *rate.Limiter
	logger    *slog.Logger
}

var _ exchange.Gateway = (*Client)(nil)

// NewClient creates a Binance futures gateway.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RecvWindow == 0 {
		cfg.RecvWindow = defaultRecvWindow
	}
	base, stream := mainnetBaseURL, mainnetStreamURL
	if cfg.Testnet {
		base, stream = testnetBaseURL, testnetStreamURL
	}
	return &Client{
		cfg:       cfg,
		baseURL:   base,
		streamURL: stream,
		http:      &http.Client{Timeout: 10 * time.Second},
		// 2400 request weight per minute; stay at 20/s to leave headroom
		// for order bursts.
		limiter: rate.NewLimiter(rate.Limit(20), 40),
		logger:  logger,
	}
}

// GetOrderBookSnapshot fetches a depth snapshot via REST.
func (c *Client) GetOrderBookSnapshot(ctx context.Context, symbol string, depth int) (*exchange.DepthSnapshot, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("limit", strconv.Itoa(depth))

	body, err := c.doPublic(ctx, "/fapi/v1/depth", params)
	if err != nil {
		return nil, err
	}

	var raw struct {
		LastUpdateID int64       `json:"lastUpdateId"`
		Bids         [][2]string `json:"bids"`
		Asks         [][2]string `json:"asks"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode depth snapshot: %w", err)
	}

	bids, err := parseLevels(raw.Bids)
	if err != nil {
		return nil, fmt.Errorf("parse bids: %w", err)
	}
	asks, err := parseLevels(raw.Asks)
	if err != nil {
		return nil, fmt.Errorf("parse asks: %w", err)
	}

	return &exchange.DepthSnapshot{
		Symbol:       symbol,
		LastUpdateID: raw.LastUpdateID,
		Bids:         bids,
		Asks:         asks,
	}, nil
}

// CreateOrder submits an order.
func (c *Client) CreateOrder(ctx context.Context, req exchange.OrderRequest) (*exchange.OrderAck, error) {
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", string(req.Side))
	params.Set("type", string(req.Type))
	params.Set("quantity", req.Quantity.String())

	switch req.Type {
	case exchange.TypeLimit:
		params.Set("price", req.Price.String())
		params.Set("timeInForce", "GTC")
	case exchange.TypeStopMarket, exchange.TypeTakeProfitMarket:
		params.Set("stopPrice", req.StopPrice.String())
	}
	if req.ReduceOnly {
		params.Set("reduceOnly", "true")
	}
	if req.ClientOrderID != "" {
		params.Set("newClientOrderId", req.ClientOrderID)
	}

	body, err := c.doSigned(ctx, http.MethodPost, "/fapi/v1/order", params)
	if err != nil {
		return nil, err
	}

	var resp struct {
		OrderID       int64  `json:"orderId"`
		ClientOrderID string `json:"clientOrderId"`
		Status        string `json:"status"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode order response: %w", err)
	}

	return &exchange.OrderAck{
		OrderID:       strconv.FormatInt(resp.OrderID, 10),
		ClientOrderID: resp.ClientOrderID,
		Status:        exchange.OrderStatus(resp.Status),
	}, nil
}

// CancelOrder cancels a single order by exchange order id.
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", orderID)

	_, err := c.doSigned(ctx, http.MethodDelete, "/fapi/v1/order", params)
	return err
}

// CancelAllOpenOrders cancels every open order for the symbol.
func (c *Client) CancelAllOpenOrders(ctx context.Context, symbol string) error {
	params := url.Values{}
	params.Set("symbol", symbol)

	_, err := c.doSigned(ctx, http.MethodDelete, "/fapi/v1/allOpenOrders", params)
	return err
}

// GetAccountBalance returns the available balance for one asset.
func (c *Client) GetAccountBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	body, err := c.doSigned(ctx, http.MethodGet, "/fapi/v2/balance", url.Values{})
	if err != nil {
		return decimal.Decimal{}, err
	}

	var balances []struct {
		Asset            string `json:"asset"`
		AvailableBalance string `json:"availableBalance"`
	}
	if err := json.Unmarshal(body, &balances); err != nil {
		return decimal.Decimal{}, fmt.Errorf("decode balance: %w", err)
	}

	for _, b := range balances {
		if b.Asset != asset {
			continue
		}
		avail, err := decimal.NewFromString(b.AvailableBalance)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("parse balance %q: %w", b.AvailableBalance, err)
		}
		return avail, nil
	}
	return decimal.Decimal{}, fmt.Errorf("asset %s not in balance response", asset)
}

// GetOpenPositions returns all non-flat positions.
func (c *Client) GetOpenPositions(ctx context.Context) ([]exchange.Position, error) {
	body, err := c.doSigned(ctx, http.MethodGet, "/fapi/v2/positionRisk", url.Values{})
	if err != nil {
		return nil, err
	}

	var raw []struct {
		Symbol      string `json:"symbol"`
		PositionAmt string `json:"positionAmt"`
		EntryPrice  string `json:"entryPrice"`
		Leverage    string `json:"leverage"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode position risk: %w", err)
	}

	var positions []exchange.Position
	for _, p := range raw {
		amt, err := decimal.NewFromString(p.PositionAmt)
		if err != nil {
			return nil, fmt.Errorf("parse position amount %q: %w", p.PositionAmt, err)
		}
		if amt.IsZero() {
			continue
		}

		side := types.SideLong
		if amt.IsNegative() {
			side = types.SideShort
		}
		entry, err := decimal.NewFromString(p.EntryPrice)
		if err != nil {
			return nil, fmt.Errorf("parse entry price %q: %w", p.EntryPrice, err)
		}
		leverage, _ := strconv.Atoi(p.Leverage)

		positions = append(positions, exchange.Position{
			Symbol:     p.Symbol,
			Side:       side,
			Quantity:   amt.Abs(),
			EntryPrice: entry,
			Leverage:   leverage,
		})
	}
	return positions, nil
}

// GetSymbolRules fetches the symbol's precision filters from exchangeInfo.
func (c *Client) GetSymbolRules(ctx context.Context, symbol string) (*exchange.SymbolRules, error) {
	body, err := c.doPublic(ctx, "/fapi/v1/exchangeInfo", url.Values{})
	if err != nil {
		return nil, err
	}

	var info struct {
		Symbols []struct {
			Symbol            string `json:"symbol"`
			PricePrecision    int32  `json:"pricePrecision"`
			QuantityPrecision int32  `json:"quantityPrecision"`
			Filters           []struct {
				FilterType string `json:"filterType"`
				TickSize   string `json:"tickSize"`
				StepSize   string `json:"stepSize"`
			} `json:"filters"`
		} `json:"symbols"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("decode exchange info: %w", err)
	}

	for _, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}
		rules := &exchange.SymbolRules{
			Symbol:            symbol,
			PricePrecision:    s.PricePrecision,
			QuantityPrecision: s.QuantityPrecision,
		}
		for _, f := range s.Filters {
			switch f.FilterType {
			case "PRICE_FILTER":
				tick, err := decimal.NewFromString(f.TickSize)
				if err != nil {
					return nil, fmt.Errorf("parse tick size %q: %w", f.TickSize, err)
				}
				rules.PriceTick = tick
			case "LOT_SIZE":
				step, err := decimal.NewFromString(f.StepSize)
				if err != nil {
					return nil, fmt.Errorf("parse step size %q: %w", f.StepSize, err)
				}
				rules.QuantityStep = step
			}
		}
		return rules, nil
	}
	return nil, fmt.Errorf("%w: %s", types.ErrInvalidSymbol, symbol)
}

// SetLeverage sets leverage for a symbol.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("leverage", strconv.Itoa(leverage))

	_, err := c.doSigned(ctx, http.MethodPost, "/fapi/v1/leverage", params)
	return err
}

// SetMarginType sets margin type (ISOLATED or CROSSED). Binance rejects the
// call when the margin type already matches; that is not an error here.
func (c *Client) SetMarginType(ctx context.Context, symbol, marginType string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("marginType", strings.ToUpper(marginType))

	_, err := c.doSigned(ctx, http.MethodPost, "/fapi/v1/marginType", params)
	var apiErr *APIError
	if asAPIError(err, &apiErr) && apiErr.Code == codeNoNeedToChangeMargin {
		return nil
	}
	return err
}

// createListenKey starts a user-data stream session.
func (c *Client) createListenKey(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/fapi/v1/listenKey", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("X-MBX-APIKEY", c.cfg.APIKey)

	body, err := c.send(req)
	if err != nil {
		return "", fmt.Errorf("create listen key: %w", err)
	}

	var out struct {
		ListenKey string `json:"listenKey"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode listen key: %w", err)
	}
	return out.ListenKey, nil
}

// keepAliveListenKey extends the user-data stream session.
func (c *Client) keepAliveListenKey(ctx context.Context, listenKey string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/fapi/v1/listenKey?listenKey="+listenKey, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-MBX-APIKEY", c.cfg.APIKey)

	if _, err := c.send(req); err != nil {
		return fmt.Errorf("keepalive listen key: %w", err)
	}
	return nil
}

// doPublic sends an unsigned GET request.
func (c *Client) doPublic(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.send(req)
}

// doSigned signs the query with HMAC-SHA256 and sends the request.
func (c *Client) doSigned(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow, 10))
	params.Set("signature", c.sign(params.Encode()))

	encoded := params.Encode()
	endpoint := c.baseURL + path

	var (
		req *http.Request
		err error
	)
	switch method {
	case http.MethodGet, http.MethodDelete:
		req, err = http.NewRequestWithContext(ctx, method, endpoint+"?"+encoded, nil)
	default:
		req, err = http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(encoded))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", c.cfg.APIKey)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.send(req)
}

// send executes the request and maps API errors to sentinels.
func (c *Client) send(req *http.Request) ([]byte, error) {
	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrNotConnected, err)
	}
	defer func() { _ = res.Body.Close() }()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if res.StatusCode >= 300 {
		return nil, parseAPIError(res.StatusCode, body)
	}
	return body, nil
}

func (c *Client) sign(payload string) string {
	h := hmac.New(sha256.New, []byte(c.cfg.APISecret))
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

func parseLevels(raw [][2]string) ([]types.PriceLevel, error) {
	levels := make([]types.PriceLevel, 0, len(raw))
	for _, lv := range raw {
		price, err := decimal.NewFromString(lv[0])
		if err != nil {
			return nil, fmt.Errorf("parse price %q: %w", lv[0], err)
		}
		qty, err := decimal.NewFromString(lv[1])
		if err != nil {
			return nil, fmt.Errorf("parse quantity %q: %w", lv[1], err)
		}
		levels = append(levels, types.PriceLevel{Price: price, Quantity: qty})
	}
	return levels, nil
}
