package exchange

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/cenkalti/backoff/v4"
	"github.com/rxtech-lab/algoscript/internal/logger"
	"github.com/rxtech-lab/algoscript/internal/types"
	"github.com/rxtech-lab/algoscript/internal/utils"
	"github.com/rxtech-lab/algoscript/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const (
	// BinanceDecimalPrecision is the fallback quantity precision.
	// Symbol-specific LOT_SIZE filters are not consulted.
	BinanceDecimalPrecision = 8
	// DefaultMaxConcurrent bounds in-flight private endpoint calls.
	DefaultMaxConcurrent = 30
	DefaultMaxRetries    = 5
)

// Binance error codes that mean "slow down".
// Ref: https://developers.binance.com/docs/binance-spot-api-docs/errors
const (
	binanceTooManyRequests int64 = -1003
	binanceTooManyOrders   int64 = -1015
)

// CreateOrderService interface for creating orders.
type CreateOrderService interface {
	Symbol(symbol string) CreateOrderService
	Side(side binance.SideType) CreateOrderService
	Type(orderType binance.OrderType) CreateOrderService
	Quantity(quantity string) CreateOrderService
	Price(price string) CreateOrderService
	TimeInForce(tif binance.TimeInForceType) CreateOrderService
	Do(ctx context.Context) (*binance.CreateOrderResponse, error)
}

// BinanceClient abstracts the Binance client for testing.
type BinanceClient interface {
	NewCreateOrderService() CreateOrderService
}

type realBinanceClient struct {
	client *binance.Client
}

func (r *realBinanceClient) NewCreateOrderService() CreateOrderService {
	return &realCreateOrderService{service: r.client.NewCreateOrderService()}
}

type realCreateOrderService struct {
	service *binance.CreateOrderService
}

func (s *realCreateOrderService) Symbol(symbol string) CreateOrderService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realCreateOrderService) Side(side binance.SideType) CreateOrderService {
	s.service = s.service.Side(side)

	return s
}

func (s *realCreateOrderService) Type(orderType binance.OrderType) CreateOrderService {
	s.service = s.service.Type(orderType)

	return s
}

func (s *realCreateOrderService) Quantity(quantity string) CreateOrderService {
	s.service = s.service.Quantity(quantity)

	return s
}

func (s *realCreateOrderService) Price(price string) CreateOrderService {
	s.service = s.service.Price(price)

	return s
}

func (s *realCreateOrderService) TimeInForce(tif binance.TimeInForceType) CreateOrderService {
	s.service = s.service.TimeInForce(tif)

	return s
}

func (s *realCreateOrderService) Do(ctx context.Context) (*binance.CreateOrderResponse, error) {
	return s.service.Do(ctx)
}

// BinancePlacerConfig configures a BinancePlacer.
type BinancePlacerConfig struct {
	APIKey     string
	SecretKey  string
	BaseURL    string
	UseTestnet bool
	// MaxConcurrent bounds concurrent order requests. Zero uses DefaultMaxConcurrent.
	MaxConcurrent int
	// MaxRetries bounds retries after a rate-limit response. Zero uses DefaultMaxRetries.
	MaxRetries int
	// InitialBackoff is the first retry delay. Zero uses the backoff library default.
	InitialBackoff time.Duration
}

// BinancePlacer places spot orders on Binance.
type BinancePlacer struct {
	client           BinanceClient
	gate             *semaphore.Weighted
	maxRetries       int
	initialBackoff   time.Duration
	decimalPrecision int
	logger           *logger.Logger
}

// NewBinancePlacer creates a placer against the Binance spot API.
// If config.BaseURL is set, it takes precedence over UseTestnet.
func NewBinancePlacer(config BinancePlacerConfig, log *logger.Logger) (*BinancePlacer, error) {
	if config.APIKey == "" || config.SecretKey == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "binance api key and secret key are required")
	}

	if config.UseTestnet {
		binance.UseTestnet = true
	}

	client := binance.NewClient(config.APIKey, config.SecretKey)
	if config.BaseURL != "" {
		client.BaseURL = config.BaseURL
	}

	return newBinancePlacerWithClient(&realBinanceClient{client: client}, config, log), nil
}

// newBinancePlacerWithClient creates a placer with a custom client.
// This is used for testing with mock clients.
func newBinancePlacerWithClient(client BinanceClient, config BinancePlacerConfig, log *logger.Logger) *BinancePlacer {
	maxConcurrent := config.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}

	maxRetries := config.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	return &BinancePlacer{
		client:           client,
		gate:             semaphore.NewWeighted(int64(maxConcurrent)),
		maxRetries:       maxRetries,
		initialBackoff:   config.InitialBackoff,
		decimalPrecision: BinanceDecimalPrecision,
		logger:           log,
	}
}

// PlaceMarketOrder implements OrderPlacer.
func (b *BinancePlacer) PlaceMarketOrder(ctx context.Context, symbol string, side types.OrderSide, quantity float64) (Fill, error) {
	return b.placeOrder(ctx, symbol, side, types.OrderTypeMarket, quantity, 0)
}

// PlaceLimitOrder implements OrderPlacer. Limit orders are good till cancelled.
func (b *BinancePlacer) PlaceLimitOrder(ctx context.Context, symbol string, side types.OrderSide, quantity float64, price float64) (Fill, error) {
	if price <= 0 {
		return Fill{}, errors.New(errors.ErrCodeInvalidParameter, "limit price must be greater than zero")
	}

	return b.placeOrder(ctx, symbol, side, types.OrderTypeLimit, quantity, price)
}

func (b *BinancePlacer) placeOrder(ctx context.Context, symbol string, side types.OrderSide, orderType types.OrderType, quantity float64, price float64) (Fill, error) {
	var binanceSide binance.SideType

	switch side {
	case types.OrderSideBuy:
		binanceSide = binance.SideTypeBuy
	case types.OrderSideSell:
		binanceSide = binance.SideTypeSell
	default:
		return Fill{}, errors.Newf(errors.ErrCodeInvalidParameter, "unsupported order side: %s", side)
	}

	if quantity <= 0 {
		return Fill{}, errors.New(errors.ErrCodeInvalidParameter, "order quantity must be greater than zero")
	}

	roundedQuantity := utils.RoundToDecimalPrecision(quantity, b.decimalPrecision)
	if roundedQuantity <= 0 {
		return Fill{}, errors.Newf(errors.ErrCodeQuantityTooSmall,
			"order quantity %.8f is too small after rounding to %d decimal places",
			quantity, b.decimalPrecision)
	}

	if err := b.gate.Acquire(ctx, 1); err != nil {
		return Fill{}, errors.Wrap(errors.ErrCodeExchangeNotReady, "order gate closed", err)
	}
	defer b.gate.Release(1)

	var response *binance.CreateOrderResponse

	attempt := 0
	operation := func() error {
		attempt++

		service := b.client.NewCreateOrderService().
			Symbol(symbol).
			Side(binanceSide).
			Quantity(strconv.FormatFloat(roundedQuantity, 'f', b.decimalPrecision, 64))

		if orderType == types.OrderTypeLimit {
			service = service.
				Type(binance.OrderTypeLimit).
				Price(strconv.FormatFloat(price, 'f', -1, 64)).
				TimeInForce(binance.TimeInForceTypeGTC)
		} else {
			service = service.Type(binance.OrderTypeMarket)
		}

		res, err := service.Do(ctx)
		if err == nil {
			response = res

			return nil
		}

		if isRateLimited(err) {
			b.logger.Warn("Binance rate limit hit, backing off",
				zap.String("symbol", symbol),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)

			return err
		}

		return backoff.Permanent(err)
	}

	if err := backoff.Retry(operation, b.backoff(ctx)); err != nil {
		if isRateLimited(err) {
			return Fill{}, errors.Wrap(errors.ErrCodeRateLimited, "binance rate limit exceeded", err)
		}

		if common.IsAPIError(err) {
			return Fill{}, errors.Wrap(errors.ErrCodeExchangeRejected, "binance rejected order", err)
		}

		return Fill{}, errors.Wrap(errors.ErrCodeOrderFailed, "failed to place order on Binance", err)
	}

	fill := responseToFill(response, roundedQuantity, price)
	b.logger.Info("Order placed on Binance",
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.String("order_id", fill.OrderID),
		zap.String("status", string(fill.Status)),
		zap.Float64("price", fill.Price),
		zap.Float64("quantity", fill.Quantity),
	)

	return fill, nil
}

func (b *BinancePlacer) backoff(ctx context.Context) backoff.BackOff {
	exponential := backoff.NewExponentialBackOff()
	if b.initialBackoff > 0 {
		exponential.InitialInterval = b.initialBackoff
		exponential.MaxInterval = 10 * b.initialBackoff
	}

	return backoff.WithContext(backoff.WithMaxRetries(exponential, uint64(b.maxRetries)), ctx)
}

func isRateLimited(err error) bool {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == binanceTooManyRequests || apiErr.Code == binanceTooManyOrders
	}

	return strings.Contains(err.Error(), "429")
}

// responseToFill reads the average fill price from the cumulative quote quantity.
func responseToFill(res *binance.CreateOrderResponse, requestedQuantity float64, limitPrice float64) Fill {
	fill := Fill{
		OrderID:  strconv.FormatInt(res.OrderID, 10),
		Status:   toOrderStatus(res.Status),
		Price:    limitPrice,
		Quantity: requestedQuantity,
	}

	executed, _ := strconv.ParseFloat(res.ExecutedQuantity, 64)
	quote, _ := strconv.ParseFloat(res.CummulativeQuoteQuantity, 64)

	if executed > 0 {
		fill.Quantity = executed
		if quote > 0 {
			fill.Price = quote / executed
		}
	}

	if fill.Price == 0 {
		if price, err := strconv.ParseFloat(res.Price, 64); err == nil {
			fill.Price = price
		}
	}

	return fill
}

func toOrderStatus(status binance.OrderStatusType) types.OrderStatus {
	switch status {
	case binance.OrderStatusTypeFilled:
		return types.OrderStatusFilled
	case binance.OrderStatusTypePartiallyFilled:
		return types.OrderStatusPartiallyFilled
	case binance.OrderStatusTypeNew:
		return types.OrderStatusPending
	default:
		return types.OrderStatusRejected
	}
}
