package market

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrInvalidValue is returned when a primitive fails validation.
var ErrInvalidValue = errors.New("invalid value")

// LogicalTime is a monotonic step counter. It carries no wall-clock meaning.
type LogicalTime uint64

// ParseLogicalTime parses a non-negative base-10 integer.
func ParseLogicalTime(s string) (LogicalTime, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: logical time %q must be a non-negative integer", ErrInvalidValue, s)
	}
	return LogicalTime(n), nil
}

// Add returns t advanced by d steps.
func (t LogicalTime) Add(d uint64) LogicalTime {
	return t + LogicalTime(d)
}

func (t LogicalTime) String() string {
	return strconv.FormatUint(uint64(t), 10)
}

var (
	decimalPattern       = regexp.MustCompile(`^[+-]?\d+(\.\d+)?$`)
	decisionClassPattern = regexp.MustCompile(`^.+\..+\..+@v\d+$`)
	strategyIDPattern    = regexp.MustCompile(`^.+@v\d+$`)
	assetIDPattern       = regexp.MustCompile(`^[A-Z0-9]+$`)
)

// Decimal is an opaque decimal string. Decisions never do arithmetic on it;
// Dec exists for read-side aggregation only.
type Decimal string

// Zero is the quantity of a closed position.
const Zero Decimal = "0"

func NewDecimal(s string) (Decimal, error) {
	if !decimalPattern.MatchString(s) {
		return "", fmt.Errorf("%w: decimal %q", ErrInvalidValue, s)
	}
	return Decimal(s), nil
}

// MustDecimal panics on malformed input. Use for constants only.
func MustDecimal(s string) Decimal {
	d, err := NewDecimal(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Decimal) String() string { return string(d) }

// Dec converts to a shopspring decimal. An empty Decimal is zero; anything
// else must match the DecimalString format.
func (d Decimal) Dec() (decimal.Decimal, error) {
	if d == "" {
		return decimal.Zero, nil
	}
	if !decimalPattern.MatchString(string(d)) {
		return decimal.Zero, fmt.Errorf("%w: decimal %q", ErrInvalidValue, string(d))
	}
	return decimal.NewFromString(string(d))
}

func (d *Decimal) UnmarshalText(b []byte) error {
	v, err := NewDecimal(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// UUID is a canonical 8-4-4-4-12 hex identifier.
type UUID string

// ParseUUID accepts only the 36 character hyphenated form, either case, and
// returns it in lower case.
func ParseUUID(s string) (UUID, error) {
	if len(s) != 36 {
		return "", fmt.Errorf("%w: uuid %q", ErrInvalidValue, s)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: uuid %q: %v", ErrInvalidValue, s, err)
	}
	return UUID(u.String()), nil
}

func (u UUID) String() string { return string(u) }

func (u *UUID) UnmarshalText(b []byte) error {
	v, err := ParseUUID(string(b))
	if err != nil {
		return err
	}
	*u = v
	return nil
}

// MarketID names a tradable market, e.g. "BTCUSDT".
type MarketID string

func NewMarketID(s string) (MarketID, error) {
	if s == "" {
		return "", fmt.Errorf("%w: market id is empty", ErrInvalidValue)
	}
	return MarketID(s), nil
}

// StrategyID has the form <name>@v<version>.
type StrategyID string

func NewStrategyID(s string) (StrategyID, error) {
	if !strategyIDPattern.MatchString(s) {
		return "", fmt.Errorf("%w: strategy id %q must match <name>@v<version>", ErrInvalidValue, s)
	}
	return StrategyID(s), nil
}

// DecisionClass has the form <domain>.<action>.<variant>@v<version>.
type DecisionClass string

func NewDecisionClass(s string) (DecisionClass, error) {
	if !decisionClassPattern.MatchString(s) {
		return "", fmt.Errorf("%w: decision class %q must match <domain>.<action>.<variant>@v<version>", ErrInvalidValue, s)
	}
	return DecisionClass(s), nil
}

// AssetID is an uppercase alphanumeric asset symbol.
type AssetID string

func NewAssetID(s string) (AssetID, error) {
	if !assetIDPattern.MatchString(s) {
		return "", fmt.Errorf("%w: asset id %q must be uppercase alphanumeric", ErrInvalidValue, s)
	}
	return AssetID(s), nil
}

type ExchangeID string

const BinanceSpot ExchangeID = "BINANCE_SPOT"

func NewExchangeID(s string) (ExchangeID, error) {
	if ExchangeID(s) != BinanceSpot {
		return "", fmt.Errorf("%w: unsupported exchange %q", ErrInvalidValue, s)
	}
	return BinanceSpot, nil
}

// Market describes a spot pair on a supported exchange.
type Market struct {
	ID       MarketID   `json:"marketId" yaml:"id"`
	Base     AssetID    `json:"baseAssetId" yaml:"base"`
	Quote    AssetID    `json:"quoteAssetId" yaml:"quote"`
	Exchange ExchangeID `json:"exchangeId" yaml:"exchange"`
}

// Validate checks every field of m.
func (m Market) Validate() error {
	if _, err := NewMarketID(string(m.ID)); err != nil {
		return err
	}
	if _, err := NewAssetID(string(m.Base)); err != nil {
		return fmt.Errorf("market %s base: %w", m.ID, err)
	}
	if _, err := NewAssetID(string(m.Quote)); err != nil {
		return fmt.Errorf("market %s quote: %w", m.ID, err)
	}
	if _, err := NewExchangeID(string(m.Exchange)); err != nil {
		return fmt.Errorf("market %s: %w", m.ID, err)
	}
	return nil
}
