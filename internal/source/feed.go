package source

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	aggregatorV3ABIJSON = `[
{"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"latestRoundData","outputs":[{"internalType":"uint80","name":"roundId","type":"uint80"},{"internalType":"int256","name":"answer","type":"int256"},{"internalType":"uint256","name":"startedAt","type":"uint256"},{"internalType":"uint256","name":"updatedAt","type":"uint256"},{"internalType":"uint80","name":"answeredInRound","type":"uint80"}],"stateMutability":"view","type":"function"}
]`
)

var aggregatorV3ABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(aggregatorV3ABIJSON))
	if err != nil {
		panic("failed to parse AggregatorV3 ABI: " + err.Error())
	}
	aggregatorV3ABI = parsed
}

type contractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// FeedOptions parameterise the on-chain oracle source.
type FeedOptions struct {
	RPCURL  string
	Timeout time.Duration
	// MaxAge marks answers older than this as unavailable. Zero disables the check.
	MaxAge time.Duration
}

// Feed reads Chainlink AggregatorV3 answers over Ethereum RPC. The instrument
// is the aggregator contract address.
type Feed struct {
	opts   FeedOptions
	logger zerolog.Logger
	now    func() time.Time
	dial   func(ctx context.Context, rawURL string) (contractCaller, error)

	mu       sync.Mutex
	client   contractCaller
	decimals map[common.Address]uint8
}

// NewFeed builds a new oracle feed source.
func NewFeed(opts FeedOptions, logger zerolog.Logger) *Feed {
	return &Feed{
		opts:     opts,
		logger:   logger.With().Str("component", "feed_source").Logger(),
		now:      time.Now,
		dial:     dialEthereum,
		decimals: make(map[common.Address]uint8),
	}
}

func dialEthereum(ctx context.Context, rawURL string) (contractCaller, error) {
	return ethclient.DialContext(ctx, rawURL)
}

// Fetch returns the latest answer of the aggregator at address.
func (f *Feed) Fetch(ctx context.Context, address string) (decimal.Decimal, error) {
	if f.opts.RPCURL == "" {
		return decimal.Decimal{}, errors.New("ethereum rpc url not configured")
	}
	if !common.IsHexAddress(address) {
		return decimal.Decimal{}, fmt.Errorf("invalid feed address %q", address)
	}

	timeout := f.opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := f.getClient(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}

	addr := common.HexToAddress(address)
	places, err := f.feedDecimals(ctx, client, addr)
	if err != nil {
		return decimal.Decimal{}, err
	}

	outputs, err := call(ctx, client, addr, "latestRoundData")
	if err != nil {
		return decimal.Decimal{}, err
	}
	if len(outputs) != 5 {
		return decimal.Decimal{}, errors.New("unexpected latestRoundData response")
	}

	answer, ok := outputs[1].(*big.Int)
	if !ok {
		return decimal.Decimal{}, errors.New("failed to decode latestRoundData answer")
	}
	updatedAt, ok := outputs[3].(*big.Int)
	if !ok {
		return decimal.Decimal{}, errors.New("failed to decode latestRoundData updatedAt")
	}

	if answer.Sign() <= 0 || updatedAt.Sign() == 0 {
		return decimal.Decimal{}, fmt.Errorf("feed %s has no answer: %w", addr.Hex(), ErrUnavailable)
	}
	if f.opts.MaxAge > 0 {
		age := f.now().Sub(time.Unix(updatedAt.Int64(), 0))
		if age > f.opts.MaxAge {
			return decimal.Decimal{}, fmt.Errorf("feed %s answer is %s old: %w", addr.Hex(), age.Truncate(time.Second), ErrUnavailable)
		}
	}

	price := decimal.NewFromBigInt(answer, -int32(places))
	f.logger.Debug().Str("feed", addr.Hex()).Str("answer", price.String()).Msg("feed answer fetched")
	return price, nil
}

func (f *Feed) feedDecimals(ctx context.Context, client contractCaller, addr common.Address) (uint8, error) {
	f.mu.Lock()
	places, ok := f.decimals[addr]
	f.mu.Unlock()
	if ok {
		return places, nil
	}

	outputs, err := call(ctx, client, addr, "decimals")
	if err != nil {
		return 0, err
	}
	if len(outputs) != 1 {
		return 0, errors.New("unexpected decimals response")
	}
	places, ok = outputs[0].(uint8)
	if !ok {
		return 0, errors.New("failed to decode decimals output")
	}

	f.mu.Lock()
	f.decimals[addr] = places
	f.mu.Unlock()
	return places, nil
}

func call(ctx context.Context, client contractCaller, addr common.Address, method string) ([]interface{}, error) {
	payload, err := aggregatorV3ABI.Pack(method)
	if err != nil {
		return nil, err
	}
	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	return aggregatorV3ABI.Unpack(method, res)
}

func (f *Feed) getClient(ctx context.Context) (contractCaller, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.client != nil {
		return f.client, nil
	}

	client, err := f.dial(ctx, f.opts.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial ethereum rpc: %w", err)
	}
	f.client = client
	return client, nil
}

var _ Source = (*Feed)(nil)
