package dex

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityPool/internal/chain"
	"liquidityPool/internal/model"
)

// TokenMetaCache caches token metadata by address.
type TokenMetaCache struct {
	mu   sync.RWMutex
	data map[common.Address]model.TokenMeta
}

func NewTokenMetaCache() *TokenMetaCache {
	return &TokenMetaCache{data: make(map[common.Address]model.TokenMeta)}
}

func (c *TokenMetaCache) Get(address common.Address) (model.TokenMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *TokenMetaCache) Set(address common.Address, meta model.TokenMeta) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}

// FetchPairMeta loads token addresses, reserves and token metadata of a pair.
// A nil block reads the latest state.
func FetchPairMeta(ctx context.Context, caller chain.Caller, pair common.Address, block *big.Int, tokenCache *TokenMetaCache, logger *zap.Logger) (model.PairMeta, error) {
	if caller == nil {
		return model.PairMeta{}, fmt.Errorf("chain client is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	pairABI, err := V2PairABI()
	if err != nil {
		return model.PairMeta{}, fmt.Errorf("parse pair abi: %w", err)
	}

	values, err := callMethod(ctx, caller, pair, pairABI, "token0", block)
	if err != nil {
		return model.PairMeta{}, err
	}
	token0, err := asAddress(values[0])
	if err != nil {
		return model.PairMeta{}, fmt.Errorf("token0: %w", err)
	}

	values, err = callMethod(ctx, caller, pair, pairABI, "token1", block)
	if err != nil {
		return model.PairMeta{}, err
	}
	token1, err := asAddress(values[0])
	if err != nil {
		return model.PairMeta{}, fmt.Errorf("token1: %w", err)
	}

	values, err = callMethod(ctx, caller, pair, pairABI, "getReserves", block)
	if err != nil {
		return model.PairMeta{}, err
	}
	if len(values) != 3 {
		return model.PairMeta{}, fmt.Errorf("getReserves return size %d", len(values))
	}
	reserve0, err := asBigInt(values[0])
	if err != nil {
		return model.PairMeta{}, fmt.Errorf("reserve0: %w", err)
	}
	reserve1, err := asBigInt(values[1])
	if err != nil {
		return model.PairMeta{}, fmt.Errorf("reserve1: %w", err)
	}
	tsLast, ok := values[2].(uint32)
	if !ok {
		return model.PairMeta{}, fmt.Errorf("blockTimestampLast unexpected type %T", values[2])
	}

	meta := model.PairMeta{
		Address:            pair.Hex(),
		Token0:             tokenMeta(ctx, caller, token0, tokenCache, logger),
		Token1:             tokenMeta(ctx, caller, token1, tokenCache, logger),
		Reserve0:           reserve0.String(),
		Reserve1:           reserve1.String(),
		BlockTimestampLast: tsLast,
	}
	return meta, nil
}

// tokenMeta returns cached metadata, falling back to the bare address when the
// token does not implement the optional ERC20 fields.
func tokenMeta(ctx context.Context, caller chain.Caller, token common.Address, cache *TokenMetaCache, logger *zap.Logger) model.TokenMeta {
	if cache != nil {
		if meta, ok := cache.Get(token); ok {
			return meta
		}
	}
	meta, err := FetchTokenMeta(ctx, caller, token, logger)
	if err != nil {
		logger.Warn("token metadata fetch failed", zap.String("token", token.Hex()), zap.Error(err))
	}
	if cache != nil {
		cache.Set(token, meta)
	}
	return meta
}

// FetchTokenMeta loads token metadata via ERC20 calls.
func FetchTokenMeta(ctx context.Context, caller chain.Caller, token common.Address, logger *zap.Logger) (model.TokenMeta, error) {
	meta := model.TokenMeta{Address: token.Hex()}
	if caller == nil {
		return meta, fmt.Errorf("chain client is nil")
	}

	stringABI, err := ERC20ABI()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	bytes32ABI, err := erc20ABIBytes32Instance()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	values, err := callMethod(ctx, caller, token, stringABI, "decimals", nil)
	if err != nil {
		return meta, err
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return meta, err
	}
	meta.Decimals = decimals

	if values, err := callMethod(ctx, caller, token, stringABI, "symbol", nil); err == nil {
		if symbol, ok := values[0].(string); ok {
			meta.Symbol = symbol
		}
	} else if values, err := callMethod(ctx, caller, token, bytes32ABI, "symbol", nil); err == nil {
		if symbol, ok := bytes32ToString(values[0]); ok {
			meta.Symbol = symbol
		}
	} else if logger != nil {
		logger.Debug("symbol call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	if values, err := callMethod(ctx, caller, token, stringABI, "name", nil); err == nil {
		if name, ok := values[0].(string); ok {
			meta.Name = name
		}
	} else if values, err := callMethod(ctx, caller, token, bytes32ABI, "name", nil); err == nil {
		if name, ok := bytes32ToString(values[0]); ok {
			meta.Name = name
		}
	} else if logger != nil {
		logger.Debug("name call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	return meta, nil
}

// FetchBalance returns the ERC20 balance of owner at block.
func FetchBalance(ctx context.Context, caller chain.Caller, token, owner common.Address, block *big.Int) (*uint256.Int, error) {
	if caller == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	erc20, err := ERC20ABI()
	if err != nil {
		return nil, err
	}
	values, err := callMethod(ctx, caller, token, erc20, "balanceOf", block, owner)
	if err != nil {
		return nil, err
	}
	bal, err := asBigInt(values[0])
	if err != nil {
		return nil, fmt.Errorf("balanceOf: %w", err)
	}
	return toUint256(bal)
}

func callMethod(ctx context.Context, caller chain.Caller, to common.Address, parsed abi.ABI, method string, block *big.Int, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &to, Data: data}
	resp, err := caller.CallContract(ctx, msg, block)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned no values", method)
	}
	return values, nil
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case *big.Int:
		if !v.IsUint64() || v.Uint64() > 255 {
			return 0, fmt.Errorf("decimals out of range: %s", v)
		}
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}

func toUint256(v *big.Int) (*uint256.Int, error) {
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %s", v)
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("amount exceeds 256 bits: %s", v)
	}
	return out, nil
}
