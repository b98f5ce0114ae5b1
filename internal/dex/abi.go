package dex

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Read-only surface of a Uniswap-V2-compatible pair.
const v2PairABIJSON = `[
  {
    "inputs": [],
    "name": "token0",
    "outputs": [{"internalType": "address", "name": "", "type": "address"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "token1",
    "outputs": [{"internalType": "address", "name": "", "type": "address"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "getReserves",
    "outputs": [
      {"internalType": "uint112", "name": "_reserve0", "type": "uint112"},
      {"internalType": "uint112", "name": "_reserve1", "type": "uint112"},
      {"internalType": "uint32", "name": "_blockTimestampLast", "type": "uint32"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "totalSupply",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

var (
	v2PairABI     abi.ABI
	v2PairABIOnce sync.Once
	v2PairABIErr  error
)

// V2PairABI returns the parsed pair ABI.
func V2PairABI() (abi.ABI, error) {
	v2PairABIOnce.Do(func() {
		v2PairABI, v2PairABIErr = abi.JSON(strings.NewReader(v2PairABIJSON))
	})
	return v2PairABI, v2PairABIErr
}
