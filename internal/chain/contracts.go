package chain

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// PaymentTokenABIJSON is the subset of the ERC-20 interface the flow needs:
// the spending authorization pair plus the balance read.
const PaymentTokenABIJSON = `[
	{
		"type": "function",
		"name": "approve",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "spender", "type": "address"},
			{"name": "value",   "type": "uint256"}
		],
		"outputs": [{"name": "", "type": "bool"}]
	},
	{
		"type": "function",
		"name": "allowance",
		"stateMutability": "view",
		"inputs": [
			{"name": "owner",   "type": "address"},
			{"name": "spender", "type": "address"}
		],
		"outputs": [{"name": "", "type": "uint256"}]
	},
	{
		"type": "function",
		"name": "balanceOf",
		"stateMutability": "view",
		"inputs": [{"name": "owner", "type": "address"}],
		"outputs": [{"name": "balance", "type": "uint256"}]
	}
]`

// PackContractABIJSON is the pack contract surface: the mint entrypoint, the
// aggregate supply read, and the PackOpened event emitted once per minted
// collectible.
const PackContractABIJSON = `[
	{
		"type": "function",
		"name": "openPacks",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "count", "type": "uint256"},
			{"name": "fid",   "type": "string"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "totalSupply",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [{"name": "", "type": "uint256"}]
	},
	{
		"type": "event",
		"name": "PackOpened",
		"anonymous": false,
		"inputs": [
			{"name": "buyer",   "type": "address", "indexed": true},
			{"name": "tokenId", "type": "uint256", "indexed": false},
			{"name": "artId",   "type": "uint256", "indexed": false},
			{"name": "fid",     "type": "string",  "indexed": false}
		]
	}
]`

var (
	// PaymentTokenABI is the parsed payment token interface.
	PaymentTokenABI = mustParseABI(PaymentTokenABIJSON)
	// PackContractABI is the parsed pack contract interface.
	PackContractABI = mustParseABI(PackContractABIJSON)
	// PackOpenedID is the topic hash identifying PackOpened logs.
	PackOpenedID = PackContractABI.Events["PackOpened"].ID
)

func mustParseABI(definition string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic(err)
	}
	return parsed
}

// ApproveCallData encodes an approve(spender, value) call.
func ApproveCallData(spender common.Address, value *big.Int) ([]byte, error) {
	return PaymentTokenABI.Pack("approve", spender, value)
}

// OpenPacksCallData encodes an openPacks(count, fid) call.
func OpenPacksCallData(count *big.Int, externalID string) ([]byte, error) {
	return PackContractABI.Pack("openPacks", count, externalID)
}
