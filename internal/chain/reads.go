package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ContractReader exposes the read-only contract views the flow depends on.
// Failures surface as errors; callers treat an errored read as "unknown" and
// apply their own fail-safe defaults.
type ContractReader struct {
	client *Client
	token  common.Address
	pack   common.Address
}

// NewContractReader binds a client to the payment token and pack contract
// addresses.
func NewContractReader(client *Client, token, pack common.Address) *ContractReader {
	return &ContractReader{client: client, token: token, pack: pack}
}

// PackContract returns the pack contract address.
func (r *ContractReader) PackContract() common.Address { return r.pack }

// PaymentToken returns the payment token address.
func (r *ContractReader) PaymentToken() common.Address { return r.token }

// BalanceOf returns the owner's payment token balance in minor units.
func (r *ContractReader) BalanceOf(ctx context.Context, owner string) (*big.Int, error) {
	return r.readUint(ctx, r.token, PaymentTokenABI, "balanceOf", common.HexToAddress(owner))
}

// Allowance returns how much the spender may pull from the owner.
func (r *ContractReader) Allowance(ctx context.Context, owner, spender string) (*big.Int, error) {
	return r.readUint(ctx, r.token, PaymentTokenABI, "allowance", common.HexToAddress(owner), common.HexToAddress(spender))
}

// TotalSupply returns the number of collectibles minted so far.
func (r *ContractReader) TotalSupply(ctx context.Context) (*big.Int, error) {
	return r.readUint(ctx, r.pack, PackContractABI, "totalSupply")
}

func (r *ContractReader) readUint(ctx context.Context, to common.Address, contract abi.ABI, method string, args ...interface{}) (*big.Int, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	out, err := r.client.CallContract(ctx, to, data)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	values, err := contract.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned no values", method)
	}
	result, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s returned unexpected type %T", method, values[0])
	}
	return result, nil
}
