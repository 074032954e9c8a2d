package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"bazaar/native/market"
)

// Minimal ABI fragments for the two asset registry standards the engine
// trades over. isApprovedForAll shares a signature across both.
const uniqueABI = `[
	{"name":"ownerOf","type":"function","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
	{"name":"isApprovedForAll","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"operator","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"safeTransferFrom","type":"function","stateMutability":"nonpayable","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],"outputs":[]}
]`

const fungibleABI = `[
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"},{"name":"id","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"isApprovedForAll","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"},{"name":"operator","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"safeTransferFrom","type":"function","stateMutability":"nonpayable","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"id","type":"uint256"},{"name":"amount","type":"uint256"},{"name":"data","type":"bytes"}],"outputs":[]}
]`

const callTimeout = 30 * time.Second

// Registry is the EVM-backed asset ownership gateway. The engine must be the
// delegated operator for every asset it moves: transfers are signed with the
// configured operator key.
type Registry struct {
	client      *ethclient.Client
	chainID     *big.Int
	operatorKey *ecdsa.PrivateKey
	operator    common.Address
	unique      abi.ABI
	fungible    abi.ABI
	waitMined   bool
}

// New dials the chain RPC endpoint and prepares the operator signer. The key
// is hex-encoded, with or without a 0x prefix.
func New(rpcURL string, chainID int64, operatorKeyHex string) (*Registry, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("evm gateway: dial %s: %w", rpcURL, err)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(operatorKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("evm gateway: parse operator key: %w", err)
	}
	uniqueParsed, err := abi.JSON(strings.NewReader(uniqueABI))
	if err != nil {
		return nil, err
	}
	fungibleParsed, err := abi.JSON(strings.NewReader(fungibleABI))
	if err != nil {
		return nil, err
	}
	return &Registry{
		client:      client,
		chainID:     big.NewInt(chainID),
		operatorKey: key,
		operator:    crypto.PubkeyToAddress(key.PublicKey),
		unique:      uniqueParsed,
		fungible:    fungibleParsed,
		waitMined:   true,
	}, nil
}

// Operator returns the address delegations must name.
func (r *Registry) Operator() common.Address { return r.operator }

// Close releases the underlying RPC client.
func (r *Registry) Close() { r.client.Close() }

// OwnerOf resolves the single owner of a unique token. Contracts without
// per-token ownership revert, which surfaces as an error here.
func (r *Registry) OwnerOf(asset common.Address, tokenID *big.Int) (common.Address, error) {
	var out []interface{}
	if err := r.call(asset, r.unique, &out, "ownerOf", tokenID); err != nil {
		return common.Address{}, err
	}
	owner, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("evm gateway: unexpected ownerOf result")
	}
	return owner, nil
}

// BalanceOf reports the owner's unit balance for the token id.
func (r *Registry) BalanceOf(asset common.Address, owner common.Address, tokenID *big.Int) (*big.Int, error) {
	var out []interface{}
	if err := r.call(asset, r.fungible, &out, "balanceOf", owner, tokenID); err != nil {
		return nil, err
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("evm gateway: unexpected balanceOf result")
	}
	return balance, nil
}

// IsDelegated reports whether the owner approved the engine operator for the
// asset contract.
func (r *Registry) IsDelegated(asset common.Address, owner common.Address) (bool, error) {
	var out []interface{}
	if err := r.call(asset, r.unique, &out, "isApprovedForAll", owner, r.operator); err != nil {
		return false, err
	}
	approved, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("evm gateway: unexpected isApprovedForAll result")
	}
	return approved, nil
}

// Transfer moves quantity units from the seller to the recipient using the
// operator's delegation. The kind fixed on the market record selects the
// route: unique tokens take the three-argument transfer, the quantity-bearing
// path passes the amount explicitly.
func (r *Registry) Transfer(asset common.Address, from, to common.Address, tokenID *big.Int, quantity uint64, kind market.AssetKind) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	opts, err := bind.NewKeyedTransactorWithChainID(r.operatorKey, r.chainID)
	if err != nil {
		return fmt.Errorf("evm gateway: build transactor: %w", err)
	}
	opts.Context = ctx

	const method = "safeTransferFrom"
	if kind == market.AssetUnique {
		contract := r.bound(asset, r.unique)
		tx, err := contract.Transact(opts, method, from, to, tokenID)
		if err != nil {
			return fmt.Errorf("evm gateway: transfer: %w", err)
		}
		return r.await(ctx, tx.Hash())
	}
	contract := r.bound(asset, r.fungible)
	tx, err := contract.Transact(opts, method, from, to, tokenID, new(big.Int).SetUint64(quantity), []byte{})
	if err != nil {
		return fmt.Errorf("evm gateway: transfer: %w", err)
	}
	return r.await(ctx, tx.Hash())
}

func (r *Registry) call(asset common.Address, parsed abi.ABI, out *[]interface{}, method string, args ...interface{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	contract := r.bound(asset, parsed)
	if err := contract.Call(&bind.CallOpts{Context: ctx}, out, method, args...); err != nil {
		return fmt.Errorf("evm gateway: %s: %w", method, err)
	}
	if len(*out) == 0 {
		return fmt.Errorf("evm gateway: %s returned no values", method)
	}
	return nil
}

func (r *Registry) bound(asset common.Address, parsed abi.ABI) *bind.BoundContract {
	return bind.NewBoundContract(asset, parsed, r.client, r.client, r.client)
}

func (r *Registry) await(ctx context.Context, txHash common.Hash) error {
	if !r.waitMined {
		return nil
	}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		receipt, err := r.client.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			if receipt.Status == 0 {
				return fmt.Errorf("evm gateway: transfer %s reverted", txHash.Hex())
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("evm gateway: transfer %s not mined: %w", txHash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}
