package market

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// AssetGateway is the external asset registry the engine validates ownership
// against and asks to move assets on settlement. Implementations are treated
// as untrusted and potentially reentrant: the engine always settles its own
// state before invoking Transfer.
type AssetGateway interface {
	// OwnerOf resolves the single owner of a unique token. Implementations
	// return an error for token standards without per-token ownership.
	OwnerOf(asset common.Address, tokenID *big.Int) (common.Address, error)
	// BalanceOf reports how many units of tokenID the owner holds.
	BalanceOf(asset common.Address, owner common.Address, tokenID *big.Int) (*big.Int, error)
	// IsDelegated reports whether the owner has delegated transfer rights
	// over the asset contract to the engine's operator.
	IsDelegated(asset common.Address, owner common.Address) (bool, error)
	// Transfer moves quantity units of tokenID from the seller to the
	// recipient. The kind fixed at record creation selects the transfer
	// route, so implementations never have to re-derive it. Invoked only
	// after the engine's own record is terminal.
	Transfer(asset common.Address, from, to common.Address, tokenID *big.Int, quantity uint64, kind AssetKind) error
}

// resolveKind decides the asset variant by whichever ownership check passes.
// A quantity above one forces the quantity-bearing path: unique tokens have
// exactly one unit per id.
func resolveKind(gw AssetGateway, seller, asset common.Address, tokenID *big.Int, quantity uint64) (AssetKind, error) {
	if quantity == 1 {
		if owner, err := gw.OwnerOf(asset, tokenID); err == nil {
			if owner != seller {
				return 0, ErrNotOwner
			}
			return AssetUnique, nil
		}
	}
	balance, err := gw.BalanceOf(asset, seller, tokenID)
	if err != nil {
		return 0, ErrNotOwner
	}
	if balance == nil || balance.Cmp(new(big.Int).SetUint64(quantity)) < 0 {
		return 0, ErrNotOwner
	}
	return AssetFungible, nil
}

// checkHolding re-validates that the seller still owns (or holds at least one
// unit of) the asset and that delegation to the engine is intact.
func checkHolding(gw AssetGateway, seller, asset common.Address, tokenID *big.Int, kind AssetKind) error {
	switch kind {
	case AssetUnique:
		owner, err := gw.OwnerOf(asset, tokenID)
		if err != nil || owner != seller {
			return ErrNotOwner
		}
	case AssetFungible:
		balance, err := gw.BalanceOf(asset, seller, tokenID)
		if err != nil || balance == nil || balance.Sign() < 1 {
			return ErrNotOwner
		}
	default:
		return ErrNotOwner
	}
	delegated, err := gw.IsDelegated(asset, seller)
	if err != nil || !delegated {
		return ErrNotDelegated
	}
	return nil
}
