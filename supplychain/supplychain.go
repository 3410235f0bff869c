// Package supplychain is a typed client for the SupplyChain contract in
// contracts/SupplyChain.sol.
package supplychain

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/flashbots/suapp-supplychain/framework"
	"github.com/holiman/uint256"
)

const (
	ContractName = "SupplyChain"

	MethodCreateProduct = "createProduct"
	MethodFetchProduct  = "fetchProduct"
	MethodShipProduct   = "shipProduct"
	MethodProductCount  = "productCount"

	EventProductCreated = "ProductCreated"
	EventProductShipped = "ProductShipped"
)

var (
	ErrEmptyName      = errors.New("product name is empty")
	ErrZeroPrice      = errors.New("product price must be positive")
	ErrMissingEvent   = errors.New("receipt carries no " + EventProductCreated + " event")
	errUnexpectedType = errors.New("unexpected output type")
)

//go:embed SupplyChain.abi.json
var abiJSON string

var (
	parsedOnce sync.Once
	parsedAbi  *abi.ABI
	parseErr   error
)

// ABI returns the parsed contract ABI.
func ABI() (*abi.ABI, error) {
	parsedOnce.Do(func() {
		a, err := abi.JSON(strings.NewReader(abiJSON))
		if err != nil {
			parseErr = fmt.Errorf("failed to parse %s abi: %w", ContractName, err)
			return
		}
		parsedAbi = &a
	})
	return parsedAbi, parseErr
}

type State uint8

const (
	StateCreated State = iota
	StateShipped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateShipped:
		return "shipped"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

type Product struct {
	ID          *big.Int
	Name        string
	Description string
	Price       *uint256.Int
	State       State
	Owner       common.Address
}

func (p *Product) String() string {
	return fmt.Sprintf("#%s %q (%s) price=%s state=%s owner=%s",
		p.ID, p.Name, p.Description, p.Price.ToBig(), p.State, p.Owner.Hex())
}

type SupplyChain struct {
	contract *framework.Contract
}

// Bind wraps an existing contract reference. Mutating calls need a reference
// that carries a signer, see framework.Contract.Ref.
func Bind(contract *framework.Contract) *SupplyChain {
	return &SupplyChain{contract: contract}
}

func NewSupplyChain(fr *framework.Framework, addr common.Address, signer *framework.PrivKey) (*SupplyChain, error) {
	contractAbi, err := ABI()
	if err != nil {
		return nil, err
	}
	return Bind(fr.ContractAt(addr, contractAbi).Ref(signer)), nil
}

func (s *SupplyChain) Address() common.Address {
	return s.contract.Address()
}

// CreateProduct registers a product owned by the signer and returns the id
// assigned by the contract.
func (s *SupplyChain) CreateProduct(ctx context.Context, name, description string, price *uint256.Int) (*big.Int, *types.Receipt, error) {
	if name == "" {
		return nil, nil, ErrEmptyName
	}
	if price == nil || price.IsZero() {
		return nil, nil, ErrZeroPrice
	}

	receipt, err := s.contract.SendTransaction(ctx, MethodCreateProduct, name, description, price.ToBig())
	if err != nil {
		return nil, receipt, err
	}

	for _, l := range receipt.Logs {
		if l.Address != s.Address() {
			continue
		}
		ev, err := ParseEvent(l)
		if err != nil {
			continue
		}
		if created, ok := ev.(*ProductCreatedEvent); ok {
			return created.ID, receipt, nil
		}
	}
	return nil, receipt, ErrMissingEvent
}

func (s *SupplyChain) FetchProduct(ctx context.Context, id *big.Int) (*Product, error) {
	out, err := s.contract.Call(ctx, MethodFetchProduct, id)
	if err != nil {
		return nil, err
	}
	if len(out) != 6 {
		return nil, fmt.Errorf("%w: %s returned %d values", errUnexpectedType, MethodFetchProduct, len(out))
	}

	productID := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	name := *abi.ConvertType(out[1], new(string)).(*string)
	description := *abi.ConvertType(out[2], new(string)).(*string)
	rawPrice := *abi.ConvertType(out[3], new(*big.Int)).(**big.Int)
	state := *abi.ConvertType(out[4], new(uint8)).(*uint8)
	owner := *abi.ConvertType(out[5], new(common.Address)).(*common.Address)

	price, overflow := uint256.FromBig(rawPrice)
	if overflow {
		return nil, fmt.Errorf("%w: price overflows uint256", errUnexpectedType)
	}

	return &Product{
		ID:          productID,
		Name:        name,
		Description: description,
		Price:       price,
		State:       State(state),
		Owner:       owner,
	}, nil
}

// ShipProduct marks the product shipped and sets its new price. Only the
// product owner may ship it, and only once.
func (s *SupplyChain) ShipProduct(ctx context.Context, id *big.Int, newPrice *uint256.Int) (*types.Receipt, error) {
	if newPrice == nil || newPrice.IsZero() {
		return nil, ErrZeroPrice
	}
	return s.contract.SendTransaction(ctx, MethodShipProduct, id, newPrice.ToBig())
}

func (s *SupplyChain) ProductCount(ctx context.Context) (*big.Int, error) {
	out, err := s.contract.Call(ctx, MethodProductCount)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%w: %s returned %d values", errUnexpectedType, MethodProductCount, len(out))
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}
