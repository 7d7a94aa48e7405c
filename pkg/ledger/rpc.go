package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/filecoin-project/go-jsonrpc"
	logging "github.com/ipfs/go-log/v2"

	"github.com/silo-network/silo/pkg/types"
	"github.com/silo-network/silo/pkg/wallet"
)

var log = logging.Logger("ledger")

// DefaultTimeout bounds every ledger round trip. An indefinite hang is a
// defect, not an accepted behavior.
const DefaultTimeout = 30 * time.Second

// SignedCall authenticates one mutating contract call: From is the caller,
// Sig a compact secp256k1 signature over keccak(method ++ canonical args).
type SignedCall struct {
	From types.Address `json:"from"`
	Sig  []byte        `json:"sig"`
}

type rpcStruct struct {
	Internal struct {
		RegisterProvider        func(context.Context, SignedCall, uint64, uint64) error
		PurchaseStorage         func(context.Context, SignedCall, types.Address, uint64) error
		StoreFile               func(context.Context, SignedCall, types.Address, string, uint64) error
		DistributeMiningRewards func(context.Context, SignedCall) error

		GetFileDetails      func(context.Context, string) (FileDetails, error)
		GetClientAllocation func(context.Context, types.Address, types.Address) (types.ClientAllocation, error)
		BalanceOf           func(context.Context, types.Address) (*big.Int, error)
	}
}

// Client talks to the contract gateway over JSON-RPC. Calls return only once
// the gateway reports finality, so callers see ordinary blocking requests.
type Client struct {
	internal rpcStruct
	signer   Signer
	closer   jsonrpc.ClientCloser
}

var _ API = (*Client)(nil)

// New dials the gateway at addr. The signer is used for all mutating calls.
func New(ctx context.Context, addr string, signer Signer, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{signer: signer}
	closer, err := jsonrpc.NewMergeClient(ctx, addr, "Silo",
		[]interface{}{&c.internal.Internal},
		nil,
		jsonrpc.WithTimeout(timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("dialing ledger %s: %w: %v", addr, types.ErrNetwork, err)
	}
	c.closer = closer
	return c, nil
}

func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

// sign builds the authentication envelope for one mutating call.
func (c *Client) sign(method string, args ...any) (SignedCall, error) {
	if c.signer == nil {
		return SignedCall{}, fmt.Errorf("mutating call %s without signer: %w", method, types.ErrConfiguration)
	}
	payload, err := json.Marshal(args)
	if err != nil {
		return SignedCall{}, fmt.Errorf("encoding call args: %w", err)
	}
	sig, err := c.signer.Sign(wallet.Digest(append([]byte(method), payload...)))
	if err != nil {
		return SignedCall{}, fmt.Errorf("signing %s: %w", method, err)
	}
	return SignedCall{From: c.signer.Address(), Sig: sig}, nil
}

func wrapRPC(op string, err error) error {
	if err == nil {
		return nil
	}
	var connErr *jsonrpc.RPCConnectionError
	if errors.As(err, &connErr) {
		return fmt.Errorf("%s: %w: %v", op, types.ErrNetwork, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (c *Client) RegisterProvider(ctx context.Context, capacityUnits, pricePerUnit uint64) error {
	call, err := c.sign("RegisterProvider", capacityUnits, pricePerUnit)
	if err != nil {
		return err
	}
	log.Infow("registering provider", "capacity", capacityUnits, "price", pricePerUnit)
	return wrapRPC("register provider", c.internal.Internal.RegisterProvider(ctx, call, capacityUnits, pricePerUnit))
}

func (c *Client) PurchaseStorage(ctx context.Context, provider types.Address, amountUnits uint64) error {
	call, err := c.sign("PurchaseStorage", provider, amountUnits)
	if err != nil {
		return err
	}
	log.Infow("purchasing storage", "provider", provider, "amount", amountUnits)
	return wrapRPC("purchase storage", c.internal.Internal.PurchaseStorage(ctx, call, provider, amountUnits))
}

func (c *Client) StoreFile(ctx context.Context, provider types.Address, cid string, sizeMilli uint64) error {
	call, err := c.sign("StoreFile", provider, cid, sizeMilli)
	if err != nil {
		return err
	}
	log.Infow("registering file", "provider", provider, "cid", cid, "sizeMilli", sizeMilli)
	return wrapRPC("store file", c.internal.Internal.StoreFile(ctx, call, provider, cid, sizeMilli))
}

func (c *Client) DistributeMiningRewards(ctx context.Context) error {
	call, err := c.sign("DistributeMiningRewards")
	if err != nil {
		return err
	}
	return wrapRPC("distribute rewards", c.internal.Internal.DistributeMiningRewards(ctx, call))
}

func (c *Client) GetFileDetails(ctx context.Context, cid string) (FileDetails, error) {
	fd, err := c.internal.Internal.GetFileDetails(ctx, cid)
	if err != nil {
		return FileDetails{}, wrapRPC("get file details", err)
	}
	return fd, nil
}

func (c *Client) GetClientAllocation(ctx context.Context, provider, client types.Address) (types.ClientAllocation, error) {
	alloc, err := c.internal.Internal.GetClientAllocation(ctx, provider, client)
	if err != nil {
		return types.ClientAllocation{}, wrapRPC("get client allocation", err)
	}
	return alloc, nil
}

func (c *Client) BalanceOf(ctx context.Context, addr types.Address) (*big.Int, error) {
	bal, err := c.internal.Internal.BalanceOf(ctx, addr)
	if err != nil {
		return nil, wrapRPC("balance of", err)
	}
	return bal, nil
}
