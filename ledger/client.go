// Package ledger provides the registrar client for the on-chain document
// registry: registering content hashes as immutable records and resolving
// record references back for verification.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/docvault/docvault/interfaces"
)

// documentRegistryABI is the registry contract surface. The contract is
// small enough that the bound contract is constructed from the inlined
// ABI rather than generated bindings.
const documentRegistryABI = `[
	{"type":"function","name":"registerDocument","stateMutability":"nonpayable",
	 "inputs":[{"name":"docHash","type":"bytes32"},{"name":"name","type":"string"},
	           {"name":"fileType","type":"string"},{"name":"timestamp","type":"uint64"}],
	 "outputs":[{"name":"recordId","type":"bytes32"}]},
	{"type":"function","name":"getDocument","stateMutability":"view",
	 "inputs":[{"name":"recordId","type":"bytes32"}],
	 "outputs":[{"name":"docHash","type":"bytes32"},{"name":"name","type":"string"},
	            {"name":"fileType","type":"string"},{"name":"timestamp","type":"uint64"},
	            {"name":"owner","type":"address"},{"name":"version","type":"uint32"},
	            {"name":"status","type":"uint8"},{"name":"signatures","type":"uint64"}]},
	{"type":"function","name":"signDocument","stateMutability":"nonpayable",
	 "inputs":[{"name":"recordId","type":"bytes32"},{"name":"signatureHash","type":"bytes32"}],
	 "outputs":[]}
]`

// Contract status values for documents.
const (
	contractStatusActive   = 0
	contractStatusArchived = 1
)

// Client implements interfaces.LedgerRegistrar against a DocumentRegistry
// contract deployed on an EVM chain.
type Client struct {
	contract *bind.BoundContract
	client   bind.ContractBackend
	backend  bind.DeployBackend
	address  common.Address

	signer  interfaces.Signer
	chainID *big.Int
}

var _ interfaces.LedgerRegistrar = (*Client)(nil)

// NewClient creates a registrar client for the contract at the given
// address. It requires a ContractBackend for reads and a DeployBackend
// for waiting on transactions.
func NewClient(client bind.ContractBackend, backend bind.DeployBackend, address common.Address) (*Client, error) {
	parsed, err := abi.JSON(strings.NewReader(documentRegistryABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse registry ABI: %w", err)
	}

	return &Client{
		contract: bind.NewBoundContract(address, parsed, client, client, client),
		client:   client,
		backend:  backend,
		address:  address,
	}, nil
}

// SetSigner sets the signing principal used for state-changing
// operations. Must be called before Register or Sign.
func (c *Client) SetSigner(signer interfaces.Signer, chainID *big.Int) {
	c.signer = signer
	c.chainID = chainID
}

// transactOpts builds transaction options that route payload digests
// through the signing principal.
func (c *Client) transactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	if c.signer == nil {
		return nil, interfaces.ErrNoSigner
	}

	from := common.Address(c.signer.PublicIdentity())
	txSigner := types.LatestSignerForChainID(c.chainID)

	return &bind.TransactOpts{
		From:    from,
		Context: ctx,
		Signer: func(addr common.Address, tx *types.Transaction) (*types.Transaction, error) {
			if addr != from {
				return nil, bind.ErrNotAuthorized
			}
			sig, err := c.signer.Authorize(txSigner.Hash(tx))
			if err != nil {
				return nil, err
			}
			return tx.WithSignature(txSigner, sig)
		},
	}, nil
}

// RecordRefFor computes the record reference the contract assigns to a
// (hash, owner) pair, using the same derivation as the contract.
func RecordRefFor(hash interfaces.ContentID, owner interfaces.Identity) interfaces.RecordRef {
	return interfaces.RecordRef(crypto.Keccak256Hash(hash.Bytes(), owner[:]))
}

// Register creates an immutable ledger entry binding the params and
// returns its reference once the transaction is mined. Registration is
// not idempotent; a second call for the same hash and owner reverts.
func (c *Client) Register(ctx context.Context, params interfaces.RegisterParams) (interfaces.RecordRef, error) {
	opts, err := c.transactOpts(ctx)
	if err != nil {
		return interfaces.RecordRef{}, err
	}

	tx, err := c.contract.Transact(opts, "registerDocument",
		[32]byte(params.Hash), params.Name, params.FileType, uint64(params.Timestamp))
	if err != nil {
		return interfaces.RecordRef{}, fmt.Errorf("%w: %v", interfaces.ErrRegistrationFailed, err)
	}

	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return interfaces.RecordRef{}, fmt.Errorf("%w: %v", interfaces.ErrRegistrationFailed, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return interfaces.RecordRef{}, fmt.Errorf("%w: transaction %s reverted", interfaces.ErrRegistrationFailed, tx.Hash())
	}

	return RecordRefFor(params.Hash, params.Owner), nil
}

// Resolve fetches the tuple bound to a record reference.
func (c *Client) Resolve(ctx context.Context, ref interfaces.RecordRef) (*interfaces.LedgerRecord, error) {
	opts := &bind.CallOpts{Context: ctx}

	var out []interface{}
	err := c.contract.Call(opts, &out, "getDocument", [32]byte(ref))
	if err != nil {
		if strings.Contains(err.Error(), "execution reverted") {
			return nil, interfaces.ErrRecordNotFound
		}
		return nil, err
	}
	if len(out) != 8 {
		return nil, errors.New("unexpected getDocument output arity")
	}

	hash := interfaces.ContentID(out[0].([32]byte))
	if hash.IsZero() {
		return nil, interfaces.ErrRecordNotFound
	}

	status := interfaces.StatusActive
	if out[6].(uint8) == contractStatusArchived {
		status = interfaces.StatusArchived
	}

	return &interfaces.LedgerRecord{
		Hash:       hash,
		Name:       out[1].(string),
		FileType:   out[2].(string),
		Timestamp:  int64(out[3].(uint64)),
		Owner:      interfaces.Identity(out[4].(common.Address)),
		Version:    out[5].(uint32),
		Status:     status,
		Signatures: out[7].(uint64),
	}, nil
}

// Verify resolves ref and compares the bound hash to expected. A
// mismatch is data, not a fault: it returns (false, nil).
func (c *Client) Verify(ctx context.Context, ref interfaces.RecordRef, expected interfaces.ContentID) (bool, error) {
	record, err := c.Resolve(ctx, ref)
	if err != nil {
		return false, err
	}
	return record.Hash.Equal(expected), nil
}

// Sign appends a signature entry to an existing ledger record.
func (c *Client) Sign(ctx context.Context, ref interfaces.RecordRef, signatureHash interfaces.ContentID) error {
	opts, err := c.transactOpts(ctx)
	if err != nil {
		return err
	}

	tx, err := c.contract.Transact(opts, "signDocument", [32]byte(ref), [32]byte(signatureHash))
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrRegistrationFailed, err)
	}

	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrRegistrationFailed, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%w: transaction %s reverted", interfaces.ErrRegistrationFailed, tx.Hash())
	}
	return nil
}
