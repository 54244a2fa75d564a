// Package deployment defines the contract deployment record produced by the
// scanner and carried through sinks.
package deployment

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Deployment describes a single contract creation observed on chain.
// It is immutable once extracted from a receipt.
type Deployment struct {
	ChainID         uint64         `json:"chain_id"`
	BlockNumber     uint64         `json:"block_number"`
	BlockHash       common.Hash    `json:"block_hash"`
	BlockTime       uint64         `json:"block_time"`
	TxHash          common.Hash    `json:"tx_hash"`
	Deployer        common.Address `json:"deployer"`
	ContractAddress common.Address `json:"contract_address"`
}

// FromReceipt builds a Deployment from a transaction and its receipt, or
// returns (nil, nil) when the receipt did not create a contract.
func FromReceipt(chainID uint64, block *types.Block, tx *types.Transaction, receipt *types.Receipt) (*Deployment, error) {
	if receipt == nil || receipt.ContractAddress == (common.Address{}) {
		return nil, nil
	}

	deployer, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return nil, fmt.Errorf("recover deployer for tx %s: %w", tx.Hash().Hex(), err)
	}

	return &Deployment{
		ChainID:         chainID,
		BlockNumber:     block.NumberU64(),
		BlockHash:       block.Hash(),
		BlockTime:       block.Time(),
		TxHash:          receipt.TxHash,
		Deployer:        deployer,
		ContractAddress: receipt.ContractAddress,
	}, nil
}

// Marshal serializes the deployment to JSON for queue transport.
func (d *Deployment) Marshal() ([]byte, error) {
	return json.Marshal(d)
}

// Unmarshal deserializes a deployment from its JSON form.
func Unmarshal(data []byte) (*Deployment, error) {
	var d Deployment
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("unmarshal deployment: %w", err)
	}
	return &d, nil
}

// String renders the deployment in the scanner's console line format.
func (d *Deployment) String() string {
	return fmt.Sprintf("block number = %d contract address = %s",
		d.BlockNumber, strings.ToLower(d.ContractAddress.Hex()))
}
