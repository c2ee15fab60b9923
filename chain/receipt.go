package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Receipt status values.
const (
	ReceiptStatusFailed     = uint64(0)
	ReceiptStatusSuccessful = uint64(1)
)

// Receipt is the subset of eth_getTransactionReceipt used by callers.
type Receipt struct {
	TxHash            common.Hash     `json:"transactionHash"`
	BlockHash         common.Hash     `json:"blockHash"`
	BlockNumber       *hexutil.Big    `json:"blockNumber"`
	From              common.Address  `json:"from"`
	To                *common.Address `json:"to"`
	Status            hexutil.Uint64  `json:"status"`
	GasUsed           hexutil.Uint64  `json:"gasUsed"`
	EffectiveGasPrice *hexutil.Big    `json:"effectiveGasPrice,omitempty"`
	ContractAddress   *common.Address `json:"contractAddress,omitempty"`
}

// Successful reports whether on-chain execution succeeded.
func (r *Receipt) Successful() bool {
	return r != nil && uint64(r.Status) == ReceiptStatusSuccessful
}

// Block returns the block number the transaction was included in.
func (r *Receipt) Block() *big.Int {
	if r == nil || r.BlockNumber == nil {
		return nil
	}
	return (*big.Int)(r.BlockNumber)
}
