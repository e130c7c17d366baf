// Package decoder turns raw chain logs and receipts into the normalised
// chain.TransferEvent shape, implementing the decoding rules of spec.md
// §4.5/§4.6. It is shared by both extractor modes.
package decoder

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Ktl-XV/account-monitor/internal/chain"
)

// DecodeLog decodes a single log into zero or more TransferEvents. A
// TransferBatch log can emit more than one event. A malformed log (wrong
// topic arity, short data) returns a DecodeWarning and no events; it
// never returns an error, matching spec.md §4.5's "never fail the
// extraction" requirement.
func DecodeLog(chainKey string, lg types.Log) ([]chain.TransferEvent, *chain.DecodeWarning) {
	if len(lg.Topics) == 0 {
		return nil, warn(lg, "log has no topics")
	}

	switch lg.Topics[0] {
	case TransferTopic:
		return decodeTransfer(chainKey, lg)
	case TransferSingleTopic:
		return decodeTransferSingle(chainKey, lg)
	case TransferBatchTopic:
		return decodeTransferBatch(chainKey, lg)
	default:
		return nil, nil // not a topic this decoder understands; not a warning
	}
}

func warn(lg types.Log, reason string) *chain.DecodeWarning {
	return &chain.DecodeWarning{BlockNumber: lg.BlockNumber, TxHash: lg.TxHash, Reason: reason}
}

// decodeTransfer handles the shared ERC-20/ERC-721 Transfer(address,
// address,uint256) signature. Disambiguation is by topic count: a
// 3-topic log (signature + from + to) carries value in data (ERC-20); a
// 4-topic log (signature + from + to + tokenId) carries the id indexed
// and empty data (ERC-721).
func decodeTransfer(chainKey string, lg types.Log) ([]chain.TransferEvent, *chain.DecodeWarning) {
	switch len(lg.Topics) {
	case 3:
		if len(lg.Data) < 32 {
			return nil, warn(lg, "erc20 transfer: data shorter than 32 bytes")
		}
		value := new(big.Int).SetBytes(lg.Data[:32])
		return []chain.TransferEvent{{
			ChainKey:    chainKey,
			BlockNumber: lg.BlockNumber,
			TxHash:      lg.TxHash,
			From:        common.BytesToAddress(lg.Topics[1].Bytes()),
			To:          common.BytesToAddress(lg.Topics[2].Bytes()),
			Value:       value,
			Asset:       chain.Asset{Native: false, Contract: lg.Address, Standard: chain.StandardERC20},
			Source:      chain.SourceLog,
		}}, nil
	case 4:
		tokenID := new(big.Int).SetBytes(lg.Topics[3].Bytes())
		return []chain.TransferEvent{{
			ChainKey:    chainKey,
			BlockNumber: lg.BlockNumber,
			TxHash:      lg.TxHash,
			From:        common.BytesToAddress(lg.Topics[1].Bytes()),
			To:          common.BytesToAddress(lg.Topics[2].Bytes()),
			Value:       tokenID,
			Asset:       chain.Asset{Native: false, Contract: lg.Address, Standard: chain.StandardERC721},
			Source:      chain.SourceLog,
		}}, nil
	default:
		return nil, warn(lg, "transfer log has unexpected topic count")
	}
}

// decodeTransferSingle handles ERC-1155 TransferSingle(operator,from,to,
// id,value): from/to are indexed topics, id and value are packed in data.
func decodeTransferSingle(chainKey string, lg types.Log) ([]chain.TransferEvent, *chain.DecodeWarning) {
	if len(lg.Topics) != 4 {
		return nil, warn(lg, "transfersingle log has unexpected topic count")
	}
	if len(lg.Data) < 64 {
		return nil, warn(lg, "transfersingle: data shorter than 64 bytes")
	}
	value := new(big.Int).SetBytes(lg.Data[32:64])
	return []chain.TransferEvent{{
		ChainKey:    chainKey,
		BlockNumber: lg.BlockNumber,
		TxHash:      lg.TxHash,
		From:        common.BytesToAddress(lg.Topics[2].Bytes()),
		To:          common.BytesToAddress(lg.Topics[3].Bytes()),
		Value:       value,
		Asset:       chain.Asset{Native: false, Contract: lg.Address, Standard: chain.StandardERC1155},
		Source:      chain.SourceLog,
	}}, nil
}

// decodeTransferBatch handles ERC-1155 TransferBatch, unpacking the
// dynamic uint256[] ids/values arrays via the shared ABI, and emits one
// TransferEvent per id/value pair.
func decodeTransferBatch(chainKey string, lg types.Log) ([]chain.TransferEvent, *chain.DecodeWarning) {
	if len(lg.Topics) != 4 {
		return nil, warn(lg, "transferbatch log has unexpected topic count")
	}

	var unpacked struct {
		Ids    []*big.Int
		Values []*big.Int
	}
	if err := parsedABI.UnpackIntoInterface(&unpacked, "TransferBatch", lg.Data); err != nil {
		return nil, warn(lg, "transferbatch: "+err.Error())
	}
	if len(unpacked.Ids) != len(unpacked.Values) {
		return nil, warn(lg, "transferbatch: ids/values length mismatch")
	}

	from := common.BytesToAddress(lg.Topics[2].Bytes())
	to := common.BytesToAddress(lg.Topics[3].Bytes())

	events := make([]chain.TransferEvent, 0, len(unpacked.Ids))
	for i := range unpacked.Ids {
		events = append(events, chain.TransferEvent{
			ChainKey:    chainKey,
			BlockNumber: lg.BlockNumber,
			TxHash:      lg.TxHash,
			From:        from,
			To:          to,
			Value:       unpacked.Values[i],
			Asset:       chain.Asset{Native: false, Contract: lg.Address, Standard: chain.StandardERC1155},
			Source:      chain.SourceLog,
		})
	}
	return events, nil
}

// DecodeNativeTransfer synthesises a Native TransferEvent from a
// transaction that moved value directly from an EOA, per spec.md §4.6.
// Returns nil when the transaction moved no native value (pure contract
// calls with value == 0 are not emitted).
func DecodeNativeTransfer(chainKey string, blockNumber uint64, tx *types.Transaction, from common.Address) *chain.TransferEvent {
	if tx.Value() == nil || tx.Value().Sign() == 0 {
		return nil
	}
	to := tx.To()
	if to == nil {
		return nil // contract creation; no transfer recipient
	}
	return &chain.TransferEvent{
		ChainKey:    chainKey,
		BlockNumber: blockNumber,
		TxHash:      tx.Hash(),
		From:        from,
		To:          *to,
		Value:       new(big.Int).Set(tx.Value()),
		Asset:       chain.Asset{Native: true},
		Source:      chain.SourceReceipt,
	}
}
