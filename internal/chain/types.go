// Package chain holds the data types shared by every stage of a chain
// pipeline: config, the normalised transfer event, and the notification it
// produces.
package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Mode selects which extractor a chain pipeline runs.
type Mode string

const (
	ModeBlocks Mode = "Blocks"
	ModeEvents Mode = "Events"
)

// SpamFilter is the per-chain policy deciding which matched transfers
// become notifications.
type SpamFilter string

const (
	FilterNone             SpamFilter = "None"
	FilterKnownAssets      SpamFilter = "KnownAssets"
	FilterSelfSubmittedTxs SpamFilter = "SelfSubmittedTxs"
)

// AssetStandard identifies the token standard of a Token asset.
type AssetStandard string

const (
	StandardERC20   AssetStandard = "ERC20"
	StandardERC721  AssetStandard = "ERC721"
	StandardERC1155 AssetStandard = "ERC1155"
)

// Source records whether a TransferEvent was derived from a log or a
// synthetic native-value receipt/transaction pair.
type Source string

const (
	SourceLog     Source = "Log"
	SourceReceipt Source = "Receipt"
)

// Direction classifies a notification from the matched account's
// perspective.
type Direction string

const (
	DirIn      Direction = "In"
	DirOut     Direction = "Out"
	DirSelf    Direction = "Self"
	DirUnknown Direction = "Unknown"
)

// Config is immutable for the process lifetime.
type Config struct {
	Key          string
	DisplayName  string
	RPCURL       string
	BlockTimeMS  uint64
	Mode         Mode
	SpamFilter   SpamFilter
	ExplorerURL  string
	ChainID      uint64
	HasChainID   bool
}

// Asset is either Native or a Token with optional catalogue-resolved
// metadata.
type Asset struct {
	Native   bool
	Contract common.Address
	Symbol   string
	HasMeta  bool
	Decimals uint8
	Standard AssetStandard
}

// TransferEvent is the normalised record emitted by an extractor.
type TransferEvent struct {
	ChainKey    string
	BlockNumber uint64
	TxHash      common.Hash
	From        common.Address
	To          common.Address
	Value       *big.Int
	Asset       Asset
	Source      Source
}

// DecodeWarning records a log or receipt the decoder could not parse; it
// never fails the extraction that produced it.
type DecodeWarning struct {
	BlockNumber uint64
	TxHash      common.Hash
	Reason      string
}

// Notification is the final, user-facing record handed to the notifier.
type Notification struct {
	ChainDisplayName string
	TxHash           common.Hash
	Direction        Direction
	Counterparty     common.Address
	CounterpartyName string
	ValueRender      string
	AssetRender      string
	ExplorerLink     string
}
