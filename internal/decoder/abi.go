package decoder

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// combinedABI declares the three transfer-shaped events this decoder
// understands, generalising the single inline ERC-20 Transfer ABI that
// geth-09-events/geth-17-indexer parse with abi.JSON + UnpackIntoInterface.
const combinedABI = `[
	{"anonymous":false,"inputs":[{"indexed":true,"name":"from","type":"address"},{"indexed":true,"name":"to","type":"address"},{"indexed":false,"name":"value","type":"uint256"}],"name":"Transfer","type":"event"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"operator","type":"address"},{"indexed":true,"name":"from","type":"address"},{"indexed":true,"name":"to","type":"address"},{"indexed":false,"name":"id","type":"uint256"},{"indexed":false,"name":"value","type":"uint256"}],"name":"TransferSingle","type":"event"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"operator","type":"address"},{"indexed":true,"name":"from","type":"address"},{"indexed":true,"name":"to","type":"address"},{"indexed":false,"name":"ids","type":"uint256[]"},{"indexed":false,"name":"values","type":"uint256[]"}],"name":"TransferBatch","type":"event"}
]`

var parsedABI abi.ABI

// TransferTopic, TransferSingleTopic and TransferBatchTopic are the
// event-signature hashes (log Topics[0]) this decoder recognises.
var (
	TransferTopic       common.Hash
	TransferSingleTopic common.Hash
	TransferBatchTopic  common.Hash
)

func init() {
	parsed, err := abi.JSON(strings.NewReader(combinedABI))
	if err != nil {
		panic("decoder: invalid embedded ABI: " + err.Error())
	}
	parsedABI = parsed
	TransferTopic = parsedABI.Events["Transfer"].ID
	TransferSingleTopic = parsedABI.Events["TransferSingle"].ID
	TransferBatchTopic = parsedABI.Events["TransferBatch"].ID
}

// Topics is the first-level-OR topic filter the Events extractor sends
// in a single eth_getLogs call, covering ERC-20/721/1155 in one request.
func Topics() [][]common.Hash {
	return [][]common.Hash{{TransferTopic, TransferSingleTopic, TransferBatchTopic}}
}
