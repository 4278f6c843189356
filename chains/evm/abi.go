package evm

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const tokenBridgeABIJSON = `[
	{"type":"function","name":"transferTokens","stateMutability":"payable","inputs":[
		{"name":"token","type":"address"},{"name":"amount","type":"uint256"},
		{"name":"recipientChain","type":"uint16"},{"name":"recipient","type":"bytes32"},
		{"name":"arbiterFee","type":"uint256"},{"name":"nonce","type":"uint32"}],
		"outputs":[{"name":"sequence","type":"uint64"}]},
	{"type":"function","name":"wrapAndTransferETH","stateMutability":"payable","inputs":[
		{"name":"recipientChain","type":"uint16"},{"name":"recipient","type":"bytes32"},
		{"name":"arbiterFee","type":"uint256"},{"name":"nonce","type":"uint32"}],
		"outputs":[{"name":"sequence","type":"uint64"}]},
	{"type":"function","name":"completeTransfer","stateMutability":"nonpayable","inputs":[
		{"name":"encodedVm","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"completeTransferAndUnwrapETH","stateMutability":"nonpayable","inputs":[
		{"name":"encodedVm","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"isTransferCompleted","stateMutability":"view","inputs":[
		{"name":"hash","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}]}
]`

const coreBridgeABIJSON = `[
	{"type":"event","name":"LogMessagePublished","anonymous":false,"inputs":[
		{"name":"sender","type":"address","indexed":true},
		{"name":"sequence","type":"uint64","indexed":false},
		{"name":"nonce","type":"uint32","indexed":false},
		{"name":"payload","type":"bytes","indexed":false},
		{"name":"consistencyLevel","type":"uint8","indexed":false}]}
]`

const erc20ABIJSON = `[
	{"type":"function","name":"allowance","stateMutability":"view","inputs":[
		{"name":"owner","type":"address"},{"name":"spender","type":"address"}],
		"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[
		{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],
		"outputs":[{"name":"","type":"bool"}]}
]`

var (
	tokenBridgeABI = mustParseABI(tokenBridgeABIJSON)
	coreBridgeABI  = mustParseABI(coreBridgeABIJSON)
	erc20ABI       = mustParseABI(erc20ABIJSON)

	// logMessagePublishedTopic is the topic0 of the core bridge LogMessagePublished event.
	logMessagePublishedTopic = coreBridgeABI.Events["LogMessagePublished"].ID
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}
