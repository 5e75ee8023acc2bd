package procedure

import "sync"

// bitcoindSignatures is the built-in procedure table for bitcoind.
var bitcoindSignatures = map[string]string{
	"abandonTransaction":     "str",
	"abortRescan":            "",
	"addMultiSigAddress":     "",
	"addNode":                "",
	"backupWallet":           "",
	"bumpFee":                "str obj",
	"clearBanned":            "",
	"combineRawTransaction":  "str",
	"createMultiSig":         "",
	"createRawTransaction":   "obj obj",
	"decodeRawTransaction":   "",
	"decodeScript":           "str",
	"disconnectNode":         "str str",
	"dumpPrivKey":            "str",
	"dumpWallet":             "str",
	"encryptWallet":          "str",
	"estimateFee":            "int",
	"estimateSmartFee":       "int str",
	"fundRawTransaction":     "str obj",
	"generate":               "int",
	"generateToAddress":      "int str",
	"getAccount":             "str",
	"getAccountAddress":      "str",
	"getAddedNodeInfo":       "",
	"getAddressesByAccount":  "str",
	"getBalance":             "str int",
	"getBestBlockHash":       "",
	"getBlock":               "str bool",
	"getBlockchainInfo":      "",
	"getBlockCount":          "",
	"getBlockHash":           "int",
	"getBlockHeader":         "str",
	"getBlockTemplate":       "",
	"getChainTips":           "",
	"getChainTxStats":        "int str",
	"getConnectionCount":     "",
	"getDifficulty":          "",
	"getMemoryInfo":          "str",
	"getMemPoolAncestors":    "str",
	"getMemPoolDescendants":  "str",
	"getMemPoolEntry":        "str",
	"getMemPoolInfo":         "",
	"getMiningInfo":          "",
	"getNetTotals":           "",
	"getNetworkHashps":       "int int",
	"getNetworkInfo":         "",
	"getNewAddress":          "str str",
	"getPeerInfo":            "",
	"getRawChangeAddress":    "str",
	"getRawMemPool":          "bool",
	"getRawTransaction":      "str int",
	"getReceivedByAccount":   "str int",
	"getReceivedByAddress":   "str int",
	"getTransaction":         "str int",
	"getTxOut":               "str int",
	"getTxOutProof":          "obj str",
	"getTxOutSetInfo":        "",
	"getUnconfirmedBalance":  "",
	"getWalletInfo":          "obj",
	"help":                   "",
	"importAddress":          "str str bool",
	"importMulti":            "obj obj",
	"importPrivKey":          "str str bool",
	"importPrunedFunds":      "",
	"importPubKey":           "str bool",
	"importWallet":           "str",
	"keyPoolRefill":          "int",
	"listAccounts":           "int bool",
	"listAddressGroupings":   "",
	"listBanned":             "",
	"listLockUnspent":        "bool",
	"listReceivedByAccount":  "int bool bool",
	"listReceivedByAddress":  "int bool bool",
	"listSinceBlock":         "str int bool bool",
	"listTransactions":       "str int bool bool",
	"listUnspent":            "int int obj bool obj",
	"listWallets":            "",
	"lockUnspent":            "bool obj",
	"logging":                "obj obj",
	"move":                   "str str float int str",
	"ping":                   "",
	"preciousBlock":          "str",
	"prioritiseTransaction":  "str float int",
	"pruneBlockchain":        "",
	"removePrunedFunds":      "str",
	"rescanBlockchain":       "int int",
	"saveMemPool":            "",
	"sendFrom":               "str str float int str str",
	"sendMany":               "str obj int str",
	"sendRawTransaction":     "str bool",
	"sendToAddress":          "str float str str",
	"setAccount":             "str str",
	"setBan":                 "str str int bool",
	"setNetworkActive":       "bool",
	"setTxFee":               "float",
	"signMessage":            "str str",
	"signMessageWithPrivKey": "str str",
	"signRawTransaction":     "",
	"stop":                   "",
	"submitBlock":            "str",
	"uptime":                 "",
	"validateAddress":        "str",
	"verifyChain":            "int int",
	"verifyMessage":          "str str str",
	"verifyTxOutProof":       "str",
	"walletLock":             "",
	"walletPassPhrase":       "string int",
	"walletPassphraseChange": "str str",
}

var defaultTable = sync.OnceValue(func() *Table {
	specs, err := FromSignatures(bitcoindSignatures)
	if err != nil {
		panic(err)
	}
	return MustCompile(specs)
})

// Default returns the built-in bitcoind table, compiled once per process
func Default() *Table {
	return defaultTable()
}
