package main

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

const (
	SepoliaID         int64 = 11155111
	BaseID            int64 = 8453
	BaseSepoliaID     int64 = 84532
	EduChainID        int64 = 41923
	HyperionTestnetID int64 = 133717
	CoreDAOTestnetID  int64 = 1114

	etherDecimals = 18
)

var ErrUnsupportedChain = errors.New("unsupported chain")

type Chain struct {
	ID             int64          `json:"id"`
	Name           string         `json:"name"`
	Symbol         string         `json:"symbol"`                 // display currency
	NativeSymbol   string         `json:"nativeSymbol,omitempty"` // when the chain's own ticker differs
	Multiplier     int64          `json:"multiplier"`
	DefaultAmounts []string       `json:"defaultAmounts"`
	RPCURL         string         `json:"rpcUrl"`
	Explorer       string         `json:"explorer,omitempty"`
	QuizGame       common.Address `json:"quizGameAddress"`
	Token          common.Address `json:"tokenAddress"`
}

// Deployed reports whether a QuizGame contract is known on this chain.
func (c Chain) Deployed() bool {
	return c.QuizGame != (common.Address{})
}

var (
	ethAmounts  = []string{"0.001", "0.005", "0.025"}
	unitAmounts = []string{"1", "5", "25"}
)

var supportedChains = []Chain{
	{
		ID: SepoliaID, Name: "Sepolia", Symbol: "ETH", Multiplier: 1, DefaultAmounts: ethAmounts,
		RPCURL:   "https://rpc.sepolia.org",
		QuizGame: common.HexToAddress("0xd30f00db1975cfc498896a3d19291baac385cef6"),
		Token:    common.HexToAddress("0x295119f7c3879aa11a5b63bcd97f745aee5fa07f"),
	},
	{
		ID: BaseID, Name: "Base", Symbol: "ETH", Multiplier: 1, DefaultAmounts: ethAmounts,
		RPCURL: "https://mainnet.base.org",
	},
	{
		ID: BaseSepoliaID, Name: "Base Sepolia", Symbol: "ETH", Multiplier: 1, DefaultAmounts: ethAmounts,
		RPCURL:   "https://sepolia.base.org",
		QuizGame: common.HexToAddress("0xc0ee7f9763f414d82c1b59441a6338999eafa80e"),
		Token:    common.HexToAddress("0x7e9532d025b0d0c06e5913170d5271851b37cf39"),
	},
	{
		ID: EduChainID, Name: "EDU Chain", Symbol: "EDU", Multiplier: 1000, DefaultAmounts: unitAmounts,
		RPCURL: "https://rpc.edu-chain.raas.gelato.cloud",
	},
	{
		ID: HyperionTestnetID, Name: "Hyperion Testnet", Symbol: "tMETIS", Multiplier: 1, DefaultAmounts: unitAmounts,
		RPCURL:   "https://hyperion-testnet.metisdevops.link",
		Explorer: "https://hyperion-testnet-explorer.metisdevops.link",
		QuizGame: common.HexToAddress("0x814089B328D027422E76b07ad75c99591903e6cb"),
		Token:    common.HexToAddress("0xE8FA684Ba5E71f2940395300108a04ABc125F7b2"),
	},
	{
		ID: CoreDAOTestnetID, Name: "Core Blockchain TestNet", Symbol: "tCORE", Multiplier: 1, DefaultAmounts: unitAmounts,
		NativeSymbol: "tCORE2",
		RPCURL:       "https://rpc.test2.btcs.network",
		Explorer:     "https://scan.test2.btcs.network",
		Token:        common.HexToAddress("0xc0Fa47fAD733524291617F341257A97b79488ecE"),
	},
}

func LookupChain(id int64) (Chain, error) {
	for _, c := range supportedChains {
		if c.ID == id {
			return c, nil
		}
	}
	return Chain{}, ErrUnsupportedChain
}

// ParseEther converts a decimal ether string ("0.001") to wei.
func ParseEther(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	if d.IsNegative() {
		return nil, ErrBadAmount
	}
	wei := d.Shift(etherDecimals)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, errors.New("more than 18 decimal places")
	}
	return wei.BigInt(), nil
}

// FormatUnits renders a base-unit integer with the given number of decimals.
func FormatUnits(v *big.Int, decimals int32) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -decimals).String()
}

func FormatEther(wei *big.Int) string {
	return FormatUnits(wei, etherDecimals)
}
