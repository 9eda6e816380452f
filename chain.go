package main

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrNoChainBackend = errors.New("chain backend not configured")
	ErrTxFailed       = errors.New("transaction reverted")
	ErrNoTransactor   = errors.New("operator key not configured")
	ErrWrongTx        = errors.New("transaction does not match")
)

const quizGameABIJSON = `[
 {"type":"function","name":"startQuiz","stateMutability":"payable","inputs":[{"name":"userAnswer","type":"uint256"}],"outputs":[]},
 {"type":"function","name":"completeQuiz","stateMutability":"nonpayable","inputs":[{"name":"submittedAnswer","type":"uint256"}],"outputs":[]},
 {"type":"function","name":"getQuizSession","stateMutability":"view","inputs":[{"name":"user","type":"address"}],
  "outputs":[{"name":"active","type":"bool"},{"name":"userAnswer","type":"uint256"},{"name":"amountPaid","type":"uint256"},{"name":"timestamp","type":"uint256"}]},
 {"type":"function","name":"playAmount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[],"outputs":[]},
 {"type":"function","name":"setPlayAmount","stateMutability":"nonpayable","inputs":[{"name":"_playAmount","type":"uint256"}],"outputs":[]},
 {"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
 {"type":"function","name":"token","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]}
]`

const erc20ABIJSON = `[
 {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
 {"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]}
]`

var (
	quizGameABI = mustABI(quizGameABIJSON)
	erc20ABI    = mustABI(erc20ABIJSON)
)

func mustABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("abi: %v", err))
	}
	return parsed
}

// ContractReader is the read side of an RPC client (*ethclient.Client satisfies it).
type ContractReader interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (tx *types.Transaction, isPending bool, err error)
}

type OnchainSession struct {
	Active        bool      `json:"active"`
	UserAnswer    string    `json:"userAnswer"`
	AmountPaid    string    `json:"amountPaid"` // ether
	AmountPaidWei string    `json:"amountPaidWei"`
	Timestamp     time.Time `json:"timestamp"`
}

// QuizGame is a client for the externally deployed QuizGame contract.
type QuizGame struct {
	address      common.Address
	reader       ContractReader
	bound        *bind.BoundContract // nil without an operator backend
	chainID      *big.Int
	PollInterval time.Duration
}

func NewQuizGame(address common.Address, reader ContractReader, chainID int64) *QuizGame {
	return &QuizGame{
		address:      address,
		reader:       reader,
		chainID:      big.NewInt(chainID),
		PollInterval: 2 * time.Second,
	}
}

// WithTransactor enables the write methods.
func (q *QuizGame) WithTransactor(backend bind.ContractBackend) *QuizGame {
	q.bound = bind.NewBoundContract(q.address, quizGameABI, backend, backend, backend)
	return q
}

func (q *QuizGame) Address() common.Address { return q.address }

func callContract(ctx context.Context, r ContractReader, parsed abi.ABI, to common.Address, method string, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	out, err := r.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	res, err := parsed.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return res, nil
}

func (q *QuizGame) PlayAmount(ctx context.Context) (*big.Int, error) {
	res, err := callContract(ctx, q.reader, quizGameABI, q.address, "playAmount")
	if err != nil {
		return nil, err
	}
	return res[0].(*big.Int), nil
}

func (q *QuizGame) Owner(ctx context.Context) (common.Address, error) {
	res, err := callContract(ctx, q.reader, quizGameABI, q.address, "owner")
	if err != nil {
		return common.Address{}, err
	}
	return res[0].(common.Address), nil
}

func (q *QuizGame) Token(ctx context.Context) (common.Address, error) {
	res, err := callContract(ctx, q.reader, quizGameABI, q.address, "token")
	if err != nil {
		return common.Address{}, err
	}
	return res[0].(common.Address), nil
}

func (q *QuizGame) Session(ctx context.Context, user common.Address) (*OnchainSession, error) {
	res, err := callContract(ctx, q.reader, quizGameABI, q.address, "getQuizSession", user)
	if err != nil {
		return nil, err
	}
	return &OnchainSession{
		Active:        res[0].(bool),
		UserAnswer:    res[1].(*big.Int).String(),
		AmountPaid:    FormatEther(res[2].(*big.Int)),
		AmountPaidWei: res[2].(*big.Int).String(),
		Timestamp:     time.Unix(res[3].(*big.Int).Int64(), 0).UTC(),
	}, nil
}

// WaitReceipt polls until the transaction is mined or ctx ends. A mined but
// reverted transaction returns the receipt together with ErrTxFailed.
func (q *QuizGame) WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	t := time.NewTicker(q.PollInterval)
	defer t.Stop()
	for {
		r, err := q.reader.TransactionReceipt(ctx, hash)
		if err == nil {
			if r.Status != types.ReceiptStatusSuccessful {
				return r, ErrTxFailed
			}
			return r, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

// VerifyCall waits for hash to be mined, then checks that it is a call of
// method on this contract signed by from.
func (q *QuizGame) VerifyCall(ctx context.Context, hash common.Hash, from common.Address, method string) (*types.Receipt, error) {
	r, err := q.WaitReceipt(ctx, hash)
	if err != nil {
		return r, err
	}
	tx, _, err := q.reader.TransactionByHash(ctx, hash)
	if err != nil {
		return r, fmt.Errorf("fetch transaction: %w", err)
	}
	if tx.To() == nil || *tx.To() != q.address {
		return r, fmt.Errorf("%w: not sent to %s", ErrWrongTx, q.address.Hex())
	}
	if data := tx.Data(); len(data) < 4 || !bytes.Equal(data[:4], quizGameABI.Methods[method].ID) {
		return r, fmt.Errorf("%w: not a %s call", ErrWrongTx, method)
	}
	sender, err := types.Sender(types.LatestSignerForChainID(q.chainID), tx)
	if err != nil {
		return r, fmt.Errorf("%w: %v", ErrWrongTx, err)
	}
	if sender != from {
		return r, fmt.Errorf("%w: sent by %s", ErrWrongTx, sender.Hex())
	}
	return r, nil
}

/*** Operator writes ***/

func (q *QuizGame) transactOpts(ctx context.Context, key *ecdsa.PrivateKey) (*bind.TransactOpts, error) {
	if q.bound == nil {
		return nil, ErrNoTransactor
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, q.chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	return opts, nil
}

func (q *QuizGame) SetPlayAmount(ctx context.Context, key *ecdsa.PrivateKey, wei *big.Int) (*types.Transaction, error) {
	opts, err := q.transactOpts(ctx, key)
	if err != nil {
		return nil, err
	}
	return q.bound.Transact(opts, "setPlayAmount", wei)
}

func (q *QuizGame) Withdraw(ctx context.Context, key *ecdsa.PrivateKey) (*types.Transaction, error) {
	opts, err := q.transactOpts(ctx, key)
	if err != nil {
		return nil, err
	}
	return q.bound.Transact(opts, "withdraw")
}

// StartQuiz pays value into the contract and commits userAnswer.
func (q *QuizGame) StartQuiz(ctx context.Context, key *ecdsa.PrivateKey, userAnswer, value *big.Int) (*types.Transaction, error) {
	opts, err := q.transactOpts(ctx, key)
	if err != nil {
		return nil, err
	}
	opts.Value = value
	return q.bound.Transact(opts, "startQuiz", userAnswer)
}

func (q *QuizGame) CompleteQuiz(ctx context.Context, key *ecdsa.PrivateKey, answer *big.Int) (*types.Transaction, error) {
	opts, err := q.transactOpts(ctx, key)
	if err != nil {
		return nil, err
	}
	return q.bound.Transact(opts, "completeQuiz", answer)
}

func ParseOperatorKey(hexKey string) (*ecdsa.PrivateKey, error) {
	if hexKey == "" {
		return nil, ErrNoTransactor
	}
	return crypto.HexToECDSA(hexKey)
}

/*** ERC-20 ***/

type TokenBalance struct {
	Token   string `json:"token"`
	Symbol  string `json:"symbol"`
	Raw     string `json:"raw"`
	Balance string `json:"balance"`
}

// ERC20Balance reads balanceOf, decimals and symbol for one token.
func ERC20Balance(ctx context.Context, r ContractReader, token, holder common.Address) (*TokenBalance, error) {
	res, err := callContract(ctx, r, erc20ABI, token, "balanceOf", holder)
	if err != nil {
		return nil, err
	}
	raw := res[0].(*big.Int)

	decimals := int32(etherDecimals)
	if d, err := callContract(ctx, r, erc20ABI, token, "decimals"); err == nil {
		decimals = int32(d[0].(uint8))
	}
	symbol := "???"
	if s, err := callContract(ctx, r, erc20ABI, token, "symbol"); err == nil {
		symbol = s[0].(string)
	}
	return &TokenBalance{
		Token:   strings.ToLower(token.Hex()),
		Symbol:  symbol,
		Raw:     raw.String(),
		Balance: FormatUnits(raw, decimals),
	}, nil
}
