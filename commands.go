package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

func runSeed(cfg Config, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: quizdrop seed <file>")
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	n, err := SeedFromJSON(db, args[0])
	if err != nil {
		return err
	}
	log.Printf("Seeded %d quizzes from %s", n, args[0])
	return nil
}

func runBalances(cfg Config, args []string) error {
	if len(args) != 1 || !common.IsHexAddress(args[0]) {
		return errors.New("usage: quizdrop balances <address>")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	client, _, _, err := dialChain(ctx, cfg)
	if err != nil {
		return err
	}
	if client == nil {
		return ErrNoChainBackend
	}
	defer client.Close()

	holdings, err := CoinBalances(ctx, db, client, common.HexToAddress(args[0]))
	if err != nil {
		return err
	}
	if len(holdings) == 0 {
		fmt.Println("No coins found for this address")
		return nil
	}
	fmt.Printf("Found %d coin holdings:\n", len(holdings))
	for i, h := range holdings {
		fmt.Printf("#%d: %s (%s)\n   Balance: %s\n   Contract: %s\n   Chain ID: %d\n",
			i+1, h.Name, h.Symbol, h.Balance, h.Token, h.ChainID)
	}
	return nil
}

func runContract(cfg Config, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: quizdrop contract info|set-play-amount <ether>|withdraw")
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ReceiptWait+30*time.Second)
	defer cancel()

	client, game, chain, err := dialChain(ctx, cfg)
	if err != nil {
		return err
	}
	if client == nil || game == nil {
		return ErrNoChainBackend
	}
	defer client.Close()
	game.WithTransactor(client)

	switch args[0] {
	case "info":
		amount, err := game.PlayAmount(ctx)
		if err != nil {
			return err
		}
		owner, err := game.Owner(ctx)
		if err != nil {
			return err
		}
		token, err := game.Token(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("chain:       %s (%d)\ncontract:    %s\nowner:       %s\ntoken:       %s\nplay amount: %s %s\n",
			chain.Name, chain.ID, game.Address().Hex(), owner.Hex(), token.Hex(), FormatEther(amount), chain.Symbol)
		return nil

	case "set-play-amount":
		if len(args) != 2 {
			return errors.New("usage: quizdrop contract set-play-amount <ether>")
		}
		wei, err := ParseEther(args[1])
		if err != nil {
			return fmt.Errorf("amount: %w", err)
		}
		key, err := ParseOperatorKey(cfg.OperatorKey)
		if err != nil {
			return err
		}
		tx, err := game.SetPlayAmount(ctx, key, wei)
		if err != nil {
			return err
		}
		return waitAndReport(ctx, game, tx)

	case "withdraw":
		key, err := ParseOperatorKey(cfg.OperatorKey)
		if err != nil {
			return err
		}
		log.Printf("withdrawing as %s", crypto.PubkeyToAddress(key.PublicKey).Hex())
		tx, err := game.Withdraw(ctx, key)
		if err != nil {
			return err
		}
		return waitAndReport(ctx, game, tx)

	// smoke-test plays from the operator wallet
	case "start-quiz", "complete-quiz":
		if len(args) < 2 {
			return errors.New("usage: quizdrop contract start-quiz <answer> [ether] | complete-quiz <answer>")
		}
		answer, ok := new(big.Int).SetString(args[1], 10)
		if !ok || answer.Sign() < 0 {
			return fmt.Errorf("answer %q is not a non-negative integer", args[1])
		}
		key, err := ParseOperatorKey(cfg.OperatorKey)
		if err != nil {
			return err
		}
		var tx *types.Transaction
		if args[0] == "complete-quiz" {
			tx, err = game.CompleteQuiz(ctx, key, answer)
		} else {
			var value *big.Int
			if len(args) > 2 {
				value, err = ParseEther(args[2])
			} else {
				value, err = game.PlayAmount(ctx)
			}
			if err != nil {
				return fmt.Errorf("amount: %w", err)
			}
			tx, err = game.StartQuiz(ctx, key, answer, value)
		}
		if err != nil {
			return err
		}
		return waitAndReport(ctx, game, tx)
	}
	return fmt.Errorf("unknown contract action %q", args[0])
}

func waitAndReport(ctx context.Context, game *QuizGame, tx *types.Transaction) error {
	log.Printf("sent %s, waiting for receipt", tx.Hash().Hex())
	r, err := game.WaitReceipt(ctx, tx.Hash())
	if err != nil {
		return err
	}
	log.Printf("mined in block %s (gas used %d)", r.BlockNumber, r.GasUsed)
	return nil
}

func runRegisterCoin(cfg Config, args []string) error {
	if len(args) != 5 {
		return errors.New("usage: quizdrop register-coin <address> <txHash> <name> <symbol> <creator>")
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	coin, err := RegisterCoin(db, CreateCoinReq{
		CoinAddress:    args[0],
		TxHash:         args[1],
		Name:           args[2],
		Symbol:         args[3],
		CreatorAddress: args[4],
		ChainID:        cfg.ChainID,
	}, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "registered %s (%s) at %s\n", coin.Name, coin.Symbol, coin.CoinAddress)
	return nil
}
