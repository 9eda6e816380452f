package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const usage = `usage: quizdrop [command]

commands:
  serve                                                  run the HTTP server (default)
  seed <file>                                            load quiz cards from JSON
  balances <address>                                     ERC-20 balances of registered coins
  contract info|set-play-amount <ether>|withdraw         QuizGame operator actions
  contract start-quiz <answer> [ether]|complete-quiz <answer>
  register-coin <address> <txHash> <name> <symbol> <creator>`

// App holds everything the routes need.
type App struct {
	cfg      Config
	db       *gorm.DB
	redis    *redis.Client  // nil without REDIS_ADDR
	reader   ContractReader // nil without RPC_URL
	chain    Chain
	game     *QuizGame // nil without RPC_URL or a deployment on the chain
	board    *Leaderboard
	nonces   NonceStore
	tokens   *TokenIssuer
	relay    *Relay
	wallet   *Wallet
	sessions *GameSessions
}

func main() {
	cfg := LoadConfig()

	cmd, args := "serve", os.Args[1:]
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "serve":
		err = serve(cfg)
	case "seed":
		err = runSeed(cfg, args)
	case "balances":
		err = runBalances(cfg, args)
	case "contract":
		err = runContract(cfg, args)
	case "register-coin":
		err = runRegisterCoin(cfg, args)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

func openStore(cfg Config) (*gorm.DB, error) {
	db, err := OpenDB(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// dialChain connects to RPC_URL. Both results are nil when no RPC is configured.
func dialChain(ctx context.Context, cfg Config) (*ethclient.Client, *QuizGame, Chain, error) {
	chain, err := LookupChain(cfg.ChainID)
	if err != nil {
		return nil, nil, Chain{}, fmt.Errorf("chain %d: %w", cfg.ChainID, err)
	}
	if cfg.RPCURL == "" {
		return nil, nil, chain, nil
	}
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, nil, chain, fmt.Errorf("dial rpc: %w", err)
	}
	if !chain.Deployed() {
		log.Printf("no QuizGame deployment on %s; contract routes disabled", chain.Name)
		return client, nil, chain, nil
	}
	return client, NewQuizGame(chain.QuizGame, client, chain.ID), chain, nil
}

func newApp(ctx context.Context, cfg Config) (*App, error) {
	db, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	app := &App{cfg: cfg, db: db}

	if cfg.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := app.redis.Ping(pingCtx).Err(); err != nil {
			log.Printf("redis %s unreachable, falling back where possible: %v", cfg.RedisAddr, err)
		}
		cancel()
	}

	client, game, chain, err := dialChain(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if client != nil {
		app.reader = client
	}
	app.chain, app.game = chain, game

	var llm, info Completer
	if cfg.GroqAPIKey != "" {
		llm = NewOpenAICompleter(cfg.GroqAPIKey, cfg.LLMBaseURL, false)
		info = NewOpenAICompleter(cfg.GroqAPIKey, cfg.LLMBaseURL, true)
	}
	app.relay = NewRelay(llm, cfg.QuizModel, cfg.InfoModel, cfg.LLMTimeout).WithInfo(info)
	app.wire()
	return app, nil
}

// wire builds the services that only depend on already opened resources.
func (a *App) wire() {
	a.board = NewLeaderboard(a.redis, a.db)
	if a.redis != nil {
		a.nonces = NewRedisNonceStore(a.redis)
	} else {
		a.nonces = NewMemoryNonceStore()
	}
	a.tokens = NewTokenIssuer(a.cfg.JWTSecret)
	a.wallet = NewWallet(a.db, a.cfg.StartBalance)
	a.sessions = NewGameSessions(a.db, a.game, a.chain.ID, a.board, a.cfg.ReceiptWait)
	if a.relay == nil {
		a.relay = NewRelay(nil, a.cfg.QuizModel, a.cfg.InfoModel, a.cfg.LLMTimeout)
	}
}

func seedIfEmpty(db *gorm.DB) error {
	isEmpty, err := IsQuizTableEmpty(db)
	if err != nil || !isEmpty {
		return err
	}
	path := "data/quizzes.json"
	if _, err := os.Stat(path); err == nil {
		n, err := SeedFromJSON(db, path)
		if err != nil {
			return err
		}
		log.Printf("Seeded %d quizzes from %s", n, path)
		return nil
	}
	if err := SeedQuizzes(db, defaultQuizzes, time.Now()); err != nil {
		return err
	}
	log.Printf("Seeded %d built-in quizzes", len(defaultQuizzes))
	return nil
}

func allowOrigin(allowed []string) func(string) bool {
	return func(origin string) bool {
		if slices.Contains(allowed, origin) {
			return true
		}
		// any local dev server
		return strings.HasPrefix(origin, "http://localhost:") || strings.HasPrefix(origin, "http://127.0.0.1:")
	}
}

func newRouter(a *App) *gin.Engine {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOriginFunc:  allowOrigin(a.cfg.AllowOrigins),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", publicIDHdr},
		ExposeHeaders:    []string{publicIDHdr},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// LLM relay keeps its root paths
	r.GET("/", Welcome())
	r.GET("/health", Health())
	r.GET("/random-info", RandomInfo(a.relay))
	r.GET("/quiz", SampleQuizHandler(a.relay))
	r.POST("/generate-ai-quiz", GenerateAIQuiz(a.relay))

	auth := r.Group("/api/v1/auth", SignInUser(a.db, a.tokens, a.cfg.SecureCookies))
	{
		auth.POST("/nonce", IssueNonce(a.nonces))
		auth.POST("/verify", VerifySignIn(a.db, a.nonces, a.tokens, a.cfg.SecureCookies))
	}

	api := r.Group("/api/v1", EnsureUser(a.db, a.tokens, a.cfg.SecureCookies))
	{
		// Identity
		api.GET("/me", GetMe(a.db))
		api.PUT("/me", UpdateMe(a.db))
		api.GET("/me/export-key", ExportKey())
		api.POST("/me/restore", RestoreAccount(a.db, a.cfg.SecureCookies))

		// Quiz cards
		api.GET("/quizzes", ListActiveQuizzes(a.db))
		api.POST("/quizzes", CreateQuiz(a.db))
		api.POST("/quizzes/import", ImportAIQuiz(a.db))
		api.GET("/quizzes/:id", GetQuiz(a.db))
		api.POST("/quizzes/:id/answer", AnswerQuiz(a.db, a.board))

		// Progress & history
		api.GET("/progress", GetProgress(a.db))
		api.PUT("/progress", PutProgress(a.db, a.board))
		api.POST("/attempts", RecordAttempt(a.db))
		api.GET("/attempts", ListMyAttempts(a.db))
		api.GET("/stats", Stats(a.db))
		api.GET("/leaderboard/:board", GetLeaderboard(a.board))

		// Rewards & wallet
		api.GET("/rewards", ListRewards())
		api.POST("/rewards/claim", ClaimRewardHandler(a.db, a.board))
		api.GET("/rewards/claimed", ListClaimedRewards(a.db))
		api.GET("/wallet", GetWallet(a.wallet))
		api.POST("/wallet/deposit", DepositToPlay(a.wallet, a.cfg.PlayDeposit))
		api.GET("/wallet/transactions", ListWalletTransactions(a.db))
		api.POST("/wallet/transactions", RecordWalletTransaction(a.db))

		// Notifications
		api.POST("/notifications", SendToast(a.db))
		api.GET("/notifications", ListMyNotifications(a.db))
		api.GET("/notifications/recent", ListRecentNotifications(a.db))

		// On-chain play
		api.GET("/chain/chains", ListChains())
		api.GET("/chain/info", ChainInfo(a.game, a.chain))
		api.GET("/chain/sessions/:address", ChainSession(a.game))
		api.POST("/game/sessions", StartGameSession(a.sessions))
		api.GET("/game/sessions", ListGameSessions(a.db))
		api.GET("/game/sessions/:id", GetGameSession(a.sessions))
		api.POST("/game/sessions/:id/answer", AnswerGameSession(a.sessions))
		api.POST("/game/sessions/:id/complete", CompleteGameSession(a.sessions))

		// Quiz coins
		api.GET("/coins", ListCoins(a.db))
		api.POST("/coins", CreateCoin(a.db))
		api.GET("/coins/stats", CoinStats(a.db))
		api.GET("/coins/balances/:address", CoinBalancesHandler(a.db, a.reader))
		api.GET("/coins/:address", GetCoin(a.db))
		api.PATCH("/coins/:address", UpdateCoinDescription(a.db))
		api.DELETE("/coins/:address", DeleteCoinHandler(a.db))
		api.GET("/coins/:address/questions", ListCoinQuestions(a.db))
		api.POST("/coins/:address/questions", AddCoinQuestions(a.db))
	}

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func serve(cfg Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	if err := seedIfEmpty(app.db); err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	go RunNotificationJanitor(ctx, app.db, time.Minute)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: newRouter(app)}
	errc := make(chan error, 1)
	go func() {
		log.Printf("Listening on :%s (SecureCookies=%v, chain=%s, redis=%v, llm=%v)",
			cfg.Port, cfg.SecureCookies, app.chain.Name, app.redis != nil, cfg.GroqAPIKey != "")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if app.redis != nil {
		_ = app.redis.Close()
	}
	return nil
}
