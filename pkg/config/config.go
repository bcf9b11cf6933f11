package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Chain string

const (
	ChainEthereum Chain = "eth"
	ChainBase     Chain = "base"
	ChainArbitrum Chain = "arbitrum"
	ChainSolana   Chain = "solana"
)

func AllEVMChains() []Chain {
	return []Chain{ChainEthereum, ChainBase, ChainArbitrum}
}

func AllChains() []Chain {
	return []Chain{ChainEthereum, ChainBase, ChainArbitrum, ChainSolana}
}

func IsEVM(c Chain) bool {
	return c != ChainSolana
}

// NormalizeAddress lowercases EVM addresses; Solana addresses are case-sensitive.
func NormalizeAddress(chain Chain, addr string) string {
	addr = strings.TrimSpace(addr)
	if IsEVM(chain) {
		return strings.ToLower(addr)
	}
	return addr
}

type CuratedWallet struct {
	Address string
	Chain   Chain
	Label   string
}

type Weights struct {
	PnL      float64
	Activity float64
	Early    float64
}

type Config struct {
	Chains []Chain

	// Intervals
	IngestInterval  time.Duration
	DiscoverInterval time.Duration
	MonitorInterval time.Duration
	StatsInterval   time.Duration
	WatchlistCron   string

	// Discovery
	DiscoveryLookback  time.Duration
	TransferBlockRange map[Chain]int64
	PoolSendThreshold  int
	DiscoveryPoolSize  int

	// Safety gate
	MinLiquidityUSD float64
	MinVolume24hUSD float64
	MaxTaxPct       float64

	// Confluence
	ConfluenceWindow time.Duration
	MinConfluence    int

	// Watchlist
	WatchlistTopN    int
	ScoreWeights     Weights
	AdaptiveWeights  bool
	MinTrades        int
	MinMultiple      float64
	NegPnLThreshold  float64
	EarlyMedianFloor float64
	MultipleFloor    float64

	// Monitor
	MonitorPoolSize      int
	MonitorTransferLimit int

	// Providers
	AlchemyAPIKey string
	HeliusAPIKey  string
	BirdeyeAPIKey string

	// Alert transport
	TelegramBotToken string
	TelegramChatID   string

	// Storage
	DBPath    string
	RedisAddr string
	RedisDB   int

	// Dashboard
	DashboardPort int

	// Curated wallets watched regardless of score
	AlwaysWatch []CuratedWallet

	stablecoinExclusions map[Chain]map[string]bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		IngestInterval:   envDur("INGEST_INTERVAL", 5*time.Minute),
		DiscoverInterval: envDur("DISCOVER_INTERVAL", 7*time.Minute),
		MonitorInterval:  envDur("MONITOR_INTERVAL", 2*time.Minute),
		StatsInterval:    envDur("STATS_INTERVAL", 15*time.Minute),
		WatchlistCron:    envOr("WATCHLIST_MAINTENANCE_CRON", "10 4 * * *"),

		DiscoveryLookback: time.Duration(envInt("DISCOVERY_LOOKBACK_HOURS", 3)) * time.Hour,
		PoolSendThreshold: envInt("POOL_SEND_THRESHOLD", 2),
		DiscoveryPoolSize: envInt("DISCOVERY_POOL_SIZE", 8),

		MinLiquidityUSD: envFloat("MIN_LIQUIDITY_USD", 50000),
		MinVolume24hUSD: envFloat("MIN_VOLUME_24H_USD", 50000),
		MaxTaxPct:       envFloat("MAX_TAX_PCT", 10),

		ConfluenceWindow: envDur("CONFLUENCE_WINDOW", 30*time.Minute),
		MinConfluence:    envInt("MIN_CONFLUENCE", 2),

		WatchlistTopN: envInt("WATCHLIST_TOP_N", 30),
		ScoreWeights: Weights{
			PnL:      envFloat("WEIGHT_PNL", 0.30),
			Activity: envFloat("WEIGHT_ACTIVITY", 0.30),
			Early:    envFloat("WEIGHT_EARLY", 0.40),
		},
		AdaptiveWeights:  envOr("ADAPTIVE_WEIGHTS", "false") == "true",
		MinTrades:        envInt("MIN_TRADES", 1),
		MinMultiple:      envFloat("MIN_MULTIPLE", 1.0),
		NegPnLThreshold:  envFloat("NEG_PNL_THRESHOLD", 0),
		EarlyMedianFloor: envFloat("EARLY_MEDIAN_FLOOR", 20),
		MultipleFloor:    envFloat("MULTIPLE_FLOOR", 2.0),

		MonitorPoolSize:      envInt("MONITOR_POOL_SIZE", 16),
		MonitorTransferLimit: envInt("MONITOR_TRANSFER_LIMIT", 25),

		AlchemyAPIKey: os.Getenv("ALCHEMY_API_KEY"),
		HeliusAPIKey:  os.Getenv("HELIUS_API_KEY"),
		BirdeyeAPIKey: os.Getenv("BIRDEYE_API_KEY"),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   os.Getenv("TELEGRAM_CHAT_ID"),

		DBPath:    envOr("DB_PATH", "wallet_scout.db"),
		RedisAddr: envOr("REDIS_ADDR", "localhost:6379"),
		RedisDB:   envInt("REDIS_DB", 0),

		DashboardPort: envInt("DASHBOARD_PORT", 8080),
	}

	// Enabled chains
	chains := splitTrim(envOr("CHAINS", "eth,base,arbitrum,solana"))
	for _, c := range chains {
		cfg.Chains = append(cfg.Chains, Chain(c))
	}

	// Transfer windows per chain, in blocks
	cfg.TransferBlockRange = map[Chain]int64{
		ChainEthereum: int64(envInt("ETH_TRANSFER_BLOCK_RANGE", 1000)),
		ChainBase:     int64(envInt("BASE_TRANSFER_BLOCK_RANGE", 5000)),
		ChainArbitrum: int64(envInt("ARB_TRANSFER_BLOCK_RANGE", 5000)),
	}

	// Parse curated wallets: "addr:chain:label,addr:chain:label"
	for _, w := range splitTrim(os.Getenv("ALWAYS_WATCH")) {
		parts := strings.SplitN(w, ":", 3)
		if len(parts) >= 2 {
			cw := CuratedWallet{
				Address: NormalizeAddress(Chain(parts[1]), parts[0]),
				Chain:   Chain(parts[1]),
			}
			if len(parts) == 3 {
				cw.Label = parts[2]
			}
			cfg.AlwaysWatch = append(cfg.AlwaysWatch, cw)
		}
	}

	cfg.stablecoinExclusions = buildExclusions(splitTrim(os.Getenv("STABLECOIN_EXCLUSIONS")))

	return cfg, nil
}

func (c *Config) Validate() error {
	if len(c.Chains) == 0 {
		return fmt.Errorf("no chains configured")
	}
	hasEVM := false
	hasSolana := false
	for _, ch := range c.Chains {
		if IsEVM(ch) {
			hasEVM = true
		} else {
			hasSolana = true
		}
	}
	if hasEVM && c.AlchemyAPIKey == "" {
		return fmt.Errorf("EVM chains enabled but ALCHEMY_API_KEY is empty")
	}
	if hasSolana && c.HeliusAPIKey == "" {
		return fmt.Errorf("solana enabled but HELIUS_API_KEY is empty")
	}
	return nil
}

// IsExcludedToken reports whether a token must never produce trades or alerts
// (stablecoins and wrapped natives).
func (c *Config) IsExcludedToken(chain Chain, addr string) bool {
	set := c.stablecoinExclusions[chain]
	if set == nil {
		return false
	}
	return set[NormalizeAddress(chain, addr)]
}

// buildExclusions merges the built-in stablecoin/wrapped-native set with
// extra "chain:address" entries from the environment.
func buildExclusions(extra []string) map[Chain]map[string]bool {
	out := map[Chain]map[string]bool{}
	add := func(chain Chain, addr string) {
		if out[chain] == nil {
			out[chain] = map[string]bool{}
		}
		out[chain][NormalizeAddress(chain, addr)] = true
	}
	for chain, addrs := range defaultExclusions {
		for _, a := range addrs {
			add(chain, a)
		}
	}
	for _, e := range extra {
		parts := strings.SplitN(e, ":", 2)
		if len(parts) == 2 {
			add(Chain(parts[0]), parts[1])
		}
	}
	return out
}

var defaultExclusions = map[Chain][]string{
	ChainEthereum: {
		"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", // USDC
		"0xdac17f958d2ee523a2206206994597c13d831ec7", // USDT
		"0x6b175474e89094c44da98b954eedeac495271d0f", // DAI
		"0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", // WETH
	},
	ChainBase: {
		"0x833589fcd6edb6e08f4c7c32d4f71b54bda02913", // USDC
		"0x4200000000000000000000000000000000000006", // WETH
	},
	ChainArbitrum: {
		"0xaf88d065e77c8cc2239327c5edb3a432268e5831", // USDC
		"0xfd086bc7cd5c481dcc9c85ebe478a1c0b69fcbb9", // USDT
		"0x82af49447d8a07e3bd95bd0d56f35241523fbab1", // WETH
	},
	ChainSolana: {
		"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", // USDC
		"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB", // USDT
		"So11111111111111111111111111111111111111112",  // wSOL
	},
}

// DEXRouters lists router/aggregator contracts per chain. Routers relay
// swaps for many users; counting them as buyer wallets would poison
// discovery, so they are excluded outright.
var DEXRouters = map[Chain][]string{
	ChainEthereum: {
		"0x7a250d5630b4cf539739df2c5dacb4c659f2488d", // Uniswap V2
		"0xe592427a0aece92de3edee1f18e0157c05861564", // Uniswap V3
		"0x68b3465833fb72a70ecdf485e0e4c7bd8665fc45", // Uniswap V3 Router 2
		"0x1111111254eeb25477b68fb85ed929f73a960582", // 1inch v5
		"0xdef1c0ded9bec7f1a1670819833240f027b25eff", // 0x
	},
	ChainBase: {
		"0x2626664c2603336e57b271c5c0b26f421741e481", // Uniswap V3
		"0x4752ba5dbc23f44d87826276bf6fd6b1c372ad24", // Uniswap V2
		"0x19ceead7105607cd444f5ad10dd51356436095a1", // Odos
	},
	ChainArbitrum: {
		"0xe592427a0aece92de3edee1f18e0157c05861564", // Uniswap V3
		"0x1111111254eeb25477b68fb85ed929f73a960582", // 1inch v5
		"0xc873fecbd354f5a56e00e710b90ef4201db2448d", // Camelot
	},
	ChainSolana: {
		"JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4", // Jupiter v6
		"675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8", // Raydium AMM
	},
}

var routerSets = func() map[Chain]map[string]bool {
	out := map[Chain]map[string]bool{}
	for chain, addrs := range DEXRouters {
		set := map[string]bool{}
		for _, a := range addrs {
			set[NormalizeAddress(chain, a)] = true
		}
		out[chain] = set
	}
	return out
}()

func IsDEXRouter(chain Chain, addr string) bool {
	return routerSets[chain][NormalizeAddress(chain, addr)]
}

// helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDur(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
