package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wallet-scout/pkg/config"
	"github.com/wallet-scout/pkg/upstream"
)

// TelegramAlerter posts markdown alerts through the Bot API.
type TelegramAlerter struct {
	token  string
	chatID string
	http   *http.Client
}

func NewTelegramAlerter(token, chatID string) *TelegramAlerter {
	return &TelegramAlerter{
		token:  token,
		chatID: chatID,
		http:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramAlerter) EmitAlert(ctx context.Context, a Alert) error {
	payload, _ := json.Marshal(map[string]interface{}{
		"chat_id":                  t.chatID,
		"text":                     FormatAlert(a),
		"parse_mode":               "Markdown",
		"disable_web_page_preview": true,
	})

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: telegram: %v", upstream.ErrTransientUpstream, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		log.Debug().Str("kind", a.Kind).Str("token", a.TokenSymbol).Msg("📤 alert delivered")
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("%w: telegram status %d: %s", upstream.ErrTransientUpstream, resp.StatusCode, body)
	default:
		return fmt.Errorf("telegram rejected alert: status %d: %s", resp.StatusCode, body)
	}
}

// FormatAlert renders the chat message: header, token line with explorer
// link, then one stats line per wallet.
func FormatAlert(a Alert) string {
	var b strings.Builder

	emoji := "🟢"
	action := "BUY"
	if a.Kind == KindSellConfluence {
		emoji = "🔴"
		action = "SELL"
	}

	symbol := a.TokenSymbol
	if symbol == "" {
		symbol = shortAddr(a.Token)
	}

	fmt.Fprintf(&b, "%s *%s CONFLUENCE* — %d wallets, %s\n\n", emoji, action, len(a.Wallets), strings.ToUpper(string(a.Chain)))
	fmt.Fprintf(&b, "*%s* `%s`\n", symbol, a.Token)
	if a.PriceUSD > 0 {
		fmt.Fprintf(&b, "Price: $%s\n", trimFloat(a.PriceUSD))
	}
	fmt.Fprintf(&b, "Window: %ds\n\n", a.WindowMS/1000)

	for _, w := range a.Wallets {
		fmt.Fprintf(&b, "[%s](%s)\n", shortAddr(w.Address), explorerURL(a.Chain, w.Address))
		fmt.Fprintf(&b, "  30d: %d trades | PnL $%s real / $%s unreal | best %.1fx | early %.0f\n",
			w.TradeCount, trimFloat(w.RealizedUSD), trimFloat(w.UnrealizedUSD), w.BestMultiple, w.EarlyMedian)
	}

	return b.String()
}

func explorerURL(chain config.Chain, addr string) string {
	switch chain {
	case config.ChainEthereum:
		return "https://etherscan.io/address/" + addr
	case config.ChainBase:
		return "https://basescan.org/address/" + addr
	case config.ChainArbitrum:
		return "https://arbiscan.io/address/" + addr
	case config.ChainSolana:
		return "https://solscan.io/account/" + addr
	default:
		return addr
	}
}

func shortAddr(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}

func trimFloat(f float64) string {
	if f >= 1000 || f <= -1000 {
		return fmt.Sprintf("%.0f", f)
	}
	if f >= 1 || f <= -1 {
		return fmt.Sprintf("%.2f", f)
	}
	return fmt.Sprintf("%.6f", f)
}
