package walletloader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio_monitor/internal/domain/entity"
)

func TestLoadWallets(t *testing.T) {
	content := `# monitored wallets
ethereum,0x1111111111111111111111111111111111111111,Main
Solana, 7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU , Phantom

0x2222222222222222222222222222222222222222
0x123
aptos,
tron,TXYZ
`
	path := filepath.Join(t.TempDir(), "wallets.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	var warned []any
	wallets, err := LoadWallets(path, func(msg string, args ...any) { warned = append(warned, args...) })
	require.NoError(t, err)

	assert.Equal(t, []entity.Wallet{
		{Chain: "ethereum", Address: "0x1111111111111111111111111111111111111111", Label: "Main"},
		{Chain: "solana", Address: "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU", Label: "Phantom"},
		{Chain: "ethereum", Address: "0x2222222222222222222222222222222222222222"},
		{Chain: "tron", Address: "TXYZ"},
	}, wallets)
	assert.NotEmpty(t, warned, "malformed lines are reported")
}

func TestLoadWallets_MissingFile(t *testing.T) {
	_, err := LoadWallets(filepath.Join(t.TempDir(), "nope.txt"), nil)
	assert.Error(t, err)
}
