package walletloader

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"portfolio_monitor/internal/domain/entity"
)

// LoadWallets reads wallets from a text file, one per line:
//
//	chain,address[,label]
//
// A bare 0x address of 42 characters is taken as an ethereum wallet.
// Blank lines and lines starting with # are ignored; malformed lines are reported through warn and skipped.
func LoadWallets(filePath string, warn func(msg string, args ...any)) ([]entity.Wallet, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open wallet file %s: %w", filePath, err)
	}
	defer file.Close()

	var wallets []entity.Wallet
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		w, ok := parseLine(line)
		if !ok {
			if warn != nil {
				warn("Skipping invalid wallet line", "file", filePath, "line_number", lineNum, "line", line)
			}
			continue
		}
		wallets = append(wallets, w)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning wallet file %s: %w", filePath, err)
	}
	return wallets, nil
}

func parseLine(line string) (entity.Wallet, bool) {
	if !strings.Contains(line, ",") {
		if strings.HasPrefix(line, "0x") && len(line) == 42 {
			return entity.Wallet{Chain: "ethereum", Address: line}, true
		}
		return entity.Wallet{}, false
	}

	parts := strings.SplitN(line, ",", 3)
	w := entity.Wallet{
		Chain:   strings.ToLower(strings.TrimSpace(parts[0])),
		Address: strings.TrimSpace(parts[1]),
	}
	if len(parts) == 3 {
		w.Label = strings.TrimSpace(parts[2])
	}
	if w.Chain == "" || w.Address == "" {
		return entity.Wallet{}, false
	}
	return w, true
}
