package tokenloader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"portfolio_monitor/internal/domain/entity"
	"portfolio_monitor/internal/pkg/utils"
)

// LoadTokenLists reads {chain}.json files from dir for the given chains.
// A missing directory yields no tokens; a malformed file is reported through warn and skipped.
func LoadTokenLists(dir string, chains []string, warn func(msg string, args ...any)) (map[string][]entity.TokenInfo, error) {
	tokensByChain := make(map[string][]entity.TokenInfo)
	if dir == "" {
		return tokensByChain, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return tokensByChain, nil
		}
		return nil, fmt.Errorf("failed to read token directory %s: %w", dir, err)
	}

	wanted := make(map[string]struct{}, len(chains))
	for _, c := range chains {
		wanted[strings.ToLower(c)] = struct{}{}
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".json") {
			continue
		}
		chain := strings.ToLower(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
		if _, ok := wanted[chain]; !ok {
			continue
		}

		path := filepath.Join(dir, e.Name())
		var tokens []entity.TokenInfo
		if err := utils.LoadJSONFile(path, &tokens); err != nil {
			if warn != nil {
				warn("Failed to load token file, skipping", "path", path, "error", err)
			}
			continue
		}

		valid := make([]entity.TokenInfo, 0, len(tokens))
		for _, t := range tokens {
			if strings.TrimSpace(t.Address) == "" {
				if warn != nil {
					warn("Token without address, skipping", "path", path, "symbol", t.Symbol)
				}
				continue
			}
			t.Chain = chain
			valid = append(valid, t)
		}
		tokensByChain[chain] = append(tokensByChain[chain], valid...)
	}
	return tokensByChain, nil
}

// LoadRegistry reads extra registry entries from a JSON array file. An empty path yields none.
func LoadRegistry(path string) ([]entity.RegistryEntry, error) {
	if path == "" {
		return nil, nil
	}

	var raw []struct {
		Chain    string `json:"chain"`
		Address  string `json:"address"`
		Symbol   string `json:"symbol"`
		Name     string `json:"name"`
		Protocol string `json:"protocol"`
		Category string `json:"category"`
	}
	if err := utils.LoadJSONFile(path, &raw); err != nil {
		return nil, fmt.Errorf("failed to load registry file %s: %w", path, err)
	}

	entries := make([]entity.RegistryEntry, 0, len(raw))
	for i, r := range raw {
		category, err := entity.ParseTokenCategory(r.Category)
		if err != nil {
			return nil, fmt.Errorf("registry entry %d (%s): %w", i, r.Address, err)
		}
		if r.Chain == "" || r.Address == "" {
			return nil, fmt.Errorf("registry entry %d: chain and address are required", i)
		}
		entries = append(entries, entity.RegistryEntry{
			Chain:    strings.ToLower(r.Chain),
			Address:  r.Address,
			Symbol:   strings.ToUpper(r.Symbol),
			Name:     r.Name,
			Protocol: r.Protocol,
			Category: category,
		})
	}
	return entries, nil
}
