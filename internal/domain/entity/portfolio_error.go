package entity

// PortfolioError records a wallet that was left out of a snapshot.
type PortfolioError struct {
	Chain         string `json:"chain"`
	WalletAddress string `json:"walletAddress"`
	Label         string `json:"label,omitempty"`
	Kind          string `json:"kind"`
	Message       string `json:"message"`
}
