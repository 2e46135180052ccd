package entity

import "math/big"

// BalanceRequestType defines the type of balance request.
type BalanceRequestType int

const (
	// NativeBalanceRequest requests the native balance of a wallet.
	NativeBalanceRequest BalanceRequestType = iota
	// TokenBalanceRequest requests the balance of a specific token for a wallet.
	TokenBalanceRequest
)

// BalanceRequestItem is a single element of an RPC balance batch.
type BalanceRequestItem struct {
	Type          BalanceRequestType
	WalletAddress string
	Token         TokenInfo
}

// BalanceResultItem is the decoded answer to a BalanceRequestItem.
type BalanceResultItem struct {
	Request BalanceRequestItem
	Balance *big.Int
	Error   error
}
