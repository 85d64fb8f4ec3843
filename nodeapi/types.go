package nodeapi

import "encoding/json"

// Block is one entry of the last_blocks response.
type Block struct {
	Header BlockHeader `json:"header"`
	Body   BlockBody   `json:"body"`
}

// BlockHeader carries the block metadata the monitor displays.
type BlockHeader struct {
	Seq          uint64 `json:"seq"`
	Hash         string `json:"block_hash"`
	PreviousHash string `json:"previous_block_hash"`
	Timestamp    int64  `json:"timestamp"`
	Fee          uint64 `json:"fee"`
	Version      uint32 `json:"version"`
}

// BlockBody keeps transactions opaque.
type BlockBody struct {
	Transactions []json.RawMessage `json:"txns"`
}

type lastBlocksResponse struct {
	Blocks []Block `json:"blocks"`
}

// CoinSupply is the coinSupply response. Amounts are decimal strings as
// reported by the node.
type CoinSupply struct {
	CurrentSupply         string   `json:"current_supply"`
	TotalSupply           string   `json:"total_supply"`
	MaxSupply             string   `json:"max_supply"`
	CurrentCoinHourSupply string   `json:"current_coinhour_supply"`
	TotalCoinHourSupply   string   `json:"total_coinhour_supply"`
	UnlockedAddresses     []string `json:"unlocked_distribution_addresses"`
	LockedAddresses       []string `json:"locked_distribution_addresses"`
}

// ConnectionStatus is the network/connections response.
type ConnectionStatus struct {
	Connections []Connection `json:"connections"`
}

// HasActive reports whether the node has at least one peer.
func (s *ConnectionStatus) HasActive() bool {
	return s != nil && len(s.Connections) > 0
}

// Connection describes a single peer.
type Connection struct {
	ID           int    `json:"id"`
	Address      string `json:"address"`
	LastSent     int64  `json:"last_sent"`
	LastReceived int64  `json:"last_received"`
	Outgoing     bool   `json:"outgoing"`
	Introduced   bool   `json:"introduced"`
	ListenPort   uint16 `json:"listen_port"`
	Height       uint64 `json:"height"`
}

// BalancePair is a coins/hours amount.
type BalancePair struct {
	Coins uint64 `json:"coins"`
	Hours uint64 `json:"hours"`
}

// Balance is the balance of one wallet.
type Balance struct {
	Wallet    string      `json:"wallet"`
	Confirmed BalancePair `json:"confirmed"`
	Predicted BalancePair `json:"predicted"`
}

type balancesResponse struct {
	Wallets []Balance `json:"wallets"`
}
