package model

// JournalEntry is the JSON representation of one applied transfer effect.
type JournalEntry struct {
	BlockNumber uint64 `json:"block_number"`
	BlockHash   string `json:"block_hash"`
	TxHash      string `json:"tx_hash"`
	EventIndex  int    `json:"event_index"`
	Contract    string `json:"contract"`
	Kind        string `json:"kind"`
	From        string `json:"from"`
	To          string `json:"to"`
	TokenID     string `json:"token_id"`
	Amount      string `json:"amount,omitempty"`
	CommittedAt string `json:"committed_at"`
}
