package model

// RawEvent is an event as emitted by a contract, before classification.
type RawEvent struct {
	FromAddress Felt
	Keys        []Felt
	Data        []Felt
	BlockNumber uint64
	TxHash      Felt
	EventIndex  int
}

// Receipt holds the ordered events of one transaction.
type Receipt struct {
	TransactionHash Felt
	Reverted        bool
	Events          []RawEvent
}

// Block is a ledger block with its transaction receipts in execution order.
type Block struct {
	Number    uint64
	Hash      Felt
	Timestamp uint64
	Receipts  []Receipt
}

// Events flattens the block's receipts into emission order, skipping reverted transactions.
func (b Block) Events() []RawEvent {
	var events []RawEvent
	for _, receipt := range b.Receipts {
		if receipt.Reverted {
			continue
		}
		events = append(events, receipt.Events...)
	}
	return events
}

// ABIEntry describes one entry of a contract interface. Cairo 1 classes nest
// functions under "interface" entries, so Items may be populated.
type ABIEntry struct {
	Type  string     `json:"type"`
	Name  string     `json:"name"`
	Items []ABIEntry `json:"items,omitempty"`
}

// HasFunction reports whether any function entry, nested or not, has one of the names.
func HasFunction(entries []ABIEntry, names ...string) bool {
	for _, entry := range entries {
		if entry.Type == "function" || entry.Type == "l1_handler" {
			for _, name := range names {
				if entry.Name == name {
					return true
				}
			}
		}
		if len(entry.Items) > 0 && HasFunction(entry.Items, names...) {
			return true
		}
	}
	return false
}
