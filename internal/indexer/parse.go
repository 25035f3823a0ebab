package indexer

import (
	"fmt"
	"strings"

	"tokenSync/internal/model"
)

// ParseContracts converts string addresses into felts.
func ParseContracts(inputs []string) ([]model.Felt, error) {
	contracts := make([]model.Felt, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		felt, err := model.ParseFelt(input)
		if err != nil {
			return nil, fmt.Errorf("invalid contract address: %s", input)
		}
		contracts = append(contracts, felt)
	}
	return contracts, nil
}
