package cart

import (
	"bytes"
	"encoding/json"
	"fmt"

	pkgerrors "github.com/angelmondragon/gomarketplace/pkg/errors"
)

// StorageKey is the kv slot holding the cart snapshot.
const StorageKey = "@GoMarketplace:products"

// EncodeItems serializes the cart as a JSON array of line items.
func EncodeItems(items []LineItem) (string, error) {
	if items == nil {
		items = []LineItem{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode cart snapshot: %w", err)
	}
	return string(raw), nil
}

// DecodeItems parses a persisted snapshot. Anything that is not an array of
// line items with unique non-empty ids and non-negative quantities is a
// MALFORMED_PERSISTED_STATE error.
func DecodeItems(raw string) ([]LineItem, error) {
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, pkgerrors.New(pkgerrors.CodeMalformedState, "cart snapshot is not a json array")
	}

	var items []LineItem
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeMalformedState, err, "decode cart snapshot")
	}

	seen := make(map[string]struct{}, len(items))
	for i, item := range items {
		if item.ID == "" {
			return nil, pkgerrors.New(pkgerrors.CodeMalformedState, fmt.Sprintf("line item %d has no id", i))
		}
		if item.Quantity < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeMalformedState, fmt.Sprintf("line item %q has negative quantity", item.ID))
		}
		if _, dup := seen[item.ID]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeMalformedState, fmt.Sprintf("line item %q appears twice", item.ID))
		}
		seen[item.ID] = struct{}{}
	}
	if items == nil {
		items = []LineItem{}
	}
	return items, nil
}
