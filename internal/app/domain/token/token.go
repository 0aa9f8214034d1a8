// Package token classifies token identifiers into the closed set of
// transfer mechanisms the payout engine supports.
package token

import "strings"

// Kind discriminates the supported transfer mechanisms.
type Kind string

const (
	// KindNative is a direct native-currency transfer.
	KindNative Kind = "native"
	// KindFungible is a transfer call against a fungible token contract.
	KindFungible Kind = "fungible"
	// KindBridged is a withdrawal through the multi-asset intents
	// intermediary, which performs the underlying transfer or burn.
	KindBridged Kind = "bridged"
)

// BridgedPrefix marks token ids settled through the intents intermediary.
const BridgedPrefix = "nep141:"

// Class is a parsed token identifier.
type Class struct {
	Kind Kind
	// Contract is the fungible token contract id (KindFungible) or the
	// underlying token id to withdraw (KindBridged). Empty for native.
	Contract string
}

// Parse classifies a raw token id. The set is closed: anything that is not
// native and not bridged is a fungible token contract id.
func Parse(tokenID string) Class {
	switch tokenID {
	case "native", "near", "NEAR":
		return Class{Kind: KindNative}
	}
	if rest, ok := strings.CutPrefix(tokenID, BridgedPrefix); ok {
		return Class{Kind: KindBridged, Contract: rest}
	}
	return Class{Kind: KindFungible, Contract: tokenID}
}
