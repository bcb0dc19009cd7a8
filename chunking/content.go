package chunking

import (
	"fmt"
	"sort"
	"strings"

	"github.com/poiesic/vectorpipe/core"
)

// ContentBuilder builds text for a record that has no content field.
type ContentBuilder interface {
	Build(rec core.Record) string
}

// ContentBuilderFunc adapts a function to ContentBuilder.
type ContentBuilderFunc func(rec core.Record) string

func (f ContentBuilderFunc) Build(rec core.Record) string { return f(rec) }

// labelled is one "Label: value" part of built content.
type labelled struct {
	label    string
	path     string
	fallback string
}

// fieldBuilder renders the listed fields as "Label: value" joined by " | ".
// Parts without a fallback are omitted when the field is absent.
type fieldBuilder []labelled

func (b fieldBuilder) Build(rec core.Record) string {
	parts := make([]string, 0, len(b))
	for _, f := range b {
		v, ok := lookup(rec.Fields, f.path)
		switch {
		case ok:
			parts = append(parts, fmt.Sprintf("%s: %v", f.label, v))
		case f.fallback != "":
			parts = append(parts, fmt.Sprintf("%s: %s", f.label, f.fallback))
		}
	}
	return strings.Join(parts, " | ")
}

func defaultBuilders() map[string]ContentBuilder {
	return map[string]ContentBuilder{
		"analytics": fieldBuilder{
			{"Site ID", "siteId", "unknown"},
			{"Total Visitors", "totalVisitors", "0"},
			{"Unique Visitors", "uniqueVisitors", "0"},
			{"Web3 Visitors", "web3Visitors", "0"},
			{"Wallets Connected", "walletsConnected", "0"},
			{"Total Page Views", "totalPageViews", "0"},
		},
		"sessions": fieldBuilder{
			{"Site ID", "siteId", "unknown"},
			{"User ID", "userId", "unknown"},
			{"Duration", "duration", "0"},
			{"Pages Viewed", "pagesViewed", "0"},
			{"Is Bounce", "isBounce", "false"},
			{"Is Web3 User", "isWeb3User", "false"},
			{"Browser", "browser.name", ""},
			{"Device", "device.type", ""},
			{"Wallet", "wallet.walletType", ""},
			{"Chain", "wallet.chainName", ""},
			{"UTM Source", "utmData.source", ""},
			{"UTM Medium", "utmData.medium", ""},
		},
		"transactions": fieldBuilder{
			{"Contract ID", "contractId", "unknown"},
			{"Transaction Hash", "tx_hash", "unknown"},
			{"From Address", "from_address", "unknown"},
			{"To Address", "to_address", "unknown"},
			{"Value ETH", "value_eth", "0"},
			{"Gas Used", "gas_used", "0"},
			{"Status", "status", "unknown"},
			{"Token", "token_name", ""},
			{"Symbol", "token_symbol", ""},
			{"Chain", "chain", ""},
			{"Block", "block_number", ""},
		},
		"campaigns": fieldBuilder{
			{"Campaign", "name", "unknown"},
			{"Status", "status", ""},
			{"Channel", "channel", ""},
			{"Start Date", "startDate", ""},
			{"End Date", "endDate", ""},
			{"Budget", "budget", ""},
			{"Goal", "goal", ""},
		},
		"smart_contracts": fieldBuilder{
			{"Contract", "name", "unknown"},
			{"Address", "address", "unknown"},
			{"Blockchain", "blockchain", ""},
			{"Chain ID", "chainId", ""},
			{"Type", "type", ""},
		},
		"granular_events": fieldBuilder{
			{"Event", "eventType", "unknown"},
			{"Site ID", "siteId", ""},
			{"Page", "page", ""},
			{"Element", "element", ""},
			{"Chain ID", "chainId", ""},
			{"Wallet", "walletAddress", ""},
		},
	}
}

// genericContent renders every scalar field as sorted "key: value" pairs.
func genericContent(rec core.Record) string {
	keys := make([]string, 0, len(rec.Fields))
	for k, v := range rec.Fields {
		if v == nil {
			continue
		}
		switch v.(type) {
		case map[string]any, []any:
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %v", k, rec.Fields[k])
	}
	return strings.Join(parts, " | ")
}
