// Package network holds per-network treasury and indexer settings.
package network

import (
	"os"
	"sort"
	"strings"
)

// Track is one OpenGov referendum track shown in the latest activity listing
type Track struct {
	Name             string `json:"name"`
	TrackID          int    `json:"trackId"`
	FellowshipOrigin bool   `json:"fellowshipOrigin,omitempty"`
}

// Socials are the public links shown next to a network's activity feed
type Socials struct {
	Homepage      string `json:"homepage,omitempty"`
	Twitter       string `json:"twitter,omitempty"`
	Discord       string `json:"discord,omitempty"`
	Github        string `json:"github,omitempty"`
	Youtube       string `json:"youtube,omitempty"`
	Reddit        string `json:"reddit,omitempty"`
	Telegram      string `json:"telegram,omitempty"`
	BlockExplorer string `json:"block_explorer,omitempty"`
}

// IsZero reports whether no link is set
func (s Socials) IsZero() bool {
	return s == Socials{}
}

// Properties describes where a network's treasury accounts and governance data live
type Properties struct {
	Name                    string
	TreasuryAddress         string
	AssetHubTreasuryAddress string
	ExternalLinks           string // balance history API base for the relay chain
	AssetHubExternalLinks   string // balance history API base for the asset hub
	IndexerURL              string
	Tracks                  []Track
	Socials                 Socials
}

// BalanceHistoryPath is appended to a network's API base to reach the balance history endpoint
const BalanceHistoryPath = "/api/scan/account/balance_history"

// BalanceHistoryURL returns the balance history endpoint for an API base, or "" when base is unset
func BalanceHistoryURL(base string) string {
	if base == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + BalanceHistoryPath
}

// Registry resolves network names to their properties
type Registry struct {
	networks map[string]Properties
}

var polkadotTracks = []Track{
	{Name: "root", TrackID: 0},
	{Name: "whitelisted_caller", TrackID: 1},
	{Name: "wish_for_change", TrackID: 2},
	{Name: "staking_admin", TrackID: 10},
	{Name: "treasurer", TrackID: 11},
	{Name: "lease_admin", TrackID: 12},
	{Name: "fellowship_admin", TrackID: 13},
	{Name: "general_admin", TrackID: 14},
	{Name: "auction_admin", TrackID: 15},
	{Name: "referendum_canceller", TrackID: 20},
	{Name: "referendum_killer", TrackID: 21},
	{Name: "small_tipper", TrackID: 30},
	{Name: "big_tipper", TrackID: 31},
	{Name: "small_spender", TrackID: 32},
	{Name: "medium_spender", TrackID: 33},
	{Name: "big_spender", TrackID: 34},
}

var kusamaTracks = append(append([]Track{}, polkadotTracks...),
	Track{Name: "candidates", TrackID: 0, FellowshipOrigin: true},
	Track{Name: "members", TrackID: 1, FellowshipOrigin: true},
	Track{Name: "proficients", TrackID: 2, FellowshipOrigin: true},
	Track{Name: "fellows", TrackID: 3, FellowshipOrigin: true},
)

func builtins() map[string]Properties {
	return map[string]Properties{
		"polkadot": {
			Name:                    "polkadot",
			TreasuryAddress:         "13UVJyLnbVp9RBZYFwFGyDvVd1y27Tt8tkntv6Q7JVPhFsTB",
			AssetHubTreasuryAddress: "14xmwinmCEz6oRrFdczHKqHgWNMiCysE2KrA4jXXAAM1Eogk",
			ExternalLinks:           "https://polkadot.api.subscan.io",
			AssetHubExternalLinks:   "https://assethub-polkadot.api.subscan.io",
			IndexerURL:              "https://squid.subsquid.io/polkassembly-polkadot/graphql",
			Tracks:                  polkadotTracks,
			Socials: Socials{
				Homepage:      "https://polkadot.network",
				Twitter:       "https://twitter.com/Polkadot",
				Discord:       "https://discord.gg/polkadot",
				Github:        "https://github.com/paritytech/polkadot-sdk",
				Youtube:       "https://www.youtube.com/@PolkadotNetwork",
				Reddit:        "https://www.reddit.com/r/polkadot",
				Telegram:      "https://t.me/PolkadotOfficial",
				BlockExplorer: "https://polkadot.subscan.io",
			},
		},
		"kusama": {
			Name:            "kusama",
			TreasuryAddress: "F3opxRbN5ZbjJNU511Kj2TLuzFcDq9BGduA9TgiECafpg29",
			ExternalLinks:   "https://kusama.api.subscan.io",
			IndexerURL:      "https://squid.subsquid.io/polkassembly-kusama/graphql",
			Tracks:          kusamaTracks,
			Socials: Socials{
				Homepage:      "https://kusama.network",
				Twitter:       "https://twitter.com/kusamanetwork",
				Discord:       "https://discord.gg/kusama",
				Github:        "https://github.com/paritytech/polkadot-sdk",
				Reddit:        "https://www.reddit.com/r/Kusama",
				Telegram:      "https://t.me/kusamanetworkofficial",
				BlockExplorer: "https://kusama.subscan.io",
			},
		},
	}
}

// NewRegistry builds a registry from the built-in networks plus any env overrides.
// For a network named foo the overrides are FOO_TREASURY_ADDRESS,
// FOO_ASSETHUB_TREASURY_ADDRESS, FOO_SUBSCAN_URL, FOO_ASSETHUB_SUBSCAN_URL and FOO_INDEXER_URL.
func NewRegistry() *Registry {
	networks := builtins()
	for name, props := range networks {
		networks[name] = applyOverrides(props)
	}
	return &Registry{networks: networks}
}

// NewRegistryFrom builds a registry from an explicit set of networks
func NewRegistryFrom(props ...Properties) *Registry {
	networks := make(map[string]Properties, len(props))
	for _, p := range props {
		networks[strings.ToLower(p.Name)] = p
	}
	return &Registry{networks: networks}
}

func applyOverrides(p Properties) Properties {
	prefix := strings.ToUpper(p.Name) + "_"
	override := func(dst *string, key string) {
		if v := os.Getenv(prefix + key); v != "" {
			*dst = v
		}
	}
	override(&p.TreasuryAddress, "TREASURY_ADDRESS")
	override(&p.AssetHubTreasuryAddress, "ASSETHUB_TREASURY_ADDRESS")
	override(&p.ExternalLinks, "SUBSCAN_URL")
	override(&p.AssetHubExternalLinks, "ASSETHUB_SUBSCAN_URL")
	override(&p.IndexerURL, "INDEXER_URL")
	return p
}

// Get returns the properties for a network
func (r *Registry) Get(network string) (Properties, bool) {
	p, ok := r.networks[strings.ToLower(network)]
	return p, ok
}

// IsValid reports whether the network is served
func (r *Registry) IsValid(network string) bool {
	if network == "" {
		return false
	}
	_, ok := r.Get(network)
	return ok
}

// Names returns all registered network names in sorted order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.networks))
	for name := range r.networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
