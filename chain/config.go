package chain

import "fmt"

// RPCConfig describes how to reach a ledger node: the endpoint URL, the
// Basic Auth credentials if the node requires them, and the network name
// the endpoint serves.
type RPCConfig struct {
	URL      string `json:"url"`
	User     string `json:"user"`
	Password string `json:"password"`
	Network  string `json:"network"`
}

// NetworkPresets maps the development networks to their conventional local
// endpoints. There is no mainnet entry: pointing at a production node must
// always be an explicit decision by the operator.
var NetworkPresets = map[string]RPCConfig{
	"devnet":  {URL: "http://localhost:8090"},
	"testnet": {URL: "http://localhost:8090"},
}

// ResolveConfig builds the effective node configuration for a network.
// It starts from the network preset when one exists, lets the environment
// (LEDGER_RPC_URL, LEDGER_RPC_USER, LEDGER_RPC_PASS) override it field by
// field, and finally lets explicit values override everything. A network
// with no preset, mainnet included, resolves only when the endpoint arrives
// through one of the other two sources.
func ResolveConfig(explicit *RPCConfig, env map[string]string, network string) (*RPCConfig, error) {
	result := RPCConfig{Network: network}

	if preset, ok := NetworkPresets[network]; ok {
		result = preset
		result.Network = network
	}

	if env != nil {
		if v, ok := env["LEDGER_RPC_URL"]; ok && v != "" {
			result.URL = v
		}
		if v, ok := env["LEDGER_RPC_USER"]; ok && v != "" {
			result.User = v
		}
		if v, ok := env["LEDGER_RPC_PASS"]; ok && v != "" {
			result.Password = v
		}
	}

	if explicit != nil {
		if explicit.URL != "" {
			result.URL = explicit.URL
		}
		if explicit.User != "" {
			result.User = explicit.User
		}
		if explicit.Password != "" {
			result.Password = explicit.Password
		}
	}

	if result.URL == "" {
		return nil, fmt.Errorf("%w: network %q", ErrNoEndpoint, network)
	}
	return &result, nil
}
