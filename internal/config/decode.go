package config

import (
	"github.com/spf13/pflag"
)

// DecodeConfig holds configuration for the decode command. Pair metadata
// comes from Pair when Stock and Money are set, otherwise from the engine
// over RPC.
type DecodeConfig struct {
	Pair     PairConfig
	RPCURL   string
	In       string
	Out      string
	Errors   string
	LogLevel string
}

// LoadDecode merges config file, environment variables, and flags into DecodeConfig.
func LoadDecode(cfgFile string, flags *pflag.FlagSet) (DecodeConfig, error) {
	v, err := newViper(cfgFile, flags, mergeDefaults(pairDefaults, map[string]interface{}{
		"out":       "./data/typed_events.jsonl",
		"errors":    "./data/decode_errors.jsonl",
		"log-level": "info",
	}))
	if err != nil {
		return DecodeConfig{}, err
	}
	pair, err := loadPair(v)
	if err != nil {
		return DecodeConfig{}, err
	}

	return DecodeConfig{
		Pair:     pair,
		RPCURL:   v.GetString("rpc"),
		In:       v.GetString("in"),
		Out:      v.GetString("out"),
		Errors:   v.GetString("errors"),
		LogLevel: v.GetString("log-level"),
	}, nil
}
