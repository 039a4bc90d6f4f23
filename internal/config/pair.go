package config

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// PairConfig describes the asset pair and grid parameters of an engine.
type PairConfig struct {
	Granularity   int
	Stock         string
	Money         string
	StockDecimals uint8
	MoneyDecimals uint8
	// Fee is nil when the granularity default applies.
	Fee   *uint32
	Admin string
	URI   string
}

// ParamsConfig holds configuration for the params command.
type ParamsConfig struct {
	Pair     PairConfig
	RPCURL   string
	LogLevel string
}

var pairDefaults = map[string]interface{}{
	"granularity":    16,
	"stock-decimals": 18,
	"money-decimals": 18,
	"admin":          "admin",
	"fee":            -1,
}

func loadPair(v *viper.Viper) (PairConfig, error) {
	stockDecimals, err := getUint8(v, "stock-decimals")
	if err != nil {
		return PairConfig{}, err
	}
	moneyDecimals, err := getUint8(v, "money-decimals")
	if err != nil {
		return PairConfig{}, err
	}
	var fee *uint32
	if raw := v.GetInt64("fee"); raw >= 0 {
		if raw > int64(^uint32(0)) {
			return PairConfig{}, fmt.Errorf("fee out of range: %d", raw)
		}
		value := uint32(raw)
		fee = &value
	}
	return PairConfig{
		Granularity:   v.GetInt("granularity"),
		Stock:         v.GetString("stock"),
		Money:         v.GetString("money"),
		StockDecimals: stockDecimals,
		MoneyDecimals: moneyDecimals,
		Fee:           fee,
		Admin:         v.GetString("admin"),
		URI:           v.GetString("uri"),
	}, nil
}

func mergeDefaults(sets ...map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for _, set := range sets {
		for k, v := range set {
			out[k] = v
		}
	}
	return out
}

// LoadParams merges config file, environment variables, and flags into ParamsConfig.
func LoadParams(cfgFile string, flags *pflag.FlagSet) (ParamsConfig, error) {
	v, err := newViper(cfgFile, flags, mergeDefaults(pairDefaults, map[string]interface{}{
		"log-level": "info",
	}))
	if err != nil {
		return ParamsConfig{}, err
	}
	pair, err := loadPair(v)
	if err != nil {
		return ParamsConfig{}, err
	}
	return ParamsConfig{
		Pair:     pair,
		RPCURL:   v.GetString("rpc"),
		LogLevel: v.GetString("log-level"),
	}, nil
}
