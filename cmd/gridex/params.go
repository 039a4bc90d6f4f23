package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gridex/internal/chain"
	"gridex/internal/config"
	"gridex/internal/dex"
	"gridex/internal/gridex"
	"gridex/internal/model"
	"gridex/internal/runner"
)

type paramsView struct {
	Granularity int             `json:"granularity"`
	MaxGrid     int             `json:"max_grid"`
	Stock       model.TokenMeta `json:"stock"`
	Money       model.TokenMeta `json:"money"`
	Fee         uint32          `json:"fee"`
	PriceMul    string          `json:"price_mul"`
	PriceDiv    string          `json:"price_div"`
	Admin       string          `json:"admin"`
	URI         string          `json:"uri,omitempty"`
}

func runParams(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadParams(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var caller dex.ContractCaller
	if cfg.RPCURL != "" {
		chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()
		caller = chainClient
	}

	params, tokens, err := resolveParams(ctx, cfg.Pair, caller, logger)
	if err != nil {
		return err
	}
	codec, err := gridex.NewCodec(params.Granularity)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(paramsView{
		Granularity: params.Granularity,
		MaxGrid:     codec.MaxGrid(),
		Stock:       tokens[0],
		Money:       tokens[1],
		Fee:         params.Fee,
		PriceMul:    params.PriceMul.String(),
		PriceDiv:    params.PriceDiv.String(),
		Admin:       params.Admin.Hex(),
		URI:         params.URI,
	})
}

// resolveParams builds engine parameters from cfg. With a caller, asset
// decimals and symbols are read from the token contracts and override cfg.
func resolveParams(ctx context.Context, cfg config.PairConfig, caller dex.ContractCaller, logger *zap.Logger) (gridex.Params, [2]model.TokenMeta, error) {
	var tokens [2]model.TokenMeta
	for i, asset := range []struct {
		name     string
		value    string
		decimals uint8
	}{
		{"stock", cfg.Stock, cfg.StockDecimals},
		{"money", cfg.Money, cfg.MoneyDecimals},
	} {
		if asset.value == "" {
			return gridex.Params{}, tokens, fmt.Errorf("%s asset is required", asset.name)
		}
		addr, err := runner.ResolveAccount(asset.value)
		if err != nil {
			return gridex.Params{}, tokens, fmt.Errorf("%s: %w", asset.name, err)
		}
		tokens[i] = model.TokenMeta{Address: addr.Hex(), Decimals: asset.decimals}
		if !common.IsHexAddress(asset.value) {
			tokens[i].Symbol = asset.value
		}
		if caller == nil {
			continue
		}
		meta, err := dex.FetchTokenMeta(ctx, caller, addr, logger)
		if err != nil {
			return gridex.Params{}, tokens, fmt.Errorf("%s metadata: %w", asset.name, err)
		}
		tokens[i] = meta
	}

	admin, err := runner.ResolveAccount(cfg.Admin)
	if err != nil {
		return gridex.Params{}, tokens, fmt.Errorf("admin: %w", err)
	}

	params, err := gridex.NewParams(cfg.Granularity,
		common.HexToAddress(tokens[0].Address), common.HexToAddress(tokens[1].Address),
		tokens[0].Decimals, tokens[1].Decimals, cfg.Fee, admin)
	if err != nil {
		return gridex.Params{}, tokens, err
	}
	params.URI = cfg.URI
	return params, tokens, nil
}
