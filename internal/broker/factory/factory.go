// Package factory 按配置选择券商后端。
package factory

import (
	"fmt"
	"time"

	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/broker"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/broker/alpaca"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/broker/ibgw"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/config"
)

// New 根据 broker.backend 构建后端实例。不发起连接。
func New(cfg *config.Config) (broker.Broker, error) {
	switch cfg.Broker.Backend {
	case "alpaca":
		return alpaca.New(cfg.Broker.Alpaca.BaseURL, cfg.Broker.Alpaca.APIKey, cfg.Broker.Alpaca.SecretKey)
	case "ibgw":
		gw := ibgw.NewGateway(
			cfg.Broker.IBGW.Host,
			cfg.Broker.IBGW.Port,
			cfg.Broker.IBGW.ClientID,
			time.Duration(cfg.Broker.IBGW.ConnectTimeoutSeconds)*time.Second,
			time.Duration(cfg.Broker.IBGW.SettleWaitSeconds)*time.Second,
		)
		return ibgw.New(gw), nil
	default:
		return nil, fmt.Errorf("未知 broker.backend: %s", cfg.Broker.Backend)
	}
}
