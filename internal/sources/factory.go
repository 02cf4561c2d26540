package sources

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"law_arch/internal/config"
	"law_arch/internal/errs"
)

// NewClientFor builds the client of one source from its configuration.
func NewClientFor(sc config.SourceConfig, logic config.LogicConfig, logger *zap.Logger) *Client {
	return NewClient(ClientOptions{
		UserAgent:       logic.UserAgent,
		Timeout:         time.Duration(logic.TimeoutSec) * time.Second,
		Delay:           sc.Delay(logic),
		BreakerFailures: sc.BreakerFailures,
		RespectRobots:   sc.RespectRobots,
		Logger:          logger.With(zap.String("jurisdiction", sc.Jurisdiction)),
	})
}

// NewSource selects the adapter variant from the declared source type.
func NewSource(sc config.SourceConfig, client *Client) (Source, error) {
	b := base{cfg: sc, client: client}
	switch sc.SourceType {
	case config.SourceHTML:
		return &HTMLSource{base: b}, nil
	case config.SourceXML:
		return &XMLSource{base: b}, nil
	case config.SourceBulk:
		if sc.Listing == "drop" {
			return &DropListingSource{BulkSource{base: b}}, nil
		}
		return &BulkSource{base: b}, nil
	case config.SourceAPI:
		return &APISource{base: b, apiKey: sc.ResolveAPIKey()}, nil
	}
	return nil, &errs.ConfigError{
		Subject: "source " + sc.Jurisdiction,
		Err:     fmt.Errorf("unknown source type %q", sc.SourceType),
	}
}
