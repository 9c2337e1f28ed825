package provider

import (
	"context"

	"github.com/wolfman30/glowbook-platform/internal/config"
	"github.com/wolfman30/glowbook-platform/internal/pricing"
)

// PlatformSettings supplies marketplace-wide pricing defaults.
type PlatformSettings interface {
	DefaultTaxRate(ctx context.Context) (float64, error)
	PlatformFee(ctx context.Context) (*pricing.FeeConfig, error)
}

// StaticPlatform serves platform defaults loaded from configuration.
type StaticPlatform struct {
	taxRate float64
	fee     *pricing.FeeConfig
}

// NewStaticPlatform reads the platform tax rate and fee from cfg. An unknown
// fee type or non-positive value disables the platform fee.
func NewStaticPlatform(cfg *config.Config) *StaticPlatform {
	p := &StaticPlatform{taxRate: cfg.DefaultTaxRate}
	feeType := pricing.FeeType(cfg.PlatformFeeType)
	if (feeType == pricing.FeePercentage || feeType == pricing.FeeFixed) && cfg.PlatformFeeValue > 0 {
		p.fee = &pricing.FeeConfig{
			Type:             feeType,
			Value:            cfg.PlatformFeeValue,
			MinBookingAmount: cfg.PlatformFeeMinBooking,
		}
		if cfg.PlatformFeeMax > 0 {
			max := cfg.PlatformFeeMax
			p.fee.MaxFeeAmount = &max
		}
	}
	return p
}

func (p *StaticPlatform) DefaultTaxRate(context.Context) (float64, error) {
	return p.taxRate, nil
}

func (p *StaticPlatform) PlatformFee(context.Context) (*pricing.FeeConfig, error) {
	if p.fee == nil {
		return nil, nil
	}
	fee := *p.fee
	return &fee, nil
}
