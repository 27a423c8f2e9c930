package dlog

import (
	"fmt"
	"sort"

	"github.com/privacybydesign/dlog/internal/common"
)

type (
	// BaseParameters are the tunable knobs of the engines for one exponent
	// range.
	BaseParameters struct {
		RangeBits         uint
		TruncatedKeyBytes int
		TableSize         uint64
		WalkSpacing       uint64
		StepArraySize     uint64
		WalkMultiplier    uint64
	}

	// DerivedParameters follow from the base parameters.
	DerivedParameters struct {
		BabySteps      uint64
		GiantSteps     uint64
		StepBits       uint
		MaxOnlineSteps uint64
	}

	SystemParameters struct {
		BaseParameters
		DerivedParameters
	}
)

// defaultBaseParameters holds per range size the base parameters.
var defaultBaseParameters = map[uint]BaseParameters{
	16: {
		RangeBits:         16,
		TruncatedKeyBytes: 1,
		TableSize:         1000,
		WalkSpacing:       1 << 12,
		StepArraySize:     64,
		WalkMultiplier:    8,
	},
	24: {
		RangeBits:         24,
		TruncatedKeyBytes: 2,
		TableSize:         4000,
		WalkSpacing:       1 << 16,
		StepArraySize:     128,
		WalkMultiplier:    8,
	},
	32: {
		RangeBits:         32,
		TruncatedKeyBytes: 2,
		TableSize:         8000,
		WalkSpacing:       1 << 16,
		StepArraySize:     128,
		WalkMultiplier:    8,
	},
	40: {
		RangeBits:         40,
		TruncatedKeyBytes: 3,
		TableSize:         20000,
		WalkSpacing:       1 << 16,
		StepArraySize:     256,
		WalkMultiplier:    8,
	},
	48: {
		RangeBits:         48,
		TruncatedKeyBytes: 3,
		TableSize:         40000,
		WalkSpacing:       1 << 16,
		StepArraySize:     256,
		WalkMultiplier:    8,
	},
}

// MakeBaseParameters computes base parameters for an arbitrary range size.
// For the sizes in defaultBaseParameters the result is identical to the
// stored values.
func MakeBaseParameters(rangeBits uint) BaseParameters {
	babyBits := (rangeBits + 1) / 2
	base := BaseParameters{
		RangeBits:         rangeBits,
		TruncatedKeyBytes: int((babyBits + 7) / 8),
	}

	// Tiny ranges get dense tables and longer walks so that success stays
	// likely despite the few distinguished points that fit.
	if rangeBits < 8 {
		base.WalkSpacing = 4
		if rangeBits <= 3 {
			base.WalkSpacing = 2
		}
		base.TableSize = uint64(1) << rangeBits
		base.StepArraySize = 8
		if rangeBits <= 4 {
			base.StepArraySize = 4
		}
		base.WalkMultiplier = 16
		return base
	}

	wbits := rangeBits - 4
	if wbits > 16 {
		wbits = 16
	}
	base.WalkSpacing = uint64(1) << wbits
	switch {
	case rangeBits <= 16:
		base.TableSize = 1000
	case rangeBits <= 24:
		base.TableSize = 4000
	case rangeBits <= 32:
		base.TableSize = 8000
	case rangeBits <= 40:
		base.TableSize = 20000
	default:
		base.TableSize = 40000
	}
	switch {
	case rangeBits <= 16:
		base.StepArraySize = 64
	case rangeBits <= 32:
		base.StepArraySize = 128
	default:
		base.StepArraySize = 256
	}
	base.WalkMultiplier = 8
	return base
}

// MakeDerivedParameters computes the derived system parameters.
func MakeDerivedParameters(base BaseParameters) DerivedParameters {
	m := babyCount(base.RangeBits)
	return DerivedParameters{
		BabySteps:      m,
		GiantSteps:     common.CeilDiv(rangeSize(base.RangeBits), m),
		StepBits:       derivedStepBits(base.RangeBits, base.WalkSpacing),
		MaxOnlineSteps: 4 * base.WalkMultiplier * base.WalkSpacing,
	}
}

// MakeSystemParameters computes the full parameter set for any range size
// within [1, MaxRangeBits].
func MakeSystemParameters(rangeBits uint) (SystemParameters, error) {
	if !validRangeBits(rangeBits) {
		return SystemParameters{}, fmt.Errorf("%w: range bits %d outside [1, %d]", ErrInvalidConfig, rangeBits, MaxRangeBits)
	}
	base, ok := defaultBaseParameters[rangeBits]
	if !ok {
		base = MakeBaseParameters(rangeBits)
	}
	return SystemParameters{base, MakeDerivedParameters(base)}, nil
}

// DefaultSystemParameters holds per range size the default parameters as
// are currently in use at the moment. This might (and probably will) change
// in the future.
var DefaultSystemParameters = map[uint]*SystemParameters{
	16: {defaultBaseParameters[16], MakeDerivedParameters(defaultBaseParameters[16])},
	24: {defaultBaseParameters[24], MakeDerivedParameters(defaultBaseParameters[24])},
	32: {defaultBaseParameters[32], MakeDerivedParameters(defaultBaseParameters[32])},
	40: {defaultBaseParameters[40], MakeDerivedParameters(defaultBaseParameters[40])},
	48: {defaultBaseParameters[48], MakeDerivedParameters(defaultBaseParameters[48])},
}

// getAvailableParameterBits returns the range sizes for the provided map of
// system parameters.
func getAvailableParameterBits(sysParamsMap map[uint]*SystemParameters) []uint {
	bits := make([]uint, 0, len(sysParamsMap))
	for k := range sysParamsMap {
		bits = append(bits, k)
	}
	sort.Slice(bits, func(i, j int) bool { return bits[i] < bits[j] })
	return bits
}

// DefaultParameterBits is a slice holding the range sizes for which default
// system parameters are available.
var DefaultParameterBits = getAvailableParameterBits(DefaultSystemParameters)

// Bl12 exports the parameters as kangaroo engine settings, without a seed:
// generation draws a fresh one unless the caller fixes it.
func (p *SystemParameters) Bl12() Bl12Settings {
	return Bl12Settings{
		RangeBits:      p.RangeBits,
		TableSize:      p.TableSize,
		WalkSpacing:    p.WalkSpacing,
		StepArraySize:  p.StepArraySize,
		WalkMultiplier: p.WalkMultiplier,
		StepBits:       p.StepBits,
		MaxOnlineSteps: p.MaxOnlineSteps,
	}
}
