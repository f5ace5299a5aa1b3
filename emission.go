package main

import "math"

const (
	sompiPerKAS = 100_000_000

	preDeflationarySubsidy    = 500 * sompiPerKAS
	deflationaryBaseSubsidy   = 440 * sompiPerKAS
	deflationaryPhaseDAAScore = 15_519_600
	deflationaryMonths        = 426

	// chain seconds per emission month (365.25 days / 12)
	secondsPerMonth = 2_629_800

	crescendoDAAScore = 110_165_000
	crescendoBPS      = 10
)

// RewardSchedule is the emission lookup the estimator consumes. It is keyed
// by DAA score and owns nothing but chain constants.
type RewardSchedule interface {
	// BlockSubsidy returns the per-block reward in sompi at daaScore.
	BlockSubsidy(daaScore uint64) uint64
	// BlocksPerSecond returns the block rate in effect at daaScore.
	BlocksPerSecond(daaScore uint64) uint64
}

// KaspaEmission is the mainnet schedule: a flat 500 KAS per block until the
// deflationary phase, then a per-second subsidy that halves every 12 months
// in 12 equal monthly steps. From the Crescendo hardfork on, the chain runs
// at 10 blocks per second and the per-second subsidy is split across them.
type KaspaEmission struct{}

func (KaspaEmission) BlocksPerSecond(daaScore uint64) uint64 {
	if daaScore >= crescendoDAAScore {
		return crescendoBPS
	}
	return 1
}

func (e KaspaEmission) BlockSubsidy(daaScore uint64) uint64 {
	if daaScore < deflationaryPhaseDAAScore {
		return preDeflationarySubsidy
	}
	month := deflationaryMonth(daaScore)
	if month >= deflationaryMonths {
		return 0
	}
	perSecond := subsidyPerSecondForMonth(month)
	bps := e.BlocksPerSecond(daaScore)
	return (perSecond + bps - 1) / bps
}

// deflationaryMonth maps a DAA score to elapsed chain months since the start
// of the deflationary phase. Before Crescendo one DAA unit is one second;
// after it, ten.
func deflationaryMonth(daaScore uint64) uint64 {
	if daaScore < deflationaryPhaseDAAScore {
		return 0
	}
	var elapsed uint64
	if daaScore < crescendoDAAScore {
		elapsed = daaScore - deflationaryPhaseDAAScore
	} else {
		elapsed = (crescendoDAAScore - deflationaryPhaseDAAScore) + (daaScore-crescendoDAAScore)/crescendoBPS
	}
	return elapsed / secondsPerMonth
}

func subsidyPerSecondForMonth(month uint64) uint64 {
	v := float64(deflationaryBaseSubsidy) * math.Pow(2, -float64(month)/12)
	return uint64(math.Ceil(v))
}
