// Copyright 2025 James Ross
package adapter

import (
	"regexp"
	"strconv"
)

// LogParser extracts numeric metrics from concatenated stdout/stderr when
// an adapter run succeeds but leaves no metrics.json behind.
type LogParser func(logs string) map[string]float64

// numberPattern matches an optional sign, digits, optional decimal part,
// and optional exponent — a direct port of parsers.py's numeric regex.
const numberPattern = `[-+]?\d+(?:\.\d+)?(?:[eE][-+]?\d+)?`

func findAll(pattern, logs string) []float64 {
	re := regexp.MustCompile(pattern)
	matches := re.FindAllStringSubmatch(logs, -1)
	out := make([]float64, 0, len(matches))
	for _, m := range matches {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// ParseCFDLog backs cfd-driver, su2-driver, and cs-driver — all three share
// a residual/force-coefficient log convention in the original source.
func ParseCFDLog(logs string) map[string]float64 {
	metrics := map[string]float64{}

	if residuals := findAll(`Final residual\s*=\s*(`+numberPattern+`)`, logs); len(residuals) > 0 {
		metrics["residual_final_last"] = residuals[len(residuals)-1]
		metrics["residual_final_mean"] = mean(residuals)
	}
	if times := findAll(`Time\s*=\s*(`+numberPattern+`)`, logs); len(times) > 0 {
		metrics["time_last"] = times[len(times)-1]
	}
	if cls := findAll(`Cl\s*=\s*(`+numberPattern+`)`, logs); len(cls) > 0 {
		metrics["Cl_last"] = cls[len(cls)-1]
	}
	if cds := findAll(`Cd\s*=\s*(`+numberPattern+`)`, logs); len(cds) > 0 {
		metrics["Cd_last"] = cds[len(cds)-1]
	}
	return metrics
}

// ParseMDLog backs md-driver.
func ParseMDLog(logs string) map[string]float64 {
	metrics := map[string]float64{}

	if potEng := findAll(`PotEng\s*=\s*(`+numberPattern+`)`, logs); len(potEng) > 0 {
		metrics["PotEng_last"] = potEng[len(potEng)-1]
	}
	if temp := findAll(`Temp\s*=\s*(`+numberPattern+`)`, logs); len(temp) > 0 {
		metrics["Temp_last"] = temp[len(temp)-1]
	}
	if press := findAll(`Press\s*=\s*(`+numberPattern+`)`, logs); len(press) > 0 {
		metrics["Press_last"] = press[len(press)-1]
	}
	return metrics
}

// qe-driver has no log-to-metric extractor in the original implementation
// (DFT output parsing was never built there); this gap is preserved rather
// than papered over with a guess at QE's output grammar.
