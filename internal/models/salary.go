package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SalaryInfo accepts either a single figure or a {min, max} range and
// reduces it to one number.
type SalaryInfo struct {
	Amount int64
	Set    bool
}

type salaryRange struct {
	Min json.RawMessage `json:"min"`
	Max json.RawMessage `json:"max"`
}

func (s *SalaryInfo) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*s = SalaryInfo{}
		return nil
	}

	if b[0] == '{' {
		var rng salaryRange
		if err := json.Unmarshal(b, &rng); err != nil {
			return fmt.Errorf("salary_info: %w", err)
		}
		min := parseLooseInt(rng.Min)
		max := parseLooseInt(rng.Max)
		*s = SalaryInfo{Amount: SalaryFromRange(min, max), Set: true}
		return nil
	}

	*s = SalaryInfo{Amount: parseLooseInt(b), Set: true}
	return nil
}

// SalaryFromRange averages the bounds when max is given, else returns min.
func SalaryFromRange(min, max int64) int64 {
	if max > 0 {
		return int64(math.Round(float64(min+max) / 2))
	}
	return min
}

// parseLooseInt reads a number or numeric string; anything else is 0.
func parseLooseInt(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int64(f)
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return 0
	}
	str = strings.TrimSpace(str)
	// leading integer prefix, like "12000 ILS"
	end := 0
	for end < len(str) && (str[end] >= '0' && str[end] <= '9' || (end == 0 && str[end] == '-')) {
		end++
	}
	n, err := strconv.ParseInt(str[:end], 10, 64)
	if err != nil {
		return 0
	}
	return n
}
