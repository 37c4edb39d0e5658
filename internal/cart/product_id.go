package cart

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ProductID is either a string or a finite number. The kind is kept so snapshots round-trip
// exactly what the caller supplied.
type ProductID struct {
	raw     string
	numeric bool
}

// StringProductID builds a string product id.
func StringProductID(s string) ProductID {
	return ProductID{raw: s}
}

// NumericProductID builds a numeric product id.
func NumericProductID(n float64) ProductID {
	return ProductID{raw: formatNumber(n), numeric: true}
}

// formatNumber renders n in plain notation inside [1e-6, 1e21) and in exponent notation
// outside it ("1e+21", "1.5e-7"). Negative zero renders as "0".
func formatNumber(n float64) string {
	if n == 0 {
		return "0"
	}
	if abs := math.Abs(n); abs >= 1e21 || abs < 1e-6 {
		mantissa, exp, _ := strings.Cut(strconv.FormatFloat(n, 'e', -1, 64), "e")
		return mantissa + "e" + exp[:1] + strings.TrimLeft(exp[1:], "0")
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// String renders the id the way it participates in identities.
func (p ProductID) String() string { return p.raw }

// IsNumeric reports whether the id was supplied as a number.
func (p ProductID) IsNumeric() bool { return p.numeric }

// IsZero reports whether the id is unset.
func (p ProductID) IsZero() bool { return p.raw == "" && !p.numeric }

// MarshalJSON writes numbers bare and strings quoted.
func (p ProductID) MarshalJSON() ([]byte, error) {
	if p.numeric {
		return []byte(p.raw), nil
	}
	return json.Marshal(p.raw)
}

// UnmarshalJSON accepts a JSON string or number.
func (p *ProductID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = StringProductID(s)
		return nil
	}
	n, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("productId must be a string or number: %w", err)
	}
	if math.IsInf(n, 0) || math.IsNaN(n) {
		return fmt.Errorf("productId must be finite")
	}
	*p = NumericProductID(n)
	return nil
}
