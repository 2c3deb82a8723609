package optimizer

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// intLiteral is a parsed Verilog integer literal.
type intLiteral struct {
	value   *big.Int
	width   int
	signed  bool
	unknown bool // an x, z or ? digit was present
}

// parseIntLiteral reads [size]'[s]<base><digits> or a plain decimal.
// Underscores are ignored. Plain decimals are signed. A literal without a
// size takes the default width, widened until its value fits; only an
// explicit size truncates.
func parseIntLiteral(text string, defaultWidth int) (intLiteral, error) {
	s := strings.ReplaceAll(strings.TrimSpace(text), "_", "")
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = strings.TrimSpace(s[1:])
	} else if strings.HasPrefix(s, "+") {
		s = strings.TrimSpace(s[1:])
	}

	lit := intLiteral{width: defaultWidth}
	sized := false
	tick := strings.IndexByte(s, '\'')
	var digits string
	base := 10
	if tick < 0 {
		digits = s
		lit.signed = true
	} else {
		if size := strings.TrimSpace(s[:tick]); size != "" {
			n, err := strconv.Atoi(size)
			if err != nil || n <= 0 {
				return lit, errors.Errorf("malformed literal size in %q", text)
			}
			lit.width = n
			sized = true
		}
		rest := s[tick+1:]
		if rest != "" && (rest[0] == 's' || rest[0] == 'S') {
			lit.signed = true
			rest = rest[1:]
		}
		if rest == "" {
			return lit, errors.Errorf("missing base in %q", text)
		}
		switch rest[0] {
		case 'b', 'B':
			base = 2
		case 'o', 'O':
			base = 8
		case 'd', 'D':
			base = 10
		case 'h', 'H':
			base = 16
		default:
			return lit, errors.Errorf("unknown base %q in %q", rest[0], text)
		}
		digits = strings.TrimSpace(rest[1:])
	}
	if digits == "" {
		return lit, errors.Errorf("missing digits in %q", text)
	}
	if strings.ContainsAny(digits, "xXzZ?") {
		lit.unknown = true
		return lit, nil
	}

	v, ok := new(big.Int).SetString(digits, base)
	if !ok || v.Sign() < 0 {
		return lit, errors.Errorf("malformed literal %q", text)
	}
	if neg {
		v.Neg(v)
	}
	if !sized {
		lit.width = maxInt(lit.width, bitsNeeded(v, lit.signed))
	}
	lit.value = wrap(v, lit.width, lit.signed)
	return lit, nil
}

// bitsNeeded is the smallest width holding v, with a sign bit when signed.
func bitsNeeded(v *big.Int, signed bool) int {
	if !signed {
		return new(big.Int).Abs(v).BitLen()
	}
	if v.Sign() >= 0 {
		return v.BitLen() + 1
	}
	m := new(big.Int).Neg(v)
	return m.Sub(m, one).BitLen() + 1
}

// wrap reduces v to width bits. Signed results are read back in two's
// complement; unsigned ones are in [0, 2^width). A width of zero or less
// leaves v alone.
func wrap(v *big.Int, width int, signed bool) *big.Int {
	if width <= 0 {
		return new(big.Int).Set(v)
	}
	mod := new(big.Int).Lsh(big.NewInt(1), uint(width))
	mask := new(big.Int).Sub(mod, big.NewInt(1))
	r := new(big.Int).And(v, mask)
	if signed && r.Bit(width-1) == 1 {
		r.Sub(r, mod)
	}
	return r
}

func parseFloatLiteral(text string) (float64, error) {
	s := strings.ReplaceAll(strings.TrimSpace(text), "_", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "malformed real literal %q", text)
	}
	return f, nil
}
