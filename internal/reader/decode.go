package reader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mtogate/mtogate/internal/upstream"
)

// Decoding must be total: any value the upstream can produce either decodes
// to the declared type or yields an error wrapping ErrQuery. String-keyed
// records never escape this package.

func decodeString(rec upstream.Record, field string) (string, error) {
	v, ok := rec[field]
	if !ok || v == nil {
		return "", nil
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s), nil
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(s), nil
	default:
		return "", fmt.Errorf("%w: field %s: unexpected type %T", upstream.ErrQuery, field, v)
	}
}

func decodeInt(rec upstream.Record, field string) (int64, error) {
	v, ok := rec[field]
	if !ok || v == nil {
		return 0, nil
	}
	switch n := v.(type) {
	case float64:
		return int64(n), nil
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, nil
		}
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: field %s: %q is not an integer", upstream.ErrQuery, field, s)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("%w: field %s: unexpected type %T", upstream.ErrQuery, field, v)
	}
}

func decodeQty(rec upstream.Record, field string) (decimal.Decimal, error) {
	v, ok := rec[field]
	if !ok || v == nil {
		return decimal.Zero, nil
	}
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), nil
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return decimal.Zero, nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: field %s: %q is not a number", upstream.ErrQuery, field, s)
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("%w: field %s: unexpected type %T", upstream.ErrQuery, field, v)
	}
}

// decodeBillType normalises the upstream bill-type code. Unknown codes pass
// through so a new upstream bill type shows up in stored data rather than
// being silently dropped.
func decodeBillType(rec upstream.Record, field string) (string, error) {
	s, err := decodeString(rec, field)
	if err != nil {
		return "", err
	}
	switch s {
	case "RKD01_SYS", "standard", "":
		return BillTypeStandard, nil
	case "RKD03_SYS", "subcontract":
		return BillTypeSubcontract, nil
	default:
		return s, nil
	}
}
