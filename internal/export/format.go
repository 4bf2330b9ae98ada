package export

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

const (
	dateLayout     = "2006-01-02"
	datetimeLayout = "2006-01-02 15:04:05"
)

// formatCell renders one typed value for display. Unknown types and
// unparseable values fall back to their plain string form rather than
// failing the export.
func formatCell(value interface{}, colType string, currencySymbol string) string {
	if value == nil {
		return ""
	}

	switch colType {
	case "date":
		return formatTime(value, dateLayout)
	case "datetime":
		return formatTime(value, datetimeLayout)
	case "currency":
		if d, ok := toDecimal(value); ok {
			return currencySymbol + d.StringFixed(2)
		}
	case "percentage":
		if d, ok := toDecimal(value); ok {
			return d.Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
		}
	case "boolean":
		if b, ok := toBool(value); ok {
			if b {
				return "Yes"
			}

			return "No"
		}
	case "number", "decimal":
		if d, ok := toDecimal(value); ok {
			return d.String()
		}
	}

	return plainString(value)
}

func formatTime(value interface{}, layout string) string {
	switch v := value.(type) {
	case time.Time:
		return v.Format(layout)
	case string:
		for _, parse := range []string{time.RFC3339, datetimeLayout, dateLayout} {
			if t, err := time.Parse(parse, v); err == nil {
				return t.Format(layout)
			}
		}

		return v
	default:
		return plainString(value)
	}
}

func toDecimal(value interface{}) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case decimal.Decimal:
		return v, true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int32:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case float32:
		return decimal.NewFromFloat32(v), true
	case float64:
		return decimal.NewFromFloat(v), true
	case string:
		d, err := decimal.NewFromString(v)

		return d, err == nil
	default:
		return decimal.Decimal{}, false
	}
}

func toBool(value interface{}) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(v)

		return b, err == nil
	case int, int32, int64:
		return fmt.Sprintf("%d", v) != "0", true
	default:
		return false, false
	}
}

func plainString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	default:
		return fmt.Sprintf("%v", v)
	}
}
