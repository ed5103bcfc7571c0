package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type rawOrder struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	Items       json.RawMessage `json:"items"`
	TotalAmount json.RawMessage `json:"totalAmount"`
	Status      string          `json:"status"`
	CreatedAt   json.RawMessage `json:"createdAt"`
	UpdatedAt   json.RawMessage `json:"updatedAt"`
}

type rawLineItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Price     json.RawMessage `json:"price"`
	Quantity  json.RawMessage `json:"quantity"`
	Image     string          `json:"image"`
}

type rawTimestamp struct {
	Seconds     *int64 `json:"seconds"`
	Nanos       int64  `json:"nanos"`
	LegacySecs  *int64 `json:"_seconds"`
	LegacyNanos int64  `json:"_nanoseconds"`
}

// DecodeOrder turns a loosely shaped order document into an Order.
//
// Missing or malformed fields never fail the decoding: they are replaced by
// zero values and described in the returned warnings. An error is returned only
// when raw is not a JSON object.
func DecodeOrder(raw []byte) (*Order, []string, error) {
	var doc rawOrder
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil, fmt.Errorf("%w: order document: %s", ErrMalformedEvent, err)
	}

	order := &Order{ID: doc.ID, UserID: doc.UserID, Items: []LineItem{}}
	var warnings []string
	warn := func(format string, args ...interface{}) {
		warnings = append(warnings, fmt.Sprintf("order %q: ", doc.ID)+fmt.Sprintf(format, args...))
	}

	if isAbsent(doc.Items) {
		warn("items are missing")
	} else {
		var items []rawLineItem
		if err := json.Unmarshal(doc.Items, &items); err != nil {
			warn("items are not a list: %s", err)
		}
		for i, item := range items {
			price, problem := decodeAmount(item.Price)
			if problem != "" {
				warn("item %d price %s", i, problem)
			}
			quantity, problem := decodeQuantity(item.Quantity)
			if problem != "" {
				warn("item %d quantity %s", i, problem)
			}
			order.Items = append(order.Items, LineItem{
				ProductID: item.ProductID,
				Name:      item.Name,
				Price:     price,
				Quantity:  quantity,
				Image:     item.Image,
			})
		}
	}

	total, problem := decodeAmount(doc.TotalAmount)
	if problem != "" {
		warn("totalAmount %s", problem)
	}
	order.TotalAmount = total

	status, ok := ParseOrderStatus(doc.Status)
	if !ok {
		warn("unknown status %q", doc.Status)
	}
	order.Status = status

	createdAt, problem := decodeTimestamp(doc.CreatedAt)
	if problem != "" {
		warn("createdAt %s", problem)
	}
	order.CreatedAt = createdAt

	// updatedAt is informational only.
	order.UpdatedAt, _ = decodeTimestamp(doc.UpdatedAt)

	return order, warnings, nil
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// unquote accepts both JSON numbers and numeric strings.
func unquote(raw json.RawMessage) string {
	s := string(bytes.TrimSpace(raw))
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err == nil {
			return strings.TrimSpace(str)
		}
	}
	return s
}

func decodeAmount(raw json.RawMessage) (decimal.Decimal, string) {
	if isAbsent(raw) {
		return decimal.Zero, "is missing, using 0"
	}

	value, err := decimal.NewFromString(unquote(raw))
	if err != nil {
		return decimal.Zero, fmt.Sprintf("%s is not numeric, using 0", raw)
	}

	if value.IsNegative() {
		return decimal.Zero, fmt.Sprintf("%s is negative, using 0", raw)
	}

	return value, ""
}

func decodeQuantity(raw json.RawMessage) (int64, string) {
	if isAbsent(raw) {
		return 0, "is missing, using 0"
	}

	value, err := decimal.NewFromString(unquote(raw))
	if err != nil || !value.IsInteger() {
		return 0, fmt.Sprintf("%s is not an integer, using 0", raw)
	}

	if !value.IsPositive() {
		return 0, fmt.Sprintf("%s is not positive, using 0", raw)
	}

	return value.IntPart(), ""
}

func decodeTimestamp(raw json.RawMessage) (*time.Time, string) {
	if isAbsent(raw) {
		return nil, "is missing"
	}

	trimmed := bytes.TrimSpace(raw)
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, fmt.Sprintf("%s is not a string", raw)
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Sprintf("%q is not an RFC 3339 timestamp", s)
		}
		t = t.UTC()
		return &t, ""
	case '{':
		var ts rawTimestamp
		if err := json.Unmarshal(trimmed, &ts); err != nil {
			return nil, fmt.Sprintf("%s is not a timestamp object", raw)
		}
		switch {
		case ts.Seconds != nil:
			t := time.Unix(*ts.Seconds, ts.Nanos).UTC()
			return &t, ""
		case ts.LegacySecs != nil:
			t := time.Unix(*ts.LegacySecs, ts.LegacyNanos).UTC()
			return &t, ""
		}
		return nil, fmt.Sprintf("%s has no seconds", raw)
	default:
		millis, err := decimal.NewFromString(string(trimmed))
		if err != nil {
			return nil, fmt.Sprintf("%s is not a timestamp", raw)
		}
		t := time.UnixMilli(millis.IntPart()).UTC()
		return &t, ""
	}
}
