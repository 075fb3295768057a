package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Nested documents are stored as JSONB columns.

func jsonValue(v interface{}) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func jsonScan(src interface{}, dst interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dst)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported JSONB source type %T", src)
	}
}

func (a Address) Value() (driver.Value, error)  { return jsonValue(a) }
func (a *Address) Scan(src interface{}) error   { return jsonScan(src, a) }
func (s Supplier) Value() (driver.Value, error) { return jsonValue(s) }
func (s *Supplier) Scan(src interface{}) error  { return jsonScan(src, s) }

func (c CustomerInfo) Value() (driver.Value, error) { return jsonValue(c) }
func (c *CustomerInfo) Scan(src interface{}) error  { return jsonScan(src, c) }

func (a ShippingAddress) Value() (driver.Value, error) { return jsonValue(a) }
func (a *ShippingAddress) Scan(src interface{}) error  { return jsonScan(src, a) }

func (l ShippingAddresses) Value() (driver.Value, error) {
	if l == nil {
		l = ShippingAddresses{}
	}
	return jsonValue(l)
}
func (l *ShippingAddresses) Scan(src interface{}) error { return jsonScan(src, l) }

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	return jsonValue(l)
}
func (l *StringList) Scan(src interface{}) error { return jsonScan(src, l) }

func (m StringMap) Value() (driver.Value, error) {
	if m == nil {
		m = StringMap{}
	}
	return jsonValue(m)
}
func (m *StringMap) Scan(src interface{}) error { return jsonScan(src, m) }

func (items OrderItems) Value() (driver.Value, error) {
	if items == nil {
		items = OrderItems{}
	}
	return jsonValue(items)
}
func (items *OrderItems) Scan(src interface{}) error { return jsonScan(src, items) }
