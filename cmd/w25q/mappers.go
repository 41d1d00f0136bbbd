package main

import (
	"reflect"
	"strconv"

	"github.com/alecthomas/kong"
)

// intMapper parses integers in the given base; base 0 accepts 0x, 0o and
// 0b prefixes.
type intMapper struct {
	base int
}

func (h intMapper) Decode(ctx *kong.DecodeContext, target reflect.Value) error {
	var value string
	err := ctx.Scan.PopValueInto("int", &value)
	if err != nil {
		return err
	}
	switch target.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, h.base, target.Type().Bits())
		if err != nil {
			return err
		}
		target.SetUint(u)
	default:
		i, err := strconv.ParseInt(value, h.base, target.Type().Bits())
		if err != nil {
			return err
		}
		target.SetInt(i)
	}
	return nil
}
