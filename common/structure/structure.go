// Package structure decodes a loosely-typed map[string]interface{} into a
// tagged struct, the same "decode a generic map into typed config" idiom
// used for proxy option structs elsewhere in this codebase family
// (`proxy:"name"` style tags). It backs the environment-variable settings
// loader in package config.
package structure

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

type Option struct {
	TagName          string
	WeaklyTypedInput bool
}

type Decoder struct {
	option Option
}

func NewDecoder(option Option) *Decoder {
	if option.TagName == "" {
		option.TagName = "structure"
	}
	return &Decoder{option: option}
}

// Decode populates dst (must be a non-nil pointer to struct) from raw.
func (d *Decoder) Decode(raw map[string]interface{}, dst interface{}) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.New("structure: Decode(non-pointer or nil " + rv.Kind().String() + ")")
	}
	return d.decodeStruct(raw, rv.Elem())
}

func (d *Decoder) decodeStruct(raw map[string]interface{}, rv reflect.Value) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		fv := rv.Field(i)
		if !fv.CanSet() {
			continue
		}

		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			if err := d.decodeStruct(raw, fv); err != nil {
				return err
			}
			continue
		}

		tag := field.Tag.Get(d.option.TagName)
		if tag == "-" {
			continue
		}
		name, omitempty := parseTag(tag, field.Name)

		value, ok := lookup(raw, name)
		if !ok {
			if omitempty {
				continue
			}
			return fmt.Errorf("structure: field %q: key %q not found", field.Name, name)
		}

		if err := d.decodeValue(value, fv, field.Name); err != nil {
			return err
		}
	}
	return nil
}

func parseTag(tag, fallback string) (name string, omitempty bool) {
	if tag == "" {
		return fallback, false
	}
	parts := strings.Split(tag, ",")
	name = parts[0]
	if name == "" {
		name = fallback
	}
	for _, p := range parts[1:] {
		if p == "omitempty" {
			omitempty = true
		}
	}
	return
}

func lookup(raw map[string]interface{}, key string) (interface{}, bool) {
	v, ok := raw[key]
	return v, ok
}

func (d *Decoder) decodeValue(value interface{}, fv reflect.Value, fieldName string) error {
	rv := reflect.ValueOf(value)
	if !rv.IsValid() {
		return nil
	}

	switch fv.Kind() {
	case reflect.Slice:
		return d.decodeSlice(rv, fv, fieldName)
	case reflect.String:
		if rv.Kind() == reflect.String {
			fv.SetString(rv.String())
			return nil
		}
		if d.option.WeaklyTypedInput {
			fv.SetString(fmt.Sprintf("%v", value))
			return nil
		}
		return fmt.Errorf("structure: field %q: expected string, got %s", fieldName, rv.Kind())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			fv.SetInt(rv.Int())
			return nil
		case reflect.Float32, reflect.Float64:
			fv.SetInt(int64(rv.Float()))
			return nil
		case reflect.String:
			if d.option.WeaklyTypedInput {
				n, err := strconv.ParseInt(rv.String(), 10, 64)
				if err != nil {
					return fmt.Errorf("structure: field %q: %w", fieldName, err)
				}
				fv.SetInt(n)
				return nil
			}
			return fmt.Errorf("structure: field %q: expected int, got string", fieldName)
		default:
			return fmt.Errorf("structure: field %q: expected int, got %s", fieldName, rv.Kind())
		}
	case reflect.Bool:
		if rv.Kind() == reflect.Bool {
			fv.SetBool(rv.Bool())
			return nil
		}
		return fmt.Errorf("structure: field %q: expected bool, got %s", fieldName, rv.Kind())
	case reflect.Struct:
		m, ok := value.(map[string]interface{})
		if !ok {
			return fmt.Errorf("structure: field %q: expected map, got %s", fieldName, rv.Kind())
		}
		return d.decodeStruct(m, fv)
	default:
		if rv.Type().AssignableTo(fv.Type()) {
			fv.Set(rv)
			return nil
		}
		return fmt.Errorf("structure: field %q: unsupported kind %s", fieldName, fv.Kind())
	}
}

func (d *Decoder) decodeSlice(rv reflect.Value, fv reflect.Value, fieldName string) error {
	if rv.Kind() != reflect.Slice {
		return fmt.Errorf("structure: field %q: expected slice, got %s", fieldName, rv.Kind())
	}

	elemType := fv.Type().Elem()
	out := reflect.MakeSlice(fv.Type(), rv.Len(), rv.Len())
	for i := 0; i < rv.Len(); i++ {
		item := rv.Index(i)
		if item.Kind() == reflect.Interface {
			item = item.Elem()
		}

		if item.Type().AssignableTo(elemType) {
			out.Index(i).Set(item)
			continue
		}

		if elemType.Kind() == reflect.String && d.option.WeaklyTypedInput {
			out.Index(i).SetString(fmt.Sprintf("%v", item.Interface()))
			continue
		}

		return fmt.Errorf("structure: field %q: element %d: expected %s, got %s", fieldName, i, elemType, item.Kind())
	}
	fv.Set(out)
	return nil
}
