package api

import (
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
)

// Query serializes params into url.Values.
//
// params may be a map[string]interface{} or a struct (or pointer to struct)
// whose fields carry a `query:"name"` tag. Nil values, nil pointers and empty
// strings are left out; numbers, booleans and string enums are written verbatim.
// There is no way to send a parameter whose value is "": an unset string field
// and an explicitly empty one encode the same.
func Query(params interface{}) url.Values {
	values := url.Values{}
	if params == nil {
		return values
	}

	if m, ok := params.(map[string]interface{}); ok {
		for k, v := range m {
			if s, ok := stringify(reflect.ValueOf(v)); ok {
				values.Set(k, s)
			}
		}
		return values
	}

	rv := reflect.ValueOf(params)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return values
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return values
	}

	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Tag.Get("query")
		if name == "-" {
			continue
		}
		if name == "" {
			name = strings.ToLower(field.Name[:1]) + field.Name[1:]
		}
		if s, ok := stringify(rv.Field(i)); ok {
			values.Set(name, s)
		}
	}
	return values
}

// Endpoint appends the encoded params to path, omitting the "?" when there are none
func Endpoint(path string, params interface{}) string {
	q := Query(params).Encode()
	if q == "" {
		return path
	}
	return path + "?" + q
}

// PathEscape escapes an identifier for use as a single path segment
func PathEscape(id string) string {
	return url.PathEscape(id)
}

func stringify(v reflect.Value) (string, bool) {
	if !v.IsValid() {
		return "", false
	}
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return "", false
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.String:
		s := v.String()
		return s, s != ""
	case reflect.Bool:
		return strconv.FormatBool(v.Bool()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10), true
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64), true
	default:
		if s, ok := v.Interface().(fmt.Stringer); ok {
			out := s.String()
			return out, out != ""
		}
		return fmt.Sprint(v.Interface()), true
	}
}
