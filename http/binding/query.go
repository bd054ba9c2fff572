package binding

import (
	"net/url"
	"reflect"
	"strconv"
	"strings"
)

// QueryParser fills struct fields tagged `query:"name"` from URL values.
// A `default:"..."` tag supplies the value of an absent parameter. Slices
// accept repeated parameters or one comma separated value. A bool parameter
// present without a value is true, so `?nocache` works as a flag.
type QueryParser struct {
	tagName    string
	defaultTag string
}

func NewQueryParser() *QueryParser {
	return &QueryParser{tagName: "query", defaultTag: "default"}
}

func (qp *QueryParser) Parse(values url.Values, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return &BindError{Type: "bind_error", Message: "v must be a non-nil pointer to struct"}
	}
	return qp.parseStruct(values, rv.Elem())
}

func (qp *QueryParser) parseStruct(values url.Values, rv reflect.Value) error {
	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)
		if !field.CanSet() {
			continue
		}

		name := qp.queryName(sf)
		if name == "-" {
			continue
		}
		if sf.Anonymous && field.Kind() == reflect.Struct {
			if err := qp.parseStruct(values, field); err != nil {
				return err
			}
			continue
		}

		raw, ok := values[name]
		if !ok {
			def, hasDef := sf.Tag.Lookup(qp.defaultTag)
			if !hasDef {
				continue
			}
			raw = []string{def}
		}
		if err := setField(field, raw, sf.Name); err != nil {
			return err
		}
	}
	return nil
}

func (qp *QueryParser) queryName(sf reflect.StructField) string {
	for _, tag := range []string{qp.tagName, "json"} {
		if v := sf.Tag.Get(tag); v != "" {
			name, _, _ := strings.Cut(v, ",")
			return name
		}
	}
	return strings.ToLower(sf.Name)
}

func setField(field reflect.Value, raw []string, name string) error {
	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}
		return setField(field.Elem(), raw, name)
	}

	if field.Kind() == reflect.Slice {
		if len(raw) == 1 && strings.Contains(raw[0], ",") {
			raw = strings.Split(raw[0], ",")
		}
		slice := reflect.MakeSlice(field.Type(), len(raw), len(raw))
		for i, s := range raw {
			if err := setScalar(slice.Index(i), strings.TrimSpace(s), name); err != nil {
				return err
			}
		}
		field.Set(slice)
		return nil
	}

	first := ""
	if len(raw) > 0 {
		first = raw[0]
	}
	return setScalar(field, first, name)
}

func setScalar(field reflect.Value, s, name string) error {
	invalid := func(err error) error {
		return &BindError{Type: "bind_error", Field: name, Message: "invalid " + field.Kind().String() + " value: " + err.Error()}
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(s)
	case reflect.Bool:
		if s == "" {
			field.SetBool(true)
			return nil
		}
		b, err := strconv.ParseBool(s)
		if err != nil {
			return invalid(err)
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return invalid(err)
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return invalid(err)
		}
		field.SetUint(n)
	default:
		return &BindError{Type: "bind_error", Field: name, Message: "unsupported field type: " + field.Kind().String()}
	}
	return nil
}
