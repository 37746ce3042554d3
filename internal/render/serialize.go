// Package render converts lookup records into JSON, YAML and plain text.
package render

import (
	"fmt"
	"net"
	"net/netip"
	"reflect"
	"sort"
	"strings"

	"github.com/kyvra-tech/myip/internal/models"
	"github.com/kyvra-tech/myip/internal/negotiate"
)

// Mapper is implemented by values that can describe themselves as a map.
type Mapper interface {
	ToMap() map[string]any
}

// ToPrimitive converts v into a tree of strings, numbers, booleans, nil,
// []any and *OrderedMap.  Known types are converted first; other maps,
// slices and structs are converted field by field; anything else becomes its
// fmt.Sprint form.  It never panics.
func ToPrimitive(v any) (out any) {
	defer func() {
		if r := recover(); r != nil {
			out = fmt.Sprintf("%v", v)
		}
	}()

	switch x := v.(type) {
	case nil:
		return nil
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return x
	case []byte:
		return string(x)
	case *models.LookupRecord:
		if x == nil {
			return nil
		}
		return recordMap(x)
	case models.LookupRecord:
		return recordMap(&x)
	case *models.GeoBlock:
		if x == nil {
			return NewOrderedMap()
		}
		return geoMap(x)
	case models.GeoBlock:
		return geoMap(&x)
	case models.IPType:
		return string(x)
	case negotiate.Format:
		return string(x)
	case netip.Addr:
		return x.String()
	case netip.Prefix:
		return x.String()
	case net.IP:
		return x.String()
	case *net.IPNet:
		if x == nil {
			return nil
		}
		return x.String()
	case *models.AppError:
		if x == nil {
			return nil
		}
		return appErrorMap(x)
	case *OrderedMap:
		return orderedMap(x)
	case map[string]any:
		return stringMap(x)
	case []any:
		return sliceOf(reflect.ValueOf(x))
	case []string:
		return sliceOf(reflect.ValueOf(x))
	case Mapper:
		return stringMap(x.ToMap())
	case error:
		return x.Error()
	}

	return reflected(reflect.ValueOf(v))
}

// recordMap returns the fields of r in response order.
func recordMap(r *models.LookupRecord) *OrderedMap {
	m := NewOrderedMap()
	m.Set("ip", r.IP)
	m.Set("user_agent", r.UserAgent)
	m.Set("hostname", r.Hostname)
	m.Set("error", r.Error)

	msgs := make([]any, 0, len(r.Messages))
	for _, msg := range r.Messages {
		msgs = append(msgs, msg)
	}
	m.Set("messages", msgs)
	m.Set("ip_valid", r.IPValid)

	if r.IPType == "" {
		m.Set("ip_type", nil)
	} else {
		m.Set("ip_type", string(r.IPType))
	}

	m.Set("geo", ToPrimitive(r.Geo))
	return m
}

func geoMap(g *models.GeoBlock) *OrderedMap {
	m := NewOrderedMap()
	if g.Error {
		m.Set("error", true)
		m.Set("message", g.Message)
		return m
	}

	m.Set("city", g.City)
	m.Set("country", g.Country)
	m.Set("country_code", g.CountryCode)
	m.Set("postcode", g.Postcode)
	m.Set("lat", floatOrNil(g.Lat))
	m.Set("long", floatOrNil(g.Long))
	m.Set("as_number", g.ASNumber)
	m.Set("as_name", g.ASName)
	m.Set("network", g.Network)
	m.Set("error", false)
	return m
}

func appErrorMap(e *models.AppError) *OrderedMap {
	m := NewOrderedMap()
	m.Set("error", true)
	m.Set("code", string(e.Code))
	m.Set("message", e.Message)
	return m
}

func floatOrNil(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func orderedMap(src *OrderedMap) *OrderedMap {
	if src == nil {
		return NewOrderedMap()
	}

	m := NewOrderedMap()
	for _, k := range src.keys {
		m.Set(k, ToPrimitive(src.values[k]))
	}
	return m
}

// stringMap converts a map with its keys sorted.
func stringMap(src map[string]any) *OrderedMap {
	keys := make([]string, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	m := NewOrderedMap()
	for _, k := range keys {
		m.Set(k, ToPrimitive(src[k]))
	}
	return m
}

func sliceOf(rv reflect.Value) []any {
	s := make([]any, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		s = append(s, ToPrimitive(rv.Index(i).Interface()))
	}
	return s
}

func reflected(rv reflect.Value) any {
	switch rv.Kind() {
	case reflect.Invalid:
		return nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return ToPrimitive(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return []any{}
		}
		return sliceOf(rv)
	case reflect.Map:
		return mapOf(rv)
	case reflect.Struct:
		if s, ok := rv.Interface().(fmt.Stringer); ok {
			return s.String()
		}
		return structOf(rv)
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	default:
		return fmt.Sprintf("%v", rv.Interface())
	}
}

func mapOf(rv reflect.Value) *OrderedMap {
	type entry struct {
		key string
		val reflect.Value
	}

	entries := make([]entry, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		entries = append(entries, entry{key: fmt.Sprint(iter.Key().Interface()), val: iter.Value()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	m := NewOrderedMap()
	for _, e := range entries {
		m.Set(e.key, ToPrimitive(e.val.Interface()))
	}
	return m
}

// structOf converts the exported fields of a struct, named by their json tag
// when there is one.
func structOf(rv reflect.Value) *OrderedMap {
	m := NewOrderedMap()
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}

		name := f.Name
		if tag, _, _ := strings.Cut(f.Tag.Get("json"), ","); tag == "-" {
			continue
		} else if tag != "" {
			name = tag
		}
		m.Set(name, ToPrimitive(rv.Field(i).Interface()))
	}
	return m
}
