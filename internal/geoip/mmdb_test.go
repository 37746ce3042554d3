package geoip

import (
	"bytes"
	"encoding/binary"
	"math"
	"net/netip"
	"os"
	"testing"
)

// field and record describe a MaxMind DB map with a fixed key order.
type field struct {
	key string
	val any
}

type record []field

// MaxMind DB data section type numbers.
const (
	mmdbString  = 2
	mmdbFloat64 = 3
	mmdbUint16  = 5
	mmdbUint32  = 6
	mmdbMap     = 7
	mmdbUint64  = 9
)

const (
	mmdbRecordSize = 24
	mmdbSeparator  = 16
)

var mmdbMetadataMarker = []byte("\xAB\xCD\xEFMaxMind.com")

// writeTestDB writes an IPv4 MaxMind DB holding rec for the single network n.
// Every other address has no record.
func writeTestDB(t *testing.T, path, dbType string, n netip.Prefix, rec record) {
	t.Helper()

	if !n.Addr().Is4() || n.Bits() < 1 {
		t.Fatalf("writeTestDB: unsupported network %s", n)
	}

	bits := n.Bits()
	ip := n.Masked().Addr().As4()
	nodeCount := uint32(bits)

	var tree bytes.Buffer
	for i := 0; i < bits; i++ {
		next := uint32(i + 1)
		if i == bits-1 {
			// Data pointer to offset 0 of the data section.
			next = nodeCount + mmdbSeparator
		}

		left, right := nodeCount, nodeCount
		if ip[i/8]>>(7-i%8)&1 == 0 {
			left = next
		} else {
			right = next
		}
		putRecord24(&tree, left)
		putRecord24(&tree, right)
	}

	var data bytes.Buffer
	encodeValue(t, &data, rec)

	var buf bytes.Buffer
	buf.Write(tree.Bytes())
	buf.Write(make([]byte, mmdbSeparator))
	buf.Write(data.Bytes())
	buf.Write(mmdbMetadataMarker)
	encodeValue(t, &buf, record{
		{"binary_format_major_version", uint16(2)},
		{"binary_format_minor_version", uint16(0)},
		{"build_epoch", uint64(1700000000)},
		{"database_type", dbType},
		{"ip_version", uint16(4)},
		{"node_count", nodeCount},
		{"record_size", uint16(mmdbRecordSize)},
	})

	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}
}

func putRecord24(buf *bytes.Buffer, v uint32) {
	buf.Write([]byte{byte(v >> 16), byte(v >> 8), byte(v)})
}

func encodeValue(t *testing.T, buf *bytes.Buffer, v any) {
	t.Helper()

	switch v := v.(type) {
	case string:
		putControl(t, buf, mmdbString, len(v))
		buf.WriteString(v)
	case float64:
		putControl(t, buf, mmdbFloat64, 8)
		_ = binary.Write(buf, binary.BigEndian, math.Float64bits(v))
	case uint16:
		putUint(t, buf, mmdbUint16, uint64(v))
	case uint32:
		putUint(t, buf, mmdbUint32, uint64(v))
	case uint64:
		putUint(t, buf, mmdbUint64, v)
	case record:
		putControl(t, buf, mmdbMap, len(v))
		for _, f := range v {
			encodeValue(t, buf, f.key)
			encodeValue(t, buf, f.val)
		}
	default:
		t.Fatalf("encodeValue: unsupported type %T", v)
	}
}

func putControl(t *testing.T, buf *bytes.Buffer, typ, size int) {
	t.Helper()

	ctrl, extra := size, []byte(nil)
	switch {
	case size < 29:
	case size < 29+256:
		ctrl, extra = 29, []byte{byte(size - 29)}
	default:
		t.Fatalf("putControl: size %d too large", size)
	}

	if typ > 7 {
		buf.WriteByte(byte(ctrl))
		buf.WriteByte(byte(typ - 7))
	} else {
		buf.WriteByte(byte(typ<<5 | ctrl))
	}
	buf.Write(extra)
}

func putUint(t *testing.T, buf *bytes.Buffer, typ int, n uint64) {
	t.Helper()

	var b []byte
	for ; n > 0; n >>= 8 {
		b = append([]byte{byte(n)}, b...)
	}
	putControl(t, buf, typ, len(b))
	buf.Write(b)
}
