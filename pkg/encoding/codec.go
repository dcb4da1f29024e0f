package encoding

import (
	"bytes"
	"encoding/binary"
	"math/big"
	"sort"
)

const (
	tagNull = iota
	tagBoolFalse
	tagBoolTrue
	tagInt
	tagDecimal
	tagString
	tagBytes
	tagList
	tagMap
)

// Encode serializes v into its canonical byte representation. v must be one
// of Null, bool, *big.Int, Decimal, string, []byte, List, or Map (nested
// arbitrarily in List/Map).
func Encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeInto(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeInto(buf *bytes.Buffer, v interface{}) error {
	switch t := v.(type) {
	case nil, Null:
		buf.WriteByte(tagNull)
	case bool:
		if t {
			buf.WriteByte(tagBoolTrue)
		} else {
			buf.WriteByte(tagBoolFalse)
		}
	case *big.Int:
		buf.WriteByte(tagInt)
		writeSignedMagnitude(buf, t)
	case int:
		return encodeInto(buf, big.NewInt(int64(t)))
	case int64:
		return encodeInto(buf, big.NewInt(t))
	case Decimal:
		canon := NewDecimal(t.Unscaled, t.Scale)
		buf.WriteByte(tagDecimal)
		writeUvarint(buf, uint64(canon.Scale))
		writeSignedMagnitude(buf, canon.Unscaled)
	case string:
		buf.WriteByte(tagString)
		writeUvarint(buf, uint64(len(t)))
		buf.WriteString(t)
	case []byte:
		buf.WriteByte(tagBytes)
		writeUvarint(buf, uint64(len(t)))
		buf.Write(t)
	case List:
		buf.WriteByte(tagList)
		writeUvarint(buf, uint64(len(t)))
		for _, e := range t {
			if err := encodeInto(buf, e); err != nil {
				return err
			}
		}
	case Map:
		buf.WriteByte(tagMap)
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		writeUvarint(buf, uint64(len(keys)))
		for _, k := range keys {
			writeUvarint(buf, uint64(len(k)))
			buf.WriteString(k)
			if err := encodeInto(buf, t[k]); err != nil {
				return err
			}
		}
	default:
		return ErrMalformedValue
	}
	return nil
}

func writeSignedMagnitude(buf *bytes.Buffer, n *big.Int) {
	if n.Sign() < 0 {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	mag := new(big.Int).Abs(n).Bytes()
	writeUvarint(buf, uint64(len(mag)))
	buf.Write(mag)
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

// Decode parses the canonical byte representation produced by Encode. It
// fails closed: any byte sequence Encode could not have produced returns
// ErrMalformedValue.
func Decode(b []byte) (interface{}, error) {
	r := bytes.NewReader(b)
	v, err := decodeFrom(r)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, ErrMalformedValue
	}
	return v, nil
}

func decodeFrom(r *bytes.Reader) (interface{}, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return nil, ErrMalformedValue
	}
	switch tag {
	case tagNull:
		return Null{}, nil
	case tagBoolFalse:
		return false, nil
	case tagBoolTrue:
		return true, nil
	case tagInt:
		n, err := readSignedMagnitude(r)
		if err != nil {
			return nil, err
		}
		return n, nil
	case tagDecimal:
		scale, err := readUvarint(r)
		if err != nil {
			return nil, err
		}
		if scale > 1<<31-1 {
			return nil, ErrMalformedValue
		}
		n, err := readSignedMagnitude(r)
		if err != nil {
			return nil, err
		}
		d := NewDecimal(n, int32(scale))
		if d.Scale != int32(scale) {
			return nil, ErrMalformedValue // trailing zeros or a scaled zero are not canonical
		}
		return d, nil
	case tagString:
		n, err := readUvarint(r)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, n)
		if _, err := readFull(r, buf); err != nil {
			return nil, err
		}
		return string(buf), nil
	case tagBytes:
		n, err := readUvarint(r)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, n)
		if _, err := readFull(r, buf); err != nil {
			return nil, err
		}
		return buf, nil
	case tagList:
		n, err := readUvarint(r)
		if err != nil {
			return nil, err
		}
		out := make(List, 0, n)
		for i := uint64(0); i < n; i++ {
			e, err := decodeFrom(r)
			if err != nil {
				return nil, err
			}
			out = append(out, e)
		}
		return out, nil
	case tagMap:
		n, err := readUvarint(r)
		if err != nil {
			return nil, err
		}
		out := make(Map, n)
		prevKey := ""
		for i := uint64(0); i < n; i++ {
			klen, err := readUvarint(r)
			if err != nil {
				return nil, err
			}
			kbuf := make([]byte, klen)
			if _, err := readFull(r, kbuf); err != nil {
				return nil, err
			}
			key := string(kbuf)
			if i > 0 && key <= prevKey {
				return nil, ErrMalformedValue
			}
			prevKey = key
			v, err := decodeFrom(r)
			if err != nil {
				return nil, err
			}
			out[key] = v
		}
		return out, nil
	default:
		return nil, ErrMalformedValue
	}
}

func readSignedMagnitude(r *bytes.Reader) (*big.Int, error) {
	signByte, err := r.ReadByte()
	if err != nil || signByte > 1 {
		return nil, ErrMalformedValue
	}
	n, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	mag := make([]byte, n)
	if _, err := readFull(r, mag); err != nil {
		return nil, err
	}
	if n > 0 && mag[0] == 0 {
		return nil, ErrMalformedValue // non-canonical leading zero byte
	}
	v := new(big.Int).SetBytes(mag)
	if signByte == 1 {
		if v.Sign() == 0 {
			return nil, ErrMalformedValue // "-0" is not canonical
		}
		v.Neg(v)
	}
	return v, nil
}

func readUvarint(r *bytes.Reader) (uint64, error) {
	before := r.Len()
	v, err := binary.ReadUvarint(r)
	if err != nil {
		return 0, ErrMalformedValue
	}
	var tmp [binary.MaxVarintLen64]byte
	if before-r.Len() != binary.PutUvarint(tmp[:], v) {
		return 0, ErrMalformedValue // non-minimal varint
	}
	return v, nil
}

func readFull(r *bytes.Reader, buf []byte) (int, error) {
	n, err := r.Read(buf)
	if err != nil && len(buf) != 0 {
		return n, ErrMalformedValue
	}
	if n != len(buf) {
		return n, ErrMalformedValue
	}
	return n, nil
}
