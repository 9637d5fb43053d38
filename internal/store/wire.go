package store

import (
	"encoding/binary"

	"github.com/meridiankv/meridian/internal/errkind"
)

// SerializeRecord encodes record as
// [key_len:u16][key][value_len:u32][value][version:u64][created:u64][updated:u64][owner:u16][tombstone:u8],
// all integers big-endian (§4.5).
func SerializeRecord(r Record) []byte {
	keyBytes := []byte(r.Key)
	size := 2 + len(keyBytes) + 4 + len(r.Value) + 8 + 8 + 8 + 2 + 1
	buf := make([]byte, size)

	off := 0
	binary.BigEndian.PutUint16(buf[off:], uint16(len(keyBytes)))
	off += 2
	copy(buf[off:], keyBytes)
	off += len(keyBytes)

	binary.BigEndian.PutUint32(buf[off:], uint32(len(r.Value)))
	off += 4
	copy(buf[off:], r.Value)
	off += len(r.Value)

	binary.BigEndian.PutUint64(buf[off:], r.Version)
	off += 8
	binary.BigEndian.PutUint64(buf[off:], uint64(r.CreatedAtMs))
	off += 8
	binary.BigEndian.PutUint64(buf[off:], uint64(r.UpdatedAtMs))
	off += 8
	binary.BigEndian.PutUint16(buf[off:], r.OwnerNode)
	off += 2

	if r.Tombstone {
		buf[off] = 1
	} else {
		buf[off] = 0
	}

	return buf
}

// DeserializeRecord decodes a single record from buf, returning the
// record and the number of bytes consumed.
func DeserializeRecord(buf []byte) (Record, int, error) {
	if len(buf) < 2 {
		return Record{}, 0, errkind.New(errkind.INVALID, "store.DeserializeRecord", "short buffer")
	}
	off := 0
	keyLen := int(binary.BigEndian.Uint16(buf[off:]))
	off += 2
	if len(buf) < off+keyLen+4 {
		return Record{}, 0, errkind.New(errkind.INVALID, "store.DeserializeRecord", "short buffer")
	}
	key := string(buf[off : off+keyLen])
	off += keyLen

	valueLen := int(binary.BigEndian.Uint32(buf[off:]))
	off += 4
	if len(buf) < off+valueLen+8+8+8+2+1 {
		return Record{}, 0, errkind.New(errkind.INVALID, "store.DeserializeRecord", "short buffer")
	}
	value := append([]byte(nil), buf[off:off+valueLen]...)
	off += valueLen

	version := binary.BigEndian.Uint64(buf[off:])
	off += 8
	created := int64(binary.BigEndian.Uint64(buf[off:]))
	off += 8
	updated := int64(binary.BigEndian.Uint64(buf[off:]))
	off += 8
	owner := binary.BigEndian.Uint16(buf[off:])
	off += 2
	tombstone := buf[off] != 0
	off++

	return Record{
		Key:         key,
		Value:       value,
		Version:     version,
		CreatedAtMs: created,
		UpdatedAtMs: updated,
		OwnerNode:   owner,
		Tombstone:   tombstone,
	}, off, nil
}

// SerializeRecords encodes [count:u32](record)* for delta sync.
func SerializeRecords(records []Record) []byte {
	var total int
	encoded := make([][]byte, len(records))
	for i, r := range records {
		encoded[i] = SerializeRecord(r)
		total += len(encoded[i])
	}

	buf := make([]byte, 4+total)
	binary.BigEndian.PutUint32(buf, uint32(len(records)))
	off := 4
	for _, e := range encoded {
		off += copy(buf[off:], e)
	}
	return buf
}

// DeserializeRecords decodes [count:u32](record)*.
func DeserializeRecords(buf []byte) ([]Record, error) {
	if len(buf) < 4 {
		return nil, errkind.New(errkind.INVALID, "store.DeserializeRecords", "short buffer")
	}
	count := binary.BigEndian.Uint32(buf)
	off := 4

	records := make([]Record, 0, count)
	for i := uint32(0); i < count; i++ {
		r, n, err := DeserializeRecord(buf[off:])
		if err != nil {
			return nil, err
		}
		records = append(records, r)
		off += n
	}
	return records, nil
}
