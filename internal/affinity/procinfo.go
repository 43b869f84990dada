package affinity

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const relationProcessorCore uint32 = 0

// maxSizedQueries bounds the retries of a query whose required buffer size
// keeps changing, such as while processors are hot-added.
const maxSizedQueries = 8

// sizedQuery calls query with a buffer of the size the previous call asked
// for until it no longer fails with tooSmall. query returns the number of
// bytes used or, on a too-small buffer, the number of bytes needed.
func sizedQuery(query func(buf []byte) (int, error), tooSmall func(error) bool) ([]byte, error) {
	var buf []byte
	for range maxSizedQueries {
		n, err := query(buf)
		if err == nil {
			if n > len(buf) {
				return nil, fmt.Errorf("query used %d bytes of a %d byte buffer", n, len(buf))
			}
			return buf[:n], nil
		}
		if !tooSmall(err) {
			return nil, err
		}
		if n <= len(buf) {
			return nil, fmt.Errorf("%d byte buffer too small but no larger size requested: %w", len(buf), err)
		}
		buf = make([]byte, n)
	}
	return nil, fmt.Errorf("required buffer size still changing after %d queries", maxSizedQueries)
}

// parseProcessorInfo walks SYSTEM_LOGICAL_PROCESSOR_INFORMATION_EX records of
// type RelationProcessorCore and flattens every GROUP_AFFINITY in them.
//
// Record layout: Relationship u32 @0, Size u32 @4, PROCESSOR_RELATIONSHIP @8
// with GroupCount u16 @30 and GROUP_AFFINITY[GroupCount] @32, 16 bytes each:
// KAFFINITY u64 @0, Group u16 @8.
func parseProcessorInfo(buf []byte) ([]Unit, error) {
	var units []Unit
	for offset := 0; offset < len(buf); {
		if len(buf)-offset < 32 {
			return nil, &UnitQueryError{Op: "parsing processor information", Err: errors.New("truncated record")}
		}
		rec := buf[offset:]
		relationship := binary.LittleEndian.Uint32(rec[0:])
		size := int(binary.LittleEndian.Uint32(rec[4:]))
		if size < 32 || size > len(rec) {
			return nil, &UnitQueryError{Op: "parsing processor information", Err: fmt.Errorf("bad record size %d", size)}
		}
		if relationship == relationProcessorCore {
			groups := int(binary.LittleEndian.Uint16(rec[30:]))
			if 32+16*groups > size {
				return nil, &UnitQueryError{Op: "parsing processor information",
					Err: fmt.Errorf("%d groups overflow record of %d bytes", groups, size)}
			}
			for i := range groups {
				at := 32 + 16*i
				mask := binary.LittleEndian.Uint64(rec[at:])
				group := binary.LittleEndian.Uint16(rec[at+8:])
				units = append(units, Flatten(group, mask)...)
			}
		}
		offset += size
	}
	return units, nil
}
