package bench

import (
	"github.com/tinywasm/tinywasm/internal/binary"
	"github.com/tinywasm/tinywasm/internal/leb128"
)

const (
	sectionType     = 1
	sectionFunction = 3
	sectionExport   = 7
	sectionCode     = 10
	exportKindFunc  = 0x00

	valTypeI32 = 0x7f
	valTypeI64 = 0x7e
	blockVoid  = 0x40
)

// facIterModule hand-assembles a single-export module equivalent to:
//
//	fac-iter(n i32) -> i64 {
//	  acc: i64 = 1
//	  loop {
//	    if n == 0 { break }
//	    acc = acc * i64(n)
//	    n = n - 1
//	    continue
//	  }
//	  return acc
//	}
//
// i64 multiplication wraps like every other runtime under comparison, so
// this benchmarks the same 64-bit-wrapping arithmetic on every back-end
// rather than exact mathematical factorial.
func facIterModule() []byte {
	body := []byte{
		byte(binary.OpI64Const), 0x01,
		byte(binary.OpLocalSet), 0x01,
		byte(binary.OpBlock), blockVoid,
		byte(binary.OpLoop), blockVoid,
		byte(binary.OpLocalGet), 0x00,
		byte(binary.OpI32Eqz),
		byte(binary.OpBrIf), 0x01,
		byte(binary.OpLocalGet), 0x01,
		byte(binary.OpLocalGet), 0x00,
		byte(binary.OpI64ExtendUI32),
		byte(binary.OpI64Mul),
		byte(binary.OpLocalSet), 0x01,
		byte(binary.OpLocalGet), 0x00,
		byte(binary.OpI32Const), 0x01,
		byte(binary.OpI32Sub),
		byte(binary.OpLocalSet), 0x00,
		byte(binary.OpBr), 0x00,
		byte(binary.OpEnd), // end loop
		byte(binary.OpEnd), // end block
		byte(binary.OpLocalGet), 0x01,
		byte(binary.OpEnd), // end function
	}

	var buf []byte
	buf = append(buf, 0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00)

	typeBody := append(leb128.EncodeUint32(1), 0x60, 0x01, valTypeI32, 0x01, valTypeI64)
	buf = appendSection(buf, sectionType, typeBody)

	funcBody := append(leb128.EncodeUint32(1), leb128.EncodeUint32(0)...)
	buf = appendSection(buf, sectionFunction, funcBody)

	localDecl := append(leb128.EncodeUint32(1), leb128.EncodeUint32(1)...)
	localDecl = append(localDecl, valTypeI64)
	entry := append(localDecl, body...)
	codeBody := append(leb128.EncodeUint32(1), leb128.EncodeUint32(uint32(len(entry)))...)
	codeBody = append(codeBody, entry...)
	buf = appendSection(buf, sectionCode, codeBody)

	name := "fac-iter"
	expBody := append(leb128.EncodeUint32(1), leb128.EncodeUint32(uint32(len(name)))...)
	expBody = append(expBody, []byte(name)...)
	expBody = append(expBody, exportKindFunc)
	expBody = append(expBody, leb128.EncodeUint32(0)...)
	buf = appendSection(buf, sectionExport, expBody)

	return buf
}

func appendSection(buf []byte, id byte, body []byte) []byte {
	buf = append(buf, id)
	buf = append(buf, leb128.EncodeUint32(uint32(len(body)))...)
	return append(buf, body...)
}
