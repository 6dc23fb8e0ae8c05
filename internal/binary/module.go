// Package binary decodes the WebAssembly MVP binary module format into
// the flat per-function Op streams consumed by the translation stage.
// It performs no operand-stack validation: the caller is assumed to hand
// it an already-validated module, matching the out-of-scope decoder
// boundary the execution engine is specified against.
package binary

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/tinywasm/tinywasm/api"
	"github.com/tinywasm/tinywasm/internal/leb128"
)

const (
	magic   = 0x6d736100 // "\0asm"
	version = uint32(1)
)

const (
	sectionCustom   = 0
	sectionType     = 1
	sectionImport   = 2
	sectionFunction = 3
	sectionTable    = 4
	sectionMemory   = 5
	sectionGlobal   = 6
	sectionExport   = 7
	sectionStart    = 8
	sectionElement  = 9
	sectionCode     = 10
	sectionData     = 11
)

const exportKindFunc = 0x00

// Function is one decoded function: its declared locals (beyond
// parameters, which come from its Type) and its decoded instruction
// stream.
type Function struct {
	TypeIndex uint32
	Locals    []api.ValueType
	Body      []Op
}

// Module is a fully decoded, unvalidated Wasm module.
type Module struct {
	Types     []*api.FunctionType
	Functions []Function       // one per non-imported function, in module order
	Exports   map[string]uint32 // export name -> function index
}

// Decode parses a complete Wasm MVP binary module.
func Decode(data []byte) (*Module, error) {
	r := bytes.NewReader(data)

	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("binary: reading header: %w", err)
	}
	if binary.LittleEndian.Uint32(hdr[0:4]) != magic {
		return nil, fmt.Errorf("binary: not a wasm module (bad magic)")
	}
	if binary.LittleEndian.Uint32(hdr[4:8]) != version {
		return nil, fmt.Errorf("binary: unsupported wasm version")
	}

	m := &Module{Exports: map[string]uint32{}}
	var typeIndices []uint32

	for {
		id, err := r.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("binary: reading section id: %w", err)
		}
		size, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, fmt.Errorf("binary: reading section size: %w", err)
		}
		body := make([]byte, size)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, fmt.Errorf("binary: reading section body: %w", err)
		}

		switch id {
		case sectionType:
			types, err := decodeTypeSection(body)
			if err != nil {
				return nil, err
			}
			m.Types = types
		case sectionFunction:
			idxs, err := decodeFunctionSection(body)
			if err != nil {
				return nil, err
			}
			typeIndices = idxs
		case sectionCode:
			fns, err := decodeCodeSection(body, typeIndices)
			if err != nil {
				return nil, err
			}
			m.Functions = fns
		case sectionExport:
			if err := decodeExportSection(body, m.Exports); err != nil {
				return nil, err
			}
		case sectionImport, sectionTable, sectionMemory, sectionGlobal,
			sectionStart, sectionElement, sectionData, sectionCustom:
			// Out of scope: imports/tables/memory/globals/elem/data are
			// external-collaborator concerns here. Their section bytes
			// were already consumed above; nothing further to decode.
		default:
			return nil, fmt.Errorf("binary: unknown section id %d", id)
		}
	}

	if len(m.Functions) == 0 && len(typeIndices) > 0 {
		return nil, fmt.Errorf("binary: function section present without a code section")
	}
	return m, nil
}

func decodeTypeSection(body []byte) ([]*api.FunctionType, error) {
	r := bytes.NewReader(body)
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	types := make([]*api.FunctionType, count)
	for i := range types {
		form, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if form != 0x60 {
			return nil, fmt.Errorf("binary: unsupported type form %#x", form)
		}
		params, err := decodeValueTypeVec(r)
		if err != nil {
			return nil, err
		}
		results, err := decodeValueTypeVec(r)
		if err != nil {
			return nil, err
		}
		if len(results) > 1 {
			return nil, fmt.Errorf("binary: multi-value results unsupported")
		}
		types[i] = &api.FunctionType{Params: params, Results: results}
	}
	return types, nil
}

func decodeValueTypeVec(r io.ByteReader) ([]api.ValueType, error) {
	n, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	out := make([]api.ValueType, n)
	for i := range out {
		b, err := readByte(r)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

func readByte(r io.ByteReader) (byte, error) { return r.ReadByte() }

func decodeFunctionSection(body []byte) ([]uint32, error) {
	r := bytes.NewReader(body)
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	out := make([]uint32, count)
	for i := range out {
		v, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func decodeCodeSection(body []byte, typeIndices []uint32) ([]Function, error) {
	r := bytes.NewReader(body)
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	if int(count) != len(typeIndices) {
		return nil, fmt.Errorf("binary: code section has %d entries, function section has %d", count, len(typeIndices))
	}
	fns := make([]Function, count)
	for i := range fns {
		bodySize, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, err
		}
		raw := make([]byte, bodySize)
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, err
		}
		locals, instrs, err := decodeFunc(raw)
		if err != nil {
			return nil, err
		}
		fns[i] = Function{TypeIndex: typeIndices[i], Locals: locals, Body: instrs}
	}
	return fns, nil
}

func decodeFunc(raw []byte) ([]api.ValueType, []Op, error) {
	r := bytes.NewReader(raw)
	localGroups, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, nil, err
	}
	var locals []api.ValueType
	for i := uint32(0); i < localGroups; i++ {
		n, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, nil, err
		}
		t, err := r.ReadByte()
		if err != nil {
			return nil, nil, err
		}
		for j := uint32(0); j < n; j++ {
			locals = append(locals, t)
		}
	}
	rest := raw[len(raw)-r.Len():]
	ops, err := DecodeFunctionBody(rest)
	if err != nil {
		return nil, nil, err
	}
	return locals, ops, nil
}

func decodeExportSection(body []byte, exports map[string]uint32) error {
	r := bytes.NewReader(body)
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		nameLen, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return err
		}
		nameBytes := make([]byte, nameLen)
		if _, err := io.ReadFull(r, nameBytes); err != nil {
			return err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}
		idx, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return err
		}
		if kind == exportKindFunc {
			exports[string(nameBytes)] = idx
		}
	}
	return nil
}
