package stax

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Persisted bytecode image layout:
//
//	magic   [4]byte  "SBXC"
//	version uint16
//	poolLen uint32   length of the CBOR constant pool blob
//	pool    []byte   CBOR-encoded []constRecord
//	count   uint32   instruction count
//	instrs  count x { opcode uint8, hasOperand uint8, operand int64 }
//
// All integers are big-endian. Instruction records are fixed width so the
// program section can be scanned without decoding.

var imageMagic = [4]byte{'S', 'B', 'X', 'C'}

const imageVersion uint16 = 1

const (
	constKindInt  = "i"
	constKindStr  = "s"
	constKindList = "l"
)

type constRecord struct {
	Kind string        `cbor:"k"`
	Int  int64         `cbor:"i,omitempty"`
	Str  string        `cbor:"s,omitempty"`
	List []constRecord `cbor:"l,omitempty"`
}

func valueToRecord(value Value) (constRecord, error) {
	switch v := value.(type) {
	case IntObj:
		return constRecord{Kind: constKindInt, Int: v.Value}, nil
	case StrObj:
		return constRecord{Kind: constKindStr, Str: v.Value}, nil
	case *ListObj:
		records := make([]constRecord, 0, len(v.Elements))
		for _, elem := range v.Elements {
			rec, err := valueToRecord(elem)
			if err != nil {
				return constRecord{}, err
			}
			records = append(records, rec)
		}
		return constRecord{Kind: constKindList, List: records}, nil
	default:
		return constRecord{}, fmt.Errorf("cannot encode constant of type %s", value.Type())
	}
}

func recordToValue(rec constRecord) (Value, error) {
	switch rec.Kind {
	case constKindInt:
		return IntObj{Value: rec.Int}, nil
	case constKindStr:
		return StrObj{Value: rec.Str}, nil
	case constKindList:
		list := &ListObj{Elements: make([]Value, 0, len(rec.List))}
		for _, elem := range rec.List {
			value, err := recordToValue(elem)
			if err != nil {
				return nil, err
			}
			list.Elements = append(list.Elements, value)
		}
		return list, nil
	default:
		return nil, fmt.Errorf("unknown constant kind %q", rec.Kind)
	}
}

// EncodeBytecode serializes compiled bytecode into the image format.
func EncodeBytecode(bc *Bytecode) ([]byte, error) {
	records := make([]constRecord, 0, len(bc.Consts))
	for _, c := range bc.Consts {
		rec, err := valueToRecord(c)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	pool, err := cbor.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encoding constant pool: %w", err)
	}

	buf := &bytes.Buffer{}
	buf.Write(imageMagic[:])
	binary.Write(buf, binary.BigEndian, imageVersion)
	binary.Write(buf, binary.BigEndian, uint32(len(pool)))
	buf.Write(pool)

	binary.Write(buf, binary.BigEndian, uint32(len(bc.Program)))
	for _, instr := range bc.Program {
		buf.WriteByte(byte(instr.Op))
		var operand int64
		if instr.Operand != nil {
			buf.WriteByte(1)
			operand = int64(*instr.Operand)
		} else {
			buf.WriteByte(0)
		}
		binary.Write(buf, binary.BigEndian, operand)
	}
	return buf.Bytes(), nil
}

// DecodeBytecode parses an image back into runnable bytecode, validating the
// header and every opcode tag.
func DecodeBytecode(data []byte) (*Bytecode, error) {
	r := bytes.NewReader(data)

	var magic [4]byte
	if _, err := r.Read(magic[:]); err != nil || magic != imageMagic {
		return nil, fmt.Errorf("not a bytecode image")
	}
	var version uint16
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return nil, fmt.Errorf("truncated image header")
	}
	if version != imageVersion {
		return nil, fmt.Errorf("unsupported image version %d", version)
	}

	var poolLen uint32
	if err := binary.Read(r, binary.BigEndian, &poolLen); err != nil {
		return nil, fmt.Errorf("truncated image header")
	}
	pool := make([]byte, poolLen)
	if _, err := io.ReadFull(r, pool); err != nil {
		return nil, fmt.Errorf("truncated constant pool")
	}
	var records []constRecord
	if err := cbor.Unmarshal(pool, &records); err != nil {
		return nil, fmt.Errorf("decoding constant pool: %w", err)
	}
	consts := make([]Value, 0, len(records))
	for _, rec := range records {
		value, err := recordToValue(rec)
		if err != nil {
			return nil, err
		}
		consts = append(consts, value)
	}

	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("truncated program section")
	}
	program := make([]Instruction, 0, count)
	record := make([]byte, 10)
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(r, record); err != nil {
			return nil, fmt.Errorf("truncated instruction %d", i)
		}
		op := Opcode(record[0])
		if op >= numOpcodes {
			return nil, fmt.Errorf("instruction %d: invalid opcode tag %d", i, record[0])
		}
		instr := Instruction{Op: op}
		if record[1] != 0 {
			operand := int(int64(binary.BigEndian.Uint64(record[2:])))
			instr.Operand = &operand
		}
		program = append(program, instr)
	}

	return &Bytecode{Program: program, Consts: consts}, nil
}
