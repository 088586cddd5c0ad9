package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field is one decoded protobuf field. Varint holds the value of varint
// fields and Bytes the value of length-delimited fields.
type Field struct {
	Number protowire.Number
	Type   protowire.Type
	Varint uint64
	Bytes  []byte
}

// Walk visits every top-level field of an encoded message in wire order.
// Fixed-width and group fields are skipped over but still visited.
func Walk(data []byte, visit func(Field) error) error {
	for len(data) > 0 {
		number, fieldType, tagLength := protowire.ConsumeTag(data)
		if tagLength < 0 {
			return fmt.Errorf("invalid field tag: %w", protowire.ParseError(tagLength))
		}
		data = data[tagLength:]

		field := Field{Number: number, Type: fieldType}
		var valueLength int
		switch fieldType {
		case protowire.VarintType:
			field.Varint, valueLength = protowire.ConsumeVarint(data)
		case protowire.BytesType:
			field.Bytes, valueLength = protowire.ConsumeBytes(data)
		default:
			valueLength = protowire.ConsumeFieldValue(number, fieldType, data)
		}
		if valueLength < 0 {
			return fmt.Errorf("invalid value for field %d: %w", number, protowire.ParseError(valueLength))
		}
		data = data[valueLength:]

		if err := visit(field); err != nil {
			return err
		}
	}
	return nil
}

// AppendVarintField appends a varint field, omitting zero values.
func AppendVarintField(buffer []byte, number protowire.Number, value uint64) []byte {
	if value == 0 {
		return buffer
	}
	buffer = protowire.AppendTag(buffer, number, protowire.VarintType)
	return protowire.AppendVarint(buffer, value)
}

// AppendBoolField appends a bool field, omitting false.
func AppendBoolField(buffer []byte, number protowire.Number, value bool) []byte {
	if !value {
		return buffer
	}
	return AppendVarintField(buffer, number, 1)
}

// AppendBytesField appends a length-delimited field, omitting empty values.
func AppendBytesField(buffer []byte, number protowire.Number, value []byte) []byte {
	if len(value) == 0 {
		return buffer
	}
	buffer = protowire.AppendTag(buffer, number, protowire.BytesType)
	return protowire.AppendBytes(buffer, value)
}

// AppendMessageField appends an embedded message even when it is empty.
func AppendMessageField(buffer []byte, number protowire.Number, message []byte) []byte {
	buffer = protowire.AppendTag(buffer, number, protowire.BytesType)
	return protowire.AppendBytes(buffer, message)
}

// AppendStringField appends a string field, omitting empty strings.
func AppendStringField(buffer []byte, number protowire.Number, value string) []byte {
	if value == "" {
		return buffer
	}
	buffer = protowire.AppendTag(buffer, number, protowire.BytesType)
	return protowire.AppendString(buffer, value)
}
