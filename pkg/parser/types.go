package parser

import (
	"fmt"
	"strconv"
	"strings"
)

// PDFObject represents an operand in a content stream
type PDFObject interface {
	Type() string
}

// PDFNull represents a null object
type PDFNull struct{}

func (PDFNull) Type() string { return "null" }

// PDFBool represents a boolean object
type PDFBool bool

func (PDFBool) Type() string { return "bool" }

// PDFInt represents an integer object
type PDFInt int64

func (PDFInt) Type() string { return "int" }

// PDFFloat represents a floating-point object
type PDFFloat float64

func (PDFFloat) Type() string { return "float" }

// PDFString represents a string object, already unescaped
type PDFString []byte

func (PDFString) Type() string { return "string" }

// PDFName represents a name object
type PDFName string

func (PDFName) Type() string { return "name" }

// PDFKeyword represents an operator
type PDFKeyword string

func (PDFKeyword) Type() string { return "keyword" }

// PDFArray represents an array object
type PDFArray []PDFObject

func (PDFArray) Type() string { return "array" }

// PDFDict represents a dictionary object
type PDFDict map[PDFName]PDFObject

func (PDFDict) Type() string { return "dict" }

// Get retrieves a value from the dictionary
func (d PDFDict) Get(key PDFName) PDFObject {
	return d[key]
}

// GetName retrieves a name value from the dictionary
func (d PDFDict) GetName(key PDFName) (PDFName, bool) {
	if obj, ok := d[key]; ok {
		if name, ok := obj.(PDFName); ok {
			return name, true
		}
	}
	return "", false
}

// ToFloat converts a numeric operand
func ToFloat(obj PDFObject) (float64, bool) {
	switch v := obj.(type) {
	case PDFInt:
		return float64(v), true
	case PDFFloat:
		return float64(v), true
	}
	return 0, false
}

// FormatNumber writes a number the way content streams expect: no exponent,
// no trailing zeros
func FormatNumber(f float64) string {
	if f == 0 {
		return "0"
	}
	s := strconv.FormatFloat(f, 'f', 5, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" {
		return "0"
	}
	return s
}

// Format serializes an operand back to content stream syntax
func Format(obj PDFObject) string {
	switch v := obj.(type) {
	case PDFNull:
		return "null"
	case PDFBool:
		return strconv.FormatBool(bool(v))
	case PDFInt:
		return strconv.FormatInt(int64(v), 10)
	case PDFFloat:
		return FormatNumber(float64(v))
	case PDFString:
		return formatHexString(v)
	case PDFName:
		return formatName(v)
	case PDFKeyword:
		return string(v)
	case PDFArray:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = Format(item)
		}
		return "[" + strings.Join(parts, " ") + "]"
	case PDFDict:
		var sb strings.Builder
		sb.WriteString("<<")
		for k, item := range v {
			sb.WriteString(formatName(k))
			sb.WriteByte(' ')
			sb.WriteString(Format(item))
			sb.WriteByte(' ')
		}
		sb.WriteString(">>")
		return sb.String()
	}
	return fmt.Sprintf("%v", obj)
}

func formatHexString(b []byte) string {
	return fmt.Sprintf("<%X>", []byte(b))
}

func formatName(n PDFName) string {
	var sb strings.Builder
	sb.WriteByte('/')
	for i := 0; i < len(n); i++ {
		ch := n[i]
		if ch <= ' ' || ch >= 0x7f || ch == '#' || isDelimiter(ch) {
			fmt.Fprintf(&sb, "#%02X", ch)
			continue
		}
		sb.WriteByte(ch)
	}
	return sb.String()
}
