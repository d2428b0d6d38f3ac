package rset

import "fmt"

// FieldKind is the logical type of a field.
type FieldKind int

const (
	KindUnknown FieldKind = iota
	KindBoolean
	KindInteger
	KindReal
	KindMoney
	KindString
	KindText
	KindXML
	KindDate
	KindDateTime
	KindTime
	KindTimeInterval
	KindIdentity
	KindLink
	KindEnum
	KindFlags
	KindArray
	KindBinary
	KindUUID
	KindObject
	KindRecord
	KindRecordSet
	KindRPCFile

	kindCount
)

var kindNames = [kindCount]string{
	KindUnknown:      "unknown",
	KindBoolean:      "boolean",
	KindInteger:      "integer",
	KindReal:         "real",
	KindMoney:        "money",
	KindString:       "string",
	KindText:         "text",
	KindXML:          "xml",
	KindDate:         "date",
	KindDateTime:     "datetime",
	KindTime:         "time",
	KindTimeInterval: "timeinterval",
	KindIdentity:     "identity",
	KindLink:         "link",
	KindEnum:         "enum",
	KindFlags:        "flags",
	KindArray:        "array",
	KindBinary:       "binary",
	KindUUID:         "uuid",
	KindObject:       "object",
	KindRecord:       "record",
	KindRecordSet:    "recordset",
	KindRPCFile:      "rpcfile",
}

// Columnar payloads name types with these tokens. The table is invertible;
// tokenAliases are accepted on input only.
var kindTokens = [kindCount]string{
	KindBoolean:      "Логическое",
	KindInteger:      "Число целое",
	KindReal:         "Число вещественное",
	KindMoney:        "Деньги",
	KindString:       "Строка",
	KindText:         "Текст",
	KindXML:          "XML-файл",
	KindDate:         "Дата",
	KindDateTime:     "Дата и время",
	KindTime:         "Время",
	KindTimeInterval: "Временной интервал",
	KindIdentity:     "Идентификатор",
	KindLink:         "Связь",
	KindEnum:         "Перечисляемое",
	KindFlags:        "Флаги",
	KindArray:        "Массив",
	KindBinary:       "Двоичное",
	KindUUID:         "UUID",
	KindObject:       "JSON-объект",
	KindRecord:       "Запись",
	KindRecordSet:    "Выборка",
	KindRPCFile:      "RPC-файл",
}

var tokenAliases = map[string]FieldKind{
	"Набор записей": KindRecordSet,
	"Число":         KindReal,
}

var (
	kindByToken = make(map[string]FieldKind, kindCount)
	kindByName  = make(map[string]FieldKind, kindCount)
)

func init() {
	for k := KindBoolean; k < kindCount; k++ {
		if prev, ok := kindByToken[kindTokens[k]]; ok {
			panic(fmt.Sprintf("token %q used by both %v and %v", kindTokens[k], prev, k))
		}
		kindByToken[kindTokens[k]] = k
		kindByName[kindNames[k]] = k
	}
	for tok, k := range tokenAliases {
		kindByToken[tok] = k
	}
}

func (k FieldKind) String() string {
	if k >= 0 && k < kindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Token returns the columnar type token of the kind.
func (k FieldKind) Token() string {
	if k > KindUnknown && k < kindCount {
		return kindTokens[k]
	}
	return ""
}

// IsEntity reports whether values of this kind are nested Records or RecordSets.
func (k FieldKind) IsEntity() bool {
	return k == KindRecord || k == KindRecordSet
}

// KindByToken maps a columnar type token to a kind.
func KindByToken(token string) (FieldKind, bool) {
	k, ok := kindByToken[token]
	return k, ok
}

// ParseKind accepts either an invariant kind name ("integer") or a token.
func ParseKind(s string) (FieldKind, error) {
	if k, ok := kindByName[s]; ok {
		return k, nil
	}
	if k, ok := kindByToken[s]; ok {
		return k, nil
	}
	return KindUnknown, fmt.Errorf("%w: %q", ErrFieldType, s)
}

func (k FieldKind) zeroWire() any {
	switch k {
	case KindInteger:
		return int64(0)
	case KindReal, KindMoney:
		return float64(0)
	default:
		return nil
	}
}
