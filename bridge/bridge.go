package bridge

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"
)

// Identity is the 16 byte opaque key that joins a host object to engine-side
// state. It is stable across renames and carries no display information.

// comparable
type Id [16]byte

func NewId() Id {
	return Id(ulid.Make())
}

func IdFromBytes(idBytes []byte) (Id, error) {
	if len(idBytes) != 16 {
		return Id{}, errors.New("Id must be 16 bytes")
	}
	return Id(idBytes), nil
}

func RequireIdFromBytes(idBytes []byte) Id {
	id, err := IdFromBytes(idBytes)
	if err != nil {
		panic(err)
	}
	return id
}

func ParseId(idStr string) (Id, error) {
	return parseUuid(idStr)
}

func (self Id) IsZero() bool {
	return self == Id{}
}

func (self Id) Bytes() []byte {
	return self[0:16]
}

func (self Id) String() string {
	return encodeUuid(self)
}

func (self *Id) MarshalJSON() ([]byte, error) {
	var buff bytes.Buffer
	buff.WriteByte('"')
	buff.WriteString(encodeUuid(*self))
	buff.WriteByte('"')
	return buff.Bytes(), nil
}

func (self *Id) UnmarshalJSON(src []byte) error {
	if len(src) < 2 || src[0] != '"' || src[len(src)-1] != '"' {
		return fmt.Errorf("invalid UUID literal: %s", src)
	}
	buf, err := parseUuid(string(src[1 : len(src)-1]))
	if err != nil {
		return err
	}
	*self = buf
	return nil
}

func parseUuid(src string) (dst [16]byte, err error) {
	switch len(src) {
	case 36:
		src = src[0:8] + src[9:13] + src[14:18] + src[19:23] + src[24:]
	case 32:
		// dashes already stripped, assume valid
	default:
		return dst, fmt.Errorf("cannot parse UUID %v", src)
	}

	buf, err := hex.DecodeString(src)
	if err != nil {
		return dst, err
	}

	copy(dst[:], buf)
	return dst, err
}

func encodeUuid(src [16]byte) string {
	return fmt.Sprintf("%x-%x-%x-%x-%x", src[0:4], src[4:6], src[6:8], src[8:10], src[10:16])
}

// a change notification produced by the host per mutation batch.
// multiple events may reference the same object in one batch.
type ChangeKind int

const (
	ChangeGeometry ChangeKind = iota
	ChangeTransform
	ChangeHierarchy
)

func (self ChangeKind) String() string {
	switch self {
	case ChangeGeometry:
		return "geometry"
	case ChangeTransform:
		return "transform"
	case ChangeHierarchy:
		return "hierarchy"
	default:
		return fmt.Sprintf("change(%d)", int(self))
	}
}

type ChangeEvent struct {
	Kind   ChangeKind
	Target Id
}

func GeometryChange(target Id) ChangeEvent {
	return ChangeEvent{
		Kind:   ChangeGeometry,
		Target: target,
	}
}

func TransformChange(target Id) ChangeEvent {
	return ChangeEvent{
		Kind:   ChangeTransform,
		Target: target,
	}
}

func HierarchyChange(target Id) ChangeEvent {
	return ChangeEvent{
		Kind:   ChangeHierarchy,
		Target: target,
	}
}
