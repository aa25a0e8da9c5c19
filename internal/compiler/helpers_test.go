package compiler

import (
	"bytes"
	"encoding/binary"
	"io"
)

func bytesReader(b []byte) io.Reader { return bytes.NewReader(b) }

func leUint32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }
