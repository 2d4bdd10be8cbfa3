//  Copyright (c) 2025 The Quill Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// 		http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package segment

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"

	"github.com/quillindex/quill/store"
)

// Version is the file format version written into every segment file
// footer. Readers refuse other versions.
const Version uint32 = 1

// FooterSize is the fixed trailer every segment file carries:
// version uint32 LE, then crc32 uint32 LE over all preceding bytes
// (version included).
const FooterSize = 8

func writeUvarint(w *CountHashWriter, v uint64) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	_, err := w.Write(buf[:n])
	return err
}

// writeUvarints writes each of the provided uvarints in order.
func writeUvarints(w *CountHashWriter, vals ...uint64) error {
	for _, v := range vals {
		if err := writeUvarint(w, v); err != nil {
			return err
		}
	}
	return nil
}

func writeUint32(w *CountHashWriter, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeUint64(w *CountHashWriter, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeFloat32(w *CountHashWriter, v float32) error {
	return writeUint32(w, math.Float32bits(v))
}

// writeFooter appends the version and the running crc, completing a
// segment file.
func writeFooter(w *CountHashWriter) error {
	if err := writeUint32(w, Version); err != nil {
		return err
	}
	return writeUint32(w, w.Sum32())
}

// checkFooter validates a file's trailer and returns the payload bytes in
// front of it.
func checkFooter(data []byte) ([]byte, error) {
	if len(data) < FooterSize {
		return nil, fmt.Errorf("segment file too short: %d bytes", len(data))
	}
	crcOffset := len(data) - 4
	verOffset := crcOffset - 4
	version := binary.LittleEndian.Uint32(data[verOffset:crcOffset])
	if version != Version {
		return nil, fmt.Errorf("unsupported segment version %d != %d", version, Version)
	}
	crc := binary.LittleEndian.Uint32(data[crcOffset:])
	if got := crc32.ChecksumIEEE(data[:crcOffset]); got != crc {
		return nil, fmt.Errorf("segment file crc mismatch: %08x != %08x", got, crc)
	}
	return data[:verOffset], nil
}

// openChecked opens a storage entry and validates its footer.
func openChecked(st store.Storage, name string) (store.Handle, []byte, error) {
	h, err := st.Open(name)
	if err != nil {
		return nil, nil, err
	}
	payload, err := checkFooter(h.Data())
	if err != nil {
		_ = h.Close()
		return nil, nil, fmt.Errorf("%s: %w", name, err)
	}
	return h, payload, nil
}

func readUvarint(data []byte, pos uint64) (uint64, uint64, error) {
	v, n := binary.Uvarint(data[pos:])
	if n <= 0 {
		return 0, 0, fmt.Errorf("corrupt uvarint at offset %d", pos)
	}
	return v, pos + uint64(n), nil
}
