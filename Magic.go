/*
Copyright 2011-2025 Frederic Langlet
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
you may obtain a copy of the License at

                http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package jxlans

import (
	"encoding/binary"
)

// Magic values of common file formats, as read big endian from the first bytes
const (
	NO_MAGIC      = 0
	JXAN_MAGIC    = 0x4A58414E // token stream written by io.Writer
	JXL_MAGIC     = 0xFF0A     // JPEG XL codestream
	JXL_BOX_MAGIC = 0x0000000C // JPEG XL container (signature box size)
	JPG_MAGIC     = 0xFFD8FFE0
	GIF_MAGIC     = 0x47494638
	PDF_MAGIC     = 0x25504446
	ZIP_MAGIC     = 0x504B0304 // Works for jar & office docs
	LZMA_MAGIC    = 0x377ABCAF
	PNG_MAGIC     = 0x89504E47
	ZSTD_MAGIC    = 0x28B52FFD
	BROTLI_MAGIC  = 0x81CFB2CE
	CAB_MAGIC     = 0x4D534346
	GZIP_MAGIC    = 0x1F8B
	BZIP2_MAGIC   = 0x425A
)

var (
	_MAGIC_KEYS32 = map[uint]string{
		JXAN_MAGIC:    "JXAN",
		JXL_BOX_MAGIC: "JXL",
		GIF_MAGIC:     "GIF",
		PDF_MAGIC:     "PDF",
		ZIP_MAGIC:     "ZIP",
		LZMA_MAGIC:    "7Z",
		PNG_MAGIC:     "PNG",
		ZSTD_MAGIC:    "ZSTD",
		BROTLI_MAGIC:  "BROTLI",
		CAB_MAGIC:     "CAB",
	}

	_MAGIC_KEYS16 = map[uint]string{
		JXL_MAGIC:   "JXL",
		GZIP_MAGIC:  "GZIP",
		BZIP2_MAGIC: "BZIP2",
	}
)

// GetMagicType checks the first bytes of the slice against a list of common
// magic values. Returns NO_MAGIC if none matches.
func GetMagicType(src []byte) uint {
	if len(src) < 4 {
		if len(src) >= 2 {
			if key := uint(binary.BigEndian.Uint16(src)); len(_MAGIC_KEYS16[key]) > 0 {
				return key
			}
		}

		return NO_MAGIC
	}

	key := uint(binary.BigEndian.Uint32(src))

	if (key & ^uint(0x0F)) == JPG_MAGIC {
		return JPG_MAGIC
	}

	if _, found := _MAGIC_KEYS32[key]; found == true {
		return key
	}

	if _, found := _MAGIC_KEYS16[key>>16]; found == true {
		return key >> 16
	}

	return NO_MAGIC
}

// MagicName returns a short name for a magic value or an empty string
func MagicName(magic uint) string {
	if magic == JPG_MAGIC {
		return "JPEG"
	}

	if name, found := _MAGIC_KEYS32[magic]; found == true {
		return name
	}

	return _MAGIC_KEYS16[magic]
}

// IsCompressed returns true if the magic value identifies an entropy
// coded format (little gain is expected from encoding it again)
func IsCompressed(magic uint) bool {
	return magic != NO_MAGIC && magic != PDF_MAGIC
}
