package journal

import (
	"hash/crc32"
	"strconv"
	"strings"
)

// CalculateChecksum computes the CRC32-IEEE of an event's content fields.
// Fields are joined with a separator that cannot occur in product names so
// that shifting text between fields changes the sum.
func CalculateChecksum(e Event) uint32 {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(e.Seq, 10))
	for _, s := range []string{string(e.Type), e.RunID, e.Product, e.Task, e.Error, strconv.FormatInt(e.Timestamp, 10)} {
		b.WriteByte(0)
		b.WriteString(s)
	}
	return crc32.ChecksumIEEE([]byte(b.String()))
}

// VerifyChecksum reports whether the stored checksum matches the content
func VerifyChecksum(e Event) bool {
	return e.Checksum == CalculateChecksum(e)
}
