package idhash

import (
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/mr-tron/base58"

	"provision-risk-lab/internal/domain"
)

// LedgerFingerprint computes a deterministic content hash of a ledger.
// Formula: SHA256(columns | per row: bucket|interval|cells) encoded in base58.
// Two ledgers with the same labels, keys and cell bits share a fingerprint.
func LedgerFingerprint(l *domain.Ledger) string {
	h := sha256.New()
	var buf [8]byte

	if l != nil {
		for _, col := range l.Columns() {
			h.Write([]byte(col.Label))
			h.Write([]byte{'|'})
		}
		h.Write([]byte{'\n'})

		cols := len(l.Columns())
		for r := 0; r < l.Len(); r++ {
			h.Write([]byte(l.Key(r)))
			h.Write([]byte{'|'})
			if iv, ok := l.Interval(r); ok {
				binary.BigEndian.PutUint64(buf[:], uint64(int64(iv)))
				h.Write(buf[:])
			}
			h.Write([]byte{'|'})
			for c := 0; c < cols; c++ {
				binary.BigEndian.PutUint64(buf[:], math.Float64bits(l.Value(r, c)))
				h.Write(buf[:])
			}
			h.Write([]byte{'\n'})
		}
	}

	return base58.Encode(h.Sum(nil))
}
