package service

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// SessionID derives the session identifier from requester, station and start instant.
func SessionID(requesterID, stationID string, start time.Time) string {
	var b strings.Builder
	b.WriteString(requesterID)
	b.WriteByte('|')
	b.WriteString(stationID)
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(start.UTC().UnixNano(), 10))
	sum := blake2b.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:16])
}

func pairKey(requesterID, stationID string) string {
	return stationID + "\x00" + requesterID
}
