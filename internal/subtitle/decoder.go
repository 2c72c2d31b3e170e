// Package subtitle decodes the framed binary subtitle channel and folds
// decoded batches into live captions and a finalized transcript.
package subtitle

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"

	"voicelink/internal/domain"
)

const (
	// frameMagic is the 4-byte ASCII sequence "subv" read big-endian.
	frameMagic uint32 = 0x73756276
	headerSize        = 8

	batchTypeSubtitle = "subtitle"
)

// Decode unpacks one framed subtitle message. It never panics; any
// structural violation (short buffer, bad magic, length mismatch, invalid
// UTF-8 or JSON, wrong type, missing data) yields nil so malformed frames
// can be dropped without destabilizing the session. A zero-length payload
// also yields nil: there is nothing to reconcile.
func Decode(frame []byte) *domain.SubtitleBatch {
	if len(frame) < headerSize {
		return nil
	}
	if binary.BigEndian.Uint32(frame[0:4]) != frameMagic {
		return nil
	}
	length := binary.BigEndian.Uint32(frame[4:8])
	if uint64(len(frame)-headerSize) != uint64(length) {
		return nil
	}
	if length == 0 {
		return nil
	}

	payload := frame[headerSize:]
	if !utf8.Valid(payload) {
		return nil
	}

	var batch domain.SubtitleBatch
	if err := json.Unmarshal(payload, &batch); err != nil {
		return nil
	}
	if batch.Type != batchTypeSubtitle || batch.Data == nil {
		return nil
	}
	return &batch
}

// Encode frames a batch into the binary wire format. It is the inverse of
// Decode and exists for round-trip testing and local tooling.
func Encode(batch domain.SubtitleBatch) ([]byte, error) {
	payload, err := json.Marshal(batch)
	if err != nil {
		return nil, err
	}
	if uint64(len(payload)) > uint64(^uint32(0)) {
		return nil, errors.New("subtitle payload too large")
	}

	frame := make([]byte, headerSize+len(payload))
	binary.BigEndian.PutUint32(frame[0:4], frameMagic)
	binary.BigEndian.PutUint32(frame[4:8], uint32(len(payload)))
	copy(frame[headerSize:], payload)
	return frame, nil
}

// RoleForUser classifies a speaker: identities starting with "bot"
// (case-insensitive) belong to the agent, everything else to the user.
func RoleForUser(userID string) domain.Role {
	if strings.HasPrefix(strings.ToLower(userID), "bot") {
		return domain.RoleAssistant
	}
	return domain.RoleUser
}
