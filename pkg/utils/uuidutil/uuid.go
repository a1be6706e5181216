package uuidutil

import (
	"encoding/hex"

	"github.com/google/uuid"
)

func UUID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}
