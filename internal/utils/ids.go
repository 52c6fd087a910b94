package utils

import (
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// GenerateNanoIdWithPrefix returns an id like "email_x3f9k2..." used as
// primary key for all mailsync records.
func GenerateNanoIdWithPrefix(prefix string, length int) string {
	id, err := gonanoid.Generate(idAlphabet, length)
	if err != nil {
		panic(err)
	}
	return fmt.Sprintf("%s_%s", prefix, id)
}

// Now returns the current UTC time truncated to microseconds, matching
// postgres timestamp resolution.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
