package types

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/teris-io/shortid"
)

// GeneratePackageID returns a random UUID. Packages are keyed by UUID so
// that ids printed into QR payloads stay valid across backends.
func GeneratePackageID() string {
	return uuid.NewString()
}

// IsUUID reports whether s parses as a UUID.
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// GenerateUUID returns a k-sortable unique identifier
func GenerateUUID() string {
	return ulid.Make().String()
}

// GenerateUUIDWithPrefix returns a k-sortable unique identifier
// with a prefix ex psh_01HF3K6Q2C1ZV2N5J7S8W9X0YA
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}

var (
	sidGenerator *shortid.Shortid
	once         sync.Once
)

func initializeSID() {
	var err error
	sidGenerator, err = shortid.New(1, shortid.DefaultABC, 2342)
	if err != nil {
		panic("failed to initialize shortid generator: " + err.Error())
	}
}

// GenerateShortCode returns an upper-case scan code of at most length
// characters, e.g. `PKX7Q2M9A`. Characters that are easy to misread on a
// thermal label are removed.
func GenerateShortCode(prefix string, length int) string {
	once.Do(initializeSID)

	id, err := sidGenerator.Generate()
	if err != nil {
		return ""
	}
	id = shortCodeReplacer.Replace(id)

	availableLen := length - len(prefix)
	if availableLen <= 0 {
		return ""
	}

	if len(id) > availableLen {
		id = id[:availableLen]
	}

	return strings.ToUpper(prefix + id)
}

var shortCodeReplacer = strings.NewReplacer("-", "", "_", "", "0", "", "O", "", "o", "", "I", "", "i", "", "l", "")

const (
	UUID_PREFIX_STATUS_HISTORY    = "psh"
	UUID_PREFIX_SCAN              = "scan"
	UUID_PREFIX_INVENTORY_ITEM    = "item"
	UUID_PREFIX_INVENTORY_MOVE    = "mov"
	UUID_PREFIX_SCAN_SESSION      = "ss"
	UUID_PREFIX_USER              = "user"
	UUID_PREFIX_AUDIT_RETRY_EVENT = "audit"

	SHORT_CODE_PREFIX_PACKAGE = "PK"
	SHORT_CODE_LENGTH         = 9
)
