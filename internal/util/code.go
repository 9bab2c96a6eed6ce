package util

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Human-readable entity codes shown to operators. The year prefix matches the
// codes the console has always displayed; the uuid fragment keeps them unique
// without a database sequence.

func NewLoanCode() string {
	return newCode("LN")
}

func NewTransactionCode() string {
	return newCode("TRX")
}

func newCode(prefix string) string {
	fragment := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:8]
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UTC().Year(), fragment)
}
