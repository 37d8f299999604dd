package macros

import (
	"fmt"
	"strconv"

	"fortio.org/safecast"
)

// Fingerprint classifies one implementation parameter.
// Non-negative values are Tag(n): a type witness for type argument n.
type Fingerprint int32

const (
	// Other is an ordinary parameter passed through unwrapped.
	Other Fingerprint = -1
	// Lifted is a value parameter wrapped as a syntax handle.
	Lifted Fingerprint = -2
)

// Tag returns the witness fingerprint for type argument position n.
func Tag(n int) Fingerprint {
	if n < 0 {
		panic(fmt.Sprintf("macros: negative tag position %d", n))
	}
	v, err := safecast.Conv[int32](n)
	if err != nil {
		panic(fmt.Errorf("macros: tag position: %w", err))
	}
	return Fingerprint(v)
}

// FingerprintFromInt decodes the persisted integer form.
func FingerprintFromInt(v int64) (Fingerprint, error) {
	if v < int64(Lifted) {
		return 0, fmt.Errorf("invalid fingerprint %d", v)
	}
	n, err := safecast.Conv[int32](v)
	if err != nil {
		return 0, fmt.Errorf("invalid fingerprint %d: %w", v, err)
	}
	return Fingerprint(n), nil
}

func (f Fingerprint) IsTag() bool { return f >= 0 }

// ParamPos returns the type argument position of a Tag.
func (f Fingerprint) ParamPos() int {
	if !f.IsTag() {
		panic(fmt.Sprintf("macros: ParamPos of %s", f))
	}
	return int(f)
}

// Int returns the persisted integer form.
func (f Fingerprint) Int() int64 { return int64(f) }

func (f Fingerprint) String() string {
	switch {
	case f == Other:
		return "Other"
	case f == Lifted:
		return "Lifted"
	case f.IsTag():
		return "Tag(" + strconv.Itoa(int(f)) + ")"
	default:
		return "Fingerprint(" + strconv.Itoa(int(f)) + ")"
	}
}
